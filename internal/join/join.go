// Copyright (C) 2024 NebulaStream Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package join implements the join engine (C9): nested-loop and hash
// build/probe strategies sharing a slice with the window operator
// handler. A record in slice S_L joins a record in slice S_R iff
// S_L ∩ S_R ≠ ∅ within the triggering window; the probe phase
// produces all valid combinations for the enumerated (left, right)
// slice pairs belonging to one window, which is the source of the
// out-of-order chunk numbering internal/sequencer reconciles.
package join

import "github.com/nebulastream/streamcore/internal/record"

// Type is the closed set of join semantics this engine supports.
type Type int

const (
	Inner Type = iota
	LeftOuter
	RightOuter
	FullOuter
)

// Side distinguishes which build pipeline a record came from; the
// two arities share one pipeline instance per spec §4.4.
type Side int

const (
	Left Side = iota
	Right
)

// Result is one output row of a probe: the join key plus whichever of
// the left/right values were present. HasLeft/HasRight are false for
// the placeholder null side of an outer-join non-match.
type Result struct {
	Key      int64
	LeftVal  float64
	RightVal float64
	HasLeft  bool
	HasRight bool
}

// ProbeNestedLoop iterates the Cartesian product of left and right,
// matching on record ID as the join key, and applies jt's outer-join
// placeholder-null semantics for unmatched rows.
func ProbeNestedLoop(left, right []record.Record, jt Type) []Result {
	var out []Result
	matchedRight := make([]bool, len(right))
	for _, l := range left {
		matched := false
		for ri, r := range right {
			if l.ID == r.ID {
				out = append(out, Result{Key: l.ID, LeftVal: l.Val, RightVal: r.Val, HasLeft: true, HasRight: true})
				matched = true
				matchedRight[ri] = true
			}
		}
		if !matched && (jt == LeftOuter || jt == FullOuter) {
			out = append(out, Result{Key: l.ID, LeftVal: l.Val, HasLeft: true})
		}
	}
	if jt == RightOuter || jt == FullOuter {
		for ri, r := range right {
			if !matchedRight[ri] {
				out = append(out, Result{Key: r.ID, RightVal: r.Val, HasRight: true})
			}
		}
	}
	return out
}
