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

package aggregation

import (
	"encoding/binary"
	"math"

	"github.com/dchest/siphash"
)

// CountMinApprox tracks approximate item frequencies in a fixed-size
// sketch: cmDepth independent hash rows of cmWidth counters each. The
// point estimate for an item is the minimum counter it hashes to
// across all rows, which never underestimates the true count.
const (
	cmDepth = 4
	cmWidth = 256
)

// cmSeeds gives each row of the sketch its own siphash key pair, the
// same keyed-hash primitive used by the aggregation and join hashmaps
// elsewhere in this package and in internal/join.
var cmSeeds = [cmDepth][2]uint64{
	{0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9},
	{0x94d049bb133111eb, 0x2545f4914f6cdd1d},
	{0xff51afd7ed558ccd, 0xc4ceb9fe1a85ec53},
	{0x2127599bf4325c37, 0x9e3779b185ebca87},
}

type countMinState struct {
	table [cmDepth][cmWidth]uint32
	last  uint64 // bit pattern of the most recently lifted value
}

type countMinAgg struct{}

func (countMinAgg) Initial() State { return countMinState{} }

func (countMinAgg) Lift(s State, v float64) State {
	st := s.(countMinState)
	bits := math.Float64bits(v)
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], bits)
	for d := 0; d < cmDepth; d++ {
		h := siphash.Hash(cmSeeds[d][0], cmSeeds[d][1], key[:])
		st.table[d][h%cmWidth]++
	}
	st.last = bits
	return st
}

// Combine sums the two sketches element-wise, which is both
// associative and commutative since integer addition is.
func (countMinAgg) Combine(a, b State) State {
	as, bs := a.(countMinState), b.(countMinState)
	var out countMinState
	for d := 0; d < cmDepth; d++ {
		for w := 0; w < cmWidth; w++ {
			out.table[d][w] = as.table[d][w] + bs.table[d][w]
		}
	}
	out.last = bs.last
	if out.last == 0 {
		out.last = as.last
	}
	return out
}

// Lower reports the point estimate for the most recently lifted
// value: the minimum counter it hashes to across all sketch rows.
func (countMinAgg) Lower(s State) float64 {
	st := s.(countMinState)
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], st.last)
	min := ^uint32(0)
	for d := 0; d < cmDepth; d++ {
		h := siphash.Hash(cmSeeds[d][0], cmSeeds[d][1], key[:])
		if c := st.table[d][h%cmWidth]; c < min {
			min = c
		}
	}
	if min == ^uint32(0) {
		return 0
	}
	return float64(min)
}
