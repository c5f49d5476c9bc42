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

package join

import (
	"sort"
	"testing"

	"github.com/nebulastream/streamcore/internal/record"
)

func sortResults(rs []Result) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Key != rs[j].Key {
			return rs[i].Key < rs[j].Key
		}
		if rs[i].LeftVal != rs[j].LeftVal {
			return rs[i].LeftVal < rs[j].LeftVal
		}
		return rs[i].RightVal < rs[j].RightVal
	})
}

func buildAndProbeSides() ([]record.Record, []record.Record) {
	left := []record.Record{{ID: 1, Val: 10}, {ID: 2, Val: 20}}
	right := []record.Record{{ID: 1, Val: 100}, {ID: 1, Val: 200}}
	return left, right
}

func TestProbeNestedLoopInnerJoin(t *testing.T) {
	left, right := buildAndProbeSides()
	got := ProbeNestedLoop(left, right, Inner)
	sortResults(got)

	want := []Result{
		{Key: 1, LeftVal: 10, RightVal: 100, HasLeft: true, HasRight: true},
		{Key: 1, LeftVal: 10, RightVal: 200, HasLeft: true, HasRight: true},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestProbeNestedLoopLeftOuterKeepsUnmatched(t *testing.T) {
	left, right := buildAndProbeSides()
	got := ProbeNestedLoop(left, right, LeftOuter)
	sortResults(got)

	var unmatched int
	for _, r := range got {
		if r.HasLeft && !r.HasRight {
			unmatched++
			if r.Key != 2 {
				t.Fatalf("unexpected unmatched left key %d", r.Key)
			}
		}
	}
	if unmatched != 1 {
		t.Fatalf("expected exactly one unmatched left row (key=2), got %d", unmatched)
	}
}

func TestProbeHashMergesAcrossWorkerPartitions(t *testing.T) {
	bA := NewHashBucket().(*HashBucket)
	bA.InsertLeft(record.Record{ID: 1, Val: 10})
	bB := NewHashBucket().(*HashBucket)
	bB.InsertRight(record.Record{ID: 1, Val: 100})
	bB.InsertRight(record.Record{ID: 1, Val: 200})

	got := ProbeHash([]*HashBucket{bA, bB}, Inner)
	sortResults(got)

	if len(got) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(got), got)
	}
	if got[0].RightVal != 100 || got[1].RightVal != 200 {
		t.Fatalf("unexpected right values: %+v", got)
	}
}

func TestProbeHashFullOuterEmitsBothSidedNonMatches(t *testing.T) {
	bA := NewHashBucket().(*HashBucket)
	bA.InsertLeft(record.Record{ID: 1, Val: 10})
	bA.InsertRight(record.Record{ID: 2, Val: 200})

	got := ProbeHash([]*HashBucket{bA}, FullOuter)
	var leftOnly, rightOnly int
	for _, r := range got {
		switch {
		case r.HasLeft && !r.HasRight:
			leftOnly++
		case r.HasRight && !r.HasLeft:
			rightOnly++
		}
	}
	if leftOnly != 1 || rightOnly != 1 {
		t.Fatalf("expected one left-only and one right-only row, got %d/%d", leftOnly, rightOnly)
	}
}
