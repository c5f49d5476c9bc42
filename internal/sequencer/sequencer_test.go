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

package sequencer

import "testing"

func TestSingleRecordSequenceCompletesImmediately(t *testing.T) {
	s := New()
	done, err := s.RecordChunk(1, 1, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("single chunk, is_last=true should complete the sequence immediately")
	}
	if !s.EndOfStream(1, 1) {
		t.Fatal("expected end-of-stream")
	}
	s.Retire(1, 1)
	if s.Tracked() != 0 {
		t.Fatal("Retire should drop tracking state")
	}
}

func TestOutOfOrderFanInReconciles(t *testing.T) {
	s := New()
	// three chunks arrive out of order; only the last one signals is_last.
	done, err := s.RecordChunk(1, 5, 2, false)
	if err != nil || done {
		t.Fatalf("unexpected done=%v err=%v", done, err)
	}
	done, err = s.RecordChunk(1, 5, 1, false)
	if err != nil || done {
		t.Fatalf("unexpected done=%v err=%v", done, err)
	}
	done, err = s.RecordChunk(1, 5, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected sequence to complete once seen_chunks == last_chunk_number")
	}
}

func TestInvariantViolationOnOvercounting(t *testing.T) {
	s := New()
	if _, err := s.RecordChunk(1, 1, 1, true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordChunk(1, 1, 2, false); err == nil {
		t.Fatal("expected InvariantViolated when seen_chunks exceeds last_chunk_number")
	}
}

func TestNextChunkAssignsConsecutiveNumbers(t *testing.T) {
	s := New()
	for i := uint64(1); i <= 5; i++ {
		if got := s.NextChunk(1, 1); got != i {
			t.Fatalf("NextChunk = %d, want %d", got, i)
		}
	}
}

func TestEmitterReordersToStrictlyIncreasing(t *testing.T) {
	e := NewEmitter()
	var observed []int
	for _, c := range []uint64{3, 1, 2, 4} {
		for _, v := range e.Submit(1, 1, c, int(c)) {
			observed = append(observed, v.(int))
		}
	}
	want := []int{1, 2, 3, 4}
	if len(observed) != len(want) {
		t.Fatalf("observed = %v, want %v", observed, want)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Fatalf("observed = %v, want %v", observed, want)
		}
	}
	if e.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0 after full drain", e.Pending())
	}
}

func TestEmitterKeepsOriginsIndependent(t *testing.T) {
	e := NewEmitter()
	out1 := e.Submit(1, 1, 1, "a")
	out2 := e.Submit(2, 1, 1, "b")
	if len(out1) != 1 || out1[0] != "a" {
		t.Fatalf("origin 1 output = %v", out1)
	}
	if len(out2) != 1 || out2[0] != "b" {
		t.Fatalf("origin 2 output = %v", out2)
	}
}
