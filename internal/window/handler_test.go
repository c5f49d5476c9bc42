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

package window

import (
	"testing"

	"github.com/nebulastream/streamcore/internal/slicestore"
)

func newTumblingHandler(t *testing.T, size int64) *Handler {
	t.Helper()
	a, err := slicestore.NewAssigner(size, size)
	if err != nil {
		t.Fatal(err)
	}
	return NewHandler(a, slicestore.KindGlobalAgg, []uint64{1})
}

func TestTumblingWindowTriggersExactlyOncePerInterval(t *testing.T) {
	h := newTumblingHandler(t, 5)
	for ts := int64(0); ts < 10; ts++ {
		h.Touch(ts)
	}

	fired := h.OnBufferClose(1, 1, 10)
	if len(fired) != 2 {
		t.Fatalf("expected both [0,5) and [5,10) to fire, got %d", len(fired))
	}

	seen := map[[2]int64]bool{}
	for _, w := range fired {
		seen[[2]int64{w.Start, w.End}] = true
		h.Retire(w)
	}
	if !seen[[2]int64{0, 5}] || !seen[[2]int64{5, 10}] {
		t.Fatalf("unexpected fired windows: %v", fired)
	}
}

func TestSlidingWindowTriggersOnlyWhenWatermarkCoversEnd(t *testing.T) {
	a, err := slicestore.NewAssigner(10, 5)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(a, slicestore.KindGlobalAgg, []uint64{1})
	// ts 10..14 belongs to windows [5,15) and [10,20) only.
	for ts := int64(10); ts < 15; ts++ {
		h.Touch(ts)
	}
	fired := h.OnBufferClose(1, 1, 15)
	if len(fired) != 1 {
		t.Fatalf("got %d fired windows at watermark 15, want 1", len(fired))
	}
	if fired[0].Start != 5 || fired[0].End != 15 {
		t.Fatalf("fired window = [%d,%d), want [5,15)", fired[0].Start, fired[0].End)
	}
}

func TestRetireEvictsSliceOnceAllWindowsDone(t *testing.T) {
	h := newTumblingHandler(t, 5)
	h.Touch(2)
	if h.Store.Len() != 1 {
		t.Fatalf("Store.Len() = %d, want 1", h.Store.Len())
	}
	fired := h.OnBufferClose(1, 1, 100)
	for _, w := range fired {
		h.Retire(w)
	}
	if h.Store.Len() != 0 {
		t.Fatalf("Store.Len() after retire = %d, want 0", h.Store.Len())
	}
}

func TestGlobalWatermarkIsMonotonic(t *testing.T) {
	h := newTumblingHandler(t, 5)
	h.Touch(1)
	h.OnBufferClose(1, 1, 3)
	first := h.Global()
	h.Touch(4)
	h.OnBufferClose(1, 2, 1) // an out-of-order, smaller event time
	if h.Global() < first {
		t.Fatalf("global watermark decreased: %d -> %d", first, h.Global())
	}
}
