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

package pipeline

import (
	"context"
	"testing"

	"github.com/nebulastream/streamcore/internal/buffer"
	"github.com/nebulastream/streamcore/internal/queue"
	"github.com/nebulastream/streamcore/internal/record"
)

func newTestContext(t *testing.T, successors []int) (*RuntimeContext, *buffer.Pool, *queue.Queue) {
	t.Helper()
	pool, err := buffer.NewPool(4096, 8)
	if err != nil {
		t.Fatal(err)
	}
	q := queue.New(8)
	return &RuntimeContext{
		Ctx:        context.Background(),
		Pool:       pool,
		Queue:      q,
		Pipeline:   0,
		Successors: successors,
		Worker:     0,
	}, pool, q
}

func inputBuffer(t *testing.T, pool *buffer.Pool, recs []record.Record) *buffer.Buffer {
	t.Helper()
	buf, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range recs {
		record.Append(buf, r)
	}
	return buf
}

func TestIdentityStageForwardsUnchanged(t *testing.T) {
	ctx, pool, q := newTestContext(t, []int{1})
	in := inputBuffer(t, pool, []record.Record{{ID: 1, Val: 10, TS: 0}, {ID: 2, Val: 20, TS: 1}})

	stage := NewIdentityStage()
	if err := stage.Execute(in, ctx, 0); err != nil {
		t.Fatal(err)
	}

	task, ok := q.TryNext()
	if !ok {
		t.Fatal("expected forwarded task")
	}
	got := record.All(task.Buffer)
	if len(got) != 2 || got[0].Val != 10 || got[1].Val != 20 {
		t.Fatalf("identity stage altered records: %+v", got)
	}
}

func TestFilterStageKeepsMatching(t *testing.T) {
	ctx, pool, q := newTestContext(t, []int{1})
	in := inputBuffer(t, pool, []record.Record{
		{ID: 1, Val: 10, TS: 0},
		{ID: 2, Val: 20, TS: 1},
		{ID: 3, Val: 30, TS: 2},
	})
	in.SetOriginID(1)
	in.SetSequenceNumber(1)
	in.SetChunkNumber(1)
	in.SetLastChunk(true)

	stage := NewFilterStage(func(r record.Record) bool { return r.Val > 15 })
	if err := stage.Execute(in, ctx, 0); err != nil {
		t.Fatal(err)
	}

	task, ok := q.TryNext()
	if !ok {
		t.Fatal("expected forwarded task")
	}
	got := record.All(task.Buffer)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Fatalf("filter kept wrong records: %+v", got)
	}
	if task.Buffer.OriginID() != 1 || task.Buffer.SequenceNumber() != 1 || !task.Buffer.LastChunk() {
		t.Fatal("filter did not preserve sequencing metadata")
	}
}

func TestMapStageTransformsEveryRecord(t *testing.T) {
	ctx, pool, q := newTestContext(t, []int{1})
	in := inputBuffer(t, pool, []record.Record{{ID: 1, Val: 10, TS: 0}, {ID: 2, Val: 20, TS: 1}})

	stage := NewMapStage(func(r record.Record) record.Record {
		r.Val *= 2
		return r
	})
	if err := stage.Execute(in, ctx, 0); err != nil {
		t.Fatal(err)
	}

	task, _ := q.TryNext()
	got := record.All(task.Buffer)
	if got[0].Val != 20 || got[1].Val != 40 {
		t.Fatalf("map stage did not double every value: %+v", got)
	}
}

func TestSinkStageInvokesCallback(t *testing.T) {
	ctx, pool, _ := newTestContext(t, nil)
	in := inputBuffer(t, pool, []record.Record{{ID: 1, Val: 10, TS: 0}})

	var seen []record.Record
	stage := NewSinkStage(func(buf *buffer.Buffer) {
		seen = append(seen, record.All(buf)...)
	})
	if err := stage.Execute(in, ctx, 0); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0].ID != 1 {
		t.Fatalf("sink did not observe record: %+v", seen)
	}
}
