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

package queue

import (
	"context"
	"testing"
	"time"
)

func TestFIFOWithinTier(t *testing.T) {
	q := New(10)
	for i := 0; i < 3; i++ {
		q.SubmitAdmission(context.Background(), NewExecute(i, nil))
	}
	for i := 0; i < 3; i++ {
		task, ok, err := q.Next(context.Background())
		if err != nil || !ok {
			t.Fatalf("Next() = %v, %v, %v", task, ok, err)
		}
		if task.PipelineID != i {
			t.Fatalf("got pipeline %d, want %d (FIFO violated)", task.PipelineID, i)
		}
	}
}

func TestInternalBiasedOverAdmission(t *testing.T) {
	q := New(10)
	q.SubmitAdmission(context.Background(), NewExecute(100, nil))
	q.SubmitInternal(NewExecute(7, nil))

	task, ok, err := q.Next(context.Background())
	if err != nil || !ok {
		t.Fatal(err)
	}
	if task.PipelineID != 7 {
		t.Fatalf("expected internal task to be preferred, got pipeline %d", task.PipelineID)
	}
}

func TestNextRespectsCancellation(t *testing.T) {
	q := New(10)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err := q.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected Next to return no task on cancellation")
	}
}

func TestTaskQueueConservation(t *testing.T) {
	q := New(100)
	for i := 0; i < 50; i++ {
		q.SubmitAdmission(context.Background(), NewExecute(i, nil))
	}
	for i := 0; i < 20; i++ {
		if _, ok, err := q.Next(context.Background()); err != nil || !ok {
			t.Fatal(err)
		}
	}
	if got, want := q.Enqueued(), int64(50); got != want {
		t.Fatalf("Enqueued() = %d, want %d", got, want)
	}
	if got, want := q.Dequeued(), int64(20); got != want {
		t.Fatalf("Dequeued() = %d, want %d", got, want)
	}
	if got, want := q.Pending(), 30; got != want {
		t.Fatalf("Pending() = %d, want %d", got, want)
	}
	if q.Enqueued() != q.Dequeued()+int64(q.Pending()) {
		t.Fatal("enqueued != dequeued + pending")
	}
}

func TestTryNextNonBlocking(t *testing.T) {
	q := New(10)
	if _, ok := q.TryNext(); ok {
		t.Fatal("expected no task on empty queue")
	}
	q.SubmitInternal(NewExecute(1, nil))
	task, ok := q.TryNext()
	if !ok || task.PipelineID != 1 {
		t.Fatalf("TryNext() = %v, %v", task, ok)
	}
}

func TestAdmissionBlocksWhenFull(t *testing.T) {
	q := New(1)
	if err := q.SubmitAdmission(context.Background(), NewExecute(0, nil)); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- q.SubmitAdmission(context.Background(), NewExecute(1, nil))
	}()

	select {
	case <-done:
		t.Fatal("SubmitAdmission returned before space was freed")
	case <-time.After(50 * time.Millisecond):
	}

	if _, ok, err := q.Next(context.Background()); err != nil || !ok {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("SubmitAdmission never unblocked")
	}
}
