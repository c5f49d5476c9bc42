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
	"sync"
	"sync/atomic"
	"time"

	"github.com/nebulastream/streamcore/internal/enginerr"
)

// stopPollInterval bounds how often submit/next re-check the stop
// token while waiting, per the <=100ms polling granularity required
// by the specification.
const stopPollInterval = 100 * time.Millisecond

// Queue is the bounded-admission / unbounded-internal two-tier MPMC
// queue. Ordering is FIFO within each tier; there is no ordering
// guarantee across tiers. next() is biased toward the internal queue
// so in-flight downstream work drains before new admissions are
// accepted, bounding task fan-out.
type Queue struct {
	admissionCap int

	mu        sync.Mutex
	admission []Task
	internal  []Task

	sema chan struct{} // one token per item present in either tier

	enqueued int64
	dequeued int64
}

// New constructs a Queue whose admission tier holds at most
// admissionCap tasks.
func New(admissionCap int) *Queue {
	return &Queue{
		admissionCap: admissionCap,
		sema:         make(chan struct{}, admissionCap+1<<20),
	}
}

// SubmitAdmission blocks until the admission queue has space or ctx
// is cancelled, polling the cancellation at stopPollInterval
// granularity, then enqueues task and releases the semaphore.
func (q *Queue) SubmitAdmission(ctx context.Context, task Task) error {
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for {
		q.mu.Lock()
		if len(q.admission) < q.admissionCap {
			q.admission = append(q.admission, task)
			q.mu.Unlock()
			atomic.AddInt64(&q.enqueued, 1)
			q.sema <- struct{}{}
			return nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return enginerr.Wrap(enginerr.BufferPoolExhausted, ctx.Err(), "admission submit cancelled")
		case <-ticker.C:
		}
	}
}

// SubmitInternal always succeeds: it appends to the unbounded
// internal tier and releases the semaphore. Only workers producing
// downstream tasks call this.
func (q *Queue) SubmitInternal(task Task) {
	q.mu.Lock()
	q.internal = append(q.internal, task)
	q.mu.Unlock()
	atomic.AddInt64(&q.enqueued, 1)
	q.sema <- struct{}{}
}

// Next acquires the semaphore, polling ctx for cancellation at
// stopPollInterval granularity, then dequeues preferentially from the
// internal tier and falls back to admission. It is an invariant
// violation for the semaphore to signal an item while neither tier
// yields one.
func (q *Queue) Next(ctx context.Context) (Task, bool, error) {
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.sema:
			t, ok := q.dequeue()
			if !ok {
				return Task{}, false, enginerr.New(enginerr.InvariantViolated, "semaphore signalled work but both queue tiers were empty")
			}
			atomic.AddInt64(&q.dequeued, 1)
			return t, true, nil
		case <-ctx.Done():
			return Task{}, false, nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return Task{}, false, nil
			}
		}
	}
}

// TryNext is the non-blocking variant of Next.
func (q *Queue) TryNext() (Task, bool) {
	select {
	case <-q.sema:
		t, ok := q.dequeue()
		if ok {
			atomic.AddInt64(&q.dequeued, 1)
		}
		return t, ok
	default:
		return Task{}, false
	}
}

func (q *Queue) dequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n := len(q.internal); n > 0 {
		t := q.internal[0]
		q.internal = q.internal[1:]
		return t, true
	}
	if n := len(q.admission); n > 0 {
		t := q.admission[0]
		q.admission = q.admission[1:]
		return t, true
	}
	return Task{}, false
}

// Pending returns the number of tasks currently resident in either
// tier, used to verify task-queue conservation at query stop.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.admission) + len(q.internal)
}

// Enqueued and Dequeued report the running totals used by the
// task-queue conservation invariant: enqueued == dequeued + Pending().
func (q *Queue) Enqueued() int64 { return atomic.LoadInt64(&q.enqueued) }
func (q *Queue) Dequeued() int64 { return atomic.LoadInt64(&q.dequeued) }
