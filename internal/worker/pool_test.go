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

package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nebulastream/streamcore/internal/queue"
)

type countingDispatcher struct {
	executed int64
	failFor  int
}

func (d *countingDispatcher) ExecutePipeline(workerID, pipelineID int, buf any) error {
	atomic.AddInt64(&d.executed, 1)
	if pipelineID == d.failFor {
		panic("boom")
	}
	return nil
}

func (d *countingDispatcher) TriggerWindow(workerID int, t queue.WindowTrigger) error {
	return nil
}

func TestPoolDispatchesAndIsolatesFailures(t *testing.T) {
	q := queue.New(100)
	d := &countingDispatcher{failFor: 2}
	var errs int64
	p, err := NewPool(4, q, d, func(error) { atomic.AddInt64(&errs, 1) })
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		q.SubmitAdmission(context.Background(), queue.NewExecute(i%3, nil))
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&d.executed) < 10 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := atomic.LoadInt64(&d.executed); got != 10 {
		t.Fatalf("executed = %d, want 10", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.StopGracefully(ctx, 4); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt64(&errs) == 0 {
		t.Fatal("expected isolated panic to be reported as an error")
	}
}

func TestInvalidWorkerCountRejected(t *testing.T) {
	q := queue.New(10)
	d := &countingDispatcher{}
	if _, err := NewPool(0, q, d, nil); err == nil {
		t.Fatal("expected error for 0 workers")
	}
	if _, err := NewPool(2000, q, d, nil); err == nil {
		t.Fatal("expected error for >1024 workers")
	}
}
