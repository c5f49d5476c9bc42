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

// Package worker implements the worker thread pool (C3): N goroutines
// pulling tasks from the two-tier queue and dispatching them against
// the relevant pipeline stage.
package worker

import (
	"context"
	"sync"

	"github.com/nebulastream/streamcore/internal/engine"
	"github.com/nebulastream/streamcore/internal/enginerr"
	"github.com/nebulastream/streamcore/internal/queue"
)

// Dispatcher resolves a pipeline id to the stage that should execute
// a task, and handles TriggerWindow tasks. It is supplied by the
// query package, which owns the pipeline graph and window handlers.
type Dispatcher interface {
	ExecutePipeline(workerID int, pipelineID int, buf any) error
	TriggerWindow(workerID int, t queue.WindowTrigger) error
}

// ErrorSink receives errors from isolated task failures, per the
// error-handling design: a worker's failure of a single task never
// propagates past the worker loop.
type ErrorSink func(err error)

// Pool spawns numWorkers goroutines, each looping on queue.Next until
// it observes a Stop task or the queue signals shutdown.
type Pool struct {
	q          *queue.Queue
	dispatcher Dispatcher
	onError    ErrorSink

	wg sync.WaitGroup
}

// NewPool constructs a worker pool of numWorkers goroutines, bounded
// to [1,1024] by the specification's configuration constraint.
func NewPool(numWorkers int, q *queue.Queue, d Dispatcher, onError ErrorSink) (*Pool, error) {
	if numWorkers < 1 || numWorkers > 1024 {
		return nil, enginerr.New(enginerr.ConfigurationInvalid, "numberOfWorkerThreads %d out of range [1,1024]", numWorkers)
	}
	if onError == nil {
		onError = func(error) {}
	}
	p := &Pool{q: q, dispatcher: d, onError: onError}
	ready := sync.WaitGroup{}
	ready.Add(numWorkers)
	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.run(i, &ready)
	}
	ready.Wait()
	return p, nil
}

// run is the per-worker loop: pull a task, dispatch it, repeat until
// Stop or the stop token fires. A worker's failure on a single task is
// isolated: the error is reported to onError and the worker continues
// with the next task.
func (p *Pool) run(id int, ready *sync.WaitGroup) {
	defer p.wg.Done()
	ready.Done()

	ctx := context.Background()
	for {
		task, ok, err := p.q.Next(ctx)
		if err != nil {
			p.onError(err)
			continue
		}
		if !ok {
			return
		}
		switch task.Kind {
		case queue.Stop:
			return
		case queue.ExecutePipeline:
			p.dispatchExecute(id, task)
		case queue.TriggerWindow:
			p.dispatchTrigger(id, task)
		}
	}
}

func (p *Pool) dispatchExecute(id int, task queue.Task) {
	defer func() {
		if r := recover(); r != nil {
			engine.Logf("worker %d: panic in pipeline %d: %v", id, task.PipelineID, r)
			p.onError(enginerr.New(enginerr.PipelineExecutionError, "panic in pipeline %d: %v", task.PipelineID, r))
		}
	}()
	if err := p.dispatcher.ExecutePipeline(id, task.PipelineID, task.Buffer); err != nil {
		engine.Logf("worker %d: pipeline %d execute failed: %v", id, task.PipelineID, err)
		p.onError(err)
	}
}

func (p *Pool) dispatchTrigger(id int, task queue.Task) {
	defer func() {
		if r := recover(); r != nil {
			engine.Logf("worker %d: panic triggering window %d: %v", id, task.Trigger.WindowID, r)
			p.onError(enginerr.New(enginerr.PipelineExecutionError, "panic triggering window %d: %v", task.Trigger.WindowID, r))
		}
	}()
	if err := p.dispatcher.TriggerWindow(id, task.Trigger); err != nil {
		engine.Logf("worker %d: trigger for window %d failed: %v", id, task.Trigger.WindowID, err)
		p.onError(err)
	}
}

// StopGracefully enqueues one Stop task per worker via the internal
// tier (so in-flight work drains first) and waits for all workers to
// exit, or for ctx to be cancelled first.
func (p *Pool) StopGracefully(ctx context.Context, numWorkers int) error {
	for i := 0; i < numWorkers; i++ {
		p.q.SubmitInternal(queue.StopTask)
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return enginerr.New(enginerr.QueryStopTimeout, "workers did not drain before deadline")
	}
}
