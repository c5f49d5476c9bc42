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

	"github.com/nebulastream/streamcore/internal/buffer"
	"github.com/nebulastream/streamcore/internal/queue"
)

// Context is what a Stage's ExecFunc/TriggerFunc sees: a way to
// allocate a fresh output buffer, emit it (or a window trigger)
// downstream as follow-up tasks, and reach this pipeline's operator
// handlers by the index assigned at query-plan lowering time.
type Context interface {
	AllocateBuffer() (*buffer.Buffer, error)
	EmitBuffer(buf *buffer.Buffer)
	EmitTrigger(t queue.WindowTrigger)
	Handler(index int) OperatorHandler
	WorkerID() int
	PipelineID() int
}

// RuntimeContext is the engine-supplied Context implementation: it
// binds one pipeline's successors and handlers to the shared buffer
// pool and task queue for the duration of one Execute/Trigger call.
type RuntimeContext struct {
	Ctx        context.Context
	Pool       *buffer.Pool
	Queue      *queue.Queue
	Pipeline   int
	Successors []int
	Handlers   []OperatorHandler
	Worker     int
}

func (c *RuntimeContext) AllocateBuffer() (*buffer.Buffer, error) {
	return c.Pool.Acquire(c.Ctx)
}

// EmitBuffer enqueues buf as an ExecutePipeline task for every
// successor of this pipeline, via the internal tier so downstream
// work is preferred over new admissions (§4.2 fairness).
//
// buf arrives here holding exactly one data ref, owned by the caller.
// Fanning it out to N successors hands that one ref to the first
// successor task and requires N-1 additional refs for the rest, so
// every successor ends up owning exactly the one ref it releases once
// it is done with buf; with a single successor no extra ref is taken
// and ownership passes through unchanged.
func (c *RuntimeContext) EmitBuffer(buf *buffer.Buffer) {
	for i := 1; i < len(c.Successors); i++ {
		buf.Retain()
	}
	for _, succ := range c.Successors {
		c.Queue.SubmitInternal(queue.NewExecute(succ, buf))
	}
}

// EmitTrigger enqueues t as a TriggerWindow task.
func (c *RuntimeContext) EmitTrigger(t queue.WindowTrigger) {
	c.Queue.SubmitInternal(queue.NewTrigger(t))
}

func (c *RuntimeContext) Handler(index int) OperatorHandler {
	if index < 0 || index >= len(c.Handlers) {
		return nil
	}
	return c.Handlers[index]
}

func (c *RuntimeContext) WorkerID() int   { return c.Worker }
func (c *RuntimeContext) PipelineID() int { return c.Pipeline }
