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

// Package queue implements the two-tier task queue (C2): a bounded
// admission queue for external producers and an unbounded internal
// queue for downstream work produced by workers, fed by one counting
// semaphore and drained with an internal-first bias.
package queue

import (
	"github.com/nebulastream/streamcore/internal/buffer"
	"github.com/nebulastream/streamcore/internal/slicestore"
)

// Kind is the closed tag of a Task's variant.
type Kind int

const (
	ExecutePipeline Kind = iota
	TriggerWindow
	Stop
)

// WindowTrigger carries the payload for a TriggerWindow task: the
// window metadata and the enumerated slices covering it. Slices
// carries the live *slicestore.Slice pointers so the triggering
// pipeline stage can read their per-thread buckets directly, without
// a second lookup through the (possibly already-evicted) store;
// SliceIDs mirrors their start timestamps for diagnostics and tests.
type WindowTrigger struct {
	PipelineID int
	WindowID   uint64
	Start, End int64
	FireTS     int64
	SliceIDs   []uint64
	Slices     []*slicestore.Slice
}

// Task is the closed sum type ExecutePipeline | TriggerWindow | Stop.
// Tasks are immutable once enqueued: callers must not mutate a Task's
// fields after submitting it.
type Task struct {
	Kind       Kind
	PipelineID int
	Buffer     *buffer.Buffer
	Trigger    WindowTrigger
}

// NewExecute builds an ExecutePipeline task.
func NewExecute(pipelineID int, buf *buffer.Buffer) Task {
	return Task{Kind: ExecutePipeline, PipelineID: pipelineID, Buffer: buf}
}

// NewTrigger builds a TriggerWindow task.
func NewTrigger(t WindowTrigger) Task {
	return Task{Kind: TriggerWindow, PipelineID: t.PipelineID, Trigger: t}
}

// StopTask is the sentinel task instructing a worker to exit.
var StopTask = Task{Kind: Stop}
