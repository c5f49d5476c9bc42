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
	"sync"

	"github.com/nebulastream/streamcore/internal/buffer"
	"github.com/nebulastream/streamcore/internal/queue"
)

// Stage implements the three entry points every compiled pipeline
// stage exposes. Setup runs exactly once, idempotently, before any
// Execute; Execute is reentrant and may run concurrently on distinct
// buffers; Stop runs exactly once after the last input sequence has
// drained. TriggerFunc is the window/join-specific extension point a
// compiled stage uses to materialise and emit a triggered window; it
// is nil for stages that never receive TriggerWindow tasks.
type Stage struct {
	SetupFunc   func(ctx Context) error
	ExecFunc    func(buf *buffer.Buffer, ctx Context, workerID int) error
	TriggerFunc func(t queue.WindowTrigger, ctx Context) error
	StopFunc    func(ctx Context) error

	setupOnce sync.Once
	setupErr  error
	stopOnce  sync.Once
	stopErr   error
}

// Setup runs SetupFunc exactly once across however many times Setup
// is called, matching the "idempotent across identical pipelines"
// requirement.
func (s *Stage) Setup(ctx Context) error {
	s.setupOnce.Do(func() {
		if s.SetupFunc != nil {
			s.setupErr = s.SetupFunc(ctx)
		}
	})
	return s.setupErr
}

// Execute runs ExecFunc against one input buffer. Safe to call
// concurrently from multiple workers on distinct buffers.
func (s *Stage) Execute(buf *buffer.Buffer, ctx Context, workerID int) error {
	if s.ExecFunc == nil {
		return nil
	}
	return s.ExecFunc(buf, ctx, workerID)
}

// Trigger runs TriggerFunc against a materialised window trigger. A
// stage with no TriggerFunc silently ignores TriggerWindow tasks
// routed to it (e.g. a plain filter pipeline never receives one).
func (s *Stage) Trigger(t queue.WindowTrigger, ctx Context) error {
	if s.TriggerFunc == nil {
		return nil
	}
	return s.TriggerFunc(t, ctx)
}

// Stop runs StopFunc exactly once.
func (s *Stage) Stop(ctx Context) error {
	s.stopOnce.Do(func() {
		if s.StopFunc != nil {
			s.stopErr = s.StopFunc(ctx)
		}
	})
	return s.stopErr
}
