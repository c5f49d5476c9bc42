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
	"github.com/nebulastream/streamcore/internal/buffer"
	"github.com/nebulastream/streamcore/internal/record"
)

// OperatorKind is the closed set of operators the core lowers to,
// collapsing the deep virtual-inheritance hierarchy of the original
// operator tree into tagged variants (design note §9): scan and emit
// are the source/sink breakers; filter and map are the stateless
// unary operators built here; the window and join variants carry
// their own parameters and live in internal/window and internal/join
// since they depend on the slice store.
type OperatorKind int

const (
	KindScan OperatorKind = iota
	KindEmit
	KindFilter
	KindMap
	KindWindowBuild
	KindWindowProbe
	KindHashJoinBuild
	KindHashJoinProbe
	KindNLJBuild
	KindNLJProbe
)

// NewIdentityStage forwards every input buffer unchanged to this
// pipeline's successors.
func NewIdentityStage() *Stage {
	return &Stage{
		ExecFunc: func(buf *buffer.Buffer, ctx Context, workerID int) error {
			ctx.EmitBuffer(buf)
			return nil
		},
	}
}

// NewFilterStage keeps only the records for which keep returns true,
// preserving the input buffer's sequencing metadata on the (possibly
// empty) output buffer so a filter never breaks chunk monotonicity.
func NewFilterStage(keep func(record.Record) bool) *Stage {
	return &Stage{
		ExecFunc: func(buf *buffer.Buffer, ctx Context, workerID int) error {
			defer buf.Release()
			out, err := ctx.AllocateBuffer()
			if err != nil {
				return err
			}
			record.CopyMetadata(out, buf)
			for _, r := range record.All(buf) {
				if keep(r) {
					record.Append(out, r)
				}
			}
			ctx.EmitBuffer(out)
			return nil
		},
	}
}

// NewMapStage applies fn to every record of the input buffer,
// preserving sequencing metadata on the output buffer.
func NewMapStage(fn func(record.Record) record.Record) *Stage {
	return &Stage{
		ExecFunc: func(buf *buffer.Buffer, ctx Context, workerID int) error {
			defer buf.Release()
			out, err := ctx.AllocateBuffer()
			if err != nil {
				return err
			}
			record.CopyMetadata(out, buf)
			for _, r := range record.All(buf) {
				record.Append(out, fn(r))
			}
			ctx.EmitBuffer(out)
			return nil
		},
	}
}

// NewSinkStage calls onBuffer for every buffer this pipeline
// receives. onBuffer must tolerate concurrent calls, matching the
// sink interface's contract (§6): the core only guarantees per-origin
// per-sequence monotonicity, not serialisation across origins. The
// sink is a terminal consumer: it never forwards buf on, so it is
// responsible for releasing the ref it was handed once onBuffer
// returns.
func NewSinkStage(onBuffer func(*buffer.Buffer)) *Stage {
	return &Stage{
		ExecFunc: func(buf *buffer.Buffer, ctx Context, workerID int) error {
			defer buf.Release()
			onBuffer(buf)
			return nil
		},
	}
}
