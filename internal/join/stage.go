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

package join

import (
	"github.com/nebulastream/streamcore/internal/buffer"
	"github.com/nebulastream/streamcore/internal/pipeline"
	"github.com/nebulastream/streamcore/internal/queue"
	"github.com/nebulastream/streamcore/internal/record"
	"github.com/nebulastream/streamcore/internal/window"
)

// NewHashBuildStage returns the build-side stage (KindHashJoinBuild)
// for one arity of a binary join pipeline: it touches the shared
// slice for each record's event time and inserts into that worker's
// HashBucket on the named side, then schedules a trigger once the
// handler's watermark closes a window.
func NewHashBuildStage(h *window.Handler, side Side, triggerPipelineID int) *pipeline.Stage {
	return &pipeline.Stage{
		ExecFunc: func(buf *buffer.Buffer, ctx pipeline.Context, workerID int) error {
			defer buf.Release()
			for _, r := range record.All(buf) {
				sl := h.Touch(r.TS)
				bucket := sl.Bucket(workerID, NewHashBucket).(*HashBucket)
				if side == Left {
					bucket.InsertLeft(r)
				} else {
					bucket.InsertRight(r)
				}
			}
			fired := h.OnBufferClose(buf.OriginID(), buf.SequenceNumber(), buf.WatermarkTS())
			for _, w := range fired {
				ids := make([]uint64, len(w.Slices))
				for i, sl := range w.Slices {
					ids[i] = uint64(sl.Start)
				}
				ctx.EmitTrigger(queue.WindowTrigger{
					PipelineID: triggerPipelineID,
					WindowID:   uint64(w.Start)<<32 | uint64(uint32(w.End)),
					Start:      w.Start,
					End:        w.End,
					FireTS:     w.FireTS,
					SliceIDs:   ids,
					Slices:     w.Slices,
				})
			}
			return nil
		},
	}
}

// NewHashProbeStage returns the probe-side stage (KindHashJoinProbe):
// on a triggered window it gathers every worker-thread HashBucket
// across the window's slices, probes per jt's semantics, and emits
// one output record per result row (Val carries the left value, Val2
// the right value) before retiring the window's slices.
func NewHashProbeStage(h *window.Handler, jt Type) *pipeline.Stage {
	return &pipeline.Stage{
		TriggerFunc: func(t queue.WindowTrigger, ctx pipeline.Context) error {
			var buckets []*HashBucket
			for _, sl := range t.Slices {
				for _, b := range sl.Buckets() {
					buckets = append(buckets, b.(*HashBucket))
				}
			}
			results := ProbeHash(buckets, jt)

			out, err := ctx.AllocateBuffer()
			if err != nil {
				return err
			}
			out.SetWatermarkTS(t.FireTS)
			out.SetLastChunk(true)
			for _, r := range results {
				record.Append(out, record.Record{ID: r.Key, Val: r.LeftVal, Val2: r.RightVal, TS: t.Start})
			}
			h.Retire(window.Window{Start: t.Start, End: t.End, Slices: t.Slices})
			ctx.EmitBuffer(out)
			return nil
		},
	}
}

// NewNestedLoopBuildStage returns the nested-loop build-side stage
// (KindNLJBuild): per-slice, per-thread paged vectors of raw tuples,
// with the Cartesian product deferred to probe time.
func NewNestedLoopBuildStage(h *window.Handler, side Side, triggerPipelineID int) *pipeline.Stage {
	return &pipeline.Stage{
		ExecFunc: func(buf *buffer.Buffer, ctx pipeline.Context, workerID int) error {
			defer buf.Release()
			for _, r := range record.All(buf) {
				sl := h.Touch(r.TS)
				bucket := sl.Bucket(workerID, newNestedLoopBucket).(*nestedLoopBucket)
				if side == Left {
					bucket.left = append(bucket.left, r)
				} else {
					bucket.right = append(bucket.right, r)
				}
			}
			fired := h.OnBufferClose(buf.OriginID(), buf.SequenceNumber(), buf.WatermarkTS())
			for _, w := range fired {
				ids := make([]uint64, len(w.Slices))
				for i, sl := range w.Slices {
					ids[i] = uint64(sl.Start)
				}
				ctx.EmitTrigger(queue.WindowTrigger{
					PipelineID: triggerPipelineID,
					WindowID:   uint64(w.Start)<<32 | uint64(uint32(w.End)),
					Start:      w.Start,
					End:        w.End,
					FireTS:     w.FireTS,
					SliceIDs:   ids,
					Slices:     w.Slices,
				})
			}
			return nil
		},
	}
}

type nestedLoopBucket struct {
	left, right []record.Record
}

func newNestedLoopBucket() any { return &nestedLoopBucket{} }

// NewNestedLoopProbeStage returns the nested-loop probe stage
// (KindNLJProbe): it concatenates every worker-thread bucket's left
// and right tuple pages across the window's slices and iterates the
// full Cartesian product.
func NewNestedLoopProbeStage(h *window.Handler, jt Type) *pipeline.Stage {
	return &pipeline.Stage{
		TriggerFunc: func(t queue.WindowTrigger, ctx pipeline.Context) error {
			var left, right []record.Record
			for _, sl := range t.Slices {
				for _, b := range sl.Buckets() {
					nb := b.(*nestedLoopBucket)
					left = append(left, nb.left...)
					right = append(right, nb.right...)
				}
			}
			results := ProbeNestedLoop(left, right, jt)

			out, err := ctx.AllocateBuffer()
			if err != nil {
				return err
			}
			out.SetWatermarkTS(t.FireTS)
			out.SetLastChunk(true)
			for _, r := range results {
				record.Append(out, record.Record{ID: r.Key, Val: r.LeftVal, Val2: r.RightVal, TS: t.Start})
			}
			h.Retire(window.Window{Start: t.Start, End: t.End, Slices: t.Slices})
			ctx.EmitBuffer(out)
			return nil
		},
	}
}
