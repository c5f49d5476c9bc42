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

package window

import (
	"encoding/binary"

	"github.com/nebulastream/streamcore/internal/aggregation"
	"github.com/nebulastream/streamcore/internal/buffer"
	"github.com/nebulastream/streamcore/internal/pipeline"
	"github.com/nebulastream/streamcore/internal/queue"
	"github.com/nebulastream/streamcore/internal/record"
)

// GlobalKey is the constant group key used for non-keyed (global)
// aggregations: every record upserts into the same single group.
var GlobalKey = []byte{}

func encodeKey(k int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(k))
	return b[:]
}

func decodeKey(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// KeyFn extracts the group key bytes for a record; KeyByID groups by
// the record's ID field, the keyed-aggregation case. For a non-keyed
// (global) aggregation pass a KeyFn that always returns GlobalKey.
type KeyFn func(record.Record) []byte

// KeyByID groups by the record's ID field.
func KeyByID(r record.Record) []byte { return encodeKey(r.ID) }

// KeyGlobal groups every record into the single global aggregate.
func KeyGlobal(record.Record) []byte { return GlobalKey }

// ValFn extracts the numeric value to lift into the aggregation state.
type ValFn func(record.Record) float64

// ValOfVal extracts the record's primary Val field.
func ValOfVal(r record.Record) float64 { return r.Val }

// NewAggregateBuildStage returns the window-build pipeline stage
// (OperatorKind KindWindowBuild): for every input record it touches
// the covering slice, upserts into that worker's per-slice Table, and
// on buffer close schedules a TriggerWindow task (routed back to
// triggerPipelineID, which may be this same pipeline) for every
// window the new watermark has closed.
func NewAggregateBuildStage(h *Handler, kind aggregation.Kind, keyFn KeyFn, valFn ValFn, pool *aggregation.TablePool, triggerPipelineID int) *pipeline.Stage {
	return &pipeline.Stage{
		ExecFunc: func(buf *buffer.Buffer, ctx pipeline.Context, workerID int) error {
			defer buf.Release()
			for _, r := range record.All(buf) {
				sl := h.Touch(r.TS)
				bucket := sl.Bucket(workerID, func() any { return pool.Get(kind) })
				bucket.(*aggregation.Table).Upsert(keyFn(r), valFn(r))
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

// NewAggregateTriggerStage returns the stage that materialises a
// triggered window: it merges every per-thread Table across every
// slice covering the window, lowers each group to its result value,
// and emits one output record per group before retiring the window's
// slices back to the store.
func NewAggregateTriggerStage(h *Handler, kind aggregation.Kind, pool *aggregation.TablePool) *pipeline.Stage {
	return &pipeline.Stage{
		TriggerFunc: func(t queue.WindowTrigger, ctx pipeline.Context) error {
			merged := pool.Get(kind)
			for _, sl := range t.Slices {
				for _, b := range sl.Buckets() {
					merged.Merge(b.(*aggregation.Table))
				}
			}
			out, err := ctx.AllocateBuffer()
			if err != nil {
				pool.Put(merged)
				return err
			}
			out.SetWatermarkTS(t.FireTS)
			out.SetLastChunk(true)
			merged.Iterate(func(key []byte, result float64) {
				record.Append(out, record.Record{ID: decodeKey(key), Val: result, TS: t.Start})
			})
			pool.Put(merged)
			h.Retire(Window{Start: t.Start, End: t.End, Slices: t.Slices})
			ctx.EmitBuffer(out)
			return nil
		},
	}
}
