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

// Package record defines the fixed tuple layout that compiled
// pipeline stages read and write inside a tuple buffer's memory
// region. A real query compiler emits schema-specific field access
// code (out of scope, §1); this fixed layout stands in for it so the
// core's scheduling, windowing, and sequencing logic can be exercised
// end-to-end without a compiler.
package record

import "github.com/nebulastream/streamcore/internal/buffer"

// Record is one tuple: an identity/key field, a primary numeric
// value, an event-time timestamp in milliseconds, and a second value
// slot used by binary operators (join probe emits left/right values
// through Val and Val2).
type Record struct {
	ID   int64
	Val  float64
	TS   int64
	Val2 float64
}

// Size is the encoded width of a Record in a tuple buffer.
const Size = 32

// Append writes r as the next tuple in buf and advances its tuple
// count. Precondition: the buffer has room for one more Record,
// enforced by buffer.Write's write-past-capacity check.
func Append(buf *buffer.Buffer, r Record) {
	n := buf.TupleCount()
	buffer.Write(buf, int(n)*Size, r)
	buf.SetTupleCount(n + 1)
}

// All returns every tuple currently written into buf, in insertion
// order.
func All(buf *buffer.Buffer) []Record {
	n := int(buf.TupleCount())
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = buffer.Read[Record](buf, i*Size)
	}
	return out
}

// CopyMetadata transfers the sequencing and timing metadata from src
// to dst, used by unary operators that allocate a fresh output buffer
// but must preserve (origin, sequence, chunk, watermark) for §4.5/§4.6.
func CopyMetadata(dst, src *buffer.Buffer) {
	dst.SetOriginID(src.OriginID())
	dst.SetSequenceNumber(src.SequenceNumber())
	dst.SetChunkNumber(src.ChunkNumber())
	dst.SetLastChunk(src.LastChunk())
	dst.SetWatermarkTS(src.WatermarkTS())
	dst.SetCreationMs(src.CreationMs())
}
