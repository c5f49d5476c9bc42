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

package buffer

import (
	"unsafe"
)

// Buffer is an owning handle over a fixed-size contiguous byte
// region, the TupleBuffer of the data model. It is uniquely owned by
// whichever worker currently holds it; multiple workers may
// independently hold pinned read-only views of the same underlying
// page via RefCountedHandle/RepinLock.
type Buffer struct {
	cb       *controlBlock
	mem      []byte
	capacity int
	unpooled bool

	tupleCount  uint64
	originID    uint64
	sequenceNum uint64
	chunkNumber uint64
	lastChunk   bool
	watermarkTS int64
	creationMs  int64

	children []*Buffer
}

// MemoryPtr returns the raw backing slice for this buffer.
func (b *Buffer) MemoryPtr() []byte { return b.mem }

// Capacity returns the fixed capacity in bytes of this buffer.
func (b *Buffer) Capacity() int { return b.capacity }

// Unpooled reports whether this buffer came from AcquireUnpooled
// rather than a Pool, and is therefore returned to the system
// allocator instead of a pool free list on release.
func (b *Buffer) Unpooled() bool { return b.unpooled }

// TupleCount, SetTupleCount: number of valid records currently
// written into this buffer.
func (b *Buffer) TupleCount() uint64     { return b.tupleCount }
func (b *Buffer) SetTupleCount(n uint64) { b.tupleCount = n }

func (b *Buffer) OriginID() uint64       { return b.originID }
func (b *Buffer) SetOriginID(id uint64)  { b.originID = id }
func (b *Buffer) SequenceNumber() uint64 { return b.sequenceNum }
func (b *Buffer) SetSequenceNumber(n uint64) {
	b.sequenceNum = n
}
func (b *Buffer) ChunkNumber() uint64 { return b.chunkNumber }
func (b *Buffer) SetChunkNumber(n uint64) {
	if n < 1 {
		panic("chunk_number must be >= 1")
	}
	b.chunkNumber = n
}
func (b *Buffer) LastChunk() bool      { return b.lastChunk }
func (b *Buffer) SetLastChunk(v bool)  { b.lastChunk = v }
func (b *Buffer) WatermarkTS() int64   { return b.watermarkTS }
func (b *Buffer) SetWatermarkTS(v int64) { b.watermarkTS = v }
func (b *Buffer) CreationMs() int64    { return b.creationMs }
func (b *Buffer) SetCreationMs(v int64) { b.creationMs = v }

// Children returns the variable-sized child buffers attached to this
// buffer, if any.
func (b *Buffer) Children() []*Buffer { return b.children }

// AttachChild links a variable-sized buffer to this parent so that
// releasing the parent also releases the child; the child is retained
// for the lifetime of the parent.
func (b *Buffer) AttachChild(child *Buffer) {
	child.cb.retain()
	b.children = append(b.children, child)
}

// Retain increments this buffer's data-ref count. Must be paired with
// a matching Release.
func (b *Buffer) Retain() { b.cb.retain() }

// Release drops this buffer's data-ref count. When the last reference
// drops, the underlying page returns to its pool (or, for unpooled
// buffers, is dropped for the garbage collector). Dropping that last
// reference also releases every attached child.
func (b *Buffer) Release() {
	if b.cb.dataRefs.Add(-1) != 0 {
		return
	}
	for _, c := range b.children {
		c.Release()
	}
	if b.cb.pool != nil {
		b.cb.pool.releasePage(b.cb.pfn)
	}
}

// Read interprets the bytes at offset as a value of type T.
// Precondition: offset+sizeof(T) <= Capacity(); violating it is a
// fatal precondition violation per the buffer runtime's failure modes.
func Read[T any](b *Buffer, offset int) T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if offset < 0 || offset+size > len(b.mem) {
		panic("buffer.Read: out of bounds")
	}
	return *(*T)(unsafe.Pointer(&b.mem[offset]))
}

// Write stores v at offset within the buffer.
// Precondition: offset+sizeof(T) <= Capacity(); violating it is a
// fatal precondition violation (write-past-capacity).
func Write[T any](b *Buffer, offset int, v T) {
	size := int(unsafe.Sizeof(v))
	if offset < 0 || offset+size > len(b.mem) {
		panic("buffer.Write: out of bounds (write past capacity)")
	}
	*(*T)(unsafe.Pointer(&b.mem[offset])) = v
}
