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

import "sync/atomic"

// controlBlock is the reference-counted header for a pooled page.
// dataRefs counts any handle holding the memory; pinnedRefs counts
// handles that additionally require the memory stay resident and
// un-migrated. Pinned is strictly stronger than retained: a page with
// dataRefs > 0 but pinnedRefs == 0 may still be repinned elsewhere,
// whereas pinnedRefs > 0 forbids that.
type controlBlock struct {
	pool        *Pool
	pfn         int
	dataRefs    atomic.Int64
	pinnedRefs  atomic.Int64
	repinSignal chan struct{}
}

// retain increments the data-ref count. Must be matched by a release.
func (cb *controlBlock) retain() {
	cb.dataRefs.Add(1)
}

// release decrements the data-ref count and, if it reaches zero,
// returns the page to the pool's free list (or, for unpooled
// buffers, simply drops the reference to the backing slice).
func (cb *controlBlock) release() {
	if cb.dataRefs.Add(-1) == 0 {
		if cb.pool != nil {
			cb.pool.releasePage(cb.pfn)
		}
	}
}

// pin increments the pinned-ref count, additionally retaining the
// underlying memory.
func (cb *controlBlock) pin() {
	cb.retain()
	cb.pinnedRefs.Add(1)
}

// unpin decrements the pinned-ref count and releases the matching
// data ref. When pinnedRefs reaches zero the page becomes eligible to
// be repinned by another handle.
func (cb *controlBlock) unpin() {
	remaining := cb.pinnedRefs.Add(-1)
	if remaining == 0 && cb.repinSignal != nil {
		select {
		case cb.repinSignal <- struct{}{}:
		default:
		}
	}
	cb.release()
}

// RefCountedHandle is a smart handle over a control block. The pinned
// flag is fixed at construction and records which counter this handle
// holds: a retained (data-ref only) handle or a pinned handle. Copying
// a handle (via Clone) retains an additional matching count; dropping
// it (via Close) releases exactly the count it retained, never more.
// This stands in for the teacher's RefCountedBCB<pinned> template
// parameter, which Go's generics cannot express directly since pinned
// is a value, not a type.
type RefCountedHandle struct {
	cb     *controlBlock
	pinned bool
	closed bool
}

func newHandle(cb *controlBlock, pinned bool) RefCountedHandle {
	if pinned {
		cb.pin()
	} else {
		cb.retain()
	}
	return RefCountedHandle{cb: cb, pinned: pinned}
}

// NewHandle returns a handle over buf's control block, retaining
// (pinned=false) or pinning (pinned=true) it.
func NewHandle(buf *Buffer, pinned bool) RefCountedHandle {
	return newHandle(buf.cb, pinned)
}

// Clone returns a new handle retaining an additional count of the
// same kind (pinned or plain) as this handle.
func (h RefCountedHandle) Clone() RefCountedHandle {
	return newHandle(h.cb, h.pinned)
}

// Pinned reports whether this handle holds a pinned count.
func (h RefCountedHandle) Pinned() bool { return h.pinned }

// Close releases exactly the count this handle retained. It is an
// error to call Close more than once on the same handle value.
func (h *RefCountedHandle) Close() {
	if h.closed {
		panic("double release of buffer handle")
	}
	h.closed = true
	if h.pinned {
		h.cb.unpin()
	} else {
		h.cb.release()
	}
}

// RepinLock is a scoped guard that keeps a page's memory resident for
// the duration of a zero-copy read and, on release, signals that
// repinning of that page is now possible exactly once.
type RepinLock struct {
	cb       *controlBlock
	released bool
}

// NewRepinLock pins buf for the lifetime of the returned lock.
func NewRepinLock(b *Buffer) *RepinLock {
	if b.cb.repinSignal == nil {
		b.cb.repinSignal = make(chan struct{}, 1)
	}
	b.cb.pin()
	return &RepinLock{cb: b.cb}
}

// Release unpins the memory and signals "repinning done" exactly
// once. Calling Release more than once panics.
func (r *RepinLock) Release() {
	if r.released {
		panic("RepinLock released twice")
	}
	r.released = true
	r.cb.unpin()
}
