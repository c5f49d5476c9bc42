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

// Package buffer implements the tuple-buffer runtime (C1): pooled
// fixed-size buffers with reference-counted control blocks, buffer
// metadata, variable-sized child payload regions, and recycling.
package buffer

import (
	"context"
	"fmt"
	"math/bits"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/nebulastream/streamcore/internal/enginerr"
)

// Pool reserves a single fixed-size arena, divided into PageSize
// pages, and hands out pages on Acquire. The arena is mmap'd once at
// construction time, mirroring the VM memory region reserved by the
// teacher's buffer allocator.
type Pool struct {
	pageSize int
	pageBits int
	numPages int

	arena []byte
	bits  []uint64 // free-bitmap, one bit per page; set == in use

	sema chan struct{} // one token per free page
	closed int32
}

// NewPool reserves an arena sized for numPages pages of pageSize
// bytes each. pageSize must be a power of two.
func NewPool(pageSize, numPages int) (*Pool, error) {
	if pageSize <= 0 || pageSize&(pageSize-1) != 0 {
		return nil, enginerr.New(enginerr.ConfigurationInvalid, "pageSize %d must be a power of two", pageSize)
	}
	if numPages <= 0 {
		return nil, enginerr.New(enginerr.ConfigurationInvalid, "numPages must be positive")
	}
	total := pageSize * numPages
	mem, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.ConfigurationInvalid, err, "mmap pool arena")
	}
	words := (numPages + 63) / 64
	p := &Pool{
		pageSize: pageSize,
		pageBits: bits.TrailingZeros(uint(pageSize)),
		numPages: numPages,
		arena:    mem,
		bits:     make([]uint64, words),
		sema:     make(chan struct{}, numPages),
	}
	for i := 0; i < numPages; i++ {
		p.sema <- struct{}{}
	}
	return p, nil
}

// PageSize returns the fixed page size this pool hands out.
func (p *Pool) PageSize() int { return p.pageSize }

// Close releases the arena back to the operating system. Any
// outstanding Buffer handles become invalid.
func (p *Pool) Close() error {
	atomic.StoreInt32(&p.closed, 1)
	close(p.sema)
	return unix.Munmap(p.arena)
}

// FreePages returns the number of pages currently available for
// acquisition; used to verify ref-count conservation after a query
// stops.
func (p *Pool) FreePages() int {
	n := 0
	for i := range p.bits {
		n += 64 - bits.OnesCount64(p.bits[i])
	}
	if extra := len(p.bits)*64 - p.numPages; extra > 0 {
		n -= extra
	}
	return n
}

// Acquire blocks until a free page is available or ctx is cancelled,
// returning a new tuple Buffer backed by that page with data_refs=1.
func (p *Pool) Acquire(ctx context.Context) (*Buffer, error) {
	select {
	case _, ok := <-p.sema:
		if !ok {
			return nil, enginerr.New(enginerr.BufferPoolExhausted, "pool closed")
		}
	case <-ctx.Done():
		return nil, enginerr.Wrap(enginerr.BufferPoolExhausted, ctx.Err(), "acquire cancelled")
	}
	pfn, err := p.claimPage()
	if err != nil {
		p.sema <- struct{}{}
		return nil, err
	}
	mem := p.arena[pfn<<p.pageBits : (pfn+1)<<p.pageBits]
	cb := &controlBlock{pool: p, pfn: pfn}
	cb.dataRefs.Store(1)
	return &Buffer{cb: cb, mem: mem, capacity: p.pageSize, chunkNumber: 1}, nil
}

func (p *Pool) claimPage() (int, error) {
	for i := range p.bits {
		for {
			word := atomic.LoadUint64(&p.bits[i])
			avail := ^word
			// mask off bits beyond numPages in the last word
			if i == len(p.bits)-1 {
				validBits := uint(p.numPages - i*64)
				if validBits < 64 {
					avail &= (uint64(1) << validBits) - 1
				}
			}
			if avail == 0 {
				break
			}
			bit := bits.TrailingZeros64(avail)
			if atomic.CompareAndSwapUint64(&p.bits[i], word, word|(uint64(1)<<bit)) {
				return i*64 + bit, nil
			}
		}
	}
	return 0, enginerr.New(enginerr.InvariantViolated, "semaphore signalled a free page but bitmap had none")
}

func (p *Pool) releasePage(pfn int) {
	word := pfn / 64
	bit := uint64(1) << (pfn % 64)
	for {
		old := atomic.LoadUint64(&p.bits[word])
		if old&bit == 0 {
			panic("double free of pool page")
		}
		if atomic.CompareAndSwapUint64(&p.bits[word], old, old&^bit) {
			break
		}
	}
	p.sema <- struct{}{}
}

// AcquireUnpooled allocates a variable-sized buffer outside the fixed
// pool, for payloads larger than PageSize. It is returned directly to
// the system allocator on release rather than to the pool free list.
func AcquireUnpooled(sizeBytes int) *Buffer {
	cb := &controlBlock{}
	cb.dataRefs.Store(1)
	return &Buffer{cb: cb, mem: make([]byte, sizeBytes), capacity: sizeBytes, chunkNumber: 1, unpooled: true}
}

func (p *Pool) String() string {
	return fmt.Sprintf("Pool(pageSize=%d, numPages=%d, free=%d)", p.pageSize, p.numPages, p.FreePages())
}
