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

package sequencer

import "sync"

// chunkPayload pairs a chunk number with its out-of-band completed
// value, so Emitter can hold chunks that arrive ahead of their turn.
type chunkPayload struct {
	chunk uint64
	value any
}

// Emitter reconstructs the strictly increasing 1..k per-(origin,seq)
// chunk order that downstream sinks require, buffering chunks that
// complete out of order until their predecessors have been released.
type Emitter struct {
	mu      sync.Mutex
	pending map[originSeq][]chunkPayload
	next    map[originSeq]uint64
}

// NewEmitter constructs an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		pending: make(map[originSeq][]chunkPayload),
		next:    make(map[originSeq]uint64),
	}
}

// Submit offers a completed chunk for (origin, seq). It returns, in
// order, every chunk from the now-contiguous prefix starting at the
// next expected chunk number (including chunk itself if it extends
// the prefix immediately).
func (e *Emitter) Submit(origin, seq, chunk uint64, value any) []any {
	key := originSeq{origin, seq}
	e.mu.Lock()
	defer e.mu.Unlock()

	want := e.next[key]
	if want == 0 {
		want = 1
	}

	var ready []any
	if chunk == want {
		ready = append(ready, value)
		want++
		ready = append(ready, e.drainContiguous(key, &want)...)
	} else {
		e.pending[key] = append(e.pending[key], chunkPayload{chunk, value})
	}
	e.next[key] = want
	return ready
}

func (e *Emitter) drainContiguous(key originSeq, want *uint64) []any {
	var out []any
	for {
		buf := e.pending[key]
		idx := -1
		for i, p := range buf {
			if p.chunk == *want {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		out = append(out, buf[idx].value)
		e.pending[key] = append(buf[:idx], buf[idx+1:]...)
		*want++
	}
	return out
}

// Pending reports how many chunks are buffered awaiting their
// predecessor, across all (origin, seq) pairs.
func (e *Emitter) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, v := range e.pending {
		n += len(v)
	}
	return n
}
