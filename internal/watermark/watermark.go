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

// Package watermark implements the per-origin monotonic-sequence
// watermark tracker (C6): it buffers out-of-order (sequence,
// timestamp) updates and advances the per-origin watermark to the
// timestamp of the largest contiguous prefix of sequence numbers
// seen so far. The effective (global) watermark is the minimum across
// all known origins, and is 0 until every expected origin has
// contributed at least one update.
package watermark

import (
	"sort"
	"sync"
)

type pending struct {
	seq uint64
	ts  int64
}

type originState struct {
	mu        sync.Mutex
	nextSeq   uint64 // smallest sequence not yet folded into watermark
	watermark int64
	buffered  []pending // out-of-order updates awaiting their predecessor
}

// Processor tracks one originState per origin id and maintains the
// running global minimum. expectedOrigins, when non-empty, gates the
// global watermark at 0 until every id in it has reported at least
// one update.
type Processor struct {
	mu              sync.Mutex
	origins         map[uint64]*originState
	expectedOrigins map[uint64]bool
	seenOrigins     map[uint64]bool
	lastGlobal      int64
}

// New constructs a Processor. expected lists the origin ids the
// engine knows about in advance (typically one per source); it may be
// nil if origins are discovered dynamically, in which case the global
// watermark is available as soon as at least one origin has reported.
func New(expected []uint64) *Processor {
	p := &Processor{
		origins:     make(map[uint64]*originState),
		seenOrigins: make(map[uint64]bool),
	}
	if len(expected) > 0 {
		p.expectedOrigins = make(map[uint64]bool, len(expected))
		for _, o := range expected {
			p.expectedOrigins[o] = true
		}
	}
	return p
}

func (p *Processor) stateFor(origin uint64) *originState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.origins[origin]
	if !ok {
		s = &originState{nextSeq: 1}
		p.origins[origin] = s
	}
	p.seenOrigins[origin] = true
	return s
}

// Update inserts (seq, ts) for origin, advances that origin's
// contiguous-prefix watermark as far as the buffered updates allow,
// and returns the newly recomputed global watermark. The global
// watermark never decreases.
func (p *Processor) Update(origin uint64, seq uint64, ts int64) int64 {
	st := p.stateFor(origin)
	st.mu.Lock()
	st.buffered = append(st.buffered, pending{seq, ts})
	sort.Slice(st.buffered, func(i, j int) bool { return st.buffered[i].seq < st.buffered[j].seq })
	i := 0
	for i < len(st.buffered) && st.buffered[i].seq == st.nextSeq {
		if st.buffered[i].ts > st.watermark {
			st.watermark = st.buffered[i].ts
		}
		st.nextSeq++
		i++
	}
	st.buffered = st.buffered[i:]
	st.mu.Unlock()

	return p.global()
}

// global recomputes the minimum watermark across all known origins,
// returning 0 until every expected origin has reported.
func (p *Processor) global() int64 {
	p.mu.Lock()
	if p.expectedOrigins != nil {
		for o := range p.expectedOrigins {
			if !p.seenOrigins[o] {
				p.mu.Unlock()
				return 0
			}
		}
	} else if len(p.seenOrigins) == 0 {
		p.mu.Unlock()
		return 0
	}
	origins := make([]*originState, 0, len(p.origins))
	for _, s := range p.origins {
		origins = append(origins, s)
	}
	p.mu.Unlock()

	min := int64(-1)
	for _, s := range origins {
		s.mu.Lock()
		w := s.watermark
		s.mu.Unlock()
		if min == -1 || w < min {
			min = w
		}
	}
	if min == -1 {
		min = 0
	}

	// Discovering a new, still-silent origin can momentarily pull the
	// raw minimum below a value already observed by a caller; clamp so
	// the externally visible global watermark is monotonic.
	p.mu.Lock()
	defer p.mu.Unlock()
	if min > p.lastGlobal {
		p.lastGlobal = min
	}
	return p.lastGlobal
}

// Global returns the current effective watermark without submitting
// a new update.
func (p *Processor) Global() int64 {
	return p.global()
}

// OriginWatermark returns the per-origin watermark for origin, or 0
// if nothing has been recorded for it yet.
func (p *Processor) OriginWatermark(origin uint64) int64 {
	p.mu.Lock()
	s, ok := p.origins[origin]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}
