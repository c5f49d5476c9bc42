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

// Package sequencer implements the emit & chunk sequencer (C5):
// reconstruction of a monotonic per-origin (sequence, chunk) stream
// from work completed out of order, including chunk-count
// reconciliation and end-of-stream detection.
package sequencer

import (
	"sync"

	"github.com/nebulastream/streamcore/internal/enginerr"
)

// sentinel marks "last chunk number not yet known".
const sentinel = ^uint64(0)

type originSeq struct {
	origin, seq uint64
}

type inputState struct {
	lastChunkNumber uint64 // sentinel until is_last observed
	seenChunks      uint64
}

// Sequencer owns the two synchronized maps from the component design:
// input chunk state (for reconciling out-of-order chunk fan-in) and
// output chunk numbering (for assigning the next consecutive chunk
// number to emit downstream).
type Sequencer struct {
	inMu  sync.Mutex
	input map[originSeq]*inputState

	outMu  sync.Mutex
	output map[originSeq]uint64
}

// New constructs an empty Sequencer.
func New() *Sequencer {
	return &Sequencer{
		input:  make(map[originSeq]*inputState),
		output: make(map[originSeq]uint64),
	}
}

// NextChunk atomically assigns the next consecutive output chunk
// number for (origin, seq), starting at 1.
func (s *Sequencer) NextChunk(origin, seq uint64) uint64 {
	key := originSeq{origin, seq}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	n := s.output[key] + 1
	s.output[key] = n
	return n
}

// RecordChunk records that chunk was observed for (origin, seq), with
// isLast indicating whether chunk is the terminal chunk of that
// sequence. It returns true exactly when every chunk of a
// known-length sequence has now been seen, at which point the caller
// must drop the tracking entries for (origin, seq) via Retire.
func (s *Sequencer) RecordChunk(origin, seq, chunk uint64, isLast bool) (bool, error) {
	key := originSeq{origin, seq}
	s.inMu.Lock()
	defer s.inMu.Unlock()

	st, ok := s.input[key]
	if !ok {
		st = &inputState{lastChunkNumber: sentinel}
		s.input[key] = st
	}
	if isLast {
		st.lastChunkNumber = chunk
	}
	st.seenChunks++

	if st.seenChunks > st.lastChunkNumber && st.lastChunkNumber != sentinel {
		return false, enginerr.New(enginerr.InvariantViolated,
			"seen_chunks %d > last_chunk_number %d for origin %d seq %d", st.seenChunks, st.lastChunkNumber, origin, seq)
	}
	return st.lastChunkNumber != sentinel && st.seenChunks == st.lastChunkNumber, nil
}

// Retire drops the input and output tracking entries for (origin,
// seq). Callers must call this exactly once, after RecordChunk
// reports completion, to bound map growth.
func (s *Sequencer) Retire(origin, seq uint64) {
	key := originSeq{origin, seq}
	s.inMu.Lock()
	delete(s.input, key)
	s.inMu.Unlock()
	s.outMu.Lock()
	delete(s.output, key)
	s.outMu.Unlock()
}

// EndOfStream reports whether the terminal chunk for (origin, seq)
// has been both signalled (via isLast) and fully observed.
func (s *Sequencer) EndOfStream(origin, seq uint64) bool {
	key := originSeq{origin, seq}
	s.inMu.Lock()
	defer s.inMu.Unlock()
	st, ok := s.input[key]
	if !ok {
		return false
	}
	return st.lastChunkNumber != sentinel && st.seenChunks == st.lastChunkNumber
}

// Tracked reports how many (origin,seq) pairs still have live input
// tracking state, used by tests to confirm Retire bounds map growth.
func (s *Sequencer) Tracked() int {
	s.inMu.Lock()
	defer s.inMu.Unlock()
	return len(s.input)
}
