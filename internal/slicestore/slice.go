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

// Package slicestore implements the slice store & assigner (C7):
// mapping event-time timestamps to half-open slices for tumbling and
// sliding windows, with per-thread buckets so that workers do not
// write to shared state on the insert path.
package slicestore

import "sync"

// Kind tags what a Slice holds: build-side tuple pages for a join, a
// keyed aggregation hashmap, or a single non-keyed aggregation cell.
type Kind int

const (
	KindJoinBuild Kind = iota
	KindKeyedAgg
	KindGlobalAgg
)

// Slice is a half-open event-time interval [Start, End). It is
// created lazily on first access and retained until no open window
// references it any longer.
type Slice struct {
	Start, End int64
	Kind       Kind

	mu      sync.Mutex
	threads []any // per-thread bucket, index == worker id; contents owned by aggregation/join packages
	refs    int   // number of open windows still covering this slice
}

// Bucket returns (allocating if necessary) the per-thread bucket for
// workerID, using makeBucket to construct a fresh one. Every call,
// whether it finds an existing bucket or creates one, holds the
// slice's mutex; what the caller then writes into its own bucket is
// not guarded by that mutex.
func (s *Slice) Bucket(workerID int, makeBucket func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.threads) <= workerID {
		s.threads = append(s.threads, nil)
	}
	if s.threads[workerID] == nil {
		s.threads[workerID] = makeBucket()
	}
	return s.threads[workerID]
}

// Buckets returns every non-nil per-thread bucket, for iteration at
// trigger time (aggregation lower, join probe).
func (s *Slice) Buckets() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, 0, len(s.threads))
	for _, b := range s.threads {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Retain marks one more open window as covering this slice.
func (s *Slice) Retain() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

// Release marks one fewer open window as covering this slice,
// returning true once no window references it any longer, at which
// point the caller may destroy the slice and recycle its memory.
func (s *Slice) Release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs--
	return s.refs <= 0
}

// Contains reports whether the half-open interval contains ts.
func (s *Slice) Contains(ts int64) bool {
	return ts >= s.Start && ts < s.End
}
