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

package aggregation

import "github.com/dchest/siphash"

const defaultBuckets = 64

var tableK0, tableK1 uint64 = 0x2545f4914f6cdd1d, 0x94d049bb133111eb

type tableEntry struct {
	keyHash uint64
	key     []byte
	state   State
	next    int32
}

// Table is the keyed aggregation hashmap: a chained hashmap whose
// slots are allocated from a paged entry vector with a free-entry
// chain, so a Table can be Reset and handed back out by a TablePool
// without discarding its backing arrays. Each slice's per-thread
// bucket (slicestore.Slice.Bucket) holds one Table.
type Table struct {
	kind    Kind
	agg     Aggregator
	buckets []int32
	entries []tableEntry
	freeHd  int32
}

func newTable(kind Kind) *Table {
	t := &Table{}
	t.reset(kind)
	return t
}

// reset clears a Table for reuse under a (possibly different)
// aggregation kind, keeping its backing arrays so repeated
// acquire/release cycles from a TablePool don't reallocate.
func (t *Table) reset(kind Kind) {
	t.kind = kind
	t.agg = New(kind)
	if cap(t.buckets) < defaultBuckets {
		t.buckets = make([]int32, defaultBuckets)
	} else {
		t.buckets = t.buckets[:defaultBuckets]
	}
	for i := range t.buckets {
		t.buckets[i] = -1
	}
	t.entries = t.entries[:0]
	t.freeHd = -1
}

func (t *Table) bucketFor(h uint64) int {
	return int(h % uint64(len(t.buckets)))
}

func (t *Table) allocEntry() int32 {
	if t.freeHd != -1 {
		idx := t.freeHd
		t.freeHd = t.entries[idx].next
		return idx
	}
	t.entries = append(t.entries, tableEntry{})
	return int32(len(t.entries) - 1)
}

// Upsert incorporates v into the group named by key, lifting a fresh
// Initial() state on first sight of that key.
func (t *Table) Upsert(key []byte, v float64) {
	h := siphash.Hash(tableK0, tableK1, key)
	b := t.bucketFor(h)
	for i := t.buckets[b]; i != -1; i = t.entries[i].next {
		e := &t.entries[i]
		if e.keyHash == h && bytesEqual(e.key, key) {
			e.state = t.agg.Lift(e.state, v)
			return
		}
	}
	idx := t.allocEntry()
	t.entries[idx] = tableEntry{keyHash: h, key: append([]byte(nil), key...), state: t.agg.Lift(t.agg.Initial(), v), next: t.buckets[b]}
	t.buckets[b] = idx
}

// Merge folds every group of other into t via Combine, used when a
// window trigger reconciles the per-thread buckets of every slice
// covering that window into one result set.
func (t *Table) Merge(other *Table) {
	for b := range other.buckets {
		for i := other.buckets[b]; i != -1; i = other.entries[i].next {
			e := &other.entries[i]
			t.upsertState(e.key, e.keyHash, e.state)
		}
	}
}

func (t *Table) upsertState(key []byte, h uint64, state State) {
	b := t.bucketFor(h)
	for i := t.buckets[b]; i != -1; i = t.entries[i].next {
		e := &t.entries[i]
		if e.keyHash == h && bytesEqual(e.key, key) {
			e.state = t.agg.Combine(e.state, state)
			return
		}
	}
	idx := t.allocEntry()
	t.entries[idx] = tableEntry{keyHash: h, key: append([]byte(nil), key...), state: state, next: t.buckets[b]}
	t.buckets[b] = idx
}

// Iterate calls fn once per live group with its key and lowered
// result value.
func (t *Table) Iterate(fn func(key []byte, result float64)) {
	for b := range t.buckets {
		for i := t.buckets[b]; i != -1; i = t.entries[i].next {
			e := &t.entries[i]
			fn(e.key, t.agg.Lower(e.state))
		}
	}
}

// Len reports the number of live groups.
func (t *Table) Len() int {
	n := 0
	for b := range t.buckets {
		for i := t.buckets[b]; i != -1; i = t.entries[i].next {
			n++
		}
	}
	return n
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TablePool lets keyed aggregation hashmaps reuse their backing
// arrays across slice recycling, the Go-idiomatic stand-in for the
// teacher's "non-default constructor that borrows page memory from a
// buffer provider": instead of borrowing raw page bytes, a Table
// borrows a previously reset Table's already-sized entry vector.
type TablePool struct {
	free []*Table
}

// NewTablePool constructs an empty pool.
func NewTablePool() *TablePool { return &TablePool{} }

// Get returns a Table for kind, reusing a previously returned Table's
// backing arrays if one is available.
func (p *TablePool) Get(kind Kind) *Table {
	if n := len(p.free); n > 0 {
		t := p.free[n-1]
		p.free = p.free[:n-1]
		t.reset(kind)
		return t
	}
	return newTable(kind)
}

// Put returns t to the pool for later reuse.
func (p *TablePool) Put(t *Table) {
	p.free = append(p.free, t)
}
