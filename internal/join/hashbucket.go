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

package join

import (
	"encoding/binary"

	"github.com/dchest/siphash"

	"github.com/nebulastream/streamcore/internal/record"
)

const joinBuckets = 64

var joinK0, joinK1 uint64 = 0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9

func hashKey(k int64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(k))
	return siphash.Hash(joinK0, joinK1, b[:])
}

type keyedEntry struct {
	key  int64
	recs []record.Record
	next int32
}

// keyedTable is a chained hashmap of join-key -> matching records,
// the same siphash-keyed bucket structure the aggregation hashmap
// uses (internal/aggregation/hashmap.go), specialised to store a
// slice of records per key instead of one aggregation state.
type keyedTable struct {
	buckets []int32
	entries []keyedEntry
}

func newKeyedTable() *keyedTable {
	t := &keyedTable{buckets: make([]int32, joinBuckets)}
	for i := range t.buckets {
		t.buckets[i] = -1
	}
	return t
}

func (t *keyedTable) insert(k int64, r record.Record) {
	h := hashKey(k)
	b := int(h % uint64(len(t.buckets)))
	for i := t.buckets[b]; i != -1; i = t.entries[i].next {
		if t.entries[i].key == k {
			t.entries[i].recs = append(t.entries[i].recs, r)
			return
		}
	}
	t.entries = append(t.entries, keyedEntry{key: k, recs: []record.Record{r}, next: t.buckets[b]})
	t.buckets[b] = int32(len(t.entries) - 1)
}

func (t *keyedTable) forEach(fn func(key int64, recs []record.Record)) {
	for b := range t.buckets {
		for i := t.buckets[b]; i != -1; i = t.entries[i].next {
			fn(t.entries[i].key, t.entries[i].recs)
		}
	}
}

func (t *keyedTable) get(k int64) ([]record.Record, bool) {
	h := hashKey(k)
	b := int(h % uint64(len(t.buckets)))
	for i := t.buckets[b]; i != -1; i = t.entries[i].next {
		if t.entries[i].key == k {
			return t.entries[i].recs, true
		}
	}
	return nil, false
}

// HashBucket is the per-thread, per-slice build-side state for a hash
// join: a left and a right keyed table. One HashBucket lives in each
// worker's slot of the shared slice, per §4.9's "two hashmap arrays
// indexed by worker thread, left and right concatenated".
type HashBucket struct {
	left, right *keyedTable
}

// NewHashBucket constructs an empty bucket; it is passed as the
// slicestore.Slice.Bucket factory for hash-join build pipelines.
func NewHashBucket() any {
	return &HashBucket{left: newKeyedTable(), right: newKeyedTable()}
}

// InsertLeft records a build-side-left tuple.
func (b *HashBucket) InsertLeft(r record.Record) { b.left.insert(r.ID, r) }

// InsertRight records a build-side-right tuple.
func (b *HashBucket) InsertRight(r record.Record) { b.right.insert(r.ID, r) }

// ProbeHash merges the left and right keyed tables across every
// worker-thread bucket supplied (concatenating partitions per key,
// per §4.9), then iterates each left key and looks up matching right
// buckets across all partitions, applying jt's outer-join semantics.
func ProbeHash(buckets []*HashBucket, jt Type) []Result {
	left := map[int64][]record.Record{}
	right := map[int64][]record.Record{}
	for _, b := range buckets {
		b.left.forEach(func(k int64, recs []record.Record) {
			left[k] = append(left[k], recs...)
		})
		b.right.forEach(func(k int64, recs []record.Record) {
			right[k] = append(right[k], recs...)
		})
	}

	var out []Result
	matchedRightKey := make(map[int64]bool, len(right))
	for k, lrecs := range left {
		rrecs, ok := right[k]
		if ok {
			matchedRightKey[k] = true
			for _, l := range lrecs {
				for _, r := range rrecs {
					out = append(out, Result{Key: k, LeftVal: l.Val, RightVal: r.Val, HasLeft: true, HasRight: true})
				}
			}
			continue
		}
		if jt == LeftOuter || jt == FullOuter {
			for _, l := range lrecs {
				out = append(out, Result{Key: k, LeftVal: l.Val, HasLeft: true})
			}
		}
	}
	if jt == RightOuter || jt == FullOuter {
		for k, rrecs := range right {
			if matchedRightKey[k] {
				continue
			}
			for _, r := range rrecs {
				out = append(out, Result{Key: k, RightVal: r.Val, HasRight: true})
			}
		}
	}
	return out
}
