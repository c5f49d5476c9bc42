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

import (
	"encoding/binary"
	"testing"
)

func keyOf(n int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(n))
	return b[:]
}

func TestTableUpsertGroupsByKey(t *testing.T) {
	tbl := newTable(Sum)
	tbl.Upsert(keyOf(1), 10)
	tbl.Upsert(keyOf(2), 20)
	tbl.Upsert(keyOf(1), 5)

	results := map[int64]float64{}
	tbl.Iterate(func(key []byte, result float64) {
		results[int64(binary.LittleEndian.Uint64(key))] = result
	})
	if results[1] != 15 || results[2] != 20 {
		t.Fatalf("unexpected groups: %v", results)
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}
}

func TestTableMergeCombinesAcrossThreads(t *testing.T) {
	a := newTable(Sum)
	a.Upsert(keyOf(1), 10)
	b := newTable(Sum)
	b.Upsert(keyOf(1), 5)
	b.Upsert(keyOf(2), 2)

	merged := newTable(Sum)
	merged.Merge(a)
	merged.Merge(b)

	results := map[int64]float64{}
	merged.Iterate(func(key []byte, result float64) {
		results[int64(binary.LittleEndian.Uint64(key))] = result
	})
	if results[1] != 15 || results[2] != 2 {
		t.Fatalf("merge produced %v, want {1:15, 2:2}", results)
	}
}

func TestTablePoolReusesBackingArrays(t *testing.T) {
	pool := NewTablePool()
	t1 := pool.Get(Sum)
	t1.Upsert(keyOf(1), 1)
	pool.Put(t1)

	t2 := pool.Get(Max)
	if t2.Len() != 0 {
		t.Fatalf("reused table not reset: Len() = %d", t2.Len())
	}
	t2.Upsert(keyOf(1), 7)
	var got float64
	t2.Iterate(func(_ []byte, result float64) { got = result })
	if got != 7 {
		t.Fatalf("reused table under new kind lowered to %v, want 7", got)
	}
}
