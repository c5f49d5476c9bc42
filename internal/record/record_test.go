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

package record

import (
	"testing"

	"github.com/nebulastream/streamcore/internal/buffer"
)

func TestAppendAndAll(t *testing.T) {
	buf := buffer.AcquireUnpooled(4096)
	want := []Record{
		{ID: 1, Val: 10, TS: 0},
		{ID: 2, Val: 20, TS: 1},
		{ID: 3, Val: 30, TS: 2},
	}
	for _, r := range want {
		Append(buf, r)
	}
	got := All(buf)
	if len(got) != len(want) {
		t.Fatalf("All() returned %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCopyMetadata(t *testing.T) {
	src := buffer.AcquireUnpooled(64)
	src.SetOriginID(7)
	src.SetSequenceNumber(3)
	src.SetChunkNumber(2)
	src.SetLastChunk(true)
	src.SetWatermarkTS(123)

	dst := buffer.AcquireUnpooled(64)
	CopyMetadata(dst, src)

	if dst.OriginID() != 7 || dst.SequenceNumber() != 3 || dst.ChunkNumber() != 2 ||
		!dst.LastChunk() || dst.WatermarkTS() != 123 {
		t.Fatalf("CopyMetadata did not preserve metadata: %+v", dst)
	}
}
