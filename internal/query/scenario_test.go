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

package query

import (
	"context"
	"testing"
	"time"

	"github.com/nebulastream/streamcore/internal/aggregation"
	"github.com/nebulastream/streamcore/internal/buffer"
	"github.com/nebulastream/streamcore/internal/config"
	"github.com/nebulastream/streamcore/internal/join"
	"github.com/nebulastream/streamcore/internal/pipeline"
	"github.com/nebulastream/streamcore/internal/record"
	"github.com/nebulastream/streamcore/internal/slicestore"
	"github.com/nebulastream/streamcore/internal/window"
)

// tumblingSumSource emits one buffer of ten unit-valued records
// (ts=0..9) and stamps the buffer's watermark one past the last
// event time, signalling that every timestamp below it has been
// observed — the exclusive-upper-bound convention this engine's
// sources use to close a window in the same round-trip that produced
// its last contributing record.
type tumblingSumSource struct{ done bool }

func (s *tumblingSumSource) FillBuffer(ctx context.Context, buf *buffer.Buffer) (FillResult, error) {
	if s.done {
		return EndOfStream, nil
	}
	for ts := int64(0); ts < 10; ts++ {
		record.Append(buf, record.Record{Val: 1, TS: ts})
	}
	buf.SetWatermarkTS(10)
	s.done = true
	return Data, nil
}

func TestScenario4TumblingWindowSum(t *testing.T) {
	e := NewEngine(config.Default())
	sink := &chunkRecordSink{}

	a, err := slicestore.NewAssigner(5, 5)
	if err != nil {
		t.Fatal(err)
	}
	h := window.NewHandler(a, slicestore.KindGlobalAgg, []uint64{1})
	pool := aggregation.NewTablePool()

	build := func(g *pipeline.Graph) error {
		g.Add(&pipeline.Pipeline{ID: 0, Role: pipeline.RoleOperator,
			Stage: window.NewAggregateBuildStage(h, aggregation.Sum, window.KeyGlobal, window.ValOfVal, pool, 1)})
		g.Add(&pipeline.Pipeline{ID: 1, Role: pipeline.RoleOperator, Successors: []int{2},
			Stage: window.NewAggregateTriggerStage(h, aggregation.Sum, pool)})
		g.Add(&pipeline.Pipeline{ID: 2, Role: pipeline.RoleSink, Stage: pipeline.NewSinkStage(sink.onBuffer)})
		return nil
	}
	id, err := e.RegisterQuery(nil, build, []SourceBinding{{OriginID: 1, PipelineID: 0, Source: &tumblingSumSource{}}})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.StartQuery(id); err != nil {
		t.Fatal(err)
	}
	if err := e.StopQuery(context.Background(), id, 5*time.Second); err != nil {
		t.Fatal(err)
	}

	got := sink.all()
	if len(got) != 2 {
		t.Fatalf("sink saw %d output records, want 2 (one per window): %+v", len(got), got)
	}
	byStart := map[int64]float64{}
	for _, r := range got {
		byStart[r.TS] = r.Val
	}
	if byStart[0] != 5 || byStart[5] != 5 {
		t.Fatalf("window sums = %v, want {0:5, 5:5}", byStart)
	}
}

type chunkRecordSink struct {
	recordSink collectingSink
}

func (s *chunkRecordSink) onBuffer(buf *buffer.Buffer) { s.recordSink.OnBuffer(buf) }
func (s *chunkRecordSink) all() []record.Record         { return s.recordSink.records() }

// joinSideSource emits a fixed set of records once, for a single
// arity of a binary join.
type joinSideSource struct {
	recs []record.Record
	done bool
}

func (s *joinSideSource) FillBuffer(ctx context.Context, buf *buffer.Buffer) (FillResult, error) {
	if s.done {
		return EndOfStream, nil
	}
	for _, r := range s.recs {
		record.Append(buf, r)
	}
	buf.SetWatermarkTS(10)
	s.done = true
	return Data, nil
}

func TestScenario6InnerHashJoin(t *testing.T) {
	e := NewEngine(config.Default())
	sink := &chunkRecordSink{}

	a, err := slicestore.NewAssigner(10, 10)
	if err != nil {
		t.Fatal(err)
	}
	h := window.NewHandler(a, slicestore.KindJoinBuild, []uint64{1, 2})

	build := func(g *pipeline.Graph) error {
		g.Add(&pipeline.Pipeline{ID: 0, Role: pipeline.RoleOperator, Arity: pipeline.BinaryLeft,
			Stage: join.NewHashBuildStage(h, join.Left, 2)})
		g.Add(&pipeline.Pipeline{ID: 1, Role: pipeline.RoleOperator, Arity: pipeline.BinaryRight,
			Stage: join.NewHashBuildStage(h, join.Right, 2)})
		g.Add(&pipeline.Pipeline{ID: 2, Role: pipeline.RoleOperator, Successors: []int{3},
			Stage: join.NewHashProbeStage(h, join.Inner)})
		g.Add(&pipeline.Pipeline{ID: 3, Role: pipeline.RoleSink, Stage: pipeline.NewSinkStage(sink.onBuffer)})
		return nil
	}

	leftSrc := &joinSideSource{recs: []record.Record{{ID: 1, Val: 10, TS: 0}, {ID: 2, Val: 20, TS: 0}}}
	rightSrc := &joinSideSource{recs: []record.Record{{ID: 1, Val: 100, TS: 0}, {ID: 1, Val: 200, TS: 0}}}
	id, err := e.RegisterQuery(nil, build, []SourceBinding{
		{OriginID: 1, PipelineID: 0, Source: leftSrc},
		{OriginID: 2, PipelineID: 1, Source: rightSrc},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.StartQuery(id); err != nil {
		t.Fatal(err)
	}
	if err := e.StopQuery(context.Background(), id, 5*time.Second); err != nil {
		t.Fatal(err)
	}

	got := sink.all()
	if len(got) != 2 {
		t.Fatalf("sink saw %d joined records, want 2: %+v", len(got), got)
	}
	seen := map[[2]float64]bool{}
	for _, r := range got {
		if r.ID != 1 || r.Val != 10 {
			t.Fatalf("unexpected join row %+v, want left side (1,10)", r)
		}
		seen[[2]float64{r.Val, r.Val2}] = true
	}
	if !seen[[2]float64{10, 100}] || !seen[[2]float64{10, 200}] {
		t.Fatalf("join output %+v missing (1,10,100) or (1,10,200)", got)
	}
}
