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

// Package query implements query registration and lifecycle
// (register_query / start_query / stop_query, §6): it wires together
// the buffer pool, task queue, worker pool, and pipeline graph into
// one running query (the sequencer is not part of this wiring), and
// defines the binary query-plan
// descriptor those calls ingest. Lowering a logical plan into a
// pipeline.Graph is the out-of-scope compiler's job (§1); this
// package only carries the plan's shape across the control-plane
// boundary and round-trips it.
package query

import (
	"bytes"
	"encoding/gob"

	"github.com/nebulastream/streamcore/internal/enginerr"
)

// WindowDef mirrors the external window definition carried by a plan:
// (size_ms, slide_ms, time_field).
type WindowDef struct {
	SizeMs, SlideMs int64
	TimeField       string
}

// OperatorDescriptor names one operator-handler slot inside a stage
// descriptor by the closed operator kind it lowers to.
type OperatorDescriptor struct {
	Kind   string
	Params map[string]string
}

// StageDescriptor is the wire-level description of one pipeline
// stage: its role, predecessor/successor ids, and operator-handler
// descriptors.
type StageDescriptor struct {
	ID           int
	Role         string // "Source" | "Sink" | "Operator"
	Predecessors []int
	Successors   []int
	Operators    []OperatorDescriptor
}

// OriginSchema names the fields carried by one origin's records.
type OriginSchema struct {
	OriginID uint64
	Fields   []string
}

// Plan is the binary query-plan descriptor ingested by RegisterQuery:
// an ordered list of pipeline stages, per-origin schemas, and window
// definitions, the protobuf-equivalent shape named in the external
// interfaces section of the specification.
type Plan struct {
	Stages  []StageDescriptor
	Origins []OriginSchema
	Windows []WindowDef
}

// Encode serialises p with encoding/gob. No teacher dependency covers
// an internal, non-interop plan descriptor like this one (see
// DESIGN.md), so the standard library codec is used directly.
func (p *Plan) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, enginerr.Wrap(enginerr.ConfigurationInvalid, err, "encoding query plan")
	}
	return buf.Bytes(), nil
}

// DecodePlan reverses Encode.
func DecodePlan(b []byte) (*Plan, error) {
	var p Plan
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&p); err != nil {
		return nil, enginerr.Wrap(enginerr.ConfigurationInvalid, err, "decoding query plan")
	}
	return &p, nil
}
