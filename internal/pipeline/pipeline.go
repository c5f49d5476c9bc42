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

// Package pipeline implements the pipeline stage runtime (C4): the
// setup/execute/stop lifecycle of a compiled query stage, and the
// query-wide graph of pipelines addressed by id rather than handle so
// the predecessor/successor relationship never forms a reference
// cycle (spec design note on cyclic owner graphs).
package pipeline

import "sync"

// Role is the closed tag naming what a pipeline sits between.
type Role int

const (
	RoleSource Role = iota
	RoleSink
	RoleOperator
)

// Arity distinguishes unary pipelines from the two independent input
// paths of a binary (join) pipeline, which share one pipeline
// instance.
type Arity int

const (
	Unary Arity = iota
	BinaryLeft
	BinaryRight
)

// Pipeline is a compiled unit of execution: a role, its arity, the
// ids (not handles) of its predecessors and successors in the query
// graph, its operator-handler slots, and the compiled Stage. A
// Pipeline is set up exactly once, executed many times concurrently
// by different workers on different buffers, and stopped exactly
// once.
type Pipeline struct {
	ID           int
	Role         Role
	Arity        Arity
	Predecessors []int
	Successors   []int
	Handlers     []OperatorHandler
	Stage        *Stage
}

// OperatorHandler is the mutable, per-pipeline state backing a
// compiled operator (a hash table, a slice store, ...). Handlers are
// exclusively owned by their enclosing pipeline. Nothing in this
// package calls Start or Stop: Stage.Setup and Stage.Stop run only the
// stage's SetupFunc and StopFunc.
type OperatorHandler interface {
	Start(ctx Context) error
	Stop(ctx Context) error
}

// Graph holds every pipeline of one query, keyed by id, breaking the
// predecessor/successor reference cycle: pipelines reference each
// other only by id, and the query object is the sole owner of the
// id -> *Pipeline mapping.
type Graph struct {
	mu        sync.RWMutex
	pipelines map[int]*Pipeline
}

// NewGraph constructs an empty Graph.
func NewGraph() *Graph {
	return &Graph{pipelines: make(map[int]*Pipeline)}
}

// Add registers p under its own id.
func (g *Graph) Add(p *Pipeline) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pipelines[p.ID] = p
}

// Get looks up a pipeline by id.
func (g *Graph) Get(id int) (*Pipeline, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.pipelines[id]
	return p, ok
}

// All returns every pipeline in the graph, in no particular order.
func (g *Graph) All() []*Pipeline {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Pipeline, 0, len(g.pipelines))
	for _, p := range g.pipelines {
		out = append(out, p)
	}
	return out
}
