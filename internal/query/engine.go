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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nebulastream/streamcore/internal/buffer"
	"github.com/nebulastream/streamcore/internal/config"
	"github.com/nebulastream/streamcore/internal/engine"
	"github.com/nebulastream/streamcore/internal/enginerr"
	"github.com/nebulastream/streamcore/internal/pipeline"
	"github.com/nebulastream/streamcore/internal/queue"
	"github.com/nebulastream/streamcore/internal/worker"
)

// ID identifies a registered query; query identifiers use
// github.com/google/uuid, the teacher's identifier library. Pipeline
// identifiers are plain ints (pipeline.Pipeline.ID).
type ID = uuid.UUID

// Status is the closed set of lifecycle states a Query passes
// through.
type Status int

const (
	StatusRegistered Status = iota
	StatusRunning
	StatusStopped
	StatusFailed
)

// FillResult is what a Source's FillBuffer call reports.
type FillResult int

const (
	Data FillResult = iota
	EndOfStream
	SourceError
)

// Source supplies buffers into one origin, mirroring the external
// source interface (§6): fill_buffer(buf, schema, stop_token).
// Schema validation is an out-of-scope collaborator's job; a Source
// implementation is expected to have already bound its schema.
type Source interface {
	FillBuffer(ctx context.Context, buf *buffer.Buffer) (FillResult, error)
}

// Sink consumes fully sequenced buffers. OnBuffer must tolerate
// concurrent calls.
type Sink interface {
	OnBuffer(buf *buffer.Buffer)
}

// SourceBinding attaches a Source to the origin it produces for and
// the pipeline id admitted buffers are submitted to.
type SourceBinding struct {
	OriginID   uint64
	PipelineID int
	Source     Source
}

// Query is one running (or registered, or stopped) query: its buffer
// pool, task queue, worker pool, and pipeline graph.
type Query struct {
	ID  ID
	cfg config.Config

	plan    *Plan
	pool    *buffer.Pool
	q       *queue.Queue
	graph   *pipeline.Graph
	workers *worker.Pool
	sources []SourceBinding

	statusMu sync.Mutex
	status   Status
	lastErr  error

	nextSeqMu sync.Mutex
	nextSeq   map[uint64]uint64

	sourceWG sync.WaitGroup
	stopOnce sync.Once
}

func (qr *Query) setStatus(s Status, err error) {
	qr.statusMu.Lock()
	qr.status = s
	if err != nil {
		qr.lastErr = err
	}
	qr.statusMu.Unlock()
}

// Status reports the query's current lifecycle state and, if failed,
// the error that caused the transition.
func (qr *Query) Status() (Status, error) {
	qr.statusMu.Lock()
	defer qr.statusMu.Unlock()
	return qr.status, qr.lastErr
}

// Engine owns every registered query. It is the entry point for the
// control-plane operations named in §6.
type Engine struct {
	mu      sync.Mutex
	cfg     config.Config
	queries map[ID]*Query
}

// NewEngine constructs an Engine bound to cfg. cfg is validated once
// per RegisterQuery call, matching ConfigurationInvalid's "surfaces
// to caller of register_query" contract.
func NewEngine(cfg config.Config) *Engine {
	return &Engine{cfg: cfg, queries: make(map[ID]*Query)}
}

// dispatcher adapts a Query to worker.Dispatcher.
type dispatcher struct {
	qr *Query
}

func (d *dispatcher) ExecutePipeline(workerID, pipelineID int, bufAny any) error {
	buf, _ := bufAny.(*buffer.Buffer)
	p, ok := d.qr.graph.Get(pipelineID)
	if !ok {
		if buf != nil {
			buf.Release()
		}
		return enginerr.New(enginerr.InvariantViolated, "unknown pipeline id %d", pipelineID)
	}
	ctx := &pipeline.RuntimeContext{
		Ctx:        context.Background(),
		Pool:       d.qr.pool,
		Queue:      d.qr.q,
		Pipeline:   p.ID,
		Successors: p.Successors,
		Handlers:   p.Handlers,
		Worker:     workerID,
	}
	if err := p.Stage.Setup(ctx); err != nil {
		if buf != nil {
			buf.Release()
		}
		return err
	}
	return p.Stage.Execute(buf, ctx, workerID)
}

func (d *dispatcher) TriggerWindow(workerID int, t queue.WindowTrigger) error {
	p, ok := d.qr.graph.Get(t.PipelineID)
	if !ok {
		return enginerr.New(enginerr.InvariantViolated, "unknown trigger pipeline id %d", t.PipelineID)
	}
	ctx := &pipeline.RuntimeContext{
		Ctx:        context.Background(),
		Pool:       d.qr.pool,
		Queue:      d.qr.q,
		Pipeline:   p.ID,
		Successors: p.Successors,
		Handlers:   p.Handlers,
		Worker:     workerID,
	}
	return p.Stage.Trigger(t, ctx)
}

// GraphBuilder lowers a Plan's stage descriptors into a live
// pipeline.Graph. Real lowering (Nautilus compilation) is out of
// scope (§1); callers supply one directly for the closed set of
// operators this core implements.
type GraphBuilder func(g *pipeline.Graph) error

// RegisterQuery validates cfg overrides (if any), reserves the
// query's buffer pool and task queue, builds its pipeline graph, and
// returns a fresh query id. It never starts execution.
func (e *Engine) RegisterQuery(plan *Plan, build GraphBuilder, sources []SourceBinding) (ID, error) {
	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return ID{}, err
	}

	pageSize := int(cfg.OperatorBufferSize)
	if pageSize <= 0 {
		pageSize = 4096
	}
	pool, err := buffer.NewPool(pageSize, 4096)
	if err != nil {
		return ID{}, err
	}

	g := pipeline.NewGraph()
	if build != nil {
		if err := build(g); err != nil {
			return ID{}, err
		}
	}

	qr := &Query{
		ID:      uuid.New(),
		cfg:     cfg,
		plan:    plan,
		pool:    pool,
		q:       queue.New(int(cfg.AdmissionQueueSize)),
		graph:   g,
		sources: sources,
		status:  StatusRegistered,
		nextSeq: make(map[uint64]uint64),
	}

	e.mu.Lock()
	e.queries[qr.ID] = qr
	e.mu.Unlock()
	return qr.ID, nil
}

// Get returns the Query for id, for callers that need to drive a
// test scenario end to end (e.g. reading its status after StopQuery).
func (e *Engine) Get(id ID) (*Query, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	qr, ok := e.queries[id]
	return qr, ok
}

// StartQuery spawns the worker pool and one admission goroutine per
// bound source. Each source goroutine acquires a buffer, calls
// FillBuffer, stamps (origin_id, next_seq, chunk_number=1,
// last_chunk=true) per §6 before admission, and submits it.
func (e *Engine) StartQuery(id ID) error {
	qr, ok := e.Get(id)
	if !ok {
		return enginerr.New(enginerr.ConfigurationInvalid, "unknown query id %s", id)
	}

	numWorkers := int(qr.cfg.NumberOfWorkerThreads)
	if numWorkers <= 0 {
		numWorkers = 4
	}
	pool, err := worker.NewPool(numWorkers, qr.q, &dispatcher{qr: qr}, func(err error) {
		if e, ok := err.(*enginerr.Error); ok && e.Fatal() {
			qr.setStatus(StatusFailed, err)
		}
	})
	if err != nil {
		return err
	}
	qr.workers = pool
	qr.setStatus(StatusRunning, nil)

	for _, sb := range qr.sources {
		sb := sb
		qr.sourceWG.Add(1)
		go qr.runSource(sb)
	}
	return nil
}

func (qr *Query) runSource(sb SourceBinding) {
	defer qr.sourceWG.Done()
	ctx := context.Background()
	for {
		buf, err := qr.pool.Acquire(ctx)
		if err != nil {
			return
		}
		res, err := sb.Source.FillBuffer(ctx, buf)
		if err != nil {
			buf.Release()
			wrapped := enginerr.Wrap(enginerr.SchemaMismatch, err, "source fill failed for origin %d", sb.OriginID)
			engine.Logf("query %s: %v", qr.ID, wrapped)
			return
		}

		qr.nextSeqMu.Lock()
		qr.nextSeq[sb.OriginID]++
		seq := qr.nextSeq[sb.OriginID]
		qr.nextSeqMu.Unlock()

		buf.SetOriginID(sb.OriginID)
		buf.SetSequenceNumber(seq)
		buf.SetChunkNumber(1)
		buf.SetLastChunk(true)

		if res == EndOfStream {
			buf.Release()
			return
		}
		if res == SourceError {
			buf.Release()
			srcErr := enginerr.New(enginerr.SchemaMismatch, "source reported error for origin %d", sb.OriginID)
			engine.Logf("query %s: %v", qr.ID, srcErr)
			return
		}

		if err := qr.q.SubmitAdmission(ctx, queue.NewExecute(sb.PipelineID, buf)); err != nil {
			buf.Release()
			return
		}
	}
}

// StopQuery waits (up to deadline) for every source to finish, then
// drains the worker pool gracefully, stops every pipeline exactly
// once, and transitions the query to Stopped (or Failed, if the
// deadline is exceeded: QueryStopTimeout).
func (e *Engine) StopQuery(ctx context.Context, id ID, deadline time.Duration) error {
	qr, ok := e.Get(id)
	if !ok {
		return enginerr.New(enginerr.ConfigurationInvalid, "unknown query id %s", id)
	}

	var stopErr error
	qr.stopOnce.Do(func() {
		sourcesDone := make(chan struct{})
		go func() {
			qr.sourceWG.Wait()
			close(sourcesDone)
		}()
		select {
		case <-sourcesDone:
		case <-time.After(deadline):
			stopErr = enginerr.New(enginerr.QueryStopTimeout, "sources did not drain before deadline")
			engine.Logf("query %s: %v", qr.ID, stopErr)
			qr.setStatus(StatusFailed, stopErr)
			return
		}

		// Sources have stopped admitting, but buffers they already
		// submitted may still be working through the pipeline graph;
		// wait for the queue to empty before handing out Stop tasks so
		// StopGracefully's internal-tier Stop tokens don't jump ahead
		// of in-flight downstream work.
		drainDeadline := time.Now().Add(deadline)
		quietReadings := 0
		for quietReadings < 5 && time.Now().Before(drainDeadline) {
			if qr.q.Pending() == 0 {
				quietReadings++
			} else {
				quietReadings = 0
			}
			time.Sleep(time.Millisecond)
		}
		if quietReadings < 5 {
			stopErr = enginerr.New(enginerr.QueryStopTimeout, "pipeline graph did not drain before deadline")
			engine.Logf("query %s: %v", qr.ID, stopErr)
			qr.setStatus(StatusFailed, stopErr)
			return
		}

		if qr.workers != nil {
			stopCtx, cancel := context.WithTimeout(ctx, deadline)
			defer cancel()
			numWorkers := int(qr.cfg.NumberOfWorkerThreads)
			if numWorkers <= 0 {
				numWorkers = 4
			}
			if err := qr.workers.StopGracefully(stopCtx, numWorkers); err != nil {
				stopErr = err
				qr.setStatus(StatusFailed, err)
				return
			}
		}

		rtCtx := &pipeline.RuntimeContext{Ctx: ctx, Pool: qr.pool, Queue: qr.q}
		for _, p := range qr.graph.All() {
			if err := p.Stage.Stop(rtCtx); err != nil && stopErr == nil {
				stopErr = err
			}
		}
		if stopErr == nil {
			qr.setStatus(StatusStopped, nil)
		}
	})
	return stopErr
}
