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

// Package window implements the window operator handler (C10): it
// owns a slice store and a watermark processor, discovers which
// windows a touched slice belongs to, and on watermark advance
// reports every window whose end has fallen at or below the new
// global watermark. It is shared, unmodified, by both the aggregation
// build/trigger stages (aggregate.go in this package) and the
// join build/probe stages (internal/join): neither cares what a
// slice's per-thread buckets actually hold.
package window

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/nebulastream/streamcore/internal/slicestore"
	"github.com/nebulastream/streamcore/internal/watermark"
)

// Window is a closed trigger unit: the interval it covers, the global
// watermark that caused it to fire, and the live slices it was
// assembled from. Slices remain retained until Retire is called.
type Window struct {
	Start, End, FireTS int64
	Slices             []*slicestore.Slice
}

type windowState struct {
	triggered bool
	slices    map[int64]*slicestore.Slice // slice start -> slice, deduplicates repeated Touch calls
}

// Option configures a Handler at construction time.
type Option func(*Handler)

// WithHandlerMutex selects the simpler, coarse per-handler-mutex
// locking strategy for OnBufferClose instead of the default strategy,
// which relies on the slice store's own per-shard locks and only
// takes a short-lived lock around the trigger bookkeeping map. The
// specification's design notes treat this choice as an open question
// and recommend the per-shard default; this option exists so both
// named strategies are implemented. The handler tests exercise only
// the default strategy.
func WithHandlerMutex() Option {
	return func(h *Handler) { h.coarseLock = true }
}

// Handler owns the slice store and watermark processor for one
// windowed operator (an aggregation or a join). Touch and
// OnBufferClose are safe for concurrent use by multiple workers.
type Handler struct {
	assigner *slicestore.Assigner
	Store    *slicestore.Store
	wm       *watermark.Processor

	coarseLock bool
	handlerMu  sync.Mutex

	windowsMu sync.Mutex
	windows   map[[2]int64]*windowState
}

// NewHandler constructs a Handler over an Assigner for the given
// slice kind, gating the global watermark on expectedOrigins exactly
// as watermark.New does.
func NewHandler(a *slicestore.Assigner, kind slicestore.Kind, expectedOrigins []uint64, opts ...Option) *Handler {
	h := &Handler{
		assigner: a,
		Store:    slicestore.NewStore(a, kind),
		wm:       watermark.New(expectedOrigins),
		windows:  make(map[[2]int64]*windowState),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Touch records that a record at event-time ts has arrived: it
// returns the slice covering ts (creating it lazily if needed) and
// discovers every window that slice contributes to, retaining the
// slice once per distinct window so it survives until every window
// referencing it has triggered.
func (h *Handler) Touch(ts int64) *slicestore.Slice {
	sl := h.Store.SliceFor(ts)
	for _, w := range h.assigner.WindowsCovering(ts) {
		key := [2]int64{w[0], w[1]}
		h.windowsMu.Lock()
		ws, ok := h.windows[key]
		if !ok {
			ws = &windowState{slices: make(map[int64]*slicestore.Slice)}
			h.windows[key] = ws
		}
		if _, already := ws.slices[sl.Start]; !already {
			ws.slices[sl.Start] = sl
			sl.Retain()
		}
		h.windowsMu.Unlock()
	}
	return sl
}

// OnBufferClose updates the watermark for (origin, seq, ts) and
// returns every window whose end has now fallen at or below the new
// global watermark and which has not already fired. The caller is
// responsible for materialising each returned Window's output and
// then calling Retire to release its slices.
func (h *Handler) OnBufferClose(origin, seq uint64, ts int64) []Window {
	if h.coarseLock {
		h.handlerMu.Lock()
		defer h.handlerMu.Unlock()
	}
	global := h.wm.Update(origin, seq, ts)

	h.windowsMu.Lock()
	fired := slices.Grow([]Window(nil), len(h.windows))
	for key, ws := range h.windows {
		if ws.triggered || key[1] > global {
			continue
		}
		ws.triggered = true
		slices := make([]*slicestore.Slice, 0, len(ws.slices))
		for _, sl := range ws.slices {
			slices = append(slices, sl)
		}
		fired = append(fired, Window{Start: key[0], End: key[1], FireTS: global, Slices: slices})
	}
	h.windowsMu.Unlock()
	return fired
}

// Retire releases w's hold on its slices, evicting from the store any
// slice that no longer has an open window referencing it. Callers
// must call this exactly once per Window returned by OnBufferClose,
// after they are done reading its slices' buckets.
func (h *Handler) Retire(w Window) {
	for _, sl := range w.Slices {
		if sl.Release() {
			h.Store.Evict(sl)
		}
	}
}

// Global returns the handler's current effective watermark without
// submitting a new update.
func (h *Handler) Global() int64 { return h.wm.Global() }
