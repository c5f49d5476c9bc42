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

// Package aggregation implements the lift/combine/lower aggregation
// engine (C8): a four-function contract applied uniformly across
// sum/min/max/avg/count and the approximate synopses, backed by a
// keyed hashmap for grouped windows; non-keyed windows use the same
// hashmap with a single constant group key.
package aggregation

// Kind names the supported aggregation functions.
type Kind int

const (
	Sum Kind = iota
	Min
	Max
	Avg
	Count
	MedianApprox
	CountMinApprox
	ReservoirSample
)

// Aggregator is the four-function contract every aggregation kind
// implements. Combine must be associative and commutative so that
// partial states from different slices (or different worker threads'
// buckets within one slice) can be merged in any order.
type Aggregator interface {
	Initial() State
	Lift(s State, v float64) State
	Combine(a, b State) State
	Lower(s State) float64
}

// State is an opaque per-kind aggregation state value. Each
// Aggregator implementation defines its own concrete type.
type State any

// New returns the Aggregator implementation for kind.
func New(kind Kind) Aggregator {
	switch kind {
	case Sum:
		return sumAgg{}
	case Min:
		return minAgg{}
	case Max:
		return maxAgg{}
	case Avg:
		return avgAgg{}
	case Count:
		return countAgg{}
	case MedianApprox:
		return medianAgg{}
	case CountMinApprox:
		return countMinAgg{}
	case ReservoirSample:
		return reservoirAgg{}
	default:
		panic("unknown aggregation kind")
	}
}

type sumState struct{ v float64 }
type sumAgg struct{}

func (sumAgg) Initial() State             { return sumState{0} }
func (sumAgg) Lift(s State, v float64) State {
	st := s.(sumState)
	return sumState{st.v + v}
}
func (sumAgg) Combine(a, b State) State {
	return sumState{a.(sumState).v + b.(sumState).v}
}
func (sumAgg) Lower(s State) float64 { return s.(sumState).v }

type minState struct {
	v   float64
	set bool
}
type minAgg struct{}

func (minAgg) Initial() State { return minState{} }
func (minAgg) Lift(s State, v float64) State {
	st := s.(minState)
	if !st.set || v < st.v {
		return minState{v, true}
	}
	return st
}
func (minAgg) Combine(a, b State) State {
	as, bs := a.(minState), b.(minState)
	if !as.set {
		return bs
	}
	if !bs.set {
		return as
	}
	if bs.v < as.v {
		return bs
	}
	return as
}
func (minAgg) Lower(s State) float64 { return s.(minState).v }

type maxState struct {
	v   float64
	set bool
}
type maxAgg struct{}

func (maxAgg) Initial() State { return maxState{} }
func (maxAgg) Lift(s State, v float64) State {
	st := s.(maxState)
	if !st.set || v > st.v {
		return maxState{v, true}
	}
	return st
}
func (maxAgg) Combine(a, b State) State {
	as, bs := a.(maxState), b.(maxState)
	if !as.set {
		return bs
	}
	if !bs.set {
		return as
	}
	if bs.v > as.v {
		return bs
	}
	return as
}
func (maxAgg) Lower(s State) float64 { return s.(maxState).v }

type avgState struct {
	sum   float64
	count int64
}
type avgAgg struct{}

func (avgAgg) Initial() State { return avgState{} }
func (avgAgg) Lift(s State, v float64) State {
	st := s.(avgState)
	return avgState{st.sum + v, st.count + 1}
}
func (avgAgg) Combine(a, b State) State {
	as, bs := a.(avgState), b.(avgState)
	return avgState{as.sum + bs.sum, as.count + bs.count}
}
func (avgAgg) Lower(s State) float64 {
	st := s.(avgState)
	if st.count == 0 {
		return 0
	}
	return st.sum / float64(st.count)
}

type countState struct{ n int64 }
type countAgg struct{}

func (countAgg) Initial() State { return countState{} }
func (countAgg) Lift(s State, v float64) State {
	return countState{s.(countState).n + 1}
}
func (countAgg) Combine(a, b State) State {
	return countState{a.(countState).n + b.(countState).n}
}
func (countAgg) Lower(s State) float64 { return float64(s.(countState).n) }
