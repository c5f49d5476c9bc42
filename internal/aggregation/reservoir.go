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

import "math/rand"

// reservoirCap bounds the sample retained by ReservoirSample, via
// Algorithm R: the first reservoirCap values are kept outright, later
// values replace a uniformly chosen slot with shrinking probability.
const reservoirCap = 128

type reservoirState struct {
	samples []float64
	count   int64
}

type reservoirAgg struct{}

func (reservoirAgg) Initial() State { return reservoirState{} }

func (reservoirAgg) Lift(s State, v float64) State {
	st := s.(reservoirState)
	n := st.count + 1
	if len(st.samples) < reservoirCap {
		ns := make([]float64, len(st.samples), len(st.samples)+1)
		copy(ns, st.samples)
		ns = append(ns, v)
		return reservoirState{samples: ns, count: n}
	}
	if j := rand.Int63n(n); j < reservoirCap {
		ns := append([]float64(nil), st.samples...)
		ns[j] = v
		return reservoirState{samples: ns, count: n}
	}
	return reservoirState{samples: st.samples, count: n}
}

// Combine merges two reservoirs the same approximate way MedianApprox
// does: concatenate, then shuffle-and-truncate if over capacity.
func (reservoirAgg) Combine(a, b State) State {
	as, bs := a.(reservoirState), b.(reservoirState)
	merged := append(append([]float64(nil), as.samples...), bs.samples...)
	total := as.count + bs.count
	if len(merged) <= reservoirCap {
		return reservoirState{samples: merged, count: total}
	}
	rand.Shuffle(len(merged), func(i, j int) { merged[i], merged[j] = merged[j], merged[i] })
	return reservoirState{samples: merged[:reservoirCap], count: total}
}

// Lower reports the sample mean of the retained reservoir, the
// summary statistic the emitted record carries for this kind.
func (reservoirAgg) Lower(s State) float64 {
	st := s.(reservoirState)
	if len(st.samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range st.samples {
		sum += v
	}
	return sum / float64(len(st.samples))
}
