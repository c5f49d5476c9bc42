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
	"math/rand"
	"sort"
)

// medianSampleCap bounds the reservoir backing MedianApprox; the
// emitted value is the middle element of the retained sample.
const medianSampleCap = 256

type medianState struct {
	samples []float64
	count   int64
}

type medianAgg struct{}

func (medianAgg) Initial() State { return medianState{} }

func (medianAgg) Lift(s State, v float64) State {
	st := s.(medianState)
	n := st.count + 1
	if len(st.samples) < medianSampleCap {
		ns := make([]float64, len(st.samples), len(st.samples)+1)
		copy(ns, st.samples)
		ns = append(ns, v)
		return medianState{samples: ns, count: n}
	}
	if j := rand.Int63n(n); j < medianSampleCap {
		ns := append([]float64(nil), st.samples...)
		ns[j] = v
		return medianState{samples: ns, count: n}
	}
	return medianState{samples: st.samples, count: n}
}

// Combine merges two reservoirs by concatenating and, if the result
// overflows the cap, shuffling and truncating. This makes Combine
// approximately, not exactly, associative and commutative — acceptable
// for an approximate aggregation kind, unlike the exact kinds above.
func (medianAgg) Combine(a, b State) State {
	as, bs := a.(medianState), b.(medianState)
	merged := append(append([]float64(nil), as.samples...), bs.samples...)
	total := as.count + bs.count
	if len(merged) <= medianSampleCap {
		return medianState{samples: merged, count: total}
	}
	rand.Shuffle(len(merged), func(i, j int) { merged[i], merged[j] = merged[j], merged[i] })
	return medianState{samples: merged[:medianSampleCap], count: total}
}

func (medianAgg) Lower(s State) float64 {
	st := s.(medianState)
	if len(st.samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), st.samples...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}
