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

package slicestore

import "github.com/nebulastream/streamcore/internal/enginerr"

// Assigner maps event-time timestamps to the half-open slice
// interval they fall into, for a window of the given size and slide.
// Tumbling windows are the special case size == slide.
type Assigner struct {
	Size, Slide int64
}

// NewAssigner validates and constructs an Assigner. size and slide
// must be positive, and size must be >= slide.
func NewAssigner(size, slide int64) (*Assigner, error) {
	if size <= 0 || slide <= 0 {
		return nil, enginerr.New(enginerr.ConfigurationInvalid, "window size and slide must be positive")
	}
	if size < slide {
		return nil, enginerr.New(enginerr.ConfigurationInvalid, "window size (%d) must be >= slide (%d)", size, slide)
	}
	return &Assigner{Size: size, Slide: slide}, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}

// SliceStart returns the start boundary of the slice covering ts,
// computed as the max of the previous slide boundary (clamped at 0)
// and the previous window-end boundary, so that slices tile when Size
// is not a multiple of Slide.
func (a *Assigner) SliceStart(ts int64) int64 {
	start := floorDiv(ts, a.Slide) * a.Slide
	if start < 0 {
		start = 0
	}
	// largest k with k*slide+size <= ts
	if k := floorDiv(ts-a.Size, a.Slide); k >= 0 && k*a.Slide+a.Size > start {
		start = k*a.Slide + a.Size
	}
	return start
}

// SliceEnd returns the end boundary of the slice covering ts,
// computed as the min of the next slide boundary and the next
// window-end boundary.
func (a *Assigner) SliceEnd(ts int64) int64 {
	prevSlide := floorDiv(ts, a.Slide) * a.Slide
	nextSlide := prevSlide + a.Slide

	k0 := ceilDiv(ts+1-a.Size, a.Slide)
	if k0 < 0 {
		k0 = 0
	}
	nextWindowEnd := k0*a.Slide + a.Size

	if nextSlide < nextWindowEnd {
		return nextSlide
	}
	return nextWindowEnd
}

// WindowsCovering returns the {start,end} pairs of every window that
// the slice [sliceStart, sliceEnd) of a record at ts belongs to.
func (a *Assigner) WindowsCovering(ts int64) [][2]int64 {
	// largest k with k*slide <= ts
	kMax := floorDiv(ts, a.Slide)
	// smallest k with k*slide+size > ts, k >= 0
	kMin := ceilDiv(ts+1-a.Size, a.Slide)
	if kMin < 0 {
		kMin = 0
	}
	var out [][2]int64
	for k := kMin; k <= kMax; k++ {
		out = append(out, [2]int64{k * a.Slide, k*a.Slide + a.Size})
	}
	return out
}
