// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package qpmodel

import (
	"fmt"
	"math"
)

// Interval stores the closed real interval `[Lower,Upper]`. Either end may be infinite. If
// `Lower` is greater than `Upper`, or either end is NaN, the interval is considered empty.
type Interval struct {
	Lower float64
	Upper float64
}

// NewInterval creates the interval `[lower,upper]`.
func NewInterval(lower, upper float64) Interval {
	return Interval{Lower: lower, Upper: upper}
}

// AtMost returns the interval `(-inf,upper]`.
func AtMost(upper float64) Interval {
	return Interval{Lower: math.Inf(-1), Upper: upper}
}

// AtLeast returns the interval `[lower,+inf)`.
func AtLeast(lower float64) Interval {
	return Interval{Lower: lower, Upper: math.Inf(1)}
}

// Exactly returns the singleton interval `[v,v]`.
func Exactly(v float64) Interval {
	return Interval{Lower: v, Upper: v}
}

// IsEmpty returns true if no value belongs to the interval.
func (iv Interval) IsEmpty() bool {
	return math.IsNaN(iv.Lower) || math.IsNaN(iv.Upper) || iv.Lower > iv.Upper
}

// IsFixed returns true if the interval contains exactly one finite value.
func (iv Interval) IsFixed() bool {
	return iv.Lower == iv.Upper && !math.IsInf(iv.Lower, 0)
}

// Offset adds `delta` to both ends of the interval. Infinite ends stay infinite.
func (iv Interval) Offset(delta float64) Interval {
	return Interval{Lower: iv.Lower + delta, Upper: iv.Upper + delta}
}

// Violation returns how far `v` lies outside of the interval, or 0 if it is inside.
func (iv Interval) Violation(v float64) float64 {
	switch {
	case v < iv.Lower:
		return iv.Lower - v
	case v > iv.Upper:
		return v - iv.Upper
	}
	return 0
}

// Contains returns true if `v` is inside the interval up to the absolute tolerance `tol`.
func (iv Interval) Contains(v, tol float64) bool {
	return iv.Violation(v) <= tol
}

// Clamp returns the point of the interval closest to `v`. The interval must not be empty.
func (iv Interval) Clamp(v float64) float64 {
	return math.Min(math.Max(v, iv.Lower), iv.Upper)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%v,%v]", iv.Lower, iv.Upper)
}
