// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"errors"
	"fmt"
)

// ErrWindow is returned when a rolling window has no capacity.
var ErrWindow = errors.New("thermal: rolling window must hold at least one sample")

// Range is the temperature range used for contrast stretching.
//
// Min <= Max always holds for a Range returned by Stabilizer.
type Range struct {
	Min float64
	Max float64
}

func (r Range) String() string {
	return fmt.Sprintf("%.2fC - %.2fC", r.Min, r.Max)
}

// RollingAverage is a simple moving average over the last N samples.
type RollingAverage struct {
	buf  []float64
	next int // Index of the slot to overwrite on the next Add.
	n    int // Number of valid samples in buf.
	sum  float64
}

// NewRollingAverage returns a moving average over size samples.
func NewRollingAverage(size int) (*RollingAverage, error) {
	if size < 1 {
		return nil, ErrWindow
	}
	return &RollingAverage{buf: make([]float64, size)}, nil
}

// Add inserts v, evicting the oldest sample when the window is full, and
// returns the new average.
func (r *RollingAverage) Add(v float64) float64 {
	if r.n == len(r.buf) {
		r.sum -= r.buf[r.next]
	} else {
		r.n++
	}
	r.buf[r.next] = v
	r.sum += v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		// Resum once per lap so rounding errors don't accumulate.
		r.sum = 0
		for _, s := range r.buf[:r.n] {
			r.sum += s
		}
	}
	return r.Average()
}

// Average returns the mean of the samples in the window, or 0 if empty.
func (r *RollingAverage) Average() float64 {
	if r.n == 0 {
		return 0
	}
	return r.sum / float64(r.n)
}

// Len returns the number of samples in the window.
func (r *RollingAverage) Len() int {
	return r.n
}

// Values returns the samples in the window, oldest first.
func (r *RollingAverage) Values() []float64 {
	out := make([]float64, 0, r.n)
	start := 0
	if r.n == len(r.buf) {
		start = r.next
	}
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Stabilizer smooths the per frame min and max temperatures over a window of
// frames so the contrast stretching doesn't flicker with sensor noise.
type Stabilizer struct {
	min *RollingAverage
	max *RollingAverage
}

// NewStabilizer returns a Stabilizer averaging over window frames.
func NewStabilizer(window int) (*Stabilizer, error) {
	lo, err := NewRollingAverage(window)
	if err != nil {
		return nil, err
	}
	hi, _ := NewRollingAverage(window)
	return &Stabilizer{min: lo, max: hi}, nil
}

// Update adds the extremes of the current frame and returns the stabilized
// range.
func (s *Stabilizer) Update(curMin, curMax float64) Range {
	if curMin > curMax {
		curMin, curMax = curMax, curMin
	}
	r := Range{Min: s.min.Add(curMin), Max: s.max.Add(curMax)}
	// Both windows hold the same frames and each has min <= max; only float
	// rounding of the running sums can invert them.
	if r.Max < r.Min {
		r.Max = r.Min
	}
	return r
}

// Range returns the current stabilized range without adding a sample.
func (s *Stabilizer) Range() Range {
	return Range{Min: s.min.Average(), Max: s.max.Average()}
}

// Mins returns the window of minimums, oldest first.
func (s *Stabilizer) Mins() []float64 {
	return s.min.Values()
}

// Maxs returns the window of maximums, oldest first.
func (s *Stabilizer) Maxs() []float64 {
	return s.max.Values()
}
