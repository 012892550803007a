// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package senxor

import (
	"math"
	"time"

	"periph.io/x/periph/conn/physic"
)

// Header is sent along each frame.
type Header struct {
	FrameCount uint32             // Number of frames since the stream started.
	Captured   time.Time          // Host time when the frame was received.
	DieTemp    physic.Temperature // Sensor die temperature.
}

// Frame is one read of the sensor array, in °C, stored row major as sent on
// the wire.
//
// A Frame must not be modified once returned by Sensor.Read.
type Frame struct {
	Width  int
	Height int
	Data   []float64
	Header
}

// NewFrame returns a zeroed frame matching s.
func NewFrame(s Spec) *Frame {
	return &Frame{Width: s.Width, Height: s.Height, Data: make([]float64, s.Width*s.Height)}
}

// At returns the sample at column x, row y.
func (f *Frame) At(x, y int) float64 {
	return f.Data[y*f.Width+x]
}

// Min returns the coldest sample.
func (f *Frame) Min() float64 {
	out := math.Inf(1)
	for _, v := range f.Data {
		if v < out {
			out = v
		}
	}
	return out
}

// Max returns the hottest sample.
func (f *Frame) Max() float64 {
	out := math.Inf(-1)
	for _, v := range f.Data {
		if v > out {
			out = v
		}
	}
	return out
}
