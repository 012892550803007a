// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package thermal implements the processing stages that turn raw sensor
// readings into a rendered frame annotated with zone temperatures.
//
// Stages, in order:
//
//	Stabilizer  smooths the per frame min/max so contrast doesn't flicker.
//	Normalizer  orients the raw samples and clips them to the stable range.
//	Filter      remaps to 8 bits and removes shot noise.
//	Extract     averages the filtered temperatures over 5 zones of the ROI.
//	Colorize    applies the INFERNO palette to the ROI.
//	Renderer    burns the zone grid and labels into the resized output.
package thermal

import (
	"image"
	"math"
)

// TempSource is a 2D field of temperatures in °C.
type TempSource interface {
	Bounds() image.Rectangle
	TempAt(x, y int) float64
}

// Frame is a 2D field of temperatures in °C.
type Frame struct {
	// Pix holds the samples. The sample at (x, y) is at
	// Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)].
	Pix    []float64
	Stride int
	Rect   image.Rectangle
}

// NewFrame returns a zeroed frame.
func NewFrame(r image.Rectangle) *Frame {
	return &Frame{Pix: make([]float64, r.Dx()*r.Dy()), Stride: r.Dx(), Rect: r}
}

// Bounds implements TempSource.
func (f *Frame) Bounds() image.Rectangle {
	return f.Rect
}

// TempAt implements TempSource.
func (f *Frame) TempAt(x, y int) float64 {
	return f.Pix[f.offset(x, y)]
}

// Set sets the sample at (x, y).
func (f *Frame) Set(x, y int, v float64) {
	f.Pix[f.offset(x, y)] = v
}

// MinMax returns the coldest and hottest samples.
func (f *Frame) MinMax() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range f.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func (f *Frame) offset(x, y int) int {
	return (y-f.Rect.Min.Y)*f.Stride + (x - f.Rect.Min.X)
}
