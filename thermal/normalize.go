// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"errors"
	"fmt"
	"image"

	"github.com/maruel/thermocam/senxor"
)

// ErrResolution is returned when a raw frame doesn't match the sensor
// resolution the Normalizer was built for.
var ErrResolution = errors.New("thermal: unexpected frame resolution")

// Rotation is a clockwise rotation applied to match how the sensor is mounted.
type Rotation int

// Valid values for Rotation.
const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Mount describes the physical orientation of the sensor.
type Mount struct {
	FlipH    bool     // Mirror horizontally, applied before Rotation.
	Rotation Rotation // Clockwise.
}

// DefaultMount is the orientation of the camera looking down at the bed.
var DefaultMount = Mount{FlipH: true, Rotation: Rotate90}

// Validate returns an error if m is not supported.
func (m Mount) Validate() error {
	switch m.Rotation {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return nil
	default:
		return fmt.Errorf("thermal: rotation %d is not a multiple of 90", m.Rotation)
	}
}

// Normalizer converts raw samples into a correctly oriented frame clipped to a
// temperature range.
type Normalizer struct {
	spec  senxor.Spec
	mount Mount
}

// NewNormalizer returns a Normalizer for a sensor with geometry spec.
func NewNormalizer(spec senxor.Spec, mount Mount) (*Normalizer, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrResolution, spec.Width, spec.Height)
	}
	if err := mount.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{spec: spec, mount: mount}, nil
}

// Bounds returns the bounds of the frames returned by Normalize.
func (n *Normalizer) Bounds() image.Rectangle {
	if n.mount.Rotation == Rotate90 || n.mount.Rotation == Rotate270 {
		return image.Rect(0, 0, n.spec.Height, n.spec.Width)
	}
	return image.Rect(0, 0, n.spec.Width, n.spec.Height)
}

// Check returns ErrResolution if raw doesn't have the sensor resolution.
func (n *Normalizer) Check(raw *senxor.Frame) error {
	w, h := n.spec.Width, n.spec.Height
	if raw.Width != w || raw.Height != h || len(raw.Data) != w*h {
		return fmt.Errorf("%w: got %dx%d (%d samples), expected %dx%d", ErrResolution, raw.Width, raw.Height, len(raw.Data), w, h)
	}
	return nil
}

// Normalize reshapes raw, clips it to r and applies the mount orientation.
func (n *Normalizer) Normalize(raw *senxor.Frame, r Range) (*Frame, error) {
	if err := n.Check(raw); err != nil {
		return nil, err
	}
	w, h := n.spec.Width, n.spec.Height
	f := NewFrame(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := raw.Data[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			sx := x
			if n.spec.HFlip {
				sx = w - 1 - x
			}
			f.Pix[y*f.Stride+x] = row[sx]
		}
	}
	for i, v := range f.Pix {
		if v < r.Min {
			f.Pix[i] = r.Min
		} else if v > r.Max {
			f.Pix[i] = r.Max
		}
	}
	if n.mount.FlipH {
		f = flipH(f)
	}
	return rotate(f, n.mount.Rotation), nil
}

//

func flipH(src *Frame) *Frame {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := NewFrame(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Pix[y*dst.Stride+x] = src.Pix[y*src.Stride+w-1-x]
		}
	}
	return dst
}

// rotate rotates src clockwise.
func rotate(src *Frame, r Rotation) *Frame {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	switch r {
	case Rotate90:
		dst := NewFrame(image.Rect(0, 0, h, w))
		for y := 0; y < w; y++ {
			for x := 0; x < h; x++ {
				dst.Pix[y*dst.Stride+x] = src.Pix[(h-1-x)*src.Stride+y]
			}
		}
		return dst
	case Rotate180:
		dst := NewFrame(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Pix[y*dst.Stride+x] = src.Pix[(h-1-y)*src.Stride+w-1-x]
			}
		}
		return dst
	case Rotate270:
		dst := NewFrame(image.Rect(0, 0, h, w))
		for y := 0; y < w; y++ {
			for x := 0; x < h; x++ {
				dst.Pix[y*dst.Stride+x] = src.Pix[x*src.Stride+w-1-y]
			}
		}
		return dst
	default:
		return src
	}
}
