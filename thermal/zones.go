// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"errors"
	"fmt"
	"image"
)

// ErrROI is returned when a region of interest doesn't fit the frame.
var ErrROI = errors.New("thermal: invalid region of interest")

// Zone is one of the five regions of the ROI reported on.
type Zone int

// Valid values for Zone.
const (
	Top Zone = iota
	Bottom
	Left
	Right
	Center

	NumZones = 5
)

// Zones lists all zones in order.
var Zones = [NumZones]Zone{Top, Bottom, Left, Right, Center}

func (z Zone) String() string {
	switch z {
	case Top:
		return "Top"
	case Bottom:
		return "Bottom"
	case Left:
		return "Left"
	case Right:
		return "Right"
	case Center:
		return "Center"
	default:
		return fmt.Sprintf("Zone(%d)", int(z))
	}
}

// ROI is the region of interest in normalized frame coordinates. X2 and Y2
// are exclusive.
type ROI struct {
	X1, Y1, X2, Y2 int
}

// DefaultROI is the 61x61 area covering the bed.
var DefaultROI = ROI{0, 0, 61, 61}

// Rect returns r as an image.Rectangle.
func (r ROI) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Validate returns an error if r is not within bounds or is smaller than 3x3,
// which would leave a zone empty.
func (r ROI) Validate(bounds image.Rectangle) error {
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return fmt.Errorf("%w: %v is empty or inverted", ErrROI, r)
	}
	if r.X2-r.X1 < 3 || r.Y2-r.Y1 < 3 {
		return fmt.Errorf("%w: %v is smaller than 3x3", ErrROI, r)
	}
	if !r.Rect().In(bounds) {
		return fmt.Errorf("%w: %v is outside of %v", ErrROI, r, bounds)
	}
	return nil
}

// ZoneRect returns the rectangle of z within r.
//
// The ROI is cut in thirds by integer division. Top and Bottom span the full
// width and Left and Right the full height so they share the corner cells.
// Center spans what's left between the outer bands, so it's larger than a
// third when the size isn't divisible by 3.
func ZoneRect(z Zone, r ROI) image.Rectangle {
	sw, sh := (r.X2-r.X1)/3, (r.Y2-r.Y1)/3
	switch z {
	case Top:
		return image.Rect(r.X1, r.Y1, r.X2, r.Y1+sh)
	case Bottom:
		return image.Rect(r.X1, r.Y2-sh, r.X2, r.Y2)
	case Left:
		return image.Rect(r.X1, r.Y1, r.X1+sw, r.Y2)
	case Right:
		return image.Rect(r.X2-sw, r.Y1, r.X2, r.Y2)
	case Center:
		return image.Rect(r.X1+sw, r.Y1+sh, r.X2-sw, r.Y2-sh)
	default:
		return image.Rectangle{}
	}
}

// ZoneTemperatures is the mean temperature of each zone, in °C.
type ZoneTemperatures [NumZones]float64

// Map returns the temperatures keyed by zone name.
func (z *ZoneTemperatures) Map() map[string]float64 {
	out := make(map[string]float64, NumZones)
	for _, zone := range Zones {
		out[zone.String()] = z[zone]
	}
	return out
}

// Extract returns the mean temperature of each zone of roi in src.
//
// roi must have been validated against src.Bounds().
func Extract(src TempSource, roi ROI) ZoneTemperatures {
	var out ZoneTemperatures
	for _, z := range Zones {
		out[z] = mean(src, ZoneRect(z, roi))
	}
	return out
}

func mean(src TempSource, r image.Rectangle) float64 {
	sum := 0.
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sum += src.TempAt(x, y)
		}
	}
	return sum / float64(r.Dx()*r.Dy())
}
