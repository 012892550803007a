// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneRect(t *testing.T) {
	roi := ROI{0, 0, 9, 9}
	assert.Equal(t, image.Rect(0, 0, 9, 3), ZoneRect(Top, roi))
	assert.Equal(t, image.Rect(0, 6, 9, 9), ZoneRect(Bottom, roi))
	assert.Equal(t, image.Rect(0, 0, 3, 9), ZoneRect(Left, roi))
	assert.Equal(t, image.Rect(6, 0, 9, 9), ZoneRect(Right, roi))
	assert.Equal(t, image.Rect(3, 3, 6, 6), ZoneRect(Center, roi))

	// Top and Left share the top-left corner cell.
	corner := ZoneRect(Top, roi).Intersect(ZoneRect(Left, roi))
	assert.Equal(t, image.Rect(0, 0, 3, 3), corner)
	assert.Equal(t, image.Rect(6, 6, 9, 9), ZoneRect(Bottom, roi).Intersect(ZoneRect(Right, roi)))
	assert.True(t, ZoneRect(Center, roi).Intersect(ZoneRect(Top, roi)).Empty())
}

func TestZoneRect_uneven(t *testing.T) {
	// 61/3 = 20: outer bands are 20 wide, center gets the remaining 21.
	roi := DefaultROI
	assert.Equal(t, 20, ZoneRect(Top, roi).Dy())
	assert.Equal(t, 20, ZoneRect(Right, roi).Dx())
	assert.Equal(t, image.Rect(20, 20, 41, 41), ZoneRect(Center, roi))
	// With an offset ROI.
	roi = ROI{X1: 5, Y1: 10, X2: 15, Y2: 17}
	assert.Equal(t, image.Rect(5, 10, 15, 12), ZoneRect(Top, roi))
	assert.Equal(t, image.Rect(5, 15, 15, 17), ZoneRect(Bottom, roi))
	assert.Equal(t, image.Rect(5, 10, 8, 17), ZoneRect(Left, roi))
	assert.Equal(t, image.Rect(12, 10, 15, 17), ZoneRect(Right, roi))
	assert.Equal(t, image.Rect(8, 12, 12, 15), ZoneRect(Center, roi))
}

func TestExtract(t *testing.T) {
	// Each 3x3 cell of a 9x9 frame has a distinct constant value:
	//   1 2 3
	//   4 5 6
	//   7 8 9
	f := NewFrame(image.Rect(0, 0, 9, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			f.Set(x, y, float64(1+(y/3)*3+x/3))
		}
	}
	z := Extract(f, ROI{0, 0, 9, 9})
	assert.InDelta(t, 2., z[Top], 1e-12)    // (1+2+3)/3
	assert.InDelta(t, 8., z[Bottom], 1e-12) // (7+8+9)/3
	assert.InDelta(t, 4., z[Left], 1e-12)   // (1+4+7)/3
	assert.InDelta(t, 6., z[Right], 1e-12)  // (3+6+9)/3
	assert.InDelta(t, 5., z[Center], 1e-12)

	// Changing the top-left corner cell moves both Top and Left.
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			f.Set(x, y, 10)
		}
	}
	z2 := Extract(f, ROI{0, 0, 9, 9})
	assert.InDelta(t, 5., z2[Top], 1e-12)
	assert.InDelta(t, 7., z2[Left], 1e-12)
	assert.Equal(t, z[Bottom], z2[Bottom])
	assert.Equal(t, z[Right], z2[Right])
	assert.Equal(t, z[Center], z2[Center])
}

func TestExtract_subROI(t *testing.T) {
	// Values outside the ROI are ignored.
	f := constantFrame(image.Rect(0, 0, 10, 10), 1000)
	roi := ROI{2, 2, 8, 8}
	for y := 2; y < 8; y++ {
		for x := 2; x < 8; x++ {
			f.Set(x, y, float64(x))
		}
	}
	z := Extract(f, roi)
	assert.InDelta(t, 4.5, z[Top], 1e-12)
	assert.InDelta(t, 2.5, z[Left], 1e-12)
	assert.InDelta(t, 6.5, z[Right], 1e-12)
	assert.InDelta(t, 4.5, z[Center], 1e-12)
}

func TestExtract_filtered(t *testing.T) {
	fl, err := NewFilter(DefaultFilterParams())
	require.NoError(t, err)
	out := fl.Apply(constantFrame(image.Rect(0, 0, 62, 80), 30))
	z := Extract(out, DefaultROI)
	for _, zone := range Zones {
		assert.InDelta(t, 30., z[zone], 1e-9, zone.String())
		assert.False(t, math.IsNaN(z[zone]))
	}
}

func TestROI_Validate(t *testing.T) {
	b := image.Rect(0, 0, 62, 80)
	assert.NoError(t, DefaultROI.Validate(b))
	assert.NoError(t, ROI{0, 0, 62, 80}.Validate(b))
	for _, r := range []ROI{
		{10, 0, 10, 20},
		{20, 0, 10, 20},
		{0, 0, 2, 20},
		{0, 0, 62, 81},
		{-1, 0, 10, 10},
	} {
		assert.ErrorIs(t, r.Validate(b), ErrROI, "%v", r)
	}
}

func TestZone_String(t *testing.T) {
	assert.Equal(t, "Center", Center.String())
	assert.Equal(t, "Zone(7)", Zone(7).String())
	z := ZoneTemperatures{1, 2, 3, 4, 5}
	assert.Equal(t, map[string]float64{"Top": 1, "Bottom": 2, "Left": 3, "Right": 4, "Center": 5}, z.Map())
}
