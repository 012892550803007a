// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"image"
	"image/color"
	"testing"

	"github.com/maruel/thermocam/rgb24"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferno(t *testing.T) {
	lo, hi := Inferno[0], Inferno[255]
	assert.Less(t, int(lo.R)+int(lo.G)+int(lo.B), 30, "%v", lo)
	assert.Greater(t, int(hi.R), 230, "%v", hi)
	assert.Greater(t, int(hi.G), 230, "%v", hi)
	// Luminance increases through the palette.
	lum := func(c color.RGBA) int { return 299*int(c.R) + 587*int(c.G) + 114*int(c.B) }
	for i := 16; i < 256; i += 16 {
		assert.Greater(t, lum(Inferno[i]), lum(Inferno[i-16]), "%d", i)
	}
}

func TestColorize(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 4))
	g.SetGray(2, 3, color.Gray{255})
	out := Colorize(g, image.Rect(1, 1, 4, 4))
	assert.Equal(t, image.Rect(0, 0, 3, 3), out.Bounds())
	assert.Equal(t, Inferno[255], out.RGBAAt(1, 2))
	assert.Equal(t, Inferno[0], out.RGBAAt(0, 0))
}

func TestResize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 61, 61))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	out := Resize(src, image.Pt(600, 600))
	assert.Equal(t, image.Rect(0, 0, 600, 600), out.Bounds())
	c := out.RGBAAt(300, 300)
	assert.InDelta(t, 0x80, int(c.R), 1)
	assert.InDelta(t, 0x80, int(c.A), 1)
}

func TestRenderer(t *testing.T) {
	dst := rgb24.New(image.Rect(0, 0, 600, 600))
	r := NewRenderer()
	require.NoError(t, r.Render(dst, ZoneTemperatures{30, 31, 32, 33, 34}))
	white := color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}

	// Dotted grid on the zone boundaries: dash then gap.
	xs, ys := GridLines(dst.Bounds())
	assert.Equal(t, [2]int{200, 400}, xs)
	assert.Equal(t, [2]int{200, 400}, ys)
	assert.Equal(t, white, dst.RGBAt(200, 0))
	assert.Equal(t, white, dst.RGBAt(200, 6))
	assert.Equal(t, color.RGBA{0, 0, 0, 0xFF}, dst.RGBAt(200, 10))
	assert.Equal(t, white, dst.RGBAt(200, 18))
	assert.Equal(t, white, dst.RGBAt(2, 400))
	assert.Equal(t, color.RGBA{0, 0, 0, 0xFF}, dst.RGBAt(199, 10))

	// Each label is drawn just above its baseline.
	for _, z := range Zones {
		p := LabelPosition(z, dst.Bounds())
		area := image.Rect(p.X, p.Y-22, p.X+140, p.Y)
		assert.True(t, hasWhite(dst, area), z.String())
	}
	assert.Equal(t, image.Pt(250, 100), LabelPosition(Top, dst.Bounds()))
	assert.Equal(t, image.Pt(250, 500), LabelPosition(Bottom, dst.Bounds()))
	assert.Equal(t, image.Pt(50, 300), LabelPosition(Left, dst.Bounds()))
	assert.Equal(t, image.Pt(450, 300), LabelPosition(Right, dst.Bounds()))
	assert.Equal(t, image.Pt(250, 300), LabelPosition(Center, dst.Bounds()))
}

func TestRenderer_fail(t *testing.T) {
	assert.Error(t, NewRenderer().Render(rgb24.New(image.Rect(0, 0, 2, 2)), ZoneTemperatures{}))
}

func hasWhite(img *rgb24.Image, r image.Rectangle) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			// Skip the grid lines.
			if x == 200 || x == 400 || y == 200 || y == 400 {
				continue
			}
			c := img.RGBAt(x, y)
			if c.R == 0xFF && c.G == 0xFF && c.B == 0xFF {
				return true
			}
		}
	}
	return false
}
