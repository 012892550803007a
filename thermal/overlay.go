// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/maruel/thermocam/rgb24"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Renderer draws the zone grid and the zone temperatures on the output frame.
type Renderer struct {
	Color     color.RGBA // Default: white
	DotLength int        // Length of each grid dash. Default: 6
	DotGap    int        // Gap between grid dashes. Default: 12
	TextScale int        // Integer upscale of the 7x13 font. Default: 2

	face font.Face
}

// NewRenderer returns a Renderer with the default look.
func NewRenderer() *Renderer {
	return &Renderer{
		Color:     color.RGBA{0xFF, 0xFF, 0xFF, 0xFF},
		DotLength: 6,
		DotGap:    12,
		TextScale: 2,
		face:      basicfont.Face7x13,
	}
}

// Render draws the grid and one label per zone on dst.
//
// dst must not be visible to any other goroutine yet.
func (r *Renderer) Render(dst *rgb24.Image, z ZoneTemperatures) error {
	b := dst.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return errors.New("thermal: frame too small to render on")
	}
	r.grid(dst)
	for _, zone := range Zones {
		r.label(dst, LabelPosition(zone, b), fmt.Sprintf("%.2fC", z[zone]))
	}
	return nil
}

// LabelPosition returns the baseline origin of the label for zone z on a frame
// with bounds b.
func LabelPosition(z Zone, b image.Rectangle) image.Point {
	w, h := b.Dx(), b.Dy()
	sw, sh := w/3, h/3
	var p image.Point
	switch z {
	case Top:
		p = image.Pt(w/2-50, sh/2)
	case Bottom:
		p = image.Pt(w/2-50, h-sh/2)
	case Left:
		p = image.Pt(sw/4, h/2)
	case Right:
		p = image.Pt(w-sw/2-50, h/2)
	case Center:
		p = image.Pt(w/2-50, h/2)
	}
	return p.Add(b.Min)
}

// GridLines returns the x and y coordinates of the grid lines on a frame with
// bounds b. They match the boundaries used by ZoneRect.
func GridLines(b image.Rectangle) (xs, ys [2]int) {
	sw, sh := b.Dx()/3, b.Dy()/3
	for i := 1; i <= 2; i++ {
		xs[i-1] = b.Min.X + i*sw
		ys[i-1] = b.Min.Y + i*sh
	}
	return
}

//

func (r *Renderer) grid(dst *rgb24.Image) {
	b := dst.Bounds()
	xs, ys := GridLines(b)
	step := r.DotLength + r.DotGap
	if step <= 0 {
		step = 1
	}
	for _, x := range xs {
		for y := b.Min.Y; y < b.Max.Y; y += step {
			for i := y; i <= y+r.DotLength && i < b.Max.Y; i++ {
				dst.SetRGB(x, i, r.Color.R, r.Color.G, r.Color.B)
			}
		}
	}
	for _, y := range ys {
		for x := b.Min.X; x < b.Max.X; x += step {
			for i := x; i <= x+r.DotLength && i < b.Max.X; i++ {
				dst.SetRGB(i, y, r.Color.R, r.Color.G, r.Color.B)
			}
		}
	}
}

// label draws s with its baseline starting at p.
func (r *Renderer) label(dst *rgb24.Image, p image.Point, s string) {
	m := r.face.Metrics()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()
	d := &font.Drawer{Src: image.NewUniform(r.Color), Face: r.face}
	tw := d.MeasureString(s).Ceil()
	// Draw at native size on a transparent buffer then upscale, since the
	// only bitmap font available is tiny compared to the output frame.
	txt := image.NewRGBA(image.Rect(0, 0, tw, ascent+descent))
	d.Dst = txt
	d.Dot = fixed.Point26_6{X: 0, Y: fixed.I(ascent)}
	d.DrawString(s)
	scale := r.TextScale
	if scale < 1 {
		scale = 1
	}
	dr := image.Rect(0, 0, tw*scale, (ascent+descent)*scale).Add(image.Pt(p.X, p.Y-ascent*scale))
	xdraw.NearestNeighbor.Scale(dst, dr, txt, txt.Bounds(), draw.Over, nil)
}
