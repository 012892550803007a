// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Inferno is the matplotlib "inferno" palette: black, purple, orange then pale
// yellow.
var Inferno [256]color.RGBA

func init() {
	// Polynomial fit of the palette, per channel, lowest degree first.
	c := [7][3]float64{
		{0.0002189403691192265, 0.001651004631001012, -0.01948089843709184},
		{0.1065134194856116, 0.5639564367884091, 3.932712388889277},
		{11.60249308247187, -3.972853965665698, -15.9423941062914},
		{-41.70399613139459, 17.43639888205313, 44.35414519872813},
		{77.162935699427, -33.40235894210092, -81.80730925738993},
		{-71.31942824499214, 32.62606426397723, 73.20951985803202},
		{25.13112622477341, -12.24266895238567, -23.07032500287172},
	}
	for i := range Inferno {
		t := float64(i) / 255
		var rgb [3]uint8
		for ch := 0; ch < 3; ch++ {
			v := 0.
			for d := len(c) - 1; d >= 0; d-- {
				v = v*t + c[d][ch]
			}
			rgb[ch] = to8(v)
		}
		Inferno[i] = color.RGBA{rgb[0], rgb[1], rgb[2], 0xFF}
	}
}

// Colorize applies the Inferno palette to the area r of src. The returned
// image has its origin at (0, 0).
func Colorize(src *image.Gray, r image.Rectangle) *image.RGBA {
	r = r.Intersect(src.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			c := Inferno[src.GrayAt(r.Min.X+x, r.Min.Y+y).Y]
			o := dst.PixOffset(x, y)
			dst.Pix[o+0] = c.R
			dst.Pix[o+1] = c.G
			dst.Pix[o+2] = c.B
			dst.Pix[o+3] = 0xFF
		}
	}
	return dst
}

// Resize scales src to size with bilinear interpolation.
func Resize(src image.Image, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rectangle{Max: size})
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
