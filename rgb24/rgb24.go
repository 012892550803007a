// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rgb24 implements a packed 3 bytes per pixel RGB image.
//
// This is the layout expected by display toolkits (e.g. RGB888 textures) so
// frames can be handed over without conversion.
package rgb24

import (
	"image"
	"image/color"
)

// Format is the pixel format of Image, as named by display toolkits.
const Format = "RGB888"

// Image is an in-memory image whose At method returns color.RGBA values with
// alpha always 0xFF.
type Image struct {
	// Pix holds the image's pixels, in R, G, B order. The pixel at (x, y)
	// starts at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*3].
	Pix []uint8
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	// Rect is the image's bounds.
	Rect image.Rectangle
}

// New returns a new black Image with the given bounds.
func New(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	return &Image{Pix: make([]uint8, 3*w*h), Stride: 3 * w, Rect: r}
}

// FromRGBA returns a packed copy of src, dropping alpha.
func FromRGBA(src *image.RGBA) *Image {
	b := src.Bounds()
	dst := New(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		s := src.PixOffset(b.Min.X, y)
		d := dst.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[d+0] = src.Pix[s+0]
			dst.Pix[d+1] = src.Pix[s+1]
			dst.Pix[d+2] = src.Pix[s+2]
			s += 4
			d += 3
		}
	}
	return dst
}

// ColorModel implements image.Image.
func (i *Image) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (i *Image) Bounds() image.Rectangle {
	return i.Rect
}

// At implements image.Image.
func (i *Image) At(x, y int) color.Color {
	return i.RGBAt(x, y)
}

// RGBAt returns the pixel at (x, y).
func (i *Image) RGBAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(i.Rect)) {
		return color.RGBA{}
	}
	o := i.PixOffset(x, y)
	return color.RGBA{i.Pix[o], i.Pix[o+1], i.Pix[o+2], 0xFF}
}

// Set implements draw.Image. Alpha is ignored.
func (i *Image) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(i.Rect)) {
		return
	}
	o := i.PixOffset(x, y)
	c1 := color.RGBAModel.Convert(c).(color.RGBA)
	i.Pix[o] = c1.R
	i.Pix[o+1] = c1.G
	i.Pix[o+2] = c1.B
}

// SetRGB sets the pixel at (x, y).
func (i *Image) SetRGB(x, y int, r, g, b uint8) {
	if !(image.Point{x, y}.In(i.Rect)) {
		return
	}
	o := i.PixOffset(x, y)
	i.Pix[o] = r
	i.Pix[o+1] = g
	i.Pix[o+2] = b
}

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (i *Image) PixOffset(x, y int) int {
	return (y-i.Rect.Min.Y)*i.Stride + (x-i.Rect.Min.X)*3
}

// Opaque returns true. It is used by encoders.
func (i *Image) Opaque() bool {
	return true
}

// Clone returns a deep copy.
func (i *Image) Clone() *Image {
	out := &Image{Pix: make([]uint8, len(i.Pix)), Stride: i.Stride, Rect: i.Rect}
	copy(out.Pix, i.Pix)
	return out
}

// ToRGBA returns an opaque *image.RGBA copy, which most encoders handle
// faster than a generic image.Image.
func (i *Image) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(i.Rect)
	for y := i.Rect.Min.Y; y < i.Rect.Max.Y; y++ {
		s := i.PixOffset(i.Rect.Min.X, y)
		d := dst.PixOffset(i.Rect.Min.X, y)
		for x := 0; x < i.Rect.Dx(); x++ {
			dst.Pix[d+0] = i.Pix[s+0]
			dst.Pix[d+1] = i.Pix[s+1]
			dst.Pix[d+2] = i.Pix[s+2]
			dst.Pix[d+3] = 0xFF
			s += 3
			d += 4
		}
	}
	return dst
}
