// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgb24

import (
	"image"
	"image/color"
	"testing"
)

func TestImage(t *testing.T) {
	i := New(image.Rect(0, 0, 4, 3))
	if len(i.Pix) != 36 || i.Stride != 12 {
		t.Fatal(len(i.Pix), i.Stride)
	}
	i.Set(1, 2, color.RGBA{10, 20, 30, 255})
	if c := i.RGBAt(1, 2); c != (color.RGBA{10, 20, 30, 255}) {
		t.Fatal(c)
	}
	if o := i.PixOffset(1, 2); o != 27 || i.Pix[o] != 10 {
		t.Fatal(o)
	}
	// Out of bounds is ignored.
	i.Set(4, 0, color.White)
	i.SetRGB(-1, 0, 1, 2, 3)
	if c := i.RGBAt(4, 0); c != (color.RGBA{}) {
		t.Fatal(c)
	}

	c := i.Clone()
	c.SetRGB(1, 2, 0, 0, 0)
	if i.RGBAt(1, 2).R != 10 {
		t.Fatal("Clone shares memory")
	}
}

func TestRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(1, 1, color.RGBA{1, 2, 3, 255})
	i := FromRGBA(src)
	if c := i.RGBAt(1, 1); c != (color.RGBA{1, 2, 3, 255}) {
		t.Fatal(c)
	}
	back := i.ToRGBA()
	if c := back.RGBAAt(1, 1); c != (color.RGBA{1, 2, 3, 255}) {
		t.Fatal(c)
	}
	if c := back.RGBAAt(0, 0); c != (color.RGBA{0, 0, 0, 255}) {
		t.Fatal(c)
	}
}
