// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"fmt"
	"image"
	"math"
)

// FilterParams configures Filter.
type FilterParams struct {
	UseMedian    bool    // Default: true
	BlurKS       int     // Median kernel size, odd. Default: 3
	UseBilateral bool    // Default: true
	Diameter     int     // Bilateral neighborhood diameter. Default: 5
	SigmaColor   float64 // Bilateral range sigma, in 8 bits levels. Default: 27
	SigmaSpace   float64 // Bilateral spatial sigma, in pixels. Default: 27
	UseNLM       bool    // Non-local means denoising; slow. Default: false
	NLMH         float64 // NLM filter strength. Default: 10
	NLMTemplate  int     // NLM patch size, odd. Default: 7
	NLMSearch    int     // NLM search window size, odd. Default: 21
}

// DefaultFilterParams returns median then bilateral smoothing.
func DefaultFilterParams() FilterParams {
	return FilterParams{
		UseMedian:    true,
		BlurKS:       3,
		UseBilateral: true,
		Diameter:     5,
		SigmaColor:   27,
		SigmaSpace:   27,
		NLMH:         10,
		NLMTemplate:  7,
		NLMSearch:    21,
	}
}

// Validate returns an error if p can't be used.
func (p *FilterParams) Validate() error {
	if p.UseMedian && (p.BlurKS < 1 || p.BlurKS%2 == 0) {
		return fmt.Errorf("thermal: median kernel size %d must be odd and positive", p.BlurKS)
	}
	if p.UseBilateral {
		if p.Diameter < 1 {
			return fmt.Errorf("thermal: bilateral diameter %d must be positive", p.Diameter)
		}
		if p.SigmaColor <= 0 || p.SigmaSpace <= 0 {
			return fmt.Errorf("thermal: bilateral sigmas must be positive")
		}
	}
	if p.UseNLM {
		if p.NLMH <= 0 {
			return fmt.Errorf("thermal: NLM strength must be positive")
		}
		if p.NLMTemplate < 1 || p.NLMTemplate%2 == 0 || p.NLMSearch < 1 || p.NLMSearch%2 == 0 {
			return fmt.Errorf("thermal: NLM windows must be odd and positive")
		}
	}
	return nil
}

// Filtered is a frame remapped to 8 bits and denoised.
//
// It keeps the range used for the remap so the filtered values can be read
// back as temperatures.
type Filtered struct {
	*image.Gray
	Lo float64 // Temperature mapped to 0.
	Hi float64 // Temperature mapped to 255.
}

// TempAt implements TempSource.
func (f *Filtered) TempAt(x, y int) float64 {
	return f.Lo + float64(f.GrayAt(x, y).Y)*(f.Hi-f.Lo)/255
}

// Filter reduces the sensor shot noise. It carries no state between frames.
type Filter struct {
	p          FilterParams
	spaceW     []float64 // Bilateral spatial weights, (2r+1)² with 0 outside the disc.
	colorW     [256]float64
	bilateralR int
}

// NewFilter returns a Filter configured with p.
func NewFilter(p FilterParams) (*Filter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f := &Filter{p: p}
	if p.UseBilateral {
		r := p.Diameter / 2
		f.bilateralR = r
		side := 2*r + 1
		f.spaceW = make([]float64, side*side)
		gs := -0.5 / (p.SigmaSpace * p.SigmaSpace)
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				d2 := float64(dx*dx + dy*dy)
				if d2 > float64(r*r) {
					continue
				}
				f.spaceW[(dy+r)*side+dx+r] = math.Exp(d2 * gs)
			}
		}
		gc := -0.5 / (p.SigmaColor * p.SigmaColor)
		for i := range f.colorW {
			f.colorW[i] = math.Exp(float64(i*i) * gc)
		}
	}
	return f, nil
}

// Apply remaps src to [0, 255] using its own extremes then applies the enabled
// smoothing passes. A flat frame maps to 0.
func (f *Filter) Apply(src *Frame) *Filtered {
	lo, hi := src.MinMax()
	b := src.Bounds()
	g := image.NewGray(b)
	if hi > lo {
		scale := 255 / (hi - lo)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g.Pix[g.PixOffset(x, y)] = uint8(math.Round((src.TempAt(x, y) - lo) * scale))
			}
		}
	} else {
		hi = lo
	}
	if f.p.UseMedian && f.p.BlurKS > 1 {
		g = median(g, f.p.BlurKS)
	}
	if f.p.UseBilateral {
		g = f.bilateral(g)
	}
	if f.p.UseNLM {
		g = nlm(g, f.p.NLMH, f.p.NLMTemplate, f.p.NLMSearch)
	}
	return &Filtered{Gray: g, Lo: lo, Hi: hi}
}

//

// clamp returns v limited to [0, n).
func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// median applies a ks×ks median filter, replicating the border.
func median(src *image.Gray, ks int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	r := ks / 2
	win := make([]uint8, 0, ks*ks)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			win = win[:0]
			for dy := -r; dy <= r; dy++ {
				row := clamp(y+dy, h) * src.Stride
				for dx := -r; dx <= r; dx++ {
					v := src.Pix[row+clamp(x+dx, w)]
					// Insertion sort; the window is tiny.
					i := len(win)
					win = append(win, v)
					for ; i > 0 && win[i-1] > v; i-- {
						win[i] = win[i-1]
					}
					win[i] = v
				}
			}
			dst.Pix[y*dst.Stride+x] = win[len(win)/2]
		}
	}
	return dst
}

// bilateral applies an edge preserving smoothing, replicating the border.
func (f *Filter) bilateral(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	r := f.bilateralR
	side := 2*r + 1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := int(src.Pix[y*src.Stride+x])
			sum, norm := 0., 0.
			for dy := -r; dy <= r; dy++ {
				row := clamp(y+dy, h) * src.Stride
				for dx := -r; dx <= r; dx++ {
					sw := f.spaceW[(dy+r)*side+dx+r]
					if sw == 0 {
						continue
					}
					v := int(src.Pix[row+clamp(x+dx, w)])
					d := v - c
					if d < 0 {
						d = -d
					}
					wt := sw * f.colorW[d]
					sum += wt * float64(v)
					norm += wt
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8(math.Round(sum / norm))
		}
	}
	return dst
}

// nlm applies non-local means denoising, replicating the border.
func nlm(src *image.Gray, h float64, template, search int) *image.Gray {
	b := src.Bounds()
	w, ht := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	tr, sr := template/2, search/2
	at := func(x, y int) float64 {
		return float64(src.Pix[clamp(y, ht)*src.Stride+clamp(x, w)])
	}
	h2 := h * h
	n := float64(template * template)
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			sum, norm := 0., 0.
			for sy := y - sr; sy <= y+sr; sy++ {
				for sx := x - sr; sx <= x+sr; sx++ {
					d := 0.
					for ty := -tr; ty <= tr; ty++ {
						for tx := -tr; tx <= tr; tx++ {
							e := at(x+tx, y+ty) - at(sx+tx, sy+ty)
							d += e * e
						}
					}
					wt := math.Exp(-d / n / h2)
					sum += wt * at(sx, sy)
					norm += wt
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8(math.Round(sum / norm))
		}
	}
	return dst
}
