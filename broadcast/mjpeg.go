// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package broadcast

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"iter"
	"time"

	"github.com/maruel/thermocam/rgb24"
)

// Boundary separates the parts of the MJPEG stream.
const Boundary = "frame"

// ContentType is the Content-Type of the MJPEG HTTP response.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// PartHeader is written before each JPEG in the stream.
const PartHeader = "--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n"

// Options configures Stream.
type Options struct {
	PollInterval time.Duration // Default: 20ms
	Quality      int           // JPEG quality. Default: 95
}

func (o *Options) defaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 20 * time.Millisecond
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 95
	}
}

// EncodeJPEG returns img encoded as a JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if i, ok := img.(*rgb24.Image); ok {
		// The encoder has a fast path for *image.RGBA.
		img = i.ToRGBA()
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePart returns one part of the MJPEG stream containing img.
func EncodePart(img image.Image, quality int) ([]byte, error) {
	j, err := EncodeJPEG(img, quality)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(PartHeader)+len(j)+2)
	out = append(out, PartHeader...)
	out = append(out, j...)
	return append(out, '\r', '\n'), nil
}

// Stream returns the MJPEG parts of the frames as they are published.
//
// It polls Snapshot every PollInterval and only encodes a frame that wasn't
// already sent; the lock is released before encoding. The sequence ends when
// ctx is done, the Broadcaster is closed or the consumer stops iterating. A
// frame that fails to encode is skipped.
func (b *Broadcaster) Stream(ctx context.Context, opts Options) iter.Seq[[]byte] {
	opts.defaults()
	return func(yield func([]byte) bool) {
		t := time.NewTimer(opts.PollInterval)
		defer t.Stop()
		var last uint64
		for {
			if ctx.Err() != nil || b.isClosed() {
				return
			}
			if f, ok := b.snapshotAfter(last); ok {
				last = f.Seq
				if part, err := EncodePart(f.Img, opts.Quality); err == nil {
					if !yield(part) {
						return
					}
					continue
				}
			}
			t.Reset(opts.PollInterval)
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case <-t.C:
			}
		}
	}
}
