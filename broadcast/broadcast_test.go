// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package broadcast

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/maruel/thermocam/rgb24"
	"github.com/maruel/thermocam/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(w, h int, v uint8) *Frame {
	img := rgb24.New(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return &Frame{Img: img, Zones: thermal.ZoneTemperatures{float64(v)}}
}

func TestSnapshot(t *testing.T) {
	b := New()
	defer b.Close()
	_, ok := b.Snapshot()
	assert.False(t, ok)
	_, ok = b.Peek()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), b.Seq())

	f := uniform(4, 4, 7)
	want := f.Img.Clone()
	b.Publish(f)
	for i := 0; i < 3; i++ {
		got, ok := b.Snapshot()
		require.True(t, ok)
		assert.Equal(t, want.Pix, got.Img.Pix)
		assert.Equal(t, uint64(1), got.Seq)
		// Copies are private.
		got.Img.Pix[0] = 99
	}

	b.Publish(uniform(4, 4, 8))
	peek, ok := b.Peek()
	require.True(t, ok)
	assert.Nil(t, peek.Img)
	assert.Equal(t, uint64(2), peek.Seq)
	assert.Equal(t, 8., peek.Zones[thermal.Top])
	got, ok := b.Snapshot()
	require.True(t, ok)
	assert.Equal(t, uint8(8), got.Img.Pix[0])
	assert.Equal(t, uint64(2), got.Seq)
}

func TestConcurrent(t *testing.T) {
	const frames = 200
	const readers = 8
	b := New()
	defer b.Close()
	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				f, ok := b.Snapshot()
				if !ok {
					continue
				}
				v := f.Img.Pix[0]
				if int(v) >= frames {
					errs <- "unknown frame"
					return
				}
				for _, p := range f.Img.Pix {
					if p != v {
						errs <- "torn frame"
						return
					}
				}
			}
		}()
	}
	for i := 0; i < frames; i++ {
		b.Publish(uniform(64, 64, uint8(i)))
	}
	close(stop)
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
	assert.Equal(t, uint64(frames), b.Seq())
}

func TestSubscribe(t *testing.T) {
	b := New()
	got := make(chan *Frame, 10)
	cancel := b.Subscribe("display", func(f *Frame) { got <- f })
	f := uniform(2, 2, 1)
	b.Publish(f)
	select {
	case g := <-got:
		assert.Equal(t, uint64(1), g.Seq)
		assert.Equal(t, f.Img.Pix, g.Img.Pix)
		assert.NotSame(t, f.Img, g.Img)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")
	}
	cancel()
	cancel()
	b.Publish(uniform(2, 2, 2))
	select {
	case <-got:
		t.Fatal("notified after cancel")
	case <-time.After(50 * time.Millisecond):
	}
	b.Close()
	b.Close()
	// No-op once closed.
	b.Subscribe("late", func(f *Frame) { t.Error("unexpected") })()
	b.Publish(uniform(2, 2, 3))
	assert.Equal(t, uint64(2), b.Seq())
}

func TestClose_fromSubscriber(t *testing.T) {
	b := New()
	closed := make(chan struct{})
	b.Subscribe("display", func(f *Frame) {
		b.Close()
		close(closed)
	})
	b.Publish(uniform(2, 2, 1))
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close from a callback didn't return")
	}
	b.Close()
	select {
	case <-b.Done():
	default:
		t.Fatal("not closed")
	}
}

func TestSubscribe_slow(t *testing.T) {
	b := New()
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []uint64
	b.Subscribe("slow", func(f *Frame) {
		<-release
		mu.Lock()
		seen = append(seen, f.Seq)
		mu.Unlock()
	})
	start := time.Now()
	for i := 0; i < 50; i++ {
		b.Publish(uniform(2, 2, uint8(i)))
	}
	// Publish never waited on the blocked subscriber.
	assert.Less(t, time.Since(start), time.Second)
	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == 50
	}, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		s := b.Stats().Subscribers[0]
		return s.Dropped+s.Delivered == 50
	}, 5*time.Second, time.Millisecond)
	s := b.Stats()
	require.Len(t, s.Subscribers, 1)
	assert.Equal(t, uint64(50), s.Published)
	assert.Equal(t, "slow", s.Subscribers[0].Name)
	assert.Greater(t, s.Subscribers[0].Dropped, uint64(0))
	b.Close()
}

func TestStream(t *testing.T) {
	b := New()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Publish(uniform(40, 30, 128))

	n := 0
	for part := range b.Stream(ctx, Options{PollInterval: time.Millisecond}) {
		require.True(t, bytes.HasPrefix(part, []byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")))
		require.True(t, bytes.HasSuffix(part, []byte("\r\n")))
		img, err := jpeg.Decode(bytes.NewReader(part[len(PartHeader) : len(part)-2]))
		require.NoError(t, err)
		if n == 0 {
			assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
			b.Publish(uniform(20, 10, 64))
		} else {
			assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())
			break
		}
		n++
	}
	assert.Equal(t, 1, n)
}

func TestStream_empty(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	// Nothing published: the stream waits without yielding then ends with ctx.
	for range b.Stream(ctx, Options{PollInterval: time.Millisecond}) {
		t.Fatal("unexpected part")
	}
	b.Close()
}

func TestStream_close(t *testing.T) {
	b := New()
	b.Publish(uniform(8, 8, 1))
	done := make(chan int)
	go func() {
		n := 0
		for range b.Stream(context.Background(), Options{PollInterval: time.Hour}) {
			n++
		}
		done <- n
	}()
	time.Sleep(10 * time.Millisecond)
	b.Close()
	select {
	case n := <-done:
		assert.Equal(t, 1, n)
	case <-time.After(5 * time.Second):
		t.Fatal("stream didn't end on Close")
	}
}
