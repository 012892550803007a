// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package broadcast hands the latest rendered frame over to consumers.
//
// There is a single slot. Publish replaces it and consumers only ever see the
// most recent frame: a slow consumer skips frames instead of queueing them,
// since for a live feed staleness matters, not completeness.
package broadcast

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maruel/thermocam/rgb24"
	"github.com/maruel/thermocam/thermal"
)

// Frame is a rendered frame along the data it was rendered from.
type Frame struct {
	Img      *rgb24.Image
	Zones    thermal.ZoneTemperatures
	Range    thermal.Range
	Seq      uint64    // Set by Publish; 1 for the first frame.
	Captured time.Time // When the sensor captured the raw frame.
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	out := *f
	if f.Img != nil {
		out.Img = f.Img.Clone()
	}
	return &out
}

// Stats is a snapshot of the broadcaster counters.
type Stats struct {
	Published   uint64
	Subscribers []SubscriberStats
}

// SubscriberStats counts what a subscriber received.
type SubscriberStats struct {
	Name      string
	Delivered uint64
	Dropped   uint64 // Frames replaced in the mailbox before being delivered.
}

// Broadcaster holds the latest published frame.
//
// The lock is only held to swap the slot or copy out of it, never while a
// frame is rendered or sent over the network.
type Broadcaster struct {
	mu     sync.RWMutex
	latest *Frame
	seq    uint64

	closeOnce sync.Once
	done      chan struct{}

	subsMu sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

// New returns an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{done: make(chan struct{}), subs: map[int]*subscriber{}}
}

// Publish moves f into the slot, replacing the previous frame, and notifies
// the subscribers.
//
// The caller must not modify f afterward. It is a no-op after Close.
func (b *Broadcaster) Publish(f *Frame) {
	if b.isClosed() {
		return
	}
	b.mu.Lock()
	b.seq++
	f.Seq = b.seq
	b.latest = f
	b.mu.Unlock()

	b.subsMu.Lock()
	for _, s := range b.subs {
		s.offer(f)
	}
	b.subsMu.Unlock()
}

// Snapshot returns a copy of the latest frame, or false if nothing was
// published yet. It never blocks on the producer for longer than a copy.
func (b *Broadcaster) Snapshot() (*Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return nil, false
	}
	return b.latest.Clone(), true
}

// Peek returns the latest frame without its image, or false if nothing was
// published yet. It is cheaper than Snapshot when only the temperatures are
// needed.
func (b *Broadcaster) Peek() (Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return Frame{}, false
	}
	out := *b.latest
	out.Img = nil
	return out, true
}

// Seq returns the sequence number of the latest frame, 0 if none.
func (b *Broadcaster) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// snapshotAfter returns a copy of the latest frame only if it is newer than
// seq.
func (b *Broadcaster) snapshotAfter(seq uint64) (*Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil || b.seq == seq {
		return nil, false
	}
	return b.latest.Clone(), true
}

// Subscribe calls fn with a private copy of each newly published frame.
//
// fn runs on its own goroutine with a one frame mailbox, so a slow fn misses
// frames but never delays Publish. The returned function unsubscribes; it is
// safe to call more than once.
func (b *Broadcaster) Subscribe(name string, fn func(f *Frame)) func() {
	s := &subscriber{name: name, fn: fn, mailbox: make(chan *Frame, 1), quit: make(chan struct{})}
	b.subsMu.Lock()
	if b.isClosed() {
		b.subsMu.Unlock()
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.subsMu.Unlock()
	go s.run()
	return func() {
		b.subsMu.Lock()
		delete(b.subs, id)
		b.subsMu.Unlock()
		s.stop()
	}
}

// Done returns a channel closed once Close was called.
func (b *Broadcaster) Done() <-chan struct{} {
	return b.done
}

// Close stops the subscribers and ends the streams. It is safe to call more
// than once, including from a subscriber callback. The latest frame is still
// available via Snapshot.
//
// Close doesn't wait for a callback already running to return; no callback
// starts after Close.
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() {
		b.subsMu.Lock()
		close(b.done)
		for id, s := range b.subs {
			delete(b.subs, id)
			s.stop()
		}
		b.subsMu.Unlock()
	})
}

// Stats returns the counters.
func (b *Broadcaster) Stats() Stats {
	out := Stats{Published: b.Seq()}
	b.subsMu.Lock()
	for _, s := range b.subs {
		out.Subscribers = append(out.Subscribers, SubscriberStats{
			Name:      s.name,
			Delivered: atomic.LoadUint64(&s.delivered),
			Dropped:   atomic.LoadUint64(&s.dropped),
		})
	}
	b.subsMu.Unlock()
	sort.Slice(out.Subscribers, func(i, j int) bool { return out.Subscribers[i].Name < out.Subscribers[j].Name })
	return out
}

func (b *Broadcaster) isClosed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

//

type subscriber struct {
	name      string
	fn        func(f *Frame)
	mailbox   chan *Frame
	quit      chan struct{}
	stopOnce  sync.Once
	delivered uint64
	dropped   uint64
}

// offer puts f in the mailbox, evicting an undelivered frame. Only the
// publisher calls it, so the second send can't block.
func (s *subscriber) offer(f *Frame) {
	select {
	case s.mailbox <- f:
		return
	default:
	}
	select {
	case <-s.mailbox:
		atomic.AddUint64(&s.dropped, 1)
	default:
	}
	select {
	case s.mailbox <- f:
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.quit:
			return
		case f := <-s.mailbox:
			// Both channels may be ready; quit wins.
			select {
			case <-s.quit:
				return
			default:
			}
			// The published frame is shared with Snapshot readers; copy it
			// here, off the publisher goroutine.
			s.fn(f.Clone())
			atomic.AddUint64(&s.delivered, 1)
		}
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}
