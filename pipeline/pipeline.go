// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pipeline runs the acquisition loop: it reads raw frames from a
// sensor, turns them into annotated images and publishes them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/maruel/thermocam/broadcast"
	"github.com/maruel/thermocam/rgb24"
	"github.com/maruel/thermocam/senxor"
	"github.com/maruel/thermocam/thermal"
)

// Options configures a Pipeline.
type Options struct {
	Settings   senxor.Settings
	Mount      thermal.Mount
	Window     int // Samples averaged by the range stabilizer.
	Filter     thermal.FilterParams
	ROI        thermal.ROI
	Output     image.Point   // Size of the rendered image.
	RetryDelay time.Duration // Wait after a read returned no frame.
}

// DefaultOptions returns the options for a MI48 looking down at a heated bed.
func DefaultOptions() Options {
	return Options{
		Settings:   senxor.DefaultSettings(),
		Mount:      thermal.DefaultMount,
		Window:     10,
		Filter:     thermal.DefaultFilterParams(),
		ROI:        thermal.DefaultROI,
		Output:     image.Pt(600, 600),
		RetryDelay: 100 * time.Millisecond,
	}
}

// Stats counts what happened in the acquisition loop.
type Stats struct {
	Frames     uint64 // Valid frames read.
	EmptyReads uint64 // Reads that returned no frame.
	ReadErrors uint64
	Published  uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("%d frames, %d empty reads, %d read errors, %d published", s.Frames, s.EmptyReads, s.ReadErrors, s.Published)
}

// Pipeline owns a sensor and the stages that process its frames.
type Pipeline struct {
	sensor senxor.Sensor
	opts   Options
	log    *slog.Logger
	id     uuid.UUID

	stab   *thermal.Stabilizer
	norm   *thermal.Normalizer
	filter *thermal.Filter
	render *thermal.Renderer
	bc     *broadcast.Broadcaster

	frames     atomic.Uint64
	emptyReads atomic.Uint64
	readErrors atomic.Uint64
	published  atomic.Uint64

	running     atomic.Bool
	mu          sync.Mutex
	started     bool
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
	releaseOnce sync.Once
	releaseErr  error
}

// Open opens the sensor on port, "" for the first one found, and returns a
// Pipeline for it.
func Open(port string, opts *Options, log *slog.Logger) (*Pipeline, error) {
	s, err := senxor.Open(port)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to open sensor: %w", err)
	}
	return New(s, opts, log)
}

// New validates opts, configures s and starts streaming.
//
// The Pipeline takes ownership of s; it is stopped by Stop, or before
// returning if New fails.
func New(s senxor.Sensor, opts *Options, log *slog.Logger) (*Pipeline, error) {
	p, err := newPipeline(s, opts, log)
	if err != nil {
		_ = s.Stop()
		return nil, err
	}
	return p, nil
}

func newPipeline(s senxor.Sensor, opts *Options, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.Default()
	}
	stab, err := thermal.NewStabilizer(opts.Window)
	if err != nil {
		return nil, err
	}
	norm, err := thermal.NewNormalizer(s.Spec(), opts.Mount)
	if err != nil {
		return nil, err
	}
	if err := opts.ROI.Validate(norm.Bounds()); err != nil {
		return nil, err
	}
	filter, err := thermal.NewFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	if opts.Output.X < 3 || opts.Output.Y < 3 {
		return nil, fmt.Errorf("pipeline: output size %s is too small", opts.Output)
	}
	if err := s.Configure(&opts.Settings); err != nil {
		return nil, fmt.Errorf("pipeline: failed to configure %s: %w", s.Spec().Name, err)
	}
	if err := s.Start(); err != nil {
		return nil, fmt.Errorf("pipeline: failed to start %s: %w", s.Spec().Name, err)
	}
	id := uuid.New()
	p := &Pipeline{
		sensor: s,
		opts:   *opts,
		log:    log.With("session", id.String()),
		id:     id,
		stab:   stab,
		norm:   norm,
		filter: filter,
		render: thermal.NewRenderer(),
		bc:     broadcast.New(),
		done:   make(chan struct{}),
	}
	if p.opts.RetryDelay <= 0 {
		p.opts.RetryDelay = 100 * time.Millisecond
	}
	p.log.Info("sensor started", "sensor", s.Spec().Name, "fps", opts.Settings.FrameRate.String(), "roi", opts.ROI.Rect().String())
	return p, nil
}

// ID identifies this run of the sensor in logs and telemetry.
func (p *Pipeline) ID() uuid.UUID {
	return p.id
}

// Broadcaster returns where the frames are published.
func (p *Pipeline) Broadcaster() *broadcast.Broadcaster {
	return p.bc
}

// OnFrame calls fn with a copy of every frame published, on a goroutine of
// its own. The returned function stops the notifications.
func (p *Pipeline) OnFrame(fn func(f *broadcast.Frame)) func() {
	return p.bc.Subscribe("display", fn)
}

// Stats returns the loop counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:     p.frames.Load(),
		EmptyReads: p.emptyReads.Load(),
		ReadErrors: p.readErrors.Load(),
		Published:  p.published.Load(),
	}
}

// Start starts the acquisition loop. Cancelling ctx is equivalent to calling
// Stop, except that it doesn't wait.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return errors.New("pipeline: already stopped")
	}
	if p.started {
		return errors.New("pipeline: already started")
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.running.Store(true)
	go p.run(ctx)
	return nil
}

// Stop ends the loop, waits for it to exit, closes the broadcaster and
// releases the sensor. It is safe to call more than once.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	p.stopped = true
	started := p.started
	cancel := p.cancel
	p.mu.Unlock()
	p.running.Store(false)
	if started {
		cancel()
		<-p.done
	}
	return p.release()
}

// Done returns a channel closed once the loop exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that ended the loop, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Process turns a raw frame into a rendered frame, advancing the range
// stabilizer. A frame with the wrong resolution is rejected before it can
// affect the range.
func (p *Pipeline) Process(raw *senxor.Frame) (*broadcast.Frame, error) {
	if err := p.norm.Check(raw); err != nil {
		return nil, err
	}
	rng := p.stab.Update(raw.Min(), raw.Max())
	n, err := p.norm.Normalize(raw, rng)
	if err != nil {
		return nil, err
	}
	filtered := p.filter.Apply(n)
	zones := thermal.Extract(filtered, p.opts.ROI)
	img := rgb24.FromRGBA(thermal.Resize(thermal.Colorize(filtered.Gray, p.opts.ROI.Rect()), p.opts.Output))
	if err := p.render.Render(img, zones); err != nil {
		return nil, err
	}
	return &broadcast.Frame{Img: img, Zones: zones, Range: rng, Captured: raw.Captured}, nil
}

//

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	defer func() {
		if err := p.release(); err != nil {
			p.log.Warn("failed to stop sensor", "err", err)
		}
	}()
	// Only log when the read outcome changes to not flood the log at the
	// frame rate.
	healthy := true
	for p.running.Load() && ctx.Err() == nil {
		raw, err := p.sensor.Read()
		if errors.Is(err, senxor.ErrClosed) {
			p.log.Info("sensor closed")
			return
		}
		if err != nil || raw == nil {
			if err != nil {
				p.readErrors.Add(1)
			} else {
				p.emptyReads.Add(1)
			}
			if healthy {
				p.log.Warn("no frame from sensor, retrying", "err", err, "delay", p.opts.RetryDelay)
				healthy = false
			}
			select {
			case <-ctx.Done():
			case <-time.After(p.opts.RetryDelay):
			}
			continue
		}
		if !healthy {
			p.log.Info("sensor recovered")
			healthy = true
		}
		p.frames.Add(1)
		f, err := p.Process(raw)
		if err != nil {
			if errors.Is(err, thermal.ErrResolution) {
				p.log.Error("wrong sensor configuration", "err", err)
				p.mu.Lock()
				p.err = err
				p.mu.Unlock()
				return
			}
			p.log.Warn("dropping frame", "frame", raw.FrameCount, "err", err)
			continue
		}
		p.bc.Publish(f)
		p.published.Add(1)
		p.log.Debug("frame", "frame", raw.FrameCount, "range", f.Range.String())
	}
}

// release closes the broadcaster and stops the sensor, once.
func (p *Pipeline) release() error {
	p.releaseOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		started := p.started
		p.mu.Unlock()
		if !started {
			close(p.done)
		}
		p.running.Store(false)
		p.bc.Close()
		p.releaseErr = p.sensor.Stop()
		p.log.Info("sensor released", "stats", p.Stats().String())
	})
	return p.releaseErr
}
