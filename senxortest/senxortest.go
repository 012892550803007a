// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package senxortest implements a fake thermal camera.
package senxortest

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maruel/thermocam/senxor"
	"periph.io/x/periph/conn/physic"
)

// Source fills a frame with temperatures.
type Source interface {
	Render(f *senxor.Frame)
}

// Constant is a Source where every sample has the same temperature.
type Constant float64

// Render implements Source.
func (c Constant) Render(f *senxor.Frame) {
	for i := range f.Data {
		f.Data[i] = float64(c)
	}
}

// SensorFake is a fake for senxor.Sensor.
//
// Read returns a frame every period as computed from the configured frame rate
// and never blocks longer than that, which makes it usable as the read timeout
// in tests.
type SensorFake struct {
	spec   senxor.Spec
	source Source

	mu        sync.Mutex
	settings  *senxor.Settings
	started   bool
	stopped   bool
	frames    uint32
	failNext  int
	stopCount int32
	stopC     chan struct{}
	onStop    func()
}

// New returns a fake MI48 rendering src. If src is nil, moving hot spots are
// rendered.
func New(src Source) *SensorFake {
	if src == nil {
		src = NewNoise(0)
	}
	return &SensorFake{spec: senxor.MI48, source: src, stopC: make(chan struct{})}
}

// Configure implements senxor.Sensor.
func (s *SensorFake) Configure(settings *senxor.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return senxor.ErrClosed
	}
	c := *settings
	s.settings = &c
	return nil
}

// Start implements senxor.Sensor.
func (s *SensorFake) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return errors.New("senxortest: Start called before Configure")
	}
	if s.stopped {
		return senxor.ErrClosed
	}
	s.started = true
	return nil
}

// Spec implements senxor.Sensor.
func (s *SensorFake) Spec() senxor.Spec {
	return s.spec
}

// Settings returns the settings last passed to Configure, or nil.
func (s *SensorFake) Settings() *senxor.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// FailNext makes the next n reads return no data.
func (s *SensorFake) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

// StopCount returns the number of times Stop released the device.
func (s *SensorFake) StopCount() int {
	return int(atomic.LoadInt32(&s.stopCount))
}

// Read implements senxor.Sensor.
func (s *SensorFake) Read() (*senxor.Frame, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, senxor.ErrClosed
	}
	if !s.started {
		s.mu.Unlock()
		return nil, errors.New("senxortest: Read called before Start")
	}
	period := periodOf(s.settings.FrameRate)
	s.mu.Unlock()

	select {
	case <-time.After(period):
	case <-s.stopC:
		return nil, senxor.ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return nil, nil
	}
	s.frames++
	f := senxor.NewFrame(s.spec)
	f.Header = senxor.Header{
		FrameCount: s.frames,
		Captured:   time.Now().UTC(),
		DieTemp:    physic.ZeroCelsius + 30*physic.Celsius,
	}
	s.source.Render(f)
	if s.settings.OffsetCorrection != 0 {
		for i := range f.Data {
			f.Data[i] += s.settings.OffsetCorrection
		}
	}
	return f, nil
}

// Stop implements senxor.Sensor.
func (s *SensorFake) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopC)
	onStop := s.onStop
	s.mu.Unlock()
	atomic.AddInt32(&s.stopCount, 1)
	if onStop != nil {
		onStop()
	}
	return nil
}

// Port is a fake serial port that can only be opened once at a time.
type Port struct {
	Source func() Source

	mu   sync.Mutex
	open *SensorFake
	last *SensorFake
}

// Register registers p as name in the senxor registry.
func (p *Port) Register(name string, number int) error {
	return senxor.Register(&senxor.Ref{Name: name, Number: number, Open: p.Open})
}

// Open opens a new fake sensor on the port. It fails if the previous one was
// not stopped.
func (p *Port) Open() (senxor.Sensor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open != nil {
		return nil, errors.New("senxortest: port busy")
	}
	var src Source
	if p.Source != nil {
		src = p.Source()
	}
	s := New(src)
	s.onStop = func() {
		p.mu.Lock()
		if p.open == s {
			p.open = nil
		}
		p.mu.Unlock()
	}
	p.open = s
	p.last = s
	return s, nil
}

// Last returns the most recently opened sensor.
func (p *Port) Last() *SensorFake {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

//

func periodOf(f physic.Frequency) time.Duration {
	if f <= 0 {
		return time.Second
	}
	return time.Duration(uint64(physic.Hertz) * uint64(time.Second) / uint64(f))
}

type vector struct {
	intensity float64
	x         float64
	y         float64
}

// Noise renders a few hot spots slowly drifting over a 25°C background.
//
// It is cheezy but gets us going for testing without a device.
type Noise struct {
	mu      sync.Mutex
	rand    *rand.Rand
	vectors []vector
}

// NewNoise returns a deterministic Noise source.
func NewNoise(seed int64) *Noise {
	n := &Noise{rand: rand.New(rand.NewSource(seed))}
	n.vectors = make([]vector, 10)
	for i := range n.vectors {
		n.vectors[i].intensity = n.rand.NormFloat64()*40 + 20
		n.vectors[i].x = n.rand.NormFloat64()*14 + 40
		n.vectors[i].y = n.rand.NormFloat64()*10 + 31
	}
	return n
}

// Render implements Source.
func (n *Noise) Render(f *senxor.Frame) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.vectors {
		n.vectors[i].intensity += n.rand.NormFloat64() * 0.1
		n.vectors[i].x += n.rand.NormFloat64() * 0.1
		n.vectors[i].y += n.rand.NormFloat64() * 0.1
	}
	const background, low, high = 25., 15., 60.
	for y := 0; y < f.Height; y++ {
		fy := float64(y)
		for x := 0; x < f.Width; x++ {
			fx := float64(x)
			value := background
			for _, v := range n.vectors {
				distance := (v.x-fx)*(v.x-fx) + (v.y-fy)*(v.y-fy) + 1
				value += v.intensity / distance
			}
			if value > high {
				value = high
			}
			if value < low {
				value = low
			}
			f.Data[y*f.Width+x] = value
		}
	}
}
