// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package telemetry publishes the zone temperatures to a MQTT broker.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/maruel/thermocam/broadcast"
)

// Encoding is the payload format.
type Encoding string

// Valid values for Encoding.
const (
	JSON Encoding = "json"
	CBOR Encoding = "cbor"
)

// Options configures the Emitter and its connection.
type Options struct {
	Broker   string // e.g. "tcp://localhost:1883"
	ClientID string // Default: "thermocam-<uuid>"
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
	Encoding Encoding
	Interval time.Duration // Minimum time between two messages.
	Timeout  time.Duration // Default: 2s
}

// Validate returns an error if o can't be used.
func (o *Options) Validate() error {
	if o.Broker == "" {
		return errors.New("telemetry: broker is required")
	}
	if o.Topic == "" {
		return errors.New("telemetry: topic is required")
	}
	if o.QoS > 2 {
		return fmt.Errorf("telemetry: invalid QoS %d", o.QoS)
	}
	switch o.Encoding {
	case JSON, CBOR:
	default:
		return fmt.Errorf("telemetry: unknown encoding %q", o.Encoding)
	}
	if o.Interval < 0 {
		return fmt.Errorf("telemetry: negative interval %s", o.Interval)
	}
	return nil
}

// Message is the payload sent for a frame.
type Message struct {
	Session  string             `json:"session" cbor:"session"`
	Seq      uint64             `json:"seq" cbor:"seq"`
	Captured time.Time          `json:"captured" cbor:"captured"`
	Min      float64            `json:"min" cbor:"min"`
	Max      float64            `json:"max" cbor:"max"`
	Zones    map[string]float64 `json:"zones" cbor:"zones"`
}

// NewMessage returns the telemetry for f.
func NewMessage(session string, f *broadcast.Frame) *Message {
	return &Message{
		Session:  session,
		Seq:      f.Seq,
		Captured: f.Captured,
		Min:      f.Range.Min,
		Max:      f.Range.Max,
		Zones:    f.Zones.Map(),
	}
}

// Encode serializes m.
func (m *Message) Encode(e Encoding) ([]byte, error) {
	switch e {
	case JSON:
		return json.Marshal(m)
	case CBOR:
		return cbor.Marshal(m)
	default:
		return nil, fmt.Errorf("telemetry: unknown encoding %q", e)
	}
}

// Publisher is the part of mqtt.Client used by the Emitter. This interface
// can be mocked.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Connect connects to the broker in o.
//
// The client reconnects on its own when the connection is lost.
func Connect(o *Options, log *slog.Logger) (mqtt.Client, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	id := o.ClientID
	if id == "" {
		id = "thermocam-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(id)
	opts.SetUsername(o.Username)
	opts.SetPassword(o.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		log.Info("mqtt connected", "broker", o.Broker, "client_id", id)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "broker", o.Broker, "err", err)
	}
	c := mqtt.NewClient(opts)
	t := c.Connect()
	if !t.WaitTimeout(timeout(o)) {
		return nil, fmt.Errorf("telemetry: timed out connecting to %s", o.Broker)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("telemetry: failed to connect to %s: %w", o.Broker, err)
	}
	return c, nil
}

// Stats counts the messages.
type Stats struct {
	Sent      uint64
	Throttled uint64
	Errors    uint64
}

// Emitter sends one message per frame, at most once per Interval.
type Emitter struct {
	pub     Publisher
	opts    Options
	session string
	log     *slog.Logger

	mu   sync.Mutex
	last time.Time

	sent      atomic.Uint64
	throttled atomic.Uint64
	errors    atomic.Uint64
}

// New returns an Emitter publishing to pub. session identifies the pipeline
// run in the messages.
func New(pub Publisher, o *Options, session string, log *slog.Logger) (*Emitter, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{pub: pub, opts: *o, session: session, log: log.With("topic", o.Topic)}, nil
}

// Attach sends the frames published on b until the returned function is
// called or b is closed.
func (e *Emitter) Attach(b *broadcast.Broadcaster) func() {
	return b.Subscribe("telemetry", func(f *broadcast.Frame) {
		if err := e.Send(f); err != nil {
			e.log.Warn("failed to publish telemetry", "seq", f.Seq, "err", err)
		}
	})
}

// Send publishes the zone temperatures of f, unless the previous message was
// less than Interval ago as measured on the capture timestamps.
func (e *Emitter) Send(f *broadcast.Frame) error {
	ts := f.Captured
	if ts.IsZero() {
		ts = time.Now()
	}
	e.mu.Lock()
	if !e.last.IsZero() && ts.Sub(e.last) < e.opts.Interval {
		e.mu.Unlock()
		e.throttled.Add(1)
		return nil
	}
	e.last = ts
	e.mu.Unlock()

	payload, err := NewMessage(e.session, f).Encode(e.opts.Encoding)
	if err != nil {
		e.errors.Add(1)
		return err
	}
	t := e.pub.Publish(e.opts.Topic, e.opts.QoS, e.opts.Retained, payload)
	if !t.WaitTimeout(timeout(&e.opts)) {
		e.errors.Add(1)
		return errors.New("telemetry: publish timed out")
	}
	if err := t.Error(); err != nil {
		e.errors.Add(1)
		return fmt.Errorf("telemetry: publish failed: %w", err)
	}
	e.sent.Add(1)
	e.log.Debug("telemetry sent", "seq", f.Seq, "size", len(payload))
	return nil
}

// Stats returns the counters.
func (e *Emitter) Stats() Stats {
	return Stats{Sent: e.sent.Load(), Throttled: e.throttled.Load(), Errors: e.errors.Load()}
}

func timeout(o *Options) time.Duration {
	if o.Timeout <= 0 {
		return 2 * time.Second
	}
	return o.Timeout
}
