// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads and validates the thermocam configuration file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/maruel/thermocam/pipeline"
	"github.com/maruel/thermocam/senxor"
	"github.com/maruel/thermocam/telemetry"
	"github.com/maruel/thermocam/thermal"
	"github.com/maruel/thermocam/web"
	"periph.io/x/periph/conn/physic"
)

// ErrInvalid wraps every validation error.
var ErrInvalid = errors.New("config: invalid")

// Duration is a time.Duration stored as a string like "1.5s".
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Sensor is the camera configuration.
type Sensor struct {
	Port             string // Empty to use the first sensor found.
	FrameRate        int    // Hz
	Filter1          bool
	Filter1Strength  int
	Filter2          bool
	Filter3          bool
	Filter3Kernel5   bool
	Sensitivity      int
	OffsetCorrection float64
	Mount            thermal.Mount
}

// Output is the size of the rendered image.
type Output struct {
	Width  int
	Height int
}

// HTTP configures the web server.
type HTTP struct {
	Port         int
	Quality      int
	PollInterval Duration
}

// MQTT configures the zone telemetry. It is disabled when Broker is empty.
type MQTT struct {
	Broker   string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
	Encoding telemetry.Encoding
	Interval Duration
}

// Config is the content of the configuration file.
type Config struct {
	Sensor     Sensor
	ROI        thermal.ROI
	Window     int
	Filter     thermal.FilterParams
	Output     Output
	RetryDelay Duration
	HTTP       HTTP
	MQTT       MQTT
}

// Default returns the default configuration.
func Default() *Config {
	s := senxor.DefaultSettings()
	return &Config{
		Sensor: Sensor{
			FrameRate:       int(s.FrameRate / physic.Hertz),
			Filter1:         s.Filter1,
			Filter1Strength: s.Filter1Strength,
			Sensitivity:     s.Sensitivity,
			Mount:           thermal.DefaultMount,
		},
		ROI:        thermal.DefaultROI,
		Window:     10,
		Filter:     thermal.DefaultFilterParams(),
		Output:     Output{Width: 600, Height: 600},
		RetryDelay: Duration(100 * time.Millisecond),
		HTTP:       HTTP{Port: 5000, Quality: 95, PollInterval: Duration(20 * time.Millisecond)},
		MQTT:       MQTT{Topic: "thermocam/zones", Encoding: telemetry.JSON, Interval: Duration(time.Second)},
	}
}

// DefaultPath returns ~/.config/thermocam/thermocam.json.
func DefaultPath() (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(usr.HomeDir, ".config", "thermocam", "thermocam.json"), nil
}

// Load reads the file at path over the defaults.
//
// A missing file is not an error. The file is normalized: it is rewritten
// when it doesn't match the canonical formatting or lacks fields, so the
// user sees every knob.
func Load(path string) (*Config, error) {
	c := Default()
	src, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if len(src) != 0 {
		if err := json.Unmarshal(src, c); err != nil {
			return nil, fmt.Errorf("config: %s is invalid json: %w", path, err)
		}
	}
	data, err := c.marshal()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(src, data) {
		if err := write(path, data); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	data, err := c.marshal()
	if err != nil {
		return err
	}
	return write(path, data)
}

// Validate returns an error wrapping ErrInvalid if c can't be used.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Settings returns the camera settings.
func (c *Config) Settings() senxor.Settings {
	return senxor.Settings{
		FrameRate:        physic.Frequency(c.Sensor.FrameRate) * physic.Hertz,
		Filter1:          c.Sensor.Filter1,
		Filter1Strength:  c.Sensor.Filter1Strength,
		Filter2:          c.Sensor.Filter2,
		Filter3:          c.Sensor.Filter3,
		Filter3Kernel5:   c.Sensor.Filter3Kernel5,
		Sensitivity:      c.Sensor.Sensitivity,
		OffsetCorrection: c.Sensor.OffsetCorrection,
	}
}

// Pipeline returns the options of the acquisition pipeline.
func (c *Config) Pipeline() pipeline.Options {
	return pipeline.Options{
		Settings:   c.Settings(),
		Mount:      c.Sensor.Mount,
		Window:     c.Window,
		Filter:     c.Filter,
		ROI:        c.ROI,
		Output:     image.Pt(c.Output.Width, c.Output.Height),
		RetryDelay: time.Duration(c.RetryDelay),
	}
}

// Web returns the options of the web server.
func (c *Config) Web() web.Options {
	return web.Options{
		Addr:         fmt.Sprintf(":%d", c.HTTP.Port),
		Quality:      c.HTTP.Quality,
		PollInterval: time.Duration(c.HTTP.PollInterval),
	}
}

// Telemetry returns the telemetry options, or false if disabled.
func (c *Config) Telemetry() (telemetry.Options, bool) {
	if c.MQTT.Broker == "" {
		return telemetry.Options{}, false
	}
	return telemetry.Options{
		Broker:   c.MQTT.Broker,
		Username: c.MQTT.Username,
		Password: c.MQTT.Password,
		Topic:    c.MQTT.Topic,
		QoS:      c.MQTT.QoS,
		Retained: c.MQTT.Retained,
		Encoding: c.MQTT.Encoding,
		Interval: time.Duration(c.MQTT.Interval),
	}, true
}

//

func (c *Config) validate() error {
	s := c.Settings()
	if err := s.Validate(); err != nil {
		return err
	}
	if c.Window < 1 {
		return thermal.ErrWindow
	}
	n, err := thermal.NewNormalizer(senxor.MI48, c.Sensor.Mount)
	if err != nil {
		return err
	}
	if err := c.ROI.Validate(n.Bounds()); err != nil {
		return err
	}
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	if c.Output.Width < 3 || c.Output.Height < 3 {
		return fmt.Errorf("output %dx%d is too small", c.Output.Width, c.Output.Height)
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry delay %s must be positive", time.Duration(c.RetryDelay))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.Quality < 1 || c.HTTP.Quality > 100 {
		return fmt.Errorf("jpeg quality %d out of range", c.HTTP.Quality)
	}
	if c.HTTP.PollInterval <= 0 {
		return fmt.Errorf("poll interval %s must be positive", time.Duration(c.HTTP.PollInterval))
	}
	if o, ok := c.Telemetry(); ok {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
