// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package senxor defines the contract with a MI48/Senxor thermal camera.
//
// The USB or serial framing to the MI48 module is provided by a transport
// registered with Register. This package only describes what the frame
// pipeline needs from a camera: configure it, start streaming, read frames
// and stop it.
package senxor

import (
	"errors"
	"fmt"

	"periph.io/x/periph/conn/physic"
)

// ErrClosed is returned by Sensor.Read once the sensor was stopped.
var ErrClosed = errors.New("senxor: sensor stopped")

// Sensor reads and controls a thermal camera. This interface can be mocked.
type Sensor interface {
	Configure(s *Settings) error // Configure applies s. Must be called before Start.
	Start() error                // Start begins streaming frames with their header.
	Spec() Spec                  // Spec returns the fixed geometry of the sensor.
	// Read blocks until a frame is available or the driver timeout expires.
	//
	// A nil frame with a nil error means no data was received; the caller is
	// expected to retry.
	Read() (*Frame, error)
	Stop() error // Stop halts streaming and releases the device.
}

// Spec describes the sensor geometry.
type Spec struct {
	Name   string
	Width  int  // Number of columns sent per frame.
	Height int  // Number of rows sent per frame.
	HFlip  bool // The sensor sends rows mirrored horizontally.
}

// MI48 is the geometry of a MI48 module with a 80x62 array.
var MI48 = Spec{Name: "MI48", Width: 80, Height: 62, HFlip: true}

// Settings is the configuration sent to the camera before streaming.
type Settings struct {
	FrameRate        physic.Frequency // Default: 25Hz
	Filter1          bool             // Temporal filter. Default: enabled
	Filter1Strength  int              // Default: 85
	Filter2          bool             // Rolling average filter. Default: disabled
	Filter3          bool             // Median filter. Default: disabled
	Filter3Kernel5   bool             // Use a 5x5 kernel for filter 3 instead of 3x3.
	Sensitivity      int              // Percent. Default: 100
	OffsetCorrection float64          // °C added to every sample. Default: 0
}

// DefaultSettings returns the settings used to watch a heated bed.
func DefaultSettings() Settings {
	return Settings{
		FrameRate:       25 * physic.Hertz,
		Filter1:         true,
		Filter1Strength: 85,
		Sensitivity:     100,
	}
}

// Validate returns an error if the camera would reject s.
func (s *Settings) Validate() error {
	if s.FrameRate <= 0 || s.FrameRate > 30*physic.Hertz {
		return fmt.Errorf("senxor: frame rate %s out of range", s.FrameRate)
	}
	if s.Filter1Strength < 0 || s.Filter1Strength > 255 {
		return fmt.Errorf("senxor: filter 1 strength %d out of range", s.Filter1Strength)
	}
	if s.Sensitivity <= 0 || s.Sensitivity > 255 {
		return fmt.Errorf("senxor: sensitivity %d out of range", s.Sensitivity)
	}
	return nil
}
