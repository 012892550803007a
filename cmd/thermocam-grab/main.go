// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// thermocam-grab captures a single annotated image.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/maruel/thermocam/broadcast"
	"github.com/maruel/thermocam/pipeline"
	"github.com/maruel/thermocam/senxortest"
	"github.com/maruel/thermocam/thermal"
)

func mainImpl() error {
	sensor := flag.String("sensor", "", "sensor to use")
	fake := flag.Bool("fake", false, "use a fake camera")
	n := flag.Int("n", 10, "frames to read before saving, to let the range settle")
	quality := flag.Int("q", 95, "JPEG quality")
	meta := flag.Bool("meta", false, "print metadata")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	var w io.Writer = io.Discard
	if *verbose {
		w = os.Stderr
	}
	log := slog.New(slog.NewTextHandler(w, nil))

	if flag.NArg() != 1 {
		return errors.New("supply path to JPEG to save")
	}
	if *n < 1 {
		return errors.New("-n must be at least 1")
	}
	if *fake {
		p := &senxortest.Port{}
		if err := p.Register("fake", 1000); err != nil {
			return err
		}
	}

	opts := pipeline.DefaultOptions()
	p, err := pipeline.Open(*sensor, &opts, log)
	if err != nil {
		return fmt.Errorf("%w\nIf testing without hardware, use -fake to simulate a camera", err)
	}
	defer p.Stop()
	if err := p.Start(context.Background()); err != nil {
		return err
	}
	f, err := wait(p, uint64(*n), time.Duration(*n)*time.Second)
	if err != nil {
		return err
	}
	if *meta {
		fmt.Printf("Seq:      %d\n", f.Seq)
		fmt.Printf("Captured: %s\n", f.Captured)
		fmt.Printf("Range:    %s\n", f.Range)
		for _, z := range thermal.Zones {
			fmt.Printf("%-9s %.2f°C\n", z.String()+":", f.Zones[z])
		}
	}
	data, err := broadcast.EncodeJPEG(f.Img, *quality)
	if err != nil {
		return err
	}
	return os.WriteFile(flag.Args()[0], data, 0644)
}

// wait returns the n-th frame published by p.
func wait(p *pipeline.Pipeline, n uint64, timeout time.Duration) (*broadcast.Frame, error) {
	got := make(chan *broadcast.Frame, 1)
	cancel := p.OnFrame(func(f *broadcast.Frame) {
		if f.Seq >= n {
			select {
			case got <- f:
			default:
			}
		}
	})
	defer cancel()
	select {
	case f := <-got:
		return f, nil
	case <-p.Done():
		if err := p.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("sensor disconnected")
	case <-time.After(timeout):
		return nil, fmt.Errorf("timed out after %s; %s", timeout, p.Stats())
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nthermocam-grab: %s.\n", err)
		os.Exit(1)
	}
}
