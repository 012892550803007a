// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// thermocam-query lists the sensors and reads a frame to print its header.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/maruel/thermocam/senxor"
	"github.com/maruel/thermocam/senxortest"
)

func mainImpl() error {
	name := flag.String("sensor", "", "sensor to query")
	fake := flag.Bool("fake", false, "use a fake camera")
	list := flag.Bool("list", false, "list the sensors and exit")
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}
	if *fake {
		p := &senxortest.Port{}
		if err := p.Register("fake", 1000); err != nil {
			return err
		}
	}
	if *list {
		for _, r := range senxor.All() {
			fmt.Printf("%-10s %d\n", r.Name, r.Number)
		}
		return nil
	}

	s, err := senxor.Open(*name)
	if err != nil {
		return err
	}
	defer s.Stop()
	settings := senxor.DefaultSettings()
	if err := s.Configure(&settings); err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	var f *senxor.Frame
	for i := 0; i < 10 && f == nil; i++ {
		if f, err = s.Read(); err != nil {
			return err
		}
	}
	if f == nil {
		return fmt.Errorf("no frame from %s", s.Spec().Name)
	}
	spec := s.Spec()
	fmt.Printf("Sensor:     %s\n", spec.Name)
	fmt.Printf("Resolution: %dx%d\n", spec.Width, spec.Height)
	fmt.Printf("FrameRate:  %s\n", settings.FrameRate)
	fmt.Printf("FrameCount: %d\n", f.FrameCount)
	fmt.Printf("DieTemp:    %s\n", f.DieTemp)
	fmt.Printf("Min:        %.2f°C\n", f.Min())
	fmt.Printf("Max:        %.2f°C\n", f.Max())
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nthermocam-query: %s.\n", err)
		os.Exit(1)
	}
}
