// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// thermocam streams a thermal camera watching a heated bed.
//
// The annotated video is served as MJPEG on /video_feed, with the zone
// temperatures on /zones, the counters on /metrics and optionally sent to a MQTT broker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"github.com/maruel/interrupt"
	"github.com/maruel/thermocam/broadcast"
	"github.com/maruel/thermocam/config"
	"github.com/maruel/thermocam/pipeline"
	"github.com/maruel/thermocam/senxortest"
	"github.com/maruel/thermocam/telemetry"
	"github.com/maruel/thermocam/thermal"
	"github.com/maruel/thermocam/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// errReload is returned by run when the configuration file changed.
var errReload = errors.New("configuration changed")

type overrides struct {
	sensor string
	port   int
}

func (o *overrides) apply(c *config.Config) {
	if o.sensor != "" {
		c.Sensor.Port = o.sensor
	}
	if o.port != 0 {
		c.HTTP.Port = o.port
	}
}

func mainImpl() error {
	defPath, _ := config.DefaultPath()
	cpuprofile := flag.String("cpuprofile", "", "dump CPU profile in file")
	path := flag.String("config", defPath, "configuration file")
	writeConfig := flag.Bool("writeConfig", false, "write the default config file and exit")
	fake := flag.Bool("fake", false, "use a fake camera")
	verbose := flag.Bool("v", false, "verbose mode")
	var o overrides
	flag.StringVar(&o.sensor, "sensor", "", "sensor to use, overrides the config file")
	flag.IntVar(&o.port, "port", 0, "http port to listen on, overrides the config file")
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}
	if *path == "" {
		return errors.New("-config is required")
	}
	if *writeConfig {
		return config.Default().Save(*path)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *fake {
		p := &senxortest.Port{}
		if err := p.Register("fake", 1000); err != nil {
			return err
		}
	}

	interrupt.HandleCtrlC()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-interrupt.Channel
		cancel()
	}()

	for !interrupt.IsSet() {
		c, err := config.Load(*path)
		if err != nil {
			return err
		}
		o.apply(c)
		if err := c.Validate(); err != nil {
			return err
		}
		if err = run(ctx, c, *path, log); err != errReload {
			return err
		}
		log.Info("restarting with the new configuration", "path", *path)
	}
	return nil
}

// run streams the camera until ctx is done, the configuration file at path
// changes or something fails.
func run(ctx context.Context, c *config.Config, path string, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := c.Pipeline()
	p, err := pipeline.Open(c.Sensor.Port, &opts, log)
	if err != nil {
		return fmt.Errorf("%w\nIf testing without hardware, use -fake to simulate a camera", err)
	}
	defer p.Stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), p.Collector())

	var latest atomic.Pointer[broadcast.Frame]
	p.OnFrame(func(f *broadcast.Frame) {
		latest.Store(f)
	})

	var emitter *telemetry.Emitter
	if to, ok := c.Telemetry(); ok {
		client, err := telemetry.Connect(&to, log)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		if emitter, err = telemetry.New(client, &to, p.ID().String(), log); err != nil {
			return err
		}
		defer emitter.Attach(p.Broadcaster())()
		reg.MustRegister(emitter.Collector())
	}

	wo := c.Web()
	wo.Registry = reg
	srv := web.New(p.Broadcaster(), &wo, log)
	webErr := make(chan error, 1)
	go func() {
		webErr <- srv.Run(ctx)
	}()
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- watchFile(ctx, path)
	}()
	if err := p.Start(ctx); err != nil {
		cancel()
		<-webErr
		return err
	}

	// Stopping the web server needs ctx to be cancelled first.
	shutdown := func(err error) error {
		cancel()
		if err2 := <-webErr; err == nil {
			err = err2
		}
		fmt.Print("\n")
		return err
	}
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return shutdown(nil)
		case err := <-webErr:
			webErr <- err
			return shutdown(err)
		case <-p.Done():
			if err := p.Err(); err != nil {
				return shutdown(err)
			}
			return shutdown(errors.New("sensor disconnected"))
		case err := <-watchErr:
			if ctx.Err() != nil {
				return shutdown(nil)
			}
			if err != nil {
				return shutdown(err)
			}
			return shutdown(errReload)
		case <-t.C:
			printStatus(p.Stats(), latest.Load(), emitter)
		}
	}
}

func printStatus(s pipeline.Stats, f *broadcast.Frame, e *telemetry.Emitter) {
	line := s.String()
	if f != nil {
		line += fmt.Sprintf("  %s  T%.1f B%.1f L%.1f R%.1f C%.1f", f.Range, f.Zones[thermal.Top], f.Zones[thermal.Bottom], f.Zones[thermal.Left], f.Zones[thermal.Right], f.Zones[thermal.Center])
	}
	if e != nil {
		line += fmt.Sprintf("  %d sent", e.Stats().Sent)
	}
	fmt.Printf("\r%s", line)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nthermocam: %s.\n", err)
		os.Exit(1)
	}
}
