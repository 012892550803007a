// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/maruel/thermocam/config"
	"github.com/maruel/thermocam/senxor"
	"github.com/maruel/thermocam/senxortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrides(t *testing.T) {
	c := config.Default()
	(&overrides{}).apply(c)
	assert.Equal(t, config.Default(), c)
	(&overrides{sensor: "fake", port: 8080}).apply(c)
	assert.Equal(t, "fake", c.Sensor.Port)
	assert.Equal(t, 8080, c.HTTP.Port)
}

func TestRun(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("config file watching is only implemented on linux")
	}
	port := &senxortest.Port{Source: func() senxortest.Source { return senxortest.Constant(30) }}
	require.NoError(t, port.Register("fake-run", 1))
	defer senxor.Unregister("fake-run")

	p := filepath.Join(t.TempDir(), "thermocam.json")
	c, err := config.Load(p)
	require.NoError(t, err)
	c.Sensor.Port = "fake-run"
	c.HTTP.Port = freePort(t)
	require.NoError(t, c.Validate())
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Editing the configuration file ends run so it can be restarted.
	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), c, p, log)
	}()
	require.Eventually(t, func() bool {
		s := port.Last()
		return s != nil && s.Settings() != nil
	}, 10*time.Second, time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(p, later, later))
	select {
	case err := <-done:
		assert.Equal(t, errReload, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run didn't return")
	}
	assert.Equal(t, 1, port.Last().StopCount())

	// Cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		done <- run(ctx, c, p, log)
	}()
	// The pipeline counters are served along the frames.
	url := fmt.Sprintf("http://127.0.0.1:%d/metrics", c.HTTP.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		return err == nil && strings.Contains(string(b), "thermocam_frames_total") && strings.Contains(string(b), `thermocam_zone_celsius{zone="Center"}`)
	}, 10*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run didn't return")
	}
	assert.Equal(t, 1, port.Last().StopCount())
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
