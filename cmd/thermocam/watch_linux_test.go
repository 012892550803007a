// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "thermocam.json")
	require.NoError(t, os.WriteFile(p, []byte("{}\n"), 0600))
	done := make(chan error, 1)
	go func() {
		done <- watchFile(context.Background(), p)
	}()
	// Unrelated files are ignored.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0600))
	select {
	case err := <-done:
		t.Fatalf("unexpected return: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, os.WriteFile(p, []byte(`{"Window": 5}`), 0600))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(p, later, later))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("change not detected")
	}
}

func TestWatchFile_cancel(t *testing.T) {
	p := filepath.Join(t.TempDir(), "thermocam.json")
	require.NoError(t, os.WriteFile(p, []byte("{}\n"), 0600))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, p)
	}()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("didn't return")
	}
	assert.Error(t, watchFile(context.Background(), filepath.Join(t.TempDir(), "missing.json")))
}
