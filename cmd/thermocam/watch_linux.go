// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"path/filepath"

	fsnotify "gopkg.in/fsnotify.v1"
)

// watchFile returns nil once the file at path was modified, or ctx.Err().
//
// The directory is watched since editors often replace the file instead of
// writing to it.
func watchFile(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	mod0 := fi.ModTime()
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err = <-watcher.Errors:
			return err
		case e := <-watcher.Events:
			if filepath.Clean(e.Name) != path {
				continue
			}
			if fi, err = os.Stat(path); err == nil && fi.ModTime().Equal(mod0) {
				continue
			}
			// A missing file is reported as a change; Load recreates it.
			return nil
		}
	}
}
