// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce groups bursts of file events into one rerun.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watch calls fn once, then again after any of files changes, until ctx is done.
// Parent directories are watched because dbt replaces artifacts instead of rewriting them.
// Errors returned by fn are logged and do not stop watching.
func Watch(ctx context.Context, files []string, debounce time.Duration, fn func() error) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watched := make(map[string]struct{}, len(files))
	dirs := make(map[string]struct{}, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("resolve watch path %q: %w", file, err)
		}

		watched[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %q: %w", dir, err)
		}
	}

	run := func() {
		if err := fn(); err != nil {
			Log.WithError(err).Error("watch run failed")
		}
	}

	run()

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			Log.WithError(err).Warn("watcher error")
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if _, match := watched[filepath.Clean(event.Name)]; !match {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			Log.WithField("path", event.Name).Debug("artifact changed")
			timer.Reset(debounce)
		case <-timer.C:
			run()
		}
	}
}
