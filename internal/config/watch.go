// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces editor write bursts into one reload.
const watchDebounce = 250 * time.Millisecond

// Watcher watches the config file and delivers reloaded configs. The chat
// loop polls Latest between turns; mid-turn edits never change behavior
// until the next prompt.
type Watcher struct {
	path    string
	updates chan *Config
	watcher *fsnotify.Watcher
}

// Watch starts watching path for changes. The watch runs until ctx is
// cancelled. Reloads that fail validation are logged and dropped so a
// half-saved edit cannot break a running session.
func Watch(ctx context.Context, path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files on save
	// and a file-level watch dies with the old inode.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		updates: make(chan *Config, 1),
		watcher: fsw,
	}
	go w.run(ctx)
	return w, nil
}

// Latest returns the most recent reloaded config, or nil if nothing
// changed since the last call. Non-blocking.
func (w *Watcher) Latest() *Config {
	select {
	case cfg := <-w.updates:
		return cfg
	default:
		return nil
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			cfg, err := LoadFromPath(w.path)
			if err != nil {
				log.Printf("config reload skipped: %v", err)
				continue
			}
			// Keep only the newest pending update.
			select {
			case <-w.updates:
			default:
			}
			w.updates <- cfg

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watch error: %v", err)
		}
	}
}
