// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package badgesync

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// storeWatcher watches the badge store's hint file so a foregrounded app
// notices background pushes immediately instead of waiting for the next
// lifecycle signal. The watch is on the parent directory because the hint
// file may not exist until the first push.
type storeWatcher struct {
	watcher  *fsnotify.Watcher
	hintName string
	onChange func()
	log      zerolog.Logger
	stop     chan struct{}
}

func newStoreWatcher(hintPath string, onChange func(), log zerolog.Logger) (*storeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err = watcher.Add(filepath.Dir(hintPath)); err != nil {
		watcher.Close()
		return nil, err
	}
	w := &storeWatcher{
		watcher:  watcher,
		hintName: filepath.Base(hintPath),
		onChange: onChange,
		log:      log.With().Str("component", "store-watcher").Logger(),
		stop:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *storeWatcher) run() {
	// WriteFile emits create+write pairs; collapse anything within a short
	// window into one callback.
	var last time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.hintName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if time.Since(last) < 100*time.Millisecond {
				continue
			}
			last = time.Now()
			w.log.Debug().Msg("Badge store changed by other process")
			w.onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Debug().Err(err).Msg("Store watcher error")
		case <-w.stop:
			return
		}
	}
}

func (w *storeWatcher) Close() {
	close(w.stop)
	w.watcher.Close()
}
