// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package document

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SavedFunc is called with batched document URIs after the debounce window
// elapses without further disk activity.
type SavedFunc func(uris []string)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Extensions maps file extensions (with dot) to language ids.
	// Only matching files produce notifications.
	// Default: {".mrd": "meridian"}
	Extensions map[string]string

	// DebounceWindow is how long to wait for more disk events before
	// notifying. Default: 200ms.
	DebounceWindow time.Duration

	// IgnorePatterns are directory or glob names to skip.
	// Default: [".git", "node_modules", ".idea", "*.swp", "*.tmp"]
	IgnorePatterns []string
}

// DefaultWatcherOptions returns the defaults above.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Extensions:     map[string]string{".mrd": "meridian"},
		DebounceWindow: 200 * time.Millisecond,
		IgnorePatterns: []string{".git", "node_modules", ".idea", "*.swp", "*.tmp"},
	}
}

// Watcher turns on-disk saves of workspace documents into saved-document
// callbacks, so editors writing straight to disk still trigger change
// notifications.
//
// Write bursts are debounced: events are buffered and the handler receives
// one batch per quiet period.
//
// Thread Safety: safe for concurrent use. The handler runs on a single
// goroutine.
type Watcher struct {
	root    string
	opts    WatcherOptions
	handler SavedFunc
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	events   chan string
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	running bool
}

// NewWatcher creates a watcher for the given workspace root.
//
// The handler receives file URIs ("file://" + absolute path) of saved
// documents whose extension is registered in the options.
func NewWatcher(root string, handler SavedFunc, opts *WatcherOptions, logger *slog.Logger) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:    root,
		opts:    *opts,
		handler: handler,
		watcher: fsw,
		logger:  logger.With(slog.String("component", "document_watcher")),
		events:  make(chan string, 256),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. It adds the root and all non-ignored
// subdirectories, then spawns the event and debounce goroutines. Both exit
// when Stop is called or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	w.logger.Info("Watching workspace", slog.String("root", w.root))
	return nil
}

// Stop stops the watcher. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	})
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.opts.IgnorePatterns {
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// trackedURI maps a disk path to a document URI when it is a tracked
// document type; ok is false otherwise.
func (w *Watcher) trackedURI(path string) (string, bool) {
	if _, ok := w.opts.Extensions[strings.ToLower(filepath.Ext(path))]; !ok {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	return "file://" + filepath.ToSlash(abs), true
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// New directories must be watched as they appear.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.shouldIgnore(event.Name) {
						_ = w.addRecursive(event.Name)
					}
					continue
				}
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if w.shouldIgnore(event.Name) {
				continue
			}
			if uri, ok := w.trackedURI(event.Name); ok {
				select {
				case w.events <- uri:
				default:
					w.logger.Warn("Watcher event buffer full, dropping",
						slog.String("uri", uri))
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		uris := make([]string, 0, len(pending))
		for uri := range pending {
			uris = append(uris, uri)
		}
		pending = make(map[string]bool)
		w.handler(uris)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case uri := <-w.events:
			pending[uri] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.opts.DebounceWindow)
			fire = timer.C
		case <-fire:
			fire = nil
			flush()
		}
	}
}
