// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// RosterWatcher polls a roster file and reports its content whenever the
// file's modification time moves forward.
type RosterWatcher struct {
	mu        sync.RWMutex
	path      string
	interval  time.Duration
	lastMod   time.Time
	people    []PersonConfig
	listeners []func([]PersonConfig)
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	logger    *slog.Logger
}

// WatcherOption configures the watcher.
type WatcherOption func(*RosterWatcher)

// WithWatchInterval sets the polling interval.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *RosterWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *RosterWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewRosterWatcher loads path once and returns a watcher for it.
func NewRosterWatcher(path string, opts ...WatcherOption) (*RosterWatcher, error) {
	w := &RosterWatcher{
		path:     path,
		interval: time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	}
	people, err := LoadRosterFile(path)
	if err != nil {
		return nil, err
	}
	w.people = people
	return w, nil
}

// OnChange registers fn to receive the whole roster after each reload.
func (w *RosterWatcher) OnChange(fn func([]PersonConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// People returns the last roster read.
func (w *RosterWatcher) People() []PersonConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.people
}

// Start begins polling until ctx is done or Stop is called.
func (w *RosterWatcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops polling and waits for the loop to exit. Start must have
// been called.
func (w *RosterWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *RosterWatcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.changed() {
				w.reload()
			}
		}
	}
}

func (w *RosterWatcher) changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().After(w.lastMod) {
		w.lastMod = info.ModTime()
		return true
	}
	return false
}

func (w *RosterWatcher) reload() {
	people, err := LoadRosterFile(w.path)
	if err != nil {
		w.logger.Error("failed to reload roster", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.people = people
	listeners := make([]func([]PersonConfig), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	w.logger.Info("roster file reloaded", "path", w.path, "people", len(people))
	for _, fn := range listeners {
		fn(people)
	}
}
