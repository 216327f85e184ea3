// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit keeps a trail of dispatch decisions.
package audit

import (
	"context"
	"sync"
	"time"
)

// Entry is one dispatch attempt. Outcome is "OK" or the error code of the
// failed attempt; Person and Responsibility are empty when it failed
// before resolution.
type Entry struct {
	ID             string    `json:"id"`
	Proceeding     string    `json:"proceeding"`
	Reply          string    `json:"reply"`
	Responsibility string    `json:"responsibility,omitempty"`
	Person         string    `json:"person,omitempty"`
	Model          string    `json:"model"`
	Outcome        string    `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}

// Store persists dispatch entries.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Filter limits List queries. Zero fields match everything.
type Filter struct {
	Person         string
	Responsibility string
	Outcome        string
	Limit          int
}

func (f Filter) matches(e Entry) bool {
	if f.Person != "" && e.Person != f.Person {
		return false
	}
	if f.Responsibility != "" && e.Responsibility != f.Responsibility {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	return true
}

// MemoryStore keeps entries in memory, in recording order.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends an entry.
func (s *MemoryStore) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.At = normalizeTime(entry.At)
	s.entries = append(s.entries, entry)
	return nil
}

// List returns matching entries, oldest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.matches(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
