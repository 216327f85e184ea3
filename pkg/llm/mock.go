// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"sync"
)

// MockBackend is a scripted in-memory Backend for tests.
type MockBackend struct {
	mu sync.Mutex

	// Models is returned by ListModels.
	Models []string
	// Replies are returned in order by Chat and ChatStream; once exhausted,
	// the last one repeats. No replies means empty content.
	Replies []string
	// PingErr, ListErr and ChatErr force the matching call to fail.
	PingErr error
	ListErr error
	ChatErr error

	// Requests captures every chat request received.
	Requests []ChatRequest
	calls    int
}

// Ping implements Backend.
func (m *MockBackend) Ping(context.Context) error {
	return m.PingErr
}

// ListModels implements Backend.
func (m *MockBackend) ListModels(context.Context) ([]string, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Models, nil
}

// Chat implements Backend.
func (m *MockBackend) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	content, err := m.next(req)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{Content: content, Usage: Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}}, nil
}

// ChatStream implements Backend by streaming the next reply word by word.
func (m *MockBackend) ChatStream(_ context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	content, err := m.next(req)
	if err != nil {
		return nil, err
	}
	chunks := make(chan StreamChunk, len(content)+1)
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == ' ' || i == len(content)-1 {
			chunks <- StreamChunk{Content: content[start : i+1]}
			start = i + 1
		}
	}
	chunks <- StreamChunk{Done: true, Usage: &Usage{TotalTokens: 20}}
	close(chunks)
	return chunks, nil
}

// Calls returns how many chat requests were received.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockBackend) next(req ChatRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.Requests = append(m.Requests, req)
	if m.ChatErr != nil {
		return "", m.ChatErr
	}
	if len(m.Replies) == 0 {
		return "", nil
	}
	idx := m.calls - 1
	if idx >= len(m.Replies) {
		idx = len(m.Replies) - 1
	}
	return m.Replies[idx], nil
}

var _ Backend = (*MockBackend)(nil)
