// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm is the model client used to classify proceedings. It talks to
// an Ollama backend over two channels: a stateful chat channel (Backend) and
// a stateless HTTP request that degrades to FallbackReply on any transport
// failure.
package llm

import "context"

// FallbackReply is returned whenever the model produces no usable answer.
const FallbackReply = "I could not generate a reply."

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options are request options sent to the backend (temperature, seed, ...).
type Options map[string]any

// ChatRequest encapsulates the input for the backend.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Options  Options   `json:"options,omitempty"`
}

// ChatResponse encapsulates the output from the backend.
type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one piece of a streaming reply. The final chunk has Done
// set and carries the usage totals.
type StreamChunk struct {
	Content string
	Done    bool
	Usage   *Usage
	Error   error
}

// Backend is the stateful chat channel of a model server.
type Backend interface {
	// Ping is the liveness probe: nil only when the server answers 200.
	Ping(ctx context.Context) error

	// ListModels returns the identifiers of the models the server knows.
	ListModels(ctx context.Context) ([]string, error)

	// Chat sends a non-streaming chat request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream sends a streaming chat request. The channel is closed after
	// the Done chunk or the first error chunk.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}
