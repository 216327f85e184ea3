// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jllopis/docket/pkg/errors"
)

// DefaultBaseURL is where a local Ollama server listens.
const DefaultBaseURL = "http://localhost:11434"

// DefaultTimeout bounds every request to the backend.
const DefaultTimeout = 120 * time.Second

// OllamaBackend implements Backend for the Ollama REST API.
type OllamaBackend struct {
	baseURL string
	client  *http.Client
}

// NewOllama creates an OllamaBackend. A nil client gets DefaultTimeout.
func NewOllama(baseURL string, client *http.Client) *OllamaBackend {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &OllamaBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type ollamaRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  Options   `json:"options,omitempty"`
}

// ollamaEvent is both the non-streaming response and one NDJSON stream line.
type ollamaEvent struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	TotalDuration   int64   `json:"total_duration,omitempty"` // nanos
	PromptEvalCount int     `json:"prompt_eval_count,omitempty"`
	EvalCount       int     `json:"eval_count,omitempty"`
}

func (e ollamaEvent) usage() Usage {
	return Usage{
		PromptTokens:     e.PromptEvalCount,
		CompletionTokens: e.EvalCount,
		TotalTokens:      e.PromptEvalCount + e.EvalCount,
	}
}

type ollamaTags struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Ping implements Backend.
func (p *OllamaBackend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return errors.New(errors.CodeBackendUnreachable, "ollama server is not running", err).
			WithContext("base_url", p.baseURL).
			WithRecoverable(true)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.CodeBackendUnreachable, "ollama liveness probe returned status %d", resp.StatusCode).
			WithContext("base_url", p.baseURL).
			WithRecoverable(true)
	}
	return nil
}

// ListModels implements Backend.
func (p *OllamaBackend) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama tags call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama api returned status: %d", resp.StatusCode)
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode ollama tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if m.Model != "" {
			names = append(names, m.Model)
		} else if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

// Chat implements Backend.
func (p *OllamaBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := p.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var event ollamaEvent
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return &ChatResponse{
		Content: event.Message.Content,
		Usage:   event.usage(),
	}, nil
}

// ChatStream implements Backend.
func (p *OllamaBackend) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	resp, err := p.post(ctx, req, true)
	if err != nil {
		return nil, err
	}

	chunks := make(chan StreamChunk, 16)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				var event ollamaEvent
				if jerr := json.Unmarshal(line, &event); jerr == nil {
					if event.Done {
						usage := event.usage()
						send(ctx, chunks, StreamChunk{Content: event.Message.Content, Done: true, Usage: &usage})
						return
					}
					if event.Message.Content != "" && !send(ctx, chunks, StreamChunk{Content: event.Message.Content}) {
						return
					}
				}
			}
			if err != nil {
				if err != io.EOF {
					send(ctx, chunks, StreamChunk{Error: err})
				}
				return
			}
		}
	}()

	return chunks, nil
}

// send delivers chunk unless ctx is done first.
func send(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *OllamaBackend) post(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   stream,
		Options:  req.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama api call failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return resp, nil
}

var _ Backend = (*OllamaBackend)(nil)
