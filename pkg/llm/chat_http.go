// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/docket/pkg/resilience"
	"github.com/jllopis/docket/pkg/telemetry"
)

var staticReply = resilience.StaticFallback[string]{Value: FallbackReply}

// ChatHTTP sends a single user turn as one stateless POST to /api/chat.
//
// The body is {model, messages} followed by the baseline options and then
// extra, later keys winning. It never fails: connection errors, non-2xx
// statuses, malformed bodies and an open circuit breaker all yield
// FallbackReply. The response body is read as NDJSON and every
// message.content piece is concatenated in arrival order.
func (c *Client) ChatHTTP(ctx context.Context, text string, extra Options) string {
	msgs := c.withSystem([]Message{{Role: RoleUser, Content: text}})
	ctx, span := c.tracer.Start(ctx, "docket.llm.chat_http",
		trace.WithAttributes(telemetry.LLMAttributes(c.model, channelHTTP, len(msgs))...))
	defer span.End()

	start := time.Now()
	fallback := false
	reply, _ := resilience.WithFallback(ctx, func() (string, error) {
		return c.guardedPost(ctx, msgs, extra)
	}, resilience.FallbackFunc[string](func(ctx context.Context, err error) (string, error) {
		fallback = true
		span.RecordError(err)
		c.metrics.RecordError(ctx, err, "llm")
		c.logger.WarnContext(ctx, "http chat failed, using fallback reply", "model", c.model, "error", err)
		return staticReply.Execute(ctx, err)
	}))

	span.SetAttributes(attribute.Bool(telemetry.AttrLLMFallback, fallback))
	c.metrics.RecordLLMCall(ctx, c.model, channelHTTP, time.Since(start), fallback)
	return reply
}

func (c *Client) guardedPost(ctx context.Context, msgs []Message, extra Options) (string, error) {
	if c.breaker == nil {
		return c.postChat(ctx, msgs, extra)
	}
	var reply string
	err := c.breaker.Call(ctx, func() error {
		var err error
		reply, err = c.postChat(ctx, msgs, extra)
		return err
	})
	return reply, err
}

func (c *Client) postChat(ctx context.Context, msgs []Message, extra Options) (string, error) {
	payload := MergeOptions(Options{"model": c.model, "messages": msgs}, c.httpOptions, extra)
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ollama api returned status: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ollama response: %w", err)
	}
	return extractContent(raw)
}

// contentFragment distinguishes an absent message.content from an empty one.
type contentFragment struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

// extractContent concatenates the message.content of every NDJSON line.
// Blank lines are skipped; a line that is not JSON is an error.
func extractContent(raw []byte) (string, error) {
	var sb strings.Builder
	for _, line := range bytes.Split(bytes.TrimSpace(raw), []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var frag contentFragment
		if err := json.Unmarshal(line, &frag); err != nil {
			return "", fmt.Errorf("malformed response fragment: %w", err)
		}
		if frag.Message != nil && frag.Message.Content != nil {
			sb.WriteString(*frag.Message.Content)
		}
	}
	return sb.String(), nil
}
