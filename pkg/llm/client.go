// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/docket/pkg/errors"
	"github.com/jllopis/docket/pkg/resilience"
	"github.com/jllopis/docket/pkg/telemetry"
)

const (
	channelStateful = "stateful"
	channelStream   = "stream"
	channelHTTP     = "http"
)

// Client sends prompts for a single model. It is verified against the
// backend once, by NewClient, and keeps no conversation state between calls.
type Client struct {
	model       string
	system      string
	baseURL     string
	backend     Backend
	httpClient  *http.Client
	timeout     time.Duration
	httpOptions Options
	breaker     *resilience.CircuitBreaker
	probe       resilience.RetryConfig
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	tracer      trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the Ollama server address.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithSystemInstruction sets the instruction prepended to every conversation.
func WithSystemInstruction(instruction string) ClientOption {
	return func(c *Client) { c.system = instruction }
}

// WithBackend replaces the stateful channel, mainly for tests.
func WithBackend(b Backend) ClientOption {
	return func(c *Client) { c.backend = b }
}

// WithHTTPClient sets the HTTP client shared by both channels.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each backend request. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPOptions merges opts over DefaultHTTPOptions for ChatHTTP bodies.
func WithHTTPOptions(opts Options) ClientOption {
	return func(c *Client) { c.httpOptions = MergeOptions(c.httpOptions, opts) }
}

// WithCircuitBreaker guards ChatHTTP with cb; an open breaker yields
// FallbackReply without touching the network.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ClientOption {
	return func(c *Client) { c.breaker = cb }
}

// WithProbeRetry retries the construction-time liveness probe.
func WithProbeRetry(rc resilience.RetryConfig) ClientOption {
	return func(c *Client) { c.probe = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records call latency and fallback counts.
func WithMetrics(m *telemetry.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient verifies that the backend is alive and serves model, and
// returns a client bound to it. It fails with CodeBackendUnreachable when
// the liveness probe or the model listing fails, and with
// CodeModelNotAvailable when the backend does not list model.
func NewClient(ctx context.Context, model string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:       model,
		baseURL:     DefaultBaseURL,
		timeout:     DefaultTimeout,
		httpOptions: DefaultHTTPOptions(),
		probe:       resilience.DefaultRetryConfig(),
		tracer:      otel.Tracer("docket/llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.backend == nil {
		c.backend = NewOllama(c.baseURL, c.httpClient)
	}
	c.logger = telemetry.ComponentLogger(c.logger, "llm")

	if err := c.verify(ctx); err != nil {
		c.metrics.RecordError(ctx, err, "llm")
		return nil, err
	}
	c.logger.DebugContext(ctx, "model client ready", "model", c.model, "base_url", c.baseURL)
	return c, nil
}

func (c *Client) verify(ctx context.Context) error {
	err := c.probe.Do(ctx, func() error { return c.backend.Ping(ctx) })
	if err != nil {
		if errors.HasCode(err, errors.CodeBackendUnreachable) {
			return err
		}
		return errors.New(errors.CodeBackendUnreachable, "ollama server is not running", err).
			WithContext("base_url", c.baseURL)
	}

	models, err := c.backend.ListModels(ctx)
	if err != nil {
		return errors.New(errors.CodeBackendUnreachable, "could not list models", err).
			WithContext("base_url", c.baseURL)
	}
	if !modelListed(models, c.model) {
		return errors.Newf(errors.CodeModelNotAvailable, "model '%s' is not available", c.model).
			WithContext("available", models)
	}
	return nil
}

// modelListed matches exactly, treating an untagged name as ":latest".
func modelListed(models []string, model string) bool {
	if model == "" {
		return false
	}
	for _, m := range models {
		if m == model {
			return true
		}
		if !strings.Contains(model, ":") && m == model+":latest" {
			return true
		}
	}
	return false
}

// Model returns the model identifier the client is bound to.
func (c *Client) Model() string { return c.model }

// SystemInstruction returns the configured system instruction, if any.
func (c *Client) SystemInstruction() string { return c.system }

// Backend returns the stateful channel.
func (c *Client) Backend() Backend { return c.backend }

// Chat sends a single user turn over the stateful channel. An empty reply
// becomes FallbackReply; backend failures are returned as CodeLLMError.
func (c *Client) Chat(ctx context.Context, text string) (string, error) {
	return c.chatStateful(ctx, []Message{{Role: RoleUser, Content: text}})
}

// ChatWithHistory replays history as alternating user/assistant turns,
// appends text as a new user turn and sends it over the stateful channel.
// history is validated before anything is sent.
func (c *Client) ChatWithHistory(ctx context.Context, history []string, text string) (string, error) {
	if err := ValidateHistory(history); err != nil {
		return "", err
	}
	msgs := append(historyMessages(history), Message{Role: RoleUser, Content: text})
	return c.chatStateful(ctx, msgs)
}

func (c *Client) chatStateful(ctx context.Context, msgs []Message) (string, error) {
	msgs = c.withSystem(msgs)
	ctx, span := c.tracer.Start(ctx, "docket.llm.chat",
		trace.WithAttributes(telemetry.LLMAttributes(c.model, channelStateful, len(msgs))...))
	defer span.End()

	start := time.Now()
	resp, err := c.backend.Chat(ctx, ChatRequest{Model: c.model, Messages: msgs})
	if err != nil {
		err = errors.New(errors.CodeLLMError, "chat request failed", err).
			WithContext("model", c.model).
			WithRecoverable(true)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat request failed")
		c.metrics.RecordError(ctx, err, "llm")
		return "", err
	}

	reply, fallback := resp.Content, false
	if reply == "" {
		reply, fallback = FallbackReply, true
	}
	span.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)
	span.SetAttributes(attribute.Bool(telemetry.AttrLLMFallback, fallback))
	c.metrics.RecordLLMCall(ctx, c.model, channelStateful, time.Since(start), fallback)
	return reply, nil
}

// ChatStream sends a single user turn over the streaming channel, calling
// onChunk (when non-nil) for every content piece in arrival order. It
// returns the full reply, or FallbackReply when nothing was streamed.
func (c *Client) ChatStream(ctx context.Context, text string, onChunk func(string)) (string, error) {
	msgs := c.withSystem([]Message{{Role: RoleUser, Content: text}})
	ctx, span := c.tracer.Start(ctx, "docket.llm.chat_stream",
		trace.WithAttributes(telemetry.LLMAttributes(c.model, channelStream, len(msgs))...))
	defer span.End()

	start := time.Now()
	fail := func(err error) (string, error) {
		err = errors.New(errors.CodeLLMError, "chat stream failed", err).
			WithContext("model", c.model).
			WithRecoverable(true)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat stream failed")
		c.metrics.RecordError(ctx, err, "llm")
		return "", err
	}

	chunks, err := c.backend.ChatStream(ctx, ChatRequest{Model: c.model, Messages: msgs})
	if err != nil {
		return fail(err)
	}

	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return fail(chunk.Error)
		}
		if chunk.Content != "" {
			sb.WriteString(chunk.Content)
			if onChunk != nil {
				onChunk(chunk.Content)
			}
		}
		if chunk.Usage != nil {
			span.SetAttributes(telemetry.LLMUsageAttributes(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens)...)
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	reply, fallback := sb.String(), false
	if reply == "" {
		reply, fallback = FallbackReply, true
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrLLMFallback, fallback))
	c.metrics.RecordLLMCall(ctx, c.model, channelStream, time.Since(start), fallback)
	return reply, nil
}

// withSystem prepends the system instruction when one is configured.
func (c *Client) withSystem(msgs []Message) []Message {
	if c.system == "" {
		return msgs
	}
	out := make([]Message, 0, len(msgs)+1)
	out = append(out, Message{Role: RoleSystem, Content: c.system})
	return append(out, msgs...)
}
