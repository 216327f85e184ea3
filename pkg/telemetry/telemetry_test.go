// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jllopis/docket/pkg/errors"
)

func TestInitNone(t *testing.T) {
	shutdown, err := InitWithConfig("test-service", "v0.0.1", Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	if _, err := InitWithConfig("svc", "v0", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
	if _, err := InitWithConfig("svc", "v0", Config{Exporter: "otlp"}); err == nil {
		t.Fatalf("expected error for otlp without endpoint")
	}
}

func TestNewResource(t *testing.T) {
	res := newResource("docket", "v1.2.3", Config{Model: "llama2-uncensored", AuditDriver: "sqlite"})

	tests := map[string]string{
		"service.name":      "docket",
		"service.version":   "v1.2.3",
		ResourceModel:       "llama2-uncensored",
		ResourceAuditDriver: "sqlite",
	}
	for key, want := range tests {
		got, ok := res.Set().Value(attribute.Key(key))
		if !ok {
			t.Errorf("resource is missing %s", key)
			continue
		}
		if got.AsString() != want {
			t.Errorf("%s = %q, want %q", key, got.AsString(), want)
		}
	}

	bare := newResource("docket", "dev", Config{})
	if _, ok := bare.Set().Value(attribute.Key(ResourceModel)); ok {
		t.Errorf("expected no model attribute when none is configured")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTraceHandlerAddsSpanIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "debug", "json"))

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "dispatching")
	span.End()

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("expected trace_id in record, got %v", record["trace_id"])
	}
	if record["span_id"] == nil {
		t.Errorf("expected span_id in record")
	}
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := ComponentLogger(slog.New(NewHandler(&buf, "info", "text")), "dispatcher")
	logger.Info("ready")
	if !strings.Contains(buf.String(), "component=dispatcher") {
		t.Errorf("expected component attribute, got %q", buf.String())
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordDispatch(ctx, "model", nil)
	m.RecordLLMCall(ctx, "model", "http", time.Millisecond, true)
	m.RecordError(ctx, errors.New(errors.CodeInternal, "x", nil), "test")
}

func TestMetricsRecord(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	ctx := context.Background()
	m.RecordDispatch(ctx, "llama2", nil)
	m.RecordDispatch(ctx, "llama2", errors.New(errors.CodeAmbiguousReply, "two matches", nil))
	m.RecordLLMCall(ctx, "llama2", "http", 12*time.Millisecond, false)
	m.RecordError(ctx, nil, "ignored")
}

func TestDispatchAttributes(t *testing.T) {
	attrs := DispatchAttributes("id-1", OutcomeOK, "cooking carbonara", "marco polo")
	assertAttributes(t, attrs, map[string]any{
		AttrDispatchID:             "id-1",
		AttrDispatchOutcome:        OutcomeOK,
		AttrDispatchResponsibility: "cooking carbonara",
		AttrDispatchPerson:         "marco polo",
	})

	attrs = DispatchAttributes("", "AMBIGUOUS_REPLY", "", "")
	if len(attrs) != 1 {
		t.Errorf("expected only the outcome attribute, got %v", attrs)
	}
}

func TestLLMAttributes(t *testing.T) {
	assertAttributes(t, LLMAttributes("llama2", "http", 2), map[string]any{
		AttrLLMModel:    "llama2",
		AttrLLMSystem:   "ollama",
		AttrLLMMessages: 2,
		AttrLLMChannel:  "http",
	})
	if attrs := LLMUsageAttributes(0, 0); len(attrs) != 0 {
		t.Errorf("expected no usage attributes, got %v", attrs)
	}
}

func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()
	got := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		switch kv.Value.Type() {
		case attribute.INT64:
			got[string(kv.Key)] = int(kv.Value.AsInt64())
		case attribute.BOOL:
			got[string(kv.Key)] = kv.Value.AsBool()
		default:
			got[string(kv.Key)] = kv.Value.AsString()
		}
	}
	for key, want := range expected {
		if got[key] != want {
			t.Errorf("attribute %s = %v, want %v", key, got[key], want)
		}
	}
}
