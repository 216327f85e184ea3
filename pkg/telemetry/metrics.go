// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/docket/pkg/errors"
)

// OutcomeOK labels a successful dispatch; failures use their error code.
const OutcomeOK = "OK"

// Metrics records dispatch and model client measurements through the
// global OTel meter provider. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	dispatchCounter metric.Int64Counter
	fallbackCounter metric.Int64Counter
	errorCounter    metric.Int64Counter
	llmLatency      metric.Float64Histogram
}

// NewMetrics creates the docket instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("docket")

	dispatchCounter, err := meter.Int64Counter(
		"docket.dispatch.total",
		metric.WithDescription("Dispatch attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCounter, err := meter.Int64Counter(
		"docket.llm.fallback.total",
		metric.WithDescription("Model replies replaced by the fallback answer"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"docket.errors.total",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	llmLatency, err := meter.Float64Histogram(
		"docket.llm.duration",
		metric.WithDescription("Model call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		dispatchCounter: dispatchCounter,
		fallbackCounter: fallbackCounter,
		errorCounter:    errorCounter,
		llmLatency:      llmLatency,
	}, nil
}

// RecordDispatch counts one dispatch. A nil err records OutcomeOK.
func (m *Metrics) RecordDispatch(ctx context.Context, model string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = string(errors.CodeOf(err))
	}
	m.dispatchCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrDispatchOutcome, outcome),
		attribute.String(AttrLLMModel, model),
	))
}

// RecordLLMCall records the latency of one model call and whether the
// reply was replaced by the fallback answer.
func (m *Metrics) RecordLLMCall(ctx context.Context, model, channel string, elapsed time.Duration, fallback bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrLLMModel, model),
		attribute.String(AttrLLMChannel, channel),
	)
	m.llmLatency.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if fallback {
		m.fallbackCounter.Add(ctx, 1, attrs)
	}
}

// RecordError counts err under its code for the given component.
func (m *Metrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	de := errors.AsDocketError(err)
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(de.Code)),
		attribute.String(AttrComponent, component),
		attribute.String(AttrRecoverable, de.RecoverableString()),
	))
}
