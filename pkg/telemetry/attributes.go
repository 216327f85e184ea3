// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for docket spans and metrics. LLM keys follow the
// OpenTelemetry gen_ai conventions.
const (
	AttrLLMModel       = "gen_ai.request.model"
	AttrLLMSystem      = "gen_ai.system"
	AttrLLMMessages    = "gen_ai.request.messages"
	AttrLLMChannel     = "docket.llm.channel" // "stateful", "stream" or "http"
	AttrLLMFallback    = "docket.llm.fallback"
	AttrLLMTokensInput = "gen_ai.usage.input_tokens"
	AttrLLMTokensOut   = "gen_ai.usage.output_tokens"

	AttrDispatchID             = "docket.dispatch.id"
	AttrDispatchOutcome        = "docket.dispatch.outcome"
	AttrDispatchPerson         = "docket.dispatch.person"
	AttrDispatchResponsibility = "docket.dispatch.responsibility"
	AttrRosterPeople           = "docket.roster.people"
	AttrRosterResponsibilities = "docket.roster.responsibilities"

	AttrErrorCode   = "error.code"
	AttrComponent   = "component"
	AttrRecoverable = "recoverable"
)

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model, channel string, msgCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.String(AttrLLMSystem, "ollama"),
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if channel != "" {
		attrs = append(attrs, attribute.String(AttrLLMChannel, channel))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes, skipping zero counts.
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOut, outputTokens))
	}
	return attrs
}

// RosterAttributes describes the roster size at the time of a span.
func RosterAttributes(people, responsibilities int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrRosterPeople, people),
		attribute.Int(AttrRosterResponsibilities, responsibilities),
	}
}

// DispatchAttributes returns attributes for a finished dispatch.
// Empty person or responsibility values are omitted.
func DispatchAttributes(id, outcome, responsibility, person string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrDispatchOutcome, outcome),
	}
	if id != "" {
		attrs = append(attrs, attribute.String(AttrDispatchID, id))
	}
	if responsibility != "" {
		attrs = append(attrs, attribute.String(AttrDispatchResponsibility, responsibility))
	}
	if person != "" {
		attrs = append(attrs, attribute.String(AttrDispatchPerson, person))
	}
	return attrs
}
