// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"strings"
	"testing"

	derrors "github.com/jllopis/docket/pkg/errors"
)

func TestParseHistory(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    int
		wantMsg string
	}{
		{name: "typed strings", raw: []string{"hi", "hello"}, want: 2},
		{name: "decoded json", raw: []any{"hi", "hello", "bye", "ciao"}, want: 4},
		{name: "empty list", raw: []any{}, want: 0},
		{name: "not a list", raw: "hi", wantMsg: "history must be a list of strings"},
		{name: "nil", raw: nil, wantMsg: "history must be a list of strings"},
		{name: "non-string element", raw: []any{"hi", 3}, wantMsg: "history must be a list of strings"},
		{name: "odd length", raw: []any{"hi", "hello", "bye"}, wantMsg: "history must contain an even number of elements"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history, err := ParseHistory(tt.raw)
			if tt.wantMsg != "" {
				if !derrors.HasCode(err, derrors.CodeInvalidHistory) {
					t.Fatalf("expected INVALID_HISTORY, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.wantMsg) {
					t.Errorf("expected message %q, got %v", tt.wantMsg, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(history) != tt.want {
				t.Errorf("expected %d entries, got %d", tt.want, len(history))
			}
		})
	}
}

func TestHistoryMessagesAlternate(t *testing.T) {
	msgs := historyMessages([]string{"q1", "a1", "q2", "a2"})
	want := []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	for i, m := range msgs {
		if m.Role != want[i] {
			t.Errorf("message %d: expected role %s, got %s", i, want[i], m.Role)
		}
	}
}

func TestComposeHistory(t *testing.T) {
	history := ComposeHistory([]LabeledExample{
		{Text: "As sly as a fox.", Label: "animal"},
		{Text: "Spaghetti carbonara", Label: "food"},
	})

	want := []string{"As sly as a fox.", "animal", "Spaghetti carbonara", "food"}
	if len(history) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(history))
	}
	for i := range want {
		if history[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], history[i])
		}
	}
	if err := ValidateHistory(history); err != nil {
		t.Errorf("composed history must be valid: %v", err)
	}
}
