// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"github.com/jllopis/docket/pkg/errors"
)

const (
	msgHistoryNotStrings = "history must be a list of strings"
	msgHistoryOdd        = "history must contain an even number of elements"
)

// ValidateHistory checks that history holds complete user/assistant pairs.
func ValidateHistory(history []string) error {
	if len(history)%2 != 0 {
		return errors.New(errors.CodeInvalidHistory, msgHistoryOdd, nil).
			WithContext("length", len(history))
	}
	return nil
}

// ParseHistory converts untyped input, such as decoded JSON, into a
// history. raw must be a sequence of strings with an even length.
func ParseHistory(raw any) ([]string, error) {
	var history []string
	switch v := raw.(type) {
	case []string:
		history = v
	case []any:
		history = make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New(errors.CodeInvalidHistory, msgHistoryNotStrings, nil).
					WithContext("index", i)
			}
			history = append(history, s)
		}
	default:
		return nil, errors.New(errors.CodeInvalidHistory, msgHistoryNotStrings, nil)
	}
	if err := ValidateHistory(history); err != nil {
		return nil, err
	}
	return history, nil
}

// historyMessages maps history to alternating turns, user first.
func historyMessages(history []string) []Message {
	roles := [2]Role{RoleUser, RoleAssistant}
	msgs := make([]Message, 0, len(history)+2)
	for i, content := range history {
		msgs = append(msgs, Message{Role: roles[i%2], Content: content})
	}
	return msgs
}

// LabeledExample is a sample text with the answer the model should give.
type LabeledExample struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// ComposeHistory turns labeled examples into a few-shot history: each
// example becomes a user turn followed by an assistant turn.
func ComposeHistory(examples []LabeledExample) []string {
	history := make([]string, 0, 2*len(examples))
	for _, ex := range examples {
		history = append(history, ex.Text, ex.Label)
	}
	return history
}
