// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jllopis/docket/pkg/errors"
)

// CLIError wraps DocketError with a hint for the user.
type CLIError struct {
	*errors.DocketError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(de *errors.DocketError, hint string) *CLIError {
	return &CLIError{DocketError: de, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.DocketError == nil {
		return "unknown error"
	}
	msg := e.DocketError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the DocketError so HasCode and CodeOf see its code.
func (e *CLIError) Unwrap() error {
	if e.DocketError == nil {
		return nil
	}
	return e.DocketError
}

// PrintError writes the error to w, as a JSON object when asJSON is set.
func (e *CLIError) PrintError(w io.Writer, asJSON bool) {
	if asJSON {
		payload := map[string]any{"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
			"hint":    e.Hint,
		}}
		if e.Err != nil {
			payload["error"].(map[string]any)["cause"] = e.Err.Error()
		}
		_ = json.NewEncoder(w).Encode(payload)
		return
	}

	fmt.Fprintf(w, "Error [%s]: %s\n", e.Code, e.Message)
	if e.Err != nil {
		fmt.Fprintf(w, "  Cause: %v\n", e.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// WrapError turns any error into a CLIError with a hint for its code.
func WrapError(err error) *CLIError {
	if cliErr, ok := err.(*CLIError); ok {
		return cliErr
	}
	de := errors.AsDocketError(err)
	return NewCLIError(de, hintFor(err))
}

// hintFor picks the hint of the most specific code in err's chain.
func hintFor(err error) string {
	switch {
	case errors.HasCode(err, errors.CodeBackendUnreachable):
		return "start the model server with 'ollama serve' or set llm.base_url"
	case errors.HasCode(err, errors.CodeModelNotAvailable):
		return "pull the model with 'ollama pull <model>' or list models with 'docket models'"
	case errors.HasCode(err, errors.CodeAmbiguousReply):
		return "rephrase the proceeding or make responsibilities more distinct"
	case errors.HasCode(err, errors.CodeDuplicatePerson), errors.HasCode(err, errors.CodeDuplicateResponsibility):
		return "each person and each responsibility may appear only once in the roster"
	case errors.HasCode(err, errors.CodeInvalidHistory):
		return "history must be a list of strings alternating user and assistant turns"
	case errors.HasCode(err, errors.CodeTimeout):
		return "try increasing timeout with --timeout flag or check model server health"
	case errors.HasCode(err, errors.CodeInvalidInput):
		return "run 'docket help' for usage information"
	default:
		return ""
	}
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	de := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg)
	return NewCLIError(de, "run 'docket help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	de := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath)
	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(de, hint)
}
