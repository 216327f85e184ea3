// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/jllopis/docket/pkg/errors"
)

// problem is an RFC 7807 body extended with the docket error code.
type problem struct {
	Type    string   `json:"type"`
	Title   string   `json:"title"`
	Status  int      `json:"status"`
	Detail  string   `json:"detail"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	de := errors.AsDocketError(err)
	status := de.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	body := problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: de.Message,
		Code:   string(de.Code),
	}
	if fields, ok := de.Context["fields"].([]string); ok {
		body.Details = fields
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
