// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"time"

	"github.com/jllopis/docket/pkg/dispatcher"
)

// DispatchRequest asks for the owner of a proceeding.
type DispatchRequest struct {
	Proceeding string `json:"proceeding" validate:"required"`
}

// DispatchResponse is the routing decision for a proceeding.
type DispatchResponse struct {
	ID             string    `json:"id"`
	Person         string    `json:"person"`
	Responsibility string    `json:"responsibility"`
	Reply          string    `json:"reply"`
	Model          string    `json:"model"`
	At             time.Time `json:"at"`
}

func newDispatchResponse(d dispatcher.Decision) DispatchResponse {
	return DispatchResponse{
		ID:             d.ID,
		Person:         d.Person,
		Responsibility: d.Responsibility,
		Reply:          d.Reply,
		Model:          d.Model,
		At:             d.At,
	}
}

// ChatRequest is a free chat turn. History is left untyped so malformed
// histories are reported with their own error code.
type ChatRequest struct {
	Text    string `json:"text" validate:"required"`
	History any    `json:"history,omitempty"`
}

// ChatResponse carries the model reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// RegisterRequest adds a person to the roster.
type RegisterRequest struct {
	Name             string   `json:"name" validate:"required,max=256"`
	Responsibilities []string `json:"responsibilities" validate:"dive,required"`
}

// RosterResponse lists the roster in registration order.
type RosterResponse struct {
	People []dispatcher.Assignment `json:"people"`
	Ready  bool                    `json:"ready"`
	Model  string                  `json:"model,omitempty"`
}

// HealthResponse is the aggregated health of the service.
type HealthResponse struct {
	Status string `json:"status"`
	Checks any    `json:"checks"`
}
