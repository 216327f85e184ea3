// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

// Package health aggregates component health checks for the API.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status represents the health state of a component.
type Status string

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = "HEALTHY"

	// StatusDegraded indicates the component works with reduced capability.
	StatusDegraded Status = "DEGRADED"

	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy Status = "UNHEALTHY"
)

// Result is the outcome of one health check.
type Result struct {
	Status    Status    `json:"status"`
	Component string    `json:"component"`
	Message   string    `json:"message,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// Checker checks the health of a component.
type Checker interface {
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) Result

// Check implements Checker.
func (f CheckerFunc) Check(ctx context.Context) Result {
	result := f(ctx)
	if result.LastCheck.IsZero() {
		result.LastCheck = time.Now()
	}
	return result
}

// Provider runs named checkers.
type Provider struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{checkers: make(map[string]Checker)}
}

// Register adds or replaces the checker for a component.
func (p *Provider) Register(name string, checker Checker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkers[name] = checker
}

// Check runs the checker of a single component.
func (p *Provider) Check(ctx context.Context, name string) (Result, error) {
	p.mu.RLock()
	checker, ok := p.checkers[name]
	p.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("checker not registered: %s", name)
	}
	result := checker.Check(ctx)
	result.Component = name
	return result, nil
}

// CheckAll runs every checker in name order. The overall status is the
// worst individual status.
func (p *Provider) CheckAll(ctx context.Context) ([]Result, Status) {
	p.mu.RLock()
	names := make([]string, 0, len(p.checkers))
	checkers := make(map[string]Checker, len(p.checkers))
	for name, checker := range p.checkers {
		names = append(names, name)
		checkers[name] = checker
	}
	p.mu.RUnlock()
	sort.Strings(names)

	overall := StatusHealthy
	results := make([]Result, 0, len(names))
	for _, name := range names {
		result := checkers[name].Check(ctx)
		result.Component = name
		results = append(results, result)

		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return results, overall
}
