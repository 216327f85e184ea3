// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"testing"
)

func static(status Status) Checker {
	return CheckerFunc(func(context.Context) Result {
		return Result{Status: status}
	})
}

func TestCheckAllAggregates(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider()
			for i, s := range tt.statuses {
				p.Register(string(rune('a'+i)), static(s))
			}
			results, overall := p.CheckAll(context.Background())
			if overall != tt.want {
				t.Errorf("expected %s, got %s", tt.want, overall)
			}
			if len(results) != len(tt.statuses) {
				t.Fatalf("expected %d results, got %d", len(tt.statuses), len(results))
			}
			for i := 1; i < len(results); i++ {
				if results[i-1].Component > results[i].Component {
					t.Errorf("results not sorted by component")
				}
			}
		})
	}
}

func TestCheckSingle(t *testing.T) {
	p := NewProvider()
	p.Register("ollama", static(StatusUnhealthy))

	result, err := p.Check(context.Background(), "ollama")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.Component != "ollama" || result.Status != StatusUnhealthy {
		t.Errorf("unexpected result %+v", result)
	}
	if result.LastCheck.IsZero() {
		t.Errorf("expected LastCheck to be stamped")
	}

	if _, err := p.Check(context.Background(), "missing"); err == nil {
		t.Errorf("expected error for unregistered checker")
	}
}
