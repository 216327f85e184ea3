// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import "context"

// Fallback produces a substitute value when the primary operation fails.
type Fallback[T any] interface {
	Execute(ctx context.Context, primaryErr error) (T, error)
}

// FallbackFunc wraps a function as a Fallback.
type FallbackFunc[T any] func(ctx context.Context, primaryErr error) (T, error)

// Execute implements Fallback.
func (f FallbackFunc[T]) Execute(ctx context.Context, err error) (T, error) {
	return f(ctx, err)
}

// StaticFallback returns a fixed value on failure.
type StaticFallback[T any] struct {
	Value T
}

// Execute implements Fallback.
func (s StaticFallback[T]) Execute(context.Context, error) (T, error) {
	return s.Value, nil
}

// WithFallback executes fn and hands any error to fallback.
func WithFallback[T any](ctx context.Context, fn func() (T, error), fallback Fallback[T]) (T, error) {
	value, err := fn()
	if err == nil {
		return value, nil
	}
	return fallback.Execute(ctx, err)
}
