// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jllopis/docket/pkg/audit"
	"github.com/jllopis/docket/pkg/config"
	"github.com/jllopis/docket/pkg/dispatcher"
	"github.com/jllopis/docket/pkg/errors"
	"github.com/jllopis/docket/pkg/llm"
	"github.com/jllopis/docket/pkg/resilience"
	"github.com/jllopis/docket/pkg/telemetry"
)

// app holds what every command shares: config, logging, telemetry and
// the audit store.
type app struct {
	cfg     *config.Config
	flags   globalFlags
	logger  *slog.Logger
	metrics *telemetry.Metrics
	store   audit.Store

	closers   []func(context.Context) error
	closeOnce sync.Once
}

func newApp(ctx context.Context, cfg *config.Config, flags globalFlags) (*app, error) {
	a := &app{cfg: cfg, flags: flags}
	a.logger = telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.InitWithConfig("docket", version, telemetry.Config{
		Exporter:           cfg.Telemetry.Exporter,
		OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
		OTLPTimeoutSeconds: cfg.Telemetry.OTLPTimeoutSeconds,
		Model:              cfg.LLM.Model,
		AuditDriver:        cfg.Audit.Driver,
	})
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "could not initialize telemetry", err)
	}
	a.closers = append(a.closers, shutdown)

	a.metrics, err = telemetry.NewMetrics()
	if err != nil {
		a.close()
		return nil, errors.New(errors.CodeInternal, "could not create metrics", err)
	}

	store, closeStore, err := openAuditStore(cfg.Audit)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, func(context.Context) error { return closeStore() })
	}
	return a, nil
}

func (a *app) close() {
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				a.logger.Warn("shutdown failed", "error", err)
			}
		}
	})
}

func openAuditStore(cfg config.AuditConfig) (audit.Store, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := audit.OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, nil, errors.New(errors.CodeInternal, "could not open audit store", err).
				WithContext("dsn", cfg.DSN)
		}
		return store, store.Close, nil
	case "memory":
		return audit.NewMemoryStore(), nil, nil
	default:
		return nil, nil, nil
	}
}

// clientOptions maps the llm section onto model client options.
func (a *app) clientOptions() []llm.ClientOption {
	llmCfg := a.cfg.LLM
	opts := []llm.ClientOption{
		llm.WithBaseURL(llmCfg.BaseURL),
		llm.WithTimeout(time.Duration(llmCfg.TimeoutSeconds) * time.Second),
		llm.WithHTTPOptions(llm.Options{
			"temperature": llmCfg.Temperature,
			"seed":        llmCfg.Seed,
		}),
		llm.WithProbeRetry(resilience.DefaultRetryConfig().WithMaxAttempts(llmCfg.ProbeAttempts)),
		llm.WithLogger(a.logger),
		llm.WithMetrics(a.metrics),
	}
	if llmCfg.BreakerEnabled {
		opts = append(opts, llm.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "ollama",
			FailureThreshold: llmCfg.BreakerFailures,
			Timeout:          time.Duration(llmCfg.BreakerResetSeconds) * time.Second,
			OnStateChange: func(name string, from, to resilience.CircuitBreakerState) {
				a.logger.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
			},
		})))
	}
	return opts
}

// newDispatcher builds a dispatcher seeded with the configured roster.
func (a *app) newDispatcher() (*dispatcher.Dispatcher, error) {
	people, err := a.cfg.People()
	if err != nil {
		return nil, NewConfigError(err, a.cfg.RosterFile)
	}
	opts := []dispatcher.Option{
		dispatcher.WithRoster(assignments(people)...),
		dispatcher.WithClientOptions(a.clientOptions()...),
		dispatcher.WithRequestOptions(a.cfg.LLM.Options),
		dispatcher.WithLogger(a.logger),
		dispatcher.WithMetrics(a.metrics),
	}
	if a.store != nil {
		opts = append(opts, dispatcher.WithAuditStore(a.store))
	}
	return dispatcher.New(opts...)
}

func assignments(people []config.PersonConfig) []dispatcher.Assignment {
	out := make([]dispatcher.Assignment, 0, len(people))
	for _, p := range people {
		out = append(out, dispatcher.Assignment{Person: p.Name, Responsibilities: p.Responsibilities})
	}
	return out
}

// withTimeout applies --timeout to ctx.
func (a *app) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.flags.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.flags.Timeout)
}

// timeoutError reports err as a timeout when ctx ran out.
func timeoutError(ctx context.Context, err error, operation string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.New(errors.CodeTimeout, operation+" timed out", err).WithRecoverable(true)
	}
	return err
}
