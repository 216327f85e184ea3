// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jllopis/docket/pkg/config"
	"github.com/jllopis/docket/pkg/dispatcher"
	"github.com/jllopis/docket/pkg/errors"
	"github.com/jllopis/docket/pkg/health"
	"github.com/jllopis/docket/pkg/llm"
	"github.com/jllopis/docket/pkg/server"
)

func runServe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	watch := fs.Bool("watch", a.cfg.Server.WatchRoster, "register people added to roster_file")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("serve", err.Error())
	}
	if err := ensureNoArgs(fs.Args()); err != nil {
		return err
	}

	d, err := a.newDispatcher()
	if err != nil {
		return err
	}

	initCtx, cancel := a.withTimeout(ctx)
	err = d.InitializeModel(initCtx, a.cfg.LLM.Model)
	cancel()
	if err != nil {
		return timeoutError(initCtx, err, "model initialization")
	}

	client, err := llm.NewClient(ctx, a.cfg.LLM.Model, a.clientOptions()...)
	if err != nil {
		return err
	}

	provider := health.NewProvider()
	provider.Register("ollama", llm.BackendHealthChecker(llm.NewOllama(a.cfg.LLM.BaseURL, &http.Client{Timeout: 5 * time.Second})))

	opts := []server.Option{
		server.WithChat(client),
		server.WithHealth(provider),
		server.WithLogger(a.logger),
	}
	if a.store != nil {
		opts = append(opts, server.WithAuditStore(a.store))
	}

	if *watch {
		if a.cfg.RosterFile == "" {
			return NewInvalidArgumentError("watch", "--watch needs roster_file to be set")
		}
		watcher, err := config.NewRosterWatcher(a.cfg.RosterFile,
			config.WithWatchInterval(time.Duration(a.cfg.Server.WatchIntervalSeconds)*time.Second),
			config.WithWatchLogger(a.logger))
		if err != nil {
			return NewConfigError(err, a.cfg.RosterFile)
		}
		watcher.OnChange(func(people []config.PersonConfig) {
			registerNewPeople(d, people, a.logger)
		})
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	return server.New(d, opts...).ListenAndServe(ctx, *addr, 10*time.Second)
}

// registerNewPeople registers people not yet in the roster. The roster
// only grows, so edits to existing people are reported and skipped.
func registerNewPeople(d *dispatcher.Dispatcher, people []config.PersonConfig, logger *slog.Logger) int {
	known := make(map[string]bool)
	for _, p := range d.People() {
		known[p] = true
	}

	added := 0
	for _, p := range people {
		if known[p.Name] {
			continue
		}
		if err := d.RegisterPerson(p.Name, p.Responsibilities); err != nil {
			logger.Warn("roster entry skipped", "person", p.Name, "code", errors.CodeOf(err), "error", err)
			continue
		}
		known[p.Name] = true
		added++
	}
	if added > 0 {
		logger.Info("roster updated; the model instruction keeps the responsibilities known at startup", "added", added)
	}
	return added
}
