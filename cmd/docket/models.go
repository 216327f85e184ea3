// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jllopis/docket/pkg/errors"
	"github.com/jllopis/docket/pkg/llm"
)

type modelRow struct {
	Model      string `json:"model"`
	Configured bool   `json:"configured"`
}

func runModels(ctx context.Context, a *app, args []string) error {
	if err := ensureNoArgs(args); err != nil {
		return err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	backend := llm.NewOllama(a.cfg.LLM.BaseURL, &http.Client{
		Timeout: time.Duration(a.cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err := backend.Ping(ctx); err != nil {
		return timeoutError(ctx, err, "liveness probe")
	}
	models, err := backend.ListModels(ctx)
	if err != nil {
		return errors.New(errors.CodeBackendUnreachable, "could not list models", err)
	}

	rows := make([]modelRow, 0, len(models))
	for _, m := range models {
		rows = append(rows, modelRow{Model: m, Configured: m == a.cfg.LLM.Model || m == a.cfg.LLM.Model+":latest"})
	}
	if a.flags.JSON {
		printJSON(rows)
		return nil
	}

	w := newTabWriter()
	writeRow(w, "MODEL", "CONFIGURED")
	for _, r := range rows {
		mark := ""
		if r.Configured {
			mark = "*"
		}
		writeRow(w, r.Model, mark)
	}
	return w.Flush()
}
