// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"
)

func runDispatch(ctx context.Context, a *app, args []string) error {
	proceeding := strings.TrimSpace(strings.Join(args, " "))
	if proceeding == "" {
		return NewInvalidArgumentError("proceeding", "dispatch requires the proceeding text")
	}

	d, err := a.newDispatcher()
	if err != nil {
		return err
	}
	if d.IsEmpty() {
		return NewInvalidArgumentError("roster", "the roster is empty; configure roster or roster_file")
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := d.InitializeModel(ctx, a.cfg.LLM.Model); err != nil {
		return timeoutError(ctx, err, "model initialization")
	}
	dec, err := d.DispatchDecision(ctx, proceeding)
	if err != nil {
		return timeoutError(ctx, err, "dispatch")
	}

	if a.flags.JSON {
		printJSON(dec)
		return nil
	}
	fmt.Println(dec.Person)
	return nil
}
