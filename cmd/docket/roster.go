// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"

	"github.com/jllopis/docket/pkg/dispatcher"
)

type rosterResult struct {
	People      []dispatcher.Assignment `json:"people"`
	Instruction string                  `json:"instruction"`
}

func runRoster(a *app, args []string) error {
	if err := ensureNoArgs(args); err != nil {
		return err
	}
	d, err := a.newDispatcher()
	if err != nil {
		return err
	}

	result := rosterResult{
		People:      d.Assignments(),
		Instruction: dispatcher.Instruction(d.Responsibilities()),
	}
	if a.flags.JSON {
		printJSON(result)
		return nil
	}

	w := newTabWriter()
	writeRow(w, "PERSON", "RESPONSIBILITIES")
	for _, p := range result.People {
		writeRow(w, p.Person, strings.Join(p.Responsibilities, ", "))
	}
	return w.Flush()
}
