// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/docket/pkg/errors"
	"github.com/jllopis/docket/pkg/llm"
)

type chatResult struct {
	Model string `json:"model"`
	Reply string `json:"reply"`
}

func runChat(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	historyFile := fs.String("history-file", "", "JSON or YAML list of alternating user/assistant turns")
	examplesFile := fs.String("examples", "", "JSON or YAML list of {text, label} examples")
	system := fs.String("system", "", "system instruction")
	stream := fs.Bool("stream", false, "print the reply while it is generated")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("chat", err.Error())
	}
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		return NewInvalidArgumentError("text", "chat requires a message")
	}

	var history []string
	if *historyFile != "" {
		h, err := readHistoryFile(*historyFile)
		if err != nil {
			return err
		}
		history = append(history, h...)
	}
	if *examplesFile != "" {
		examples, err := readExamplesFile(*examplesFile)
		if err != nil {
			return err
		}
		history = append(llm.ComposeHistory(examples), history...)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	opts := append(a.clientOptions(), llm.WithSystemInstruction(*system))
	client, err := llm.NewClient(ctx, a.cfg.LLM.Model, opts...)
	if err != nil {
		return timeoutError(ctx, err, "model initialization")
	}

	var reply string
	switch {
	case *stream && len(history) == 0 && !a.flags.JSON:
		reply, err = client.ChatStream(ctx, text, func(piece string) { fmt.Print(piece) })
		if err == nil {
			fmt.Println()
			return nil
		}
	case len(history) > 0:
		reply, err = client.ChatWithHistory(ctx, history, text)
	default:
		reply, err = client.Chat(ctx, text)
	}
	if err != nil {
		return timeoutError(ctx, err, "chat")
	}

	if a.flags.JSON {
		printJSON(chatResult{Model: client.Model(), Reply: reply})
		return nil
	}
	fmt.Println(reply)
	return nil
}

// readHistoryFile loads a history; YAML is a superset of JSON so one
// decoder covers both.
func readHistoryFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewInvalidArgumentError("history-file", err.Error())
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.New(errors.CodeInvalidHistory, "history file is not valid JSON or YAML", err).
			WithContext("path", path)
	}
	return llm.ParseHistory(raw)
}

func readExamplesFile(path string) ([]llm.LabeledExample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewInvalidArgumentError("examples", err.Error())
	}
	var examples []llm.LabeledExample
	if err := yaml.Unmarshal(data, &examples); err != nil {
		if jerr := json.Unmarshal(data, &examples); jerr != nil {
			return nil, NewInvalidArgumentError("examples", "expected a list of {text, label}: "+err.Error())
		}
	}
	for i, ex := range examples {
		if ex.Text == "" || ex.Label == "" {
			return nil, NewInvalidArgumentError("examples", fmt.Sprintf("example %d needs both text and label", i))
		}
	}
	return examples, nil
}
