// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the docket CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jllopis/docket/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(NewInvalidArgumentError("flags", err.Error()), global.JSON)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	switch args[0] {
	case "help":
		printUsage()
		return
	case "version":
		printVersion(global.JSON)
		return
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		fatal(NewConfigError(err, global.ConfigPath), global.JSON)
	}
	app, err := newApp(ctx, cfg, global)
	if err != nil {
		fatal(err, global.JSON)
	}
	defer app.close()

	switch args[0] {
	case "dispatch":
		err = runDispatch(ctx, app, args[1:])
	case "chat":
		err = runChat(ctx, app, args[1:])
	case "roster":
		err = runRoster(app, args[1:])
	case "models":
		err = runModels(ctx, app, args[1:])
	case "serve":
		err = runServe(ctx, app, args[1:])
	default:
		err = NewInvalidArgumentError(args[0], fmt.Sprintf("unknown command %q", args[0]))
	}
	if err != nil {
		app.close()
		fatal(err, global.JSON)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{Timeout: 2 * time.Minute}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config" || arg == "--set" || arg == "--profile":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--config" {
				flags.ConfigPath = args[i+1]
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case strings.HasPrefix(arg, "--set="), strings.HasPrefix(arg, "--profile="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--timeout":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --timeout")
			}
			value, err := time.ParseDuration(args[i+1])
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
			i++
		case strings.HasPrefix(arg, "--timeout="):
			value, err := time.ParseDuration(strings.TrimPrefix(arg, "--timeout="))
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err, true)
	}
	fmt.Println(string(payload))
}

func printVersion(asJSON bool) {
	if asJSON {
		printJSON(map[string]string{"version": version})
		return
	}
	fmt.Println(version)
}

func printUsage() {
	fmt.Println(`docket routes proceedings to the person responsible for them.

Usage:
  docket [global flags] <command> [args]

Global flags:
  --config <path>      Path to a YAML config file
  --profile <name>     Also load <config>.<name>.yaml
  --set key=value      Override config (repeatable)
  --timeout <dur>      Per-command timeout (default 2m)
  --json               JSON output

Commands:
  dispatch <proceeding...>
  chat [--history-file <path>] [--examples <path>] [--stream] <text...>
  roster
  models
  serve [--addr <addr>] [--watch]
  version`)
}

func fatal(err error, asJSON bool) {
	WrapError(err).PrintError(os.Stderr, asJSON)
	os.Exit(1)
}

func ensureNoArgs(args []string) error {
	if len(args) > 0 {
		return NewInvalidArgumentError(strings.Join(args, " "), fmt.Sprintf("unexpected args: %v", args))
	}
	return nil
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func writeRow(w *tabwriter.Writer, cols ...string) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}
