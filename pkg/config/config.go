// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads docket settings. Sources are layered, later ones
// winning: built-in defaults, a YAML file, an optional profile file next
// to it, DOCKET_* environment variables and --set overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DOCKET_"

// Config is the full docket configuration after layering.
type Config struct {
	Log        LogConfig       `koanf:"log"`
	LLM        LLMConfig       `koanf:"llm"`
	Telemetry  TelemetryConfig `koanf:"telemetry"`
	Audit      AuditConfig     `koanf:"audit"`
	Server     ServerConfig    `koanf:"server"`
	Roster     []PersonConfig  `koanf:"roster" validate:"dive"`
	RosterFile string          `koanf:"roster_file"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// LLMConfig configures the Ollama model client.
type LLMConfig struct {
	BaseURL        string         `koanf:"base_url" validate:"required,url"`
	Model          string         `koanf:"model" validate:"required"`
	TimeoutSeconds int            `koanf:"timeout_seconds" validate:"gte=1"`
	Temperature    float64        `koanf:"temperature" validate:"gte=0,lte=2"`
	Seed           int            `koanf:"seed"`
	Options        map[string]any `koanf:"options"`

	// ProbeAttempts retries the startup liveness probe.
	ProbeAttempts int `koanf:"probe_attempts" validate:"gte=1"`

	BreakerEnabled      bool `koanf:"breaker_enabled"`
	BreakerFailures     int  `koanf:"breaker_failures" validate:"gte=1"`
	BreakerResetSeconds int  `koanf:"breaker_reset_seconds" validate:"gte=1"`
}

// TelemetryConfig selects the OpenTelemetry exporter.
type TelemetryConfig struct {
	Exporter           string `koanf:"exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint       string `koanf:"otlp_endpoint" validate:"required_if=Exporter otlp"`
	OTLPInsecure       bool   `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int    `koanf:"otlp_timeout_seconds"`
}

// AuditConfig selects where dispatch decisions are recorded.
type AuditConfig struct {
	Driver string `koanf:"driver" validate:"oneof=none memory sqlite"`
	DSN    string `koanf:"dsn" validate:"required_if=Driver sqlite"`
}

// ServerConfig configures the HTTP API of "docket serve".
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// WatchRoster polls roster_file and registers people added to it.
	WatchRoster          bool `koanf:"watch_roster"`
	WatchIntervalSeconds int  `koanf:"watch_interval_seconds" validate:"gte=1"`
}

// PersonConfig is one roster entry.
type PersonConfig struct {
	Name             string   `koanf:"name" yaml:"name" validate:"required"`
	Responsibilities []string `koanf:"responsibilities" yaml:"responsibilities" validate:"dive,required"`
}

// topLevelKeys are keys whose own name contains an underscore.
var topLevelKeys = map[string]bool{"roster_file": true}

func defaults(k *koanf.Koanf) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("llm.base_url", "http://localhost:11434")
	k.Set("llm.model", "llama2-uncensored")
	k.Set("llm.timeout_seconds", 120)
	k.Set("llm.temperature", 0.1)
	k.Set("llm.seed", 0)
	k.Set("llm.probe_attempts", 1)
	k.Set("llm.breaker_enabled", false)
	k.Set("llm.breaker_failures", 5)
	k.Set("llm.breaker_reset_seconds", 30)

	k.Set("telemetry.exporter", "none")
	k.Set("telemetry.otlp_insecure", true)
	k.Set("telemetry.otlp_timeout_seconds", 10)

	k.Set("audit.driver", "memory")

	k.Set("server.addr", ":8080")
	k.Set("server.watch_roster", false)
	k.Set("server.watch_interval_seconds", 2)
}

// Load reads path (when non-empty) over the defaults and applies the
// environment.
func Load(path string) (*Config, error) {
	return load(cliArgs{ConfigPath: path}, nil)
}

// LoadWithCLI is Load driven by command-line arguments. It understands
// --config <path>, --profile <name> (alias --env) and repeated
// --set key=value, each also in --flag=value form. Other arguments are
// ignored. A --set value that parses as JSON is used as decoded JSON.
func LoadWithCLI(args []string) (*Config, error) {
	cli, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(cli, sets)
}

type cliArgs struct {
	ConfigPath string
	Profile    string
}

func load(cli cliArgs, sets map[string]any) (*Config, error) {
	k := koanf.New(".")
	defaults(k)

	if cli.ConfigPath != "" {
		if err := k.Load(file.Provider(cli.ConfigPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", cli.ConfigPath, err)
		}
		if p := profileConfigPath(cli.ConfigPath, cli.Profile); p != "" {
			if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile %s: %w", p, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	for key, value := range sets {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("apply --set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps DOCKET_LLM_BASE_URL to llm.base_url: the first segment
// names the section and the rest is the key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if topLevelKeys[key] {
		return key
	}
	return strings.Replace(key, "_", ".", 1)
}

func parseCLIOverrides(args []string) (cliArgs, map[string]any, error) {
	var cli cliArgs
	sets := make(map[string]any)

	value := func(i *int, flag string) (string, error) {
		arg := args[*i]
		if v, ok := strings.CutPrefix(arg, flag+"="); ok {
			return v, nil
		}
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		*i++
		return args[*i], nil
	}
	is := func(arg, flag string) bool {
		return arg == flag || strings.HasPrefix(arg, flag+"=")
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case is(arg, "--config"):
			v, err := value(&i, "--config")
			if err != nil {
				return cli, nil, err
			}
			cli.ConfigPath = v
		case is(arg, "--profile"), is(arg, "--env"):
			flag := "--profile"
			if strings.HasPrefix(arg, "--env") {
				flag = "--env"
			}
			v, err := value(&i, flag)
			if err != nil {
				return cli, nil, err
			}
			cli.Profile = v
		case is(arg, "--set"):
			v, err := value(&i, "--set")
			if err != nil {
				return cli, nil, err
			}
			key, raw, ok := strings.Cut(v, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return cli, nil, fmt.Errorf("invalid --set %q, expected key=value", v)
			}
			sets[strings.TrimSpace(key)] = parseSetValue(raw)
		}
	}
	return cli, sets, nil
}

func parseSetValue(raw string) any {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		return decoded
	}
	return raw
}

// profileConfigPath returns base's sibling for profile (config.yaml ->
// config.dev.yaml) when that file exists, or "".
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	path := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
