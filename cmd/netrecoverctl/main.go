// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/radio-headless/netrecover/lib/config"
	"github.com/radio-headless/netrecover/lib/logging"
	"github.com/radio-headless/netrecover/lib/netapply"
	"github.com/radio-headless/netrecover/lib/process"
	"github.com/radio-headless/netrecover/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		ctx:    ctx,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: logging.NewCommandLogger(),
		http:   &http.Client{Timeout: 3 * time.Minute},
		committer: func(cfg *config.Config) netapply.Committer {
			return &netapply.HelperClient{Argv: cfg.Apply.HelperCommand, Timeout: cfg.Apply.HelperTimeout}
		},
	}
	return a.root().execute(os.Args[1:], os.Stderr)
}

// app carries what every command needs, so tests can swap the outside
// world for fakes.
type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	http   *http.Client

	// committer reaches the privileged helper.
	committer func(cfg *config.Config) netapply.Committer

	configPath string
	jsonOutput bool
}

func (a *app) root() *command {
	return &command{
		name:    "netrecoverctl",
		summary: "Inspect and administer network self-recovery.",
		subcommands: []*command{
			a.statusCommand(),
			a.snapshotsCommand(),
			a.restoreCommand(),
			a.applyCommand(),
			a.versionCommand(),
		},
	}
}

// flagSet returns a flag set with the flags every command shares.
func (a *app) flagSet(name string, withJSON bool) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.StringVar(&a.configPath, "config", "", "path to the YAML config file (default: $"+config.EnvironmentVariable+", then built-in defaults)")
	if withJSON {
		flags.BoolVar(&a.jsonOutput, "json", false, "print machine-readable JSON")
	}
	return flags
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Resolve(a.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (a *app) printJSON(v any) error {
	encoder := json.NewEncoder(a.stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (a *app) versionCommand() *command {
	return &command{
		name:    "version",
		summary: "Print version information",
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("version takes no arguments")
			}
			fmt.Fprintln(a.stdout, "netrecoverctl "+version.Full())
			return nil
		},
	}
}
