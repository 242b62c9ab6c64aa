// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/radio-headless/netrecover/lib/process"
	"github.com/radio-headless/netrecover/lib/setupstate"
)

// exitNotRunning is the status exit code when no status file exists,
// which means netrecoverd has never run.
const exitNotRunning = 3

func (a *app) statusCommand() *command {
	return &command{
		name:    "status",
		summary: "Show the published setup state",
		flags:   func() *pflag.FlagSet { return a.flagSet("status", true) },
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("status takes no arguments")
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			status, err := setupstate.ReadStatus(cfg.Paths.StatusFile)
			if errors.Is(err, fs.ErrNotExist) {
				return &process.ExitError{
					Code: exitNotRunning,
					Err:  fmt.Errorf("no status at %s; is netrecoverd running?", cfg.Paths.StatusFile),
				}
			}
			if err != nil {
				return err
			}

			if a.jsonOutput {
				return a.printJSON(status)
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "State:\t%s\n", status.State)
			fmt.Fprintf(tw, "Setup mode:\t%s\n", yesNo(status.State.SetupMode()))
			if status.AccessPointSSID != "" {
				fmt.Fprintf(tw, "Setup network:\t%s\n", status.AccessPointSSID)
			}
			if status.LastError != "" {
				fmt.Fprintf(tw, "Last error:\t%s\n", status.LastError)
			}
			if !status.UpdatedAt.IsZero() {
				fmt.Fprintf(tw, "Updated:\t%s\n", status.UpdatedAt.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
