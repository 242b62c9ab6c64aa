// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/radio-headless/netrecover/lib/configstore"
)

// snapshotSummary is the listing form of a snapshot. It never carries
// the credential.
type snapshotSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	SSID        string    `json:"ssid,omitempty"`
	Hostname    string    `json:"hostname"`
	Provisioned bool      `json:"provisioned"`
}

func (a *app) snapshotsCommand() *command {
	return &command{
		name:    "snapshots",
		summary: "List configuration backups, oldest first",
		flags:   func() *pflag.FlagSet { return a.flagSet("snapshots", true) },
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("snapshots takes no arguments")
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			store, err := configstore.Open(configstore.Options{
				Directory:     cfg.Paths.StoreDir,
				SnapshotLimit: cfg.Apply.SnapshotLimit,
			})
			if err != nil {
				return err
			}
			snapshots, err := store.Snapshots()
			if err != nil {
				return err
			}

			summaries := make([]snapshotSummary, 0, len(snapshots))
			for _, snapshot := range snapshots {
				summary := snapshotSummary{
					ID:        snapshot.ID,
					CreatedAt: snapshot.CreatedAt,
					Hostname:  snapshot.Hostname,
				}
				if snapshot.Profile != nil {
					summary.SSID = snapshot.Profile.SSID
					summary.Provisioned = true
				}
				summaries = append(summaries, summary)
			}

			if a.jsonOutput {
				return a.printJSON(summaries)
			}
			if len(summaries) == 0 {
				fmt.Fprintln(a.stdout, "No snapshots.")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSSID\tHOSTNAME")
			for _, summary := range summaries {
				ssid := summary.SSID
				if !summary.Provisioned {
					ssid = "(none)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					summary.ID, summary.CreatedAt.UTC().Format(time.RFC3339), ssid, summary.Hostname)
			}
			return tw.Flush()
		},
	}
}

func (a *app) restoreCommand() *command {
	return &command{
		name:    "restore",
		summary: "Restore a configuration backup through the privileged helper",
		usage:   "netrecoverctl restore <snapshot-id> [flags]",
		flags:   func() *pflag.FlagSet { return a.flagSet("restore", false) },
		run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("restore takes exactly one snapshot id (see 'netrecoverctl snapshots')")
			}
			snapshotID := args[0]
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			transactionID := uuid.NewString()
			a.logger.Debug("restoring snapshot", "snapshot_id", snapshotID, "transaction_id", transactionID)
			if err := a.committer(cfg).Restore(a.ctx, transactionID, snapshotID); err != nil {
				return fmt.Errorf("restoring %s: %w", snapshotID, err)
			}
			fmt.Fprintf(a.stdout, "Restored snapshot %s.\n", snapshotID)
			return nil
		},
	}
}
