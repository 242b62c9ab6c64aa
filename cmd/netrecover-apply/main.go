// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/radio-headless/netrecover/lib/config"
	"github.com/radio-headless/netrecover/lib/configstore"
	"github.com/radio-headless/netrecover/lib/logging"
	"github.com/radio-headless/netrecover/lib/netapply"
	"github.com/radio-headless/netrecover/lib/process"
	"github.com/radio-headless/netrecover/lib/sysexec"
	"github.com/radio-headless/netrecover/lib/version"
	"github.com/radio-headless/netrecover/lib/wpa"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the YAML config file (default: $"+config.EnvironmentVariable+", then built-in defaults)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.Banner("netrecover-apply"))
		return nil
	}
	if flag.NArg() > 0 {
		return fmt.Errorf("netrecover-apply takes no arguments; the request is read from stdin")
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewDaemonLogger().With("component", "netrecover-apply")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := requestContext(ctx, cfg)
	defer cancel()

	committer, err := newCommitter(cfg, logger)
	if err != nil {
		return err
	}
	return serve(ctx, os.Stdin, os.Stdout, committer, logger)
}

// requestContext bounds the whole request, rollback included, so the
// helper answers before the daemon stops waiting for it.
func requestContext(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, netapply.HelperDeadline(cfg.Apply.HelperTimeout))
}

// newCommitter opens the store and wires the production system
// collaborators.
func newCommitter(cfg *config.Config, logger *slog.Logger) (*netapply.LocalCommitter, error) {
	store, err := configstore.Open(configstore.Options{
		Directory:     cfg.Paths.StoreDir,
		SnapshotLimit: cfg.Apply.SnapshotLimit,
	})
	if err != nil {
		return nil, err
	}
	return &netapply.LocalCommitter{
		Store: store,
		Hostname: netapply.SystemHostname{
			HostnameFile: cfg.System.HostnameFile,
			HostsFile:    cfg.System.HostsFile,
			Sethostname:  unix.Sethostname,
		},
		Station: netapply.SupplicantStation{
			ConfigPath: cfg.System.WPAConfig,
			Country:    cfg.System.Country,
			Client: &wpa.Client{
				Runner:    sysexec.Exec{},
				Binary:    cfg.Probe.WPACLI,
				Interface: cfg.Interface,
			},
		},
		JournalMaxAge: cfg.Apply.JournalMaxAge,
		Logger:        logger,
	}, nil
}

func serve(ctx context.Context, stdin io.Reader, stdout io.Writer, committer *netapply.LocalCommitter, logger *slog.Logger) error {
	if err := netapply.Serve(ctx, stdin, stdout, committer, logger); err != nil {
		logger.Error("no response produced", "error", err)
		return err
	}
	return nil
}
