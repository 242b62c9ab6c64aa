// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os/signal"
	"syscall"

	"github.com/radio-headless/netrecover/lib/accesspoint"
	"github.com/radio-headless/netrecover/lib/config"
	"github.com/radio-headless/netrecover/lib/logging"
	"github.com/radio-headless/netrecover/lib/monitor"
	"github.com/radio-headless/netrecover/lib/netapply"
	"github.com/radio-headless/netrecover/lib/netprofile"
	"github.com/radio-headless/netrecover/lib/probe"
	"github.com/radio-headless/netrecover/lib/process"
	"github.com/radio-headless/netrecover/lib/provisioning"
	"github.com/radio-headless/netrecover/lib/setupstate"
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
		fmt.Println(version.Banner("netrecoverd"))
		return nil
	}
	if flag.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", flag.Args())
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := logging.NewDaemonLogger()
	slog.SetDefault(logger)
	logger.Info("netrecoverd starting", "version", version.Info(), "interface", cfg.Interface)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mac, err := accesspoint.InterfaceMAC(cfg.Interface)
	if err != nil {
		return err
	}
	settings, err := accessPointSettings(cfg, mac)
	if err != nil {
		return err
	}

	runner := sysexec.Exec{}
	station := &wpa.Client{Runner: runner, Binary: cfg.Probe.WPACLI, Interface: cfg.Interface}

	prober := &probe.Prober{
		Association:         station,
		Routes:              probe.NetlinkRoutes{Interface: cfg.Interface},
		Resolver:            net.DefaultResolver,
		Dialer:              &net.Dialer{},
		DNSName:             cfg.Probe.DNSName,
		ReachabilityAddress: cfg.Probe.ReachabilityAddress,
	}

	controller := accesspoint.New(accesspoint.Options{
		Station: station,
		Backend: accesspoint.NewHostapd(accesspoint.HostapdOptions{
			RunDir:        cfg.Paths.RunDir,
			HostapdBinary: cfg.AccessPoint.Hostapd,
			DnsmasqBinary: cfg.AccessPoint.Dnsmasq,
			Logger:        logger.With("component", "hostapd"),
		}),
		Settings:         settings,
		OperationTimeout: cfg.AccessPoint.OperationTimeout,
		Logger:           logger.With("component", "accesspoint"),
	})

	helper := &netapply.HelperClient{
		Argv:    cfg.Apply.HelperCommand,
		Timeout: cfg.Apply.HelperTimeout,
	}
	recoverInterruptedApply(ctx, helper, logger)

	transaction := netapply.NewTransaction(netapply.TransactionOptions{
		Committer:     helper,
		AccessPoint:   controller,
		Verifier:      prober,
		Timeout:       cfg.Apply.Timeout,
		VerifyTimeout: cfg.Apply.VerifyTimeout,
		Logger:        logger.With("component", "apply"),
	})

	// The setup server submits to the monitor and the monitor starts
	// the setup server, so the server reaches the monitor through a
	// pointer filled in below.
	submitter := &lateSubmitter{}
	server := provisioning.New(provisioning.Options{
		Address:         cfg.Provisioning.Listen,
		Submitter:       submitter,
		AllowOrigin:     cfg.Provisioning.AllowOrigin,
		ShutdownTimeout: cfg.Provisioning.ShutdownTimeout,
		Logger:          logger,
	})

	submitter.monitor = monitor.New(monitor.Options{
		Prober:      prober,
		AccessPoint: controller,
		Server:      server,
		Applier:     transaction,
		Publisher: &setupstate.Marker{
			StatusPath: cfg.Paths.StatusFile,
			MarkerPath: cfg.Paths.SetupMarker,
		},
		PollInterval:    cfg.Monitor.PollInterval,
		GraceWindow:     cfg.Monitor.GraceWindow,
		RecheckInterval: cfg.Monitor.RecheckInterval,
		ProbeTimeout:    cfg.Probe.Timeout,
		ChannelTimeout:  cfg.AccessPoint.OperationTimeout,
		Logger:          logger.With("component", "monitor"),
	})

	err = submitter.monitor.Run(ctx)
	logger.Info("netrecoverd stopped")
	return err
}

// accessPointSettings builds the fallback network description from the
// validated config and the interface MAC.
func accessPointSettings(cfg *config.Config, mac net.HardwareAddr) (accesspoint.Settings, error) {
	gateway, err := netip.ParsePrefix(cfg.AccessPoint.Gateway)
	if err != nil {
		return accesspoint.Settings{}, fmt.Errorf("access_point.gateway: %w", err)
	}
	rangeStart, err := netip.ParseAddr(cfg.AccessPoint.DHCPRangeStart)
	if err != nil {
		return accesspoint.Settings{}, fmt.Errorf("access_point.dhcp_range_start: %w", err)
	}
	rangeEnd, err := netip.ParseAddr(cfg.AccessPoint.DHCPRangeEnd)
	if err != nil {
		return accesspoint.Settings{}, fmt.Errorf("access_point.dhcp_range_end: %w", err)
	}
	return accesspoint.Settings{
		Interface:  cfg.Interface,
		SSID:       accesspoint.SSIDFor(cfg.AccessPoint.SSIDPrefix, mac),
		Passphrase: cfg.AccessPoint.Passphrase,
		Gateway:    gateway,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Channel:    cfg.AccessPoint.Channel,
		Country:    cfg.System.Country,
	}, nil
}

// recoverInterruptedApply asks the helper to roll back a commit left
// half-done by a crash. Failure is logged, not fatal: the monitor must
// still run so the device can reach setup mode.
func recoverInterruptedApply(ctx context.Context, committer netapply.Committer, logger *slog.Logger) {
	recovered, err := committer.Recover(ctx, "")
	switch {
	case err != nil:
		logger.Error("recovering interrupted apply", "error", err)
	case recovered:
		logger.Warn("rolled back an interrupted apply")
	}
}

type lateSubmitter struct {
	monitor *monitor.Monitor
}

func (l *lateSubmitter) Status() setupstate.Status {
	return l.monitor.Status()
}

func (l *lateSubmitter) Submit(ctx context.Context, profile netprofile.Profile) (netapply.Outcome, error) {
	return l.monitor.Submit(ctx, profile)
}
