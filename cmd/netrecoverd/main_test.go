// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/radio-headless/netrecover/lib/config"
	"github.com/radio-headless/netrecover/lib/logging"
	"github.com/radio-headless/netrecover/lib/netprofile"
)

func TestAccessPointSettings(t *testing.T) {
	cfg := config.Default()
	mac, err := net.ParseMAC("b8:27:eb:12:ab:cd")
	if err != nil {
		t.Fatal(err)
	}

	settings, err := accessPointSettings(cfg, mac)
	if err != nil {
		t.Fatalf("accessPointSettings: %v", err)
	}
	if settings.SSID != "Radio-Setup-ABCD" {
		t.Errorf("SSID = %q, want %q", settings.SSID, "Radio-Setup-ABCD")
	}
	if settings.Gateway != netip.MustParsePrefix("192.168.4.1/24") {
		t.Errorf("Gateway = %v", settings.Gateway)
	}
	if settings.RangeStart != netip.MustParseAddr("192.168.4.10") || settings.RangeEnd != netip.MustParseAddr("192.168.4.50") {
		t.Errorf("DHCP range = %v-%v", settings.RangeStart, settings.RangeEnd)
	}
	if settings.Interface != cfg.Interface || settings.Country != cfg.System.Country {
		t.Errorf("settings = %+v", settings)
	}

	cfg.AccessPoint.Gateway = "not-a-prefix"
	if _, err := accessPointSettings(cfg, mac); err == nil {
		t.Error("accessPointSettings accepted a malformed gateway")
	}
}

type stubCommitter struct {
	recovered bool
	err       error
	calls     int
}

func (s *stubCommitter) Commit(context.Context, string, netprofile.Profile) (string, error) {
	return "", nil
}

func (s *stubCommitter) Restore(context.Context, string, string) error { return nil }

func (s *stubCommitter) Recover(context.Context, string) (bool, error) {
	s.calls++
	return s.recovered, s.err
}

func TestRecoverInterruptedApplyNeverFails(t *testing.T) {
	for _, committer := range []*stubCommitter{
		{},
		{recovered: true},
		{err: errors.New("sudo: a password is required")},
	} {
		recoverInterruptedApply(context.Background(), committer, logging.Discard())
		if committer.calls != 1 {
			t.Errorf("Recover called %d times, want 1", committer.calls)
		}
	}
}
