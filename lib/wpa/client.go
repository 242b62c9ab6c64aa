// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package wpa

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/radio-headless/netrecover/lib/sysexec"
)

// StateCompleted is the wpa_state value of an associated, authenticated
// station.
const StateCompleted = "COMPLETED"

// Status is the subset of `wpa_cli status` netrecover reads.
type Status struct {
	State string
	SSID  string
	BSSID string
}

// Associated reports whether the station has completed association and
// key negotiation.
func (s Status) Associated() bool { return s.State == StateCompleted }

// Client runs wpa_cli against one interface.
type Client struct {
	Runner    sysexec.Runner
	Binary    string
	Interface string
}

// Status returns the supplicant state for the interface.
func (c *Client) Status(ctx context.Context) (Status, error) {
	output, err := c.Runner.Run(ctx, c.Binary, "-i", c.Interface, "status")
	if err != nil {
		return Status{}, fmt.Errorf("wpa_cli status: %w", err)
	}
	return ParseStatus(output), nil
}

// Disconnect releases the radio from station mode.
func (c *Client) Disconnect(ctx context.Context) error { return c.command(ctx, "disconnect") }

// Reconnect returns the radio to station mode.
func (c *Client) Reconnect(ctx context.Context) error { return c.command(ctx, "reconnect") }

// Reconfigure makes the supplicant reread its config file.
func (c *Client) Reconfigure(ctx context.Context) error { return c.command(ctx, "reconfigure") }

// command runs a wpa_cli action. wpa_cli exits zero even when the
// supplicant rejects the action, so the reply text is checked too.
func (c *Client) command(ctx context.Context, action string) error {
	output, err := c.Runner.Run(ctx, c.Binary, "-i", c.Interface, action)
	if err != nil {
		return fmt.Errorf("wpa_cli %s: %w", action, err)
	}
	if reply := strings.TrimSpace(string(output)); reply != "OK" {
		return fmt.Errorf("wpa_cli %s: supplicant replied %q", action, reply)
	}
	return nil
}

// ParseStatus parses the key=value lines of `wpa_cli status`.
func ParseStatus(output []byte) Status {
	var status Status
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), "=")
		if !found {
			continue
		}
		switch key {
		case "wpa_state":
			status.State = value
		case "ssid":
			status.SSID = value
		case "bssid":
			status.BSSID = value
		}
	}
	return status
}
