// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netapply

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/radio-headless/netrecover/lib/atomicfile"
	"github.com/radio-headless/netrecover/lib/netprofile"
	"github.com/radio-headless/netrecover/lib/wpa"
)

// loopbackSelf is the Debian convention for the machine's own name in
// /etc/hosts.
const loopbackSelf = "127.0.1.1"

// Hostname reads and applies the device hostname.
type Hostname interface {
	Current() (string, error)
	Apply(hostname string) error
}

// Station writes the supplicant config and makes wpa_supplicant reload
// it.
type Station interface {
	// Write renders the config for profile. A nil profile writes a
	// config with no networks.
	Write(profile *netprofile.Profile) error
	Reconfigure(ctx context.Context) error
}

// SystemHostname applies hostnames to the hostname file, the hosts
// file and the running kernel.
type SystemHostname struct {
	HostnameFile string
	HostsFile    string

	// Sethostname sets the kernel hostname. Production passes
	// unix.Sethostname.
	Sethostname func([]byte) error
}

// Current returns the hostname recorded in the hostname file, falling
// back to the kernel's.
func (s SystemHostname) Current() (string, error) {
	data, err := os.ReadFile(s.HostnameFile)
	if err == nil {
		if name := strings.TrimSpace(string(data)); name != "" {
			return name, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("reading %s: %w", s.HostnameFile, err)
	}
	return os.Hostname()
}

// Apply writes hostname to every place the system keeps it.
func (s SystemHostname) Apply(hostname string) error {
	if err := atomicfile.Write(s.HostnameFile, []byte(hostname+"\n"), 0644); err != nil {
		return err
	}

	hosts, err := os.ReadFile(s.HostsFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", s.HostsFile, err)
	}
	if err := atomicfile.Write(s.HostsFile, RewriteHosts(hosts, hostname), 0644); err != nil {
		return err
	}

	if s.Sethostname != nil {
		if err := s.Sethostname([]byte(hostname)); err != nil {
			return fmt.Errorf("setting kernel hostname: %w", err)
		}
	}
	return nil
}

// RewriteHosts replaces the 127.0.1.1 entry of a hosts file with
// hostname, appending one if none exists. Every other line is kept
// byte for byte.
func RewriteHosts(hosts []byte, hostname string) []byte {
	entry := loopbackSelf + "\t" + hostname

	var output bytes.Buffer
	replaced := false
	scanner := bufio.NewScanner(bytes.NewReader(hosts))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == loopbackSelf {
			if !replaced {
				output.WriteString(entry + "\n")
				replaced = true
			}
			continue
		}
		output.WriteString(line + "\n")
	}
	if !replaced {
		output.WriteString(entry + "\n")
	}
	return output.Bytes()
}

// SupplicantStation is the production Station.
type SupplicantStation struct {
	ConfigPath string
	Country    string
	Client     *wpa.Client
}

// Write renders and atomically installs the supplicant config. The
// file holds a derived PSK, so it is readable by root only.
func (s SupplicantStation) Write(profile *netprofile.Profile) error {
	var content []byte
	if profile == nil {
		content = wpa.RenderEmptyConfig(s.Country)
	} else {
		content = wpa.RenderConfig(*profile, s.Country)
	}
	return atomicfile.Write(s.ConfigPath, content, 0600)
}

// Reconfigure asks wpa_supplicant to reread the config.
func (s SupplicantStation) Reconfigure(ctx context.Context) error {
	return s.Client.Reconfigure(ctx)
}
