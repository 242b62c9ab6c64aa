// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package atomicfile replaces files so that readers see either the old
// contents or the new contents, never a mix.
//
// Every file netrecover owns goes through [Write]: the active network
// profile, backup snapshots, the apply journal, the status file and
// setup marker, /etc/hostname, /etc/hosts, the supplicant config and
// the rendered hostapd/dnsmasq configs. The sequence is: write a
// temporary file in the same directory, fsync it, rename it over the
// target, fsync the directory.
//
// This package has no dependencies on other netrecover packages.
package atomicfile
