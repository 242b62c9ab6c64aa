// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the netrecover
// binaries.
//
// Configuration comes from a single file named either by the
// NETRECOVER_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no file search. When neither is set,
// [Load] returns the appliance defaults from [Default]: a freshly
// imaged radio has to recover its network before anyone can edit a
// config file on it.
//
// Durations are Go duration strings ("60s", "2m30s"). Path fields
// support ${VAR} and ${VAR:-default} expansion after loading; no
// environment variable overrides a config value directly.
//
// Key exports:
//
//   - [Config] -- master struct, one section per component
//   - [Default] -- appliance defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every problem at once via errors.Join
//
// This package depends on no other netrecover packages.
package config
