// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the
// netrecover binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//	go build -ldflags "-X github.com/radio-headless/netrecover/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// They default to "unknown" / "0.1.0-dev" in development builds and
// test runs. [Info] is the one-line form printed by --version; [Full]
// adds the Go toolchain and platform.
package version
