// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package sysexec runs external system tools (wpa_cli, the privileged
// helper) behind a small interface so the callers can be tested
// without the tools installed.
//
// Commands are always executed directly from an argv; nothing is ever
// passed through a shell.
package sysexec
