// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the slog loggers used by the netrecover
// binaries.
//
// Daemons and the privileged helper log JSON to stderr
// ([NewDaemonLogger]); journald captures it. The operator CLI logs text
// when stderr is a terminal and JSON otherwise ([NewCommandLogger]).
//
// Every handler built here runs [RedactAttr], which replaces the value
// of any attribute whose key names a secret (password, credential, psk,
// passphrase) with "[REDACTED]". Typed credentials already redact
// themselves through slog.LogValuer; RedactAttr catches plain strings
// logged under a secret-looking key.
package logging
