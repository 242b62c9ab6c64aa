// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

const redacted = "[REDACTED]"

var secretKeys = []string{"password", "credential", "psk", "passphrase"}

// IsSecretKey reports whether an attribute key names a secret. Matching
// is case-insensitive on substrings, so "wifi_password" and "PSK" both
// match.
func IsSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, secret := range secretKeys {
		if strings.Contains(lower, secret) {
			return true
		}
	}
	return false
}

// RedactAttr is a slog.HandlerOptions.ReplaceAttr function that blanks
// secret-named attributes. Groups are left intact so their members are
// visited individually.
func RedactAttr(groups []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		return attr
	}
	if IsSecretKey(attr.Key) {
		return slog.String(attr.Key, redacted)
	}
	return attr
}

// Options returns handler options at the given level with RedactAttr
// installed.
func Options(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level, ReplaceAttr: RedactAttr}
}

// NewDaemonLogger returns a JSON logger on stderr at info level.
func NewDaemonLogger() *slog.Logger {
	return NewJSONLogger(os.Stderr, slog.LevelInfo)
}

// NewJSONLogger returns a JSON logger writing to w.
func NewJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, Options(level)))
}

// NewCommandLogger creates a structured logger for CLI command
// operations. When stderr is a terminal, it uses slog.TextHandler for
// human-readable output. When stderr is piped or redirected, it uses
// slog.JSONHandler so the output matches the daemon's format.
//
// Callers scope the logger with command-specific context via With():
//
//	logger := logging.NewCommandLogger().With("command", "restore", "snapshot", id)
func NewCommandLogger() *slog.Logger {
	options := Options(slog.LevelInfo)
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything. Tests use it for
// components whose log output they do not inspect.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
