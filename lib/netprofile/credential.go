// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netprofile

import (
	"fmt"
	"log/slog"
)

const redacted = "[REDACTED]"

// Credential is a WPA2-personal passphrase. It formats as [REDACTED]
// under every fmt verb and every slog handler. Call Reveal to get the
// plaintext.
type Credential string

// Reveal returns the plaintext passphrase.
func (c Credential) Reveal() string { return string(c) }

// String implements fmt.Stringer.
func (c Credential) String() string { return redacted }

// GoString implements fmt.GoStringer so %#v is also covered.
func (c Credential) GoString() string { return redacted }

// Format implements fmt.Formatter. Without it %x and %q would print
// the underlying bytes.
func (c Credential) Format(state fmt.State, verb rune) {
	fmt.Fprint(state, redacted)
}

// LogValue implements slog.LogValuer.
func (c Credential) LogValue() slog.Value { return slog.StringValue(redacted) }
