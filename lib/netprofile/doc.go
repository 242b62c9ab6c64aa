// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package netprofile defines the network profile an operator submits
// during setup: the wireless network name, its WPA2-personal
// passphrase, and the device hostname.
//
// [Normalize] trims the SSID and hostname and lowercases the hostname.
// [Profile.Validate] checks the normalized profile and reports every
// bad field at once through a [*ValidationError].
//
// The passphrase is carried as a [Credential]. Printing it through
// fmt or log/slog yields "[REDACTED]"; only the JSON and CBOR encodings
// carry the plaintext, because the profile has to be persisted and
// handed to the privileged helper.
package netprofile
