// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package wpa talks to wpa_supplicant for the station side of the
// wireless interface.
//
// [Client] wraps the wpa_cli commands netrecover needs: status (is the
// station associated), disconnect and reconnect (hand the radio to and
// back from the fallback access point), and reconfigure (reload the
// supplicant config after an apply).
//
// [RenderConfig] produces the supplicant config for one profile. The
// SSID is hex-encoded so no character needs quoting, and the passphrase
// is replaced by its derived 256-bit PSK ([DerivePSK]) so the plaintext
// passphrase never reaches the supplicant config.
package wpa
