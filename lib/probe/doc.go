// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package probe decides whether the device is online on its configured
// network.
//
// A check runs up to four steps in order and stops at the first
// failure:
//
//  1. association: wpa_supplicant reports wpa_state=COMPLETED
//  2. default_route: the kernel has an IPv4 default route
//  3. dns: the configured name resolves
//  4. reachability: a TCP connection to the configured address opens
//     (only when an address is configured)
//
// The whole check shares one deadline. Every step's latency is recorded
// in the [Result] whether it passed or not, and a failed result names
// the step that failed.
//
// Probing is read-only and a [Prober] is safe for concurrent use.
package probe
