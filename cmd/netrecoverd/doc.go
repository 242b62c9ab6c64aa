// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Netrecoverd is the network self-recovery daemon. It watches
// connectivity on the wireless interface and, when the device has been
// offline for the grace window, brings up the fallback access point and
// the setup API so an operator nearby can submit new credentials.
//
// The daemon runs unprivileged apart from CAP_NET_ADMIN (netlink and
// hostapd). Every change to system configuration goes through the
// netrecover-apply helper.
//
// Usage:
//
//	netrecoverd [--config /etc/netrecover/config.yaml]
//
// At startup the daemon asks the helper to roll back any apply that was
// interrupted by a crash or power loss, then starts probing.
package main
