// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Netrecover-apply is the privileged helper that changes system network
// configuration on behalf of netrecoverd and netrecoverctl. It is the
// only netrecover binary that runs as root, reached through a single
// sudoers line:
//
//	netrecover ALL=(root) NOPASSWD: /usr/local/lib/netrecover/netrecover-apply
//
// It takes no positional arguments. One CBOR request is read from
// stdin (commit, restore or recover) and one CBOR response is written
// to stdout. Everything it does is serialized by the config store's
// lock, and any commit interrupted by a crash is rolled back before a
// new one starts.
//
// Logs go to stderr as JSON. The credential never appears in them.
package main
