// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds netrecover's single CBOR configuration.
//
// Two formats, one boundary:
//
//   - JSON for everything an operator, a browser, or a shell script
//     reads: the setup HTTP API, the status file and setup marker,
//     the stored profile and snapshot files.
//   - CBOR for the daemon ↔ privileged helper protocol and for the
//     canonical bytes that snapshot digests are computed over.
//
// Types that only ever cross the helper boundary use `cbor` tags.
// Types that are also written as JSON use `json` tags only;
// fxamacker/cbor falls back to them. Never put both on one field.
package codec
