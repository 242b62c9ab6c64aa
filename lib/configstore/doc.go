// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package configstore persists the active network profile, a rolling
// history of backup snapshots, and the apply journal.
//
// Layout under the store directory:
//
//	.lock                   flock(2) target; held for every mutation
//	profile.json            active profile (mode 0600)
//	snapshots/<id>.json     immutable backups (mode 0600)
//	journal.json            present only while an apply is between
//	                        writing the profile and reconfiguring
//
// Every file write is atomic ([atomicfile.Write]). Snapshots carry a
// BLAKE3 digest of their deterministic CBOR encoding; [Store.Snapshot]
// refuses a snapshot whose digest does not match, so a restore is
// always bit-for-bit what was backed up.
//
// The journal follows the same write-before, check-at-start pattern as
// a self-update watchdog: the helper writes it before touching system
// state, marks it committed when done, and [Store.PendingJournal] at
// the next helper start reports an apply that was cut short so it can
// be rolled back. [Store.CommittedJournal] finds a finished apply by
// transaction ID for a caller that never learned the outcome.
package configstore
