// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package netapply applies a submitted network profile as one
// all-or-nothing transaction.
//
// The work is split across a privilege boundary. The unprivileged
// daemon runs [Transaction]: it validates the profile, asks a
// [Committer] to make the change, stops the fallback access point, and
// verifies connectivity. If verification fails it asks the Committer
// to restore the snapshot taken before the change and restarts the
// access point.
//
// The privileged side is [LocalCommitter], run by netrecover-apply as
// root. A commit:
//
//  1. snapshots the current profile and hostname
//  2. writes the new profile to the config store
//  3. applies the hostname to /etc/hostname, /etc/hosts and the kernel
//  4. renders the supplicant config and asks wpa_supplicant to reload
//
// A failure in steps 2 to 4 is rolled back from the step 1 snapshot
// before the helper answers. An apply journal brackets steps 2 to 4 so
// that a helper killed mid-commit is rolled back the next time it runs.
// When the daemon gets no answer at all it asks for that rollback
// itself, naming the transaction, which also undoes a commit that
// finished but whose answer was lost.
//
// [HelperClient] is the daemon's Committer. It speaks [Request] and
// [Response], CBOR-encoded, over the helper's stdin and stdout. The
// helper's argv is fixed configuration; operator input only ever
// travels inside the request body.
//
// Failures are [*Error] values classified by [Kind]. [Error.Summary]
// is the operator-facing text; the wrapped error is for logs.
package netapply
