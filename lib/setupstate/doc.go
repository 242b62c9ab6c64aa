// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package setupstate defines the setup states of the connectivity
// monitor and publishes them for other processes on the appliance.
//
// Two files make up the published surface:
//
//   - the status file, always present while the daemon runs, holding
//     the current [Status] as JSON;
//   - the setup marker, which exists only while the device is in setup
//     mode (fallback_active, applying, apply_failed) and holds the same
//     JSON. Playback and button handling only test for its existence.
//
// Both are written atomically, so a reader never sees a torn file.
package setupstate
