// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor is the connectivity state machine that decides when
// the device enters and leaves setup mode.
//
//	probing ──online──▶ normal ──check fails──▶ probing
//	   │
//	   └─offline for the grace window──▶ fallback_active
//	                                       │      ▲
//	                              submission│      │apply failed
//	                                       ▼      │
//	                                    applying ─▶ apply_failed
//	                                       │
//	                                       └─apply succeeded──▶ normal
//
// The monitor starts in probing every time, overwriting whatever a
// previous run published. While probing it checks connectivity every
// poll interval; once online it rechecks every recheck interval and
// publishes nothing while checks pass. Only one check is outstanding at
// a time, and it runs on a worker goroutine so a slow check never
// delays a tick.
//
// Entering fallback_active starts the access point, then the setup
// server. If either fails to start, the monitor stays in
// fallback_active and retries on every tick; it never gives up on the
// fallback channel.
//
// [Monitor.Submit] is called by the setup server. It runs the apply
// transaction and moves the state machine according to its outcome.
// All time comes from an injected clock.
package monitor
