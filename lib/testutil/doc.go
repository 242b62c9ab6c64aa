// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the wall-clock safety valves for tests.
//
// Everything time-dependent in netrecover runs on lib/clock, and tests
// drive it with clock.Fake. The one place real time is still needed is
// guarding a channel operation against a hung goroutine: [RequireReceive],
// [RequireSend] and [RequireClosed] wrap the select-with-timeout so
// individual tests never call time.After themselves.
//
// All helpers fail the test with t.Fatalf rather than returning errors.
package testutil
