// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// connectivity monitor and the apply transaction.
//
// The monitor's grace window (how long the device must be offline
// before the fallback access point comes up) and its poll cadence are
// both expressed in clock time. Tests drive them with a [FakeClock]:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	m := monitor.New(monitor.Config{Clock: c, ...})
//	go m.Run(ctx)
//	c.WaitForTimers(1)          // the poll ticker is registered
//	c.Advance(10 * time.Second) // deliver one poll tick
//
// [FakeClock.WaitForTimers] closes the race between a goroutine
// registering a timer and the test advancing past it.
package clock
