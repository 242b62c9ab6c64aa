// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package setupstate

import "time"

// State is one state of the connectivity monitor.
type State string

const (
	// Probing means connectivity is being evaluated, either at startup
	// or after a check failed in Normal.
	Probing State = "probing"

	// Normal means the device is online on its configured network.
	Normal State = "normal"

	// FallbackActive means the fallback access point and setup API are
	// up and waiting for a submission.
	FallbackActive State = "fallback_active"

	// Applying means a submitted profile is being applied.
	Applying State = "applying"

	// ApplyFailed is the short-lived state after a failed apply, before
	// the fallback channel is confirmed up again.
	ApplyFailed State = "apply_failed"
)

// SetupMode reports whether s is part of setup mode, the states in
// which the fallback channel is (or is about to be) offered.
func (s State) SetupMode() bool {
	switch s {
	case FallbackActive, Applying, ApplyFailed:
		return true
	}
	return false
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case Probing, Normal, FallbackActive, Applying, ApplyFailed:
		return true
	}
	return false
}

// Status is the published view of the monitor.
type Status struct {
	State State `json:"state"`

	// LastError is the operator-facing summary of the most recent
	// failed apply. It stays set while FallbackActive until the next
	// submission.
	LastError string `json:"last_error,omitempty"`

	// AccessPointSSID is the fallback network name while setup mode is
	// active.
	AccessPointSSID string `json:"access_point_ssid,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
