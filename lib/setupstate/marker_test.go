// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package setupstate

import (
	"path/filepath"
	"testing"
	"time"
)

func newMarker(t *testing.T) *Marker {
	t.Helper()
	directory := t.TempDir()
	return &Marker{
		StatusPath: filepath.Join(directory, "state.json"),
		MarkerPath: filepath.Join(directory, "setup-mode"),
	}
}

func TestSetupMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  bool
	}{
		{Probing, false},
		{Normal, false},
		{FallbackActive, true},
		{Applying, true},
		{ApplyFailed, true},
	}
	for _, test := range tests {
		if got := test.state.SetupMode(); got != test.want {
			t.Errorf("%s.SetupMode() = %v, want %v", test.state, got, test.want)
		}
	}
}

func TestPublishMarkerFollowsState(t *testing.T) {
	t.Parallel()
	marker := newMarker(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	sequence := []State{Probing, FallbackActive, Applying, ApplyFailed, FallbackActive, Applying, Normal, Probing}
	for _, state := range sequence {
		status := Status{State: state, UpdatedAt: now}
		if state.SetupMode() {
			status.AccessPointSSID = "Radio-Setup-ABCD"
		}
		if err := marker.Publish(status); err != nil {
			t.Fatalf("Publish(%s): %v", state, err)
		}

		if got := InSetupMode(marker.MarkerPath); got != state.SetupMode() {
			t.Errorf("after %s: InSetupMode = %v, want %v", state, got, state.SetupMode())
		}
		read, err := marker.Read()
		if err != nil {
			t.Fatalf("Read after %s: %v", state, err)
		}
		if read.State != state {
			t.Errorf("Read().State = %s, want %s", read.State, state)
		}
	}
}

func TestPublishSetupMarkerContents(t *testing.T) {
	t.Parallel()
	marker := newMarker(t)

	status := Status{
		State:           FallbackActive,
		LastError:       "could not join HomeNet: check the password",
		AccessPointSSID: "Radio-Setup-ABCD",
		UpdatedAt:       time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := marker.Publish(status); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	fromMarker, err := ReadStatus(marker.MarkerPath)
	if err != nil {
		t.Fatalf("ReadStatus(marker): %v", err)
	}
	if fromMarker.State != status.State || fromMarker.LastError != status.LastError ||
		fromMarker.AccessPointSSID != status.AccessPointSSID || !fromMarker.UpdatedAt.Equal(status.UpdatedAt) {
		t.Errorf("marker contents = %+v, want %+v", fromMarker, status)
	}
}

func TestPublishRejectsUnknownState(t *testing.T) {
	t.Parallel()
	marker := newMarker(t)
	if err := marker.Publish(Status{State: "rebooting"}); err == nil {
		t.Error("Publish accepted an unknown state")
	}
}

func TestPublishOverwritesStaleMarker(t *testing.T) {
	t.Parallel()
	marker := newMarker(t)

	// A previous run crashed in setup mode.
	if err := marker.Publish(Status{State: FallbackActive}); err != nil {
		t.Fatal(err)
	}
	// The next run starts in Probing.
	if err := marker.Publish(Status{State: Probing}); err != nil {
		t.Fatal(err)
	}
	if InSetupMode(marker.MarkerPath) {
		t.Error("stale setup marker survived a Probing publish")
	}
}
