// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package setupstate

import (
	"errors"
	"fmt"
	"os"

	"github.com/radio-headless/netrecover/lib/atomicfile"
)

const markerMode = 0644

// Marker writes the status file and maintains the setup marker.
type Marker struct {
	StatusPath string
	MarkerPath string
}

// Publish records status. The status file is always rewritten; the
// setup marker is written in setup mode and removed otherwise.
func (m *Marker) Publish(status Status) error {
	if !status.State.Valid() {
		return fmt.Errorf("publishing unknown state %q", status.State)
	}
	if err := atomicfile.WriteJSON(m.StatusPath, status, markerMode); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	if status.State.SetupMode() {
		if err := atomicfile.WriteJSON(m.MarkerPath, status, markerMode); err != nil {
			return fmt.Errorf("writing setup marker: %w", err)
		}
		return nil
	}
	if err := atomicfile.Remove(m.MarkerPath); err != nil {
		return fmt.Errorf("removing setup marker: %w", err)
	}
	return nil
}

// Read returns the last published status.
func (m *Marker) Read() (Status, error) {
	return ReadStatus(m.StatusPath)
}

// ReadStatus reads a status file.
func ReadStatus(path string) (Status, error) {
	var status Status
	if err := atomicfile.ReadJSON(path, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// InSetupMode reports whether the setup marker at path exists. This is
// the whole contract other appliance processes rely on.
func InSetupMode(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
