// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netapply

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/radio-headless/netrecover/lib/clock"
	"github.com/radio-headless/netrecover/lib/configstore"
	"github.com/radio-headless/netrecover/lib/logging"
	"github.com/radio-headless/netrecover/lib/netprofile"
)

// memoryHostname is a Hostname held in memory.
type memoryHostname struct {
	mu       sync.Mutex
	name     string
	applyErr func(name string) error
}

func (m *memoryHostname) Current() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name, nil
}

func (m *memoryHostname) Apply(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		if err := m.applyErr(name); err != nil {
			return err
		}
	}
	m.name = name
	return nil
}

// memoryStation is a Station held in memory.
type memoryStation struct {
	mu             sync.Mutex
	profile        *netprofile.Profile
	written        int
	reconfigures   int
	reconfigureErr error

	// hangs is how many Reconfigure calls block until their context
	// ends, like a wpa_cli that never returns.
	hangs int
}

func (m *memoryStation) Write(profile *netprofile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written++
	if profile == nil {
		m.profile = nil
		return nil
	}
	copied := *profile
	m.profile = &copied
	return nil
}

func (m *memoryStation) Reconfigure(ctx context.Context) error {
	m.mu.Lock()
	m.reconfigures++
	hang := m.hangs > 0
	if hang {
		m.hangs--
	}
	err := m.reconfigureErr
	m.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (m *memoryStation) current() *netprofile.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

var epoch = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

type committerFixture struct {
	committer *LocalCommitter
	store     *configstore.Store
	hostname  *memoryHostname
	station   *memoryStation
	clock     *clock.FakeClock
}

func newCommitterFixture(t *testing.T, limit int) *committerFixture {
	t.Helper()
	fake := clock.Fake(epoch)
	store, err := configstore.Open(configstore.Options{Directory: t.TempDir(), SnapshotLimit: limit, Clock: fake})
	if err != nil {
		t.Fatalf("configstore.Open: %v", err)
	}
	hostname := &memoryHostname{name: "raspberrypi"}
	station := &memoryStation{}
	return &committerFixture{
		committer: &LocalCommitter{
			Store:         store,
			Hostname:      hostname,
			Station:       station,
			JournalMaxAge: 10 * time.Minute,
			Logger:        logging.Discard(),
		},
		store:    store,
		hostname: hostname,
		station:  station,
		clock:    fake,
	}
}

func homeProfile() netprofile.Profile {
	return netprofile.Profile{SSID: "HomeNet", Credential: "correct-horse", Hostname: "kitchen-radio"}
}

func officeProfile() netprofile.Profile {
	return netprofile.Profile{SSID: "Office", Credential: "staple-battery", Hostname: "office-radio"}
}
