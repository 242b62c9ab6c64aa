// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package configstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"

	"github.com/radio-headless/netrecover/lib/atomicfile"
	"github.com/radio-headless/netrecover/lib/clock"
	"github.com/radio-headless/netrecover/lib/codec"
	"github.com/radio-headless/netrecover/lib/netprofile"
)

var (
	// ErrLocked means another process holds the store lock.
	ErrLocked = errors.New("config store is locked by another process")

	// ErrNoSnapshot means the requested snapshot does not exist.
	ErrNoSnapshot = errors.New("snapshot not found")

	// ErrCorrupt means a snapshot's contents do not match its digest.
	ErrCorrupt = errors.New("snapshot digest mismatch")
)

const (
	profileFile   = "profile.json"
	journalFile   = "journal.json"
	lockFile      = ".lock"
	snapshotsDir  = "snapshots"
	snapshotExt   = ".json"
	fileMode      = 0600
	directoryMode = 0700
)

// Snapshot is one backup of the device's network identity. Profile is
// nil when the device had never been provisioned.
type Snapshot struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Profile   *netprofile.Profile `json:"profile"`
	Hostname  string              `json:"hostname"`
	Digest    string              `json:"digest"`
}

// snapshotContent is the digested part of a Snapshot. CreatedAt is
// Unix seconds so the encoding does not depend on time zone or
// sub-second precision surviving a JSON roundtrip.
type snapshotContent struct {
	ID        string              `cbor:"id"`
	CreatedAt int64               `cbor:"created_at"`
	Profile   *netprofile.Profile `cbor:"profile"`
	Hostname  string              `cbor:"hostname"`
}

func (s Snapshot) computeDigest() (string, error) {
	data, err := codec.Marshal(snapshotContent{
		ID:        s.ID,
		CreatedAt: s.CreatedAt.Unix(),
		Profile:   s.Profile,
		Hostname:  s.Hostname,
	})
	if err != nil {
		return "", fmt.Errorf("encoding snapshot %s: %w", s.ID, err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Options configures a Store.
type Options struct {
	// Directory is the store root. Created with mode 0700 if missing.
	Directory string

	// SnapshotLimit caps the snapshot history. Values below 1 are
	// treated as 1.
	SnapshotLimit int

	// Clock timestamps snapshots and journals. Defaults to clock.Real().
	Clock clock.Clock
}

// Store is an open config store. Reads are safe at any time; callers
// hold the lock from [Store.Lock] around every mutation.
type Store struct {
	directory string
	limit     int
	clock     clock.Clock
}

// Open prepares the store directory and returns a Store.
func Open(options Options) (*Store, error) {
	if options.Directory == "" {
		return nil, errors.New("configstore: directory is required")
	}
	if options.SnapshotLimit < 1 {
		options.SnapshotLimit = 1
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if err := os.MkdirAll(filepath.Join(options.Directory, snapshotsDir), directoryMode); err != nil {
		return nil, fmt.Errorf("creating config store: %w", err)
	}
	return &Store{
		directory: options.Directory,
		limit:     options.SnapshotLimit,
		clock:     options.Clock,
	}, nil
}

// Directory returns the store root.
func (s *Store) Directory() string { return s.directory }

// Lock takes the exclusive cross-process store lock without waiting.
// It returns ErrLocked when another process holds it. The returned
// function releases the lock.
func (s *Store) Lock() (unlock func(), err error) {
	file, err := os.OpenFile(filepath.Join(s.directory, lockFile), os.O_RDWR|os.O_CREATE, fileMode)
	if err != nil {
		return nil, fmt.Errorf("opening store lock: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("locking config store: %w", err)
	}
	return func() {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
	}, nil
}

// Active returns the active profile, or nil if none has been written.
func (s *Store) Active() (*netprofile.Profile, error) {
	var profile netprofile.Profile
	if err := atomicfile.ReadJSON(filepath.Join(s.directory, profileFile), &profile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading active profile: %w", err)
	}
	return &profile, nil
}

// WriteActive atomically replaces the active profile.
func (s *Store) WriteActive(profile netprofile.Profile) error {
	if err := atomicfile.WriteJSON(filepath.Join(s.directory, profileFile), profile, fileMode); err != nil {
		return fmt.Errorf("writing active profile: %w", err)
	}
	return nil
}

// ClearActive removes the active profile.
func (s *Store) ClearActive() error {
	return atomicfile.Remove(filepath.Join(s.directory, profileFile))
}

// CreateSnapshot backs up profile (which may be nil) and hostname as a
// new immutable snapshot.
func (s *Store) CreateSnapshot(profile *netprofile.Profile, hostname string) (Snapshot, error) {
	now := s.clock.Now().UTC().Truncate(time.Second)
	snapshot := Snapshot{
		ID:        now.Format("20060102T150405Z") + "-" + uuid.NewString()[:8],
		CreatedAt: now,
		Hostname:  hostname,
	}
	if profile != nil {
		copied := *profile
		snapshot.Profile = &copied
	}

	digest, err := snapshot.computeDigest()
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Digest = digest

	if err := atomicfile.WriteJSON(s.snapshotPath(snapshot.ID), snapshot, fileMode); err != nil {
		return Snapshot{}, fmt.Errorf("writing snapshot: %w", err)
	}
	return snapshot, nil
}

// Snapshot reads one snapshot and verifies its digest.
func (s *Store) Snapshot(id string) (Snapshot, error) {
	if !validID(id) {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrNoSnapshot, id)
	}
	var snapshot Snapshot
	if err := atomicfile.ReadJSON(s.snapshotPath(id), &snapshot); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, id)
		}
		return Snapshot{}, err
	}
	digest, err := snapshot.computeDigest()
	if err != nil {
		return Snapshot{}, err
	}
	if snapshot.ID != id || digest != snapshot.Digest {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrCorrupt, id)
	}
	return snapshot, nil
}

// Snapshots lists every snapshot, oldest first. Digests are not
// verified here; Snapshot verifies before a restore.
func (s *Store) Snapshots() ([]Snapshot, error) {
	entries, err := os.ReadDir(filepath.Join(s.directory, snapshotsDir))
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	var snapshots []Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, snapshotExt) || strings.HasPrefix(name, ".") {
			continue
		}
		var snapshot Snapshot
		if err := atomicfile.ReadJSON(filepath.Join(s.directory, snapshotsDir, name), &snapshot); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
		}
		return snapshots[i].ID < snapshots[j].ID
	})
	return snapshots, nil
}

// Prune deletes the oldest snapshots beyond the limit, never deleting
// keep. It returns the IDs removed.
func (s *Store) Prune(keep string) ([]string, error) {
	snapshots, err := s.Snapshots()
	if err != nil {
		return nil, err
	}
	var removed []string
	excess := len(snapshots) - s.limit
	for _, snapshot := range snapshots {
		if excess <= 0 {
			break
		}
		if snapshot.ID == keep {
			continue
		}
		if err := atomicfile.Remove(s.snapshotPath(snapshot.ID)); err != nil {
			return removed, err
		}
		removed = append(removed, snapshot.ID)
		excess--
	}
	return removed, nil
}

func (s *Store) snapshotPath(id string) string {
	return filepath.Join(s.directory, snapshotsDir, id+snapshotExt)
}

// validID rejects IDs that could name a file outside the snapshots
// directory.
func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}
