// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package configstore

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/radio-headless/netrecover/lib/atomicfile"
)

// Journal records an apply that has started changing system state.
type Journal struct {
	// TransactionID correlates the journal with daemon and helper logs.
	TransactionID string `json:"transaction_id"`

	// SnapshotID is the backup taken before anything was changed. An
	// interrupted apply is rolled back from it.
	SnapshotID string `json:"snapshot_id"`

	// StartedAt lets PendingJournal ignore journals from long ago.
	StartedAt time.Time `json:"started_at"`

	// Committed is set once every change was made. A committed journal
	// is not pending; only CommittedJournal returns it.
	Committed bool `json:"committed,omitempty"`
}

// BeginJournal records that transactionID is about to change system
// state, with snapshotID as its rollback point.
func (s *Store) BeginJournal(transactionID, snapshotID string) error {
	return atomicfile.WriteJSON(s.journalPath(), Journal{
		TransactionID: transactionID,
		SnapshotID:    snapshotID,
		StartedAt:     s.clock.Now().UTC(),
	}, fileMode)
}

// MarkCommitted records that the journaled apply made every change.
// The journal stays until the next BeginJournal or ClearJournal so a
// caller that lost the outcome can still roll the apply back.
func (s *Store) MarkCommitted() error {
	journal, err := s.readJournal()
	if err != nil {
		return err
	}
	journal.Committed = true
	return atomicfile.WriteJSON(s.journalPath(), journal, fileMode)
}

// ClearJournal removes the journal. Idempotent.
func (s *Store) ClearJournal() error {
	return atomicfile.Remove(s.journalPath())
}

// PendingJournal returns the journal of an apply that never finished,
// if it was started within maxAge. A stale journal is removed and
// reported as absent. Unreadable journals are returned as errors so the
// caller can tell "nothing pending" from "cannot tell".
func (s *Store) PendingJournal(maxAge time.Duration) (*Journal, error) {
	journal, err := s.journal(maxAge)
	if err != nil || journal == nil || journal.Committed {
		return nil, err
	}
	return journal, nil
}

// CommittedJournal returns the journal of transactionID if that apply
// committed within maxAge and nothing has been applied since.
func (s *Store) CommittedJournal(transactionID string, maxAge time.Duration) (*Journal, error) {
	journal, err := s.journal(maxAge)
	if err != nil || journal == nil || !journal.Committed || journal.TransactionID != transactionID {
		return nil, err
	}
	return journal, nil
}

func (s *Store) journal(maxAge time.Duration) (*Journal, error) {
	journal, err := s.readJournal()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if s.clock.Now().Sub(journal.StartedAt) > maxAge {
		return nil, s.ClearJournal()
	}
	return &journal, nil
}

func (s *Store) readJournal() (Journal, error) {
	var journal Journal
	err := atomicfile.ReadJSON(s.journalPath(), &journal)
	return journal, err
}

func (s *Store) journalPath() string {
	return filepath.Join(s.directory, journalFile)
}
