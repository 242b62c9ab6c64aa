// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netapply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/radio-headless/netrecover/lib/configstore"
	"github.com/radio-headless/netrecover/lib/netprofile"
)

// Committer makes and reverts the privileged part of an apply.
type Committer interface {
	// Commit performs steps 1 to 4 and returns the ID of the snapshot
	// taken in step 1. On failure the system is already back on the
	// snapshot, unless the error is KindFatal.
	Commit(ctx context.Context, transactionID string, profile netprofile.Profile) (snapshotID string, err error)

	// Restore puts the system back on a snapshot.
	Restore(ctx context.Context, transactionID, snapshotID string) error

	// Recover rolls back a commit that was interrupted before it
	// finished. With a non-empty transactionID it also rolls back that
	// transaction if it committed and nothing was applied after it. It
	// reports whether anything was rolled back.
	Recover(ctx context.Context, transactionID string) (bool, error)
}

// LocalCommitter is the Committer that runs with privileges inside
// netrecover-apply.
type LocalCommitter struct {
	Store    *configstore.Store
	Hostname Hostname
	Station  Station

	// JournalMaxAge bounds how old an interrupted commit may be and
	// still be rolled back by Recover.
	JournalMaxAge time.Duration

	Logger *slog.Logger
}

func (c *LocalCommitter) lock() (func(), error) {
	unlock, err := c.Store.Lock()
	if err != nil {
		if errors.Is(err, configstore.ErrLocked) {
			return nil, &Error{Kind: KindTransaction, Step: StepLock, Err: err}
		}
		return nil, &Error{Kind: KindFatal, Step: StepLock, Err: err}
	}
	return unlock, nil
}

// Commit implements Committer.
func (c *LocalCommitter) Commit(ctx context.Context, transactionID string, profile netprofile.Profile) (string, error) {
	profile = netprofile.Normalize(profile)
	if err := profile.Validate(); err != nil {
		var validationErr *netprofile.ValidationError
		errors.As(err, &validationErr)
		return "", &Error{Kind: KindValidation, Step: StepValidate, Detail: validationErr.First().Reason, Err: err}
	}

	unlock, err := c.lock()
	if err != nil {
		return "", err
	}
	defer unlock()

	if _, err := c.recoverLocked(ctx, ""); err != nil {
		return "", err
	}

	logger := c.Logger.With("transaction_id", transactionID)

	// Step 1.
	current, err := c.Store.Active()
	if err != nil {
		return "", &Error{Kind: KindFatal, Step: StepSnapshot, Err: err}
	}
	hostname, err := c.Hostname.Current()
	if err != nil {
		return "", &Error{Kind: KindFatal, Step: StepSnapshot, Err: err}
	}
	snapshot, err := c.Store.CreateSnapshot(current, hostname)
	if err != nil {
		return "", &Error{Kind: KindFatal, Step: StepSnapshot, Err: err}
	}
	logger.Info("snapshot taken", "snapshot_id", snapshot.ID, "had_profile", current != nil)

	if err := c.Store.BeginJournal(transactionID, snapshot.ID); err != nil {
		return snapshot.ID, &Error{Kind: KindFatal, Step: StepJournal, Err: err}
	}

	// Steps 2 to 4, rolled back together. The change gets half of what
	// remains of ctx so a hung step still leaves time to roll back.
	changeCtx, cancelChange := halfBudget(ctx)
	step, err := c.change(changeCtx, profile)
	cancelChange()
	if err != nil {
		logger.Error("commit step failed, rolling back", "step", step, "error", err)
		if restoreErr := c.restoreLocked(ctx, snapshot); restoreErr != nil {
			logger.Error("rollback failed", "snapshot_id", snapshot.ID, "error", restoreErr)
			return snapshot.ID, &Error{Kind: KindFatal, Step: StepRestore, Err: errors.Join(err, restoreErr)}
		}
		if clearErr := c.Store.ClearJournal(); clearErr != nil {
			logger.Warn("clearing journal after rollback", "error", clearErr)
		}
		return snapshot.ID, &Error{Kind: KindTransaction, Step: step, Err: err}
	}

	if err := c.Store.MarkCommitted(); err != nil {
		logger.Warn("marking journal committed", "error", err)
	}
	removed, err := c.Store.Prune(snapshot.ID)
	if err != nil {
		logger.Warn("pruning snapshots", "error", err)
	} else if len(removed) > 0 {
		logger.Info("pruned snapshots", "removed", removed)
	}

	logger.Info("profile committed", "profile", profile, "snapshot_id", snapshot.ID)
	return snapshot.ID, nil
}

func halfBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(deadline)/2)
}

func (c *LocalCommitter) change(ctx context.Context, profile netprofile.Profile) (string, error) {
	if err := c.Store.WriteActive(profile); err != nil {
		return StepWriteProfile, err
	}
	if err := c.Hostname.Apply(profile.Hostname); err != nil {
		return StepHostname, err
	}
	if err := c.Station.Write(&profile); err != nil {
		return StepStation, err
	}
	if err := c.Station.Reconfigure(ctx); err != nil {
		return StepStation, err
	}
	return "", nil
}

// Restore implements Committer.
func (c *LocalCommitter) Restore(ctx context.Context, transactionID, snapshotID string) error {
	unlock, err := c.lock()
	if err != nil {
		return err
	}
	defer unlock()

	snapshot, err := c.Store.Snapshot(snapshotID)
	if err != nil {
		return &Error{Kind: KindFatal, Step: StepRestore, Err: err}
	}
	if err := c.restoreLocked(ctx, snapshot); err != nil {
		return &Error{Kind: KindFatal, Step: StepRestore, Err: err}
	}
	// A restore supersedes whatever the journal recorded.
	if err := c.Store.ClearJournal(); err != nil {
		c.Logger.Warn("clearing journal after restore", "error", err)
	}
	c.Logger.Info("snapshot restored", "transaction_id", transactionID, "snapshot_id", snapshotID)
	return nil
}

// Recover implements Committer.
func (c *LocalCommitter) Recover(ctx context.Context, transactionID string) (bool, error) {
	unlock, err := c.lock()
	if err != nil {
		return false, err
	}
	defer unlock()
	return c.recoverLocked(ctx, transactionID)
}

func (c *LocalCommitter) recoverLocked(ctx context.Context, transactionID string) (bool, error) {
	journal, err := c.Store.PendingJournal(c.JournalMaxAge)
	if err == nil && journal == nil && transactionID != "" {
		journal, err = c.Store.CommittedJournal(transactionID, c.JournalMaxAge)
	}
	if err != nil {
		return false, &Error{Kind: KindFatal, Step: StepJournal, Err: err}
	}
	if journal == nil {
		return false, nil
	}

	c.Logger.Warn("rolling back commit",
		"transaction_id", journal.TransactionID,
		"snapshot_id", journal.SnapshotID,
		"started_at", journal.StartedAt,
		"committed", journal.Committed,
	)
	snapshot, err := c.Store.Snapshot(journal.SnapshotID)
	if err != nil {
		return false, &Error{Kind: KindFatal, Step: StepRestore, Err: err}
	}
	if err := c.restoreLocked(ctx, snapshot); err != nil {
		return false, &Error{Kind: KindFatal, Step: StepRestore, Err: err}
	}
	if err := c.Store.ClearJournal(); err != nil {
		return true, &Error{Kind: KindFatal, Step: StepJournal, Err: err}
	}
	return true, nil
}

// restoreLocked puts the profile, hostname and supplicant config back
// to snapshot. Every part is attempted even if an earlier one fails.
func (c *LocalCommitter) restoreLocked(ctx context.Context, snapshot configstore.Snapshot) error {
	var errs []error

	if snapshot.Profile == nil {
		if err := c.Store.ClearActive(); err != nil {
			errs = append(errs, err)
		}
	} else if err := c.Store.WriteActive(*snapshot.Profile); err != nil {
		errs = append(errs, err)
	}

	if snapshot.Hostname != "" {
		if err := c.Hostname.Apply(snapshot.Hostname); err != nil {
			errs = append(errs, fmt.Errorf("restoring hostname: %w", err))
		}
	}

	if err := c.Station.Write(snapshot.Profile); err != nil {
		errs = append(errs, fmt.Errorf("restoring supplicant config: %w", err))
	} else if err := c.Station.Reconfigure(ctx); err != nil {
		errs = append(errs, fmt.Errorf("reloading supplicant: %w", err))
	}

	return errors.Join(errs...)
}
