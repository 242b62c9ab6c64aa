// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netapply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radio-headless/netrecover/lib/clock"
	"github.com/radio-headless/netrecover/lib/netprofile"
	"github.com/radio-headless/netrecover/lib/probe"
)

const (
	DefaultTimeout        = 150 * time.Second
	DefaultVerifyTimeout  = 60 * time.Second
	DefaultVerifyInterval = 3 * time.Second
)

// AccessPoint is the fallback access point. *accesspoint.Controller
// implements it.
type AccessPoint interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Verifier checks connectivity. *probe.Prober implements it.
type Verifier interface {
	Check(ctx context.Context, timeout time.Duration) probe.Result
}

// TransactionOptions configures a Transaction.
type TransactionOptions struct {
	Committer   Committer
	AccessPoint AccessPoint
	Verifier    Verifier

	// Timeout bounds commit, access point stop and verification
	// together. Rollback runs on its own budget after it expires.
	Timeout time.Duration

	// VerifyTimeout bounds post-apply verification.
	VerifyTimeout time.Duration

	// VerifyInterval is the pause between verification attempts.
	VerifyInterval time.Duration

	// RollbackTimeout bounds restoring the snapshot and restarting the
	// access point after a failure. Defaults to DefaultHelperTimeout.
	RollbackTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Outcome describes a successful apply.
type Outcome struct {
	TransactionID string
	SnapshotID    string
	Verification  probe.Result
	Duration      time.Duration
}

// Transaction applies profiles one at a time.
type Transaction struct {
	options TransactionOptions
	mu      sync.Mutex
}

// NewTransaction returns a Transaction.
func NewTransaction(options TransactionOptions) *Transaction {
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.VerifyTimeout <= 0 {
		options.VerifyTimeout = DefaultVerifyTimeout
	}
	if options.VerifyInterval <= 0 {
		options.VerifyInterval = DefaultVerifyInterval
	}
	if options.RollbackTimeout <= 0 {
		options.RollbackTimeout = DefaultHelperTimeout
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Transaction{options: options}
}

// Run applies profile. A second Run while one is in progress returns
// ErrInFlight immediately. Every other failure is an *Error.
func (t *Transaction) Run(ctx context.Context, profile netprofile.Profile) (Outcome, error) {
	if !t.mu.TryLock() {
		return Outcome{}, ErrInFlight
	}
	defer t.mu.Unlock()

	profile = netprofile.Normalize(profile)
	if err := profile.Validate(); err != nil {
		var validationErr *netprofile.ValidationError
		errors.As(err, &validationErr)
		return Outcome{}, &Error{Kind: KindValidation, Step: StepValidate, Detail: validationErr.First().Reason, Err: err}
	}

	start := t.options.Clock.Now()
	outcome := Outcome{TransactionID: uuid.NewString()}
	logger := t.options.Logger.With("transaction_id", outcome.TransactionID)
	logger.Info("applying network profile", "profile", profile)

	ctx, cancel := context.WithTimeout(ctx, t.options.Timeout)
	defer cancel()

	// Steps 1 to 4. The committer has already rolled back on failure,
	// unless it never answered.
	snapshotID, err := t.options.Committer.Commit(ctx, outcome.TransactionID, profile)
	if err != nil {
		applyErr := AsError(err, StepHelper)
		logger.Error("commit failed", "kind", applyErr.Kind, "step", applyErr.Step, "error", err)
		if applyErr.Step == StepHelper {
			applyErr = t.recoverUnanswered(ctx, logger, outcome.TransactionID, applyErr)
		}
		return Outcome{}, t.deadline(ctx, applyErr)
	}
	outcome.SnapshotID = snapshotID

	// Step 5.
	if err := t.options.AccessPoint.Stop(ctx); err != nil {
		logger.Error("stopping access point failed", "error", err)
		return Outcome{}, t.rollback(ctx, logger, outcome, &Error{
			Kind: KindTransaction, Step: StepStopAccessPoint, Err: err,
		})
	}

	// Step 6.
	result := t.verify(ctx)
	outcome.Verification = result
	if !result.Online() {
		logger.Warn("post-apply verification failed",
			"failed_step", result.FailedStep,
			"reason", result.Reason,
		)
		return Outcome{}, t.rollback(ctx, logger, outcome, &Error{
			Kind:   KindTransient,
			Step:   StepVerify,
			Detail: verifyDetail(profile.SSID, result),
			Err:    errors.New(result.Reason),
		})
	}

	outcome.Duration = t.options.Clock.Now().Sub(start)
	logger.Info("network profile applied",
		"snapshot_id", snapshotID,
		"duration", outcome.Duration,
	)
	return outcome, nil
}

// verify checks connectivity until it is online or VerifyTimeout runs
// out. Association can take several seconds after reconfigure, so one
// failed check is not a verdict.
func (t *Transaction) verify(ctx context.Context) probe.Result {
	ctx, cancel := context.WithTimeout(ctx, t.options.VerifyTimeout)
	defer cancel()

	for {
		deadline, _ := ctx.Deadline()
		result := t.options.Verifier.Check(ctx, time.Until(deadline))
		if result.Online() || ctx.Err() != nil {
			return result
		}
		select {
		case <-ctx.Done():
			return result
		case <-t.options.Clock.After(t.options.VerifyInterval):
		}
	}
}

// rollback restores the snapshot and restarts the access point after a
// failure in step 5 or 6. It runs on a fresh budget so an expired apply
// deadline cannot prevent it.
func (t *Transaction) rollback(ctx context.Context, logger *slog.Logger, outcome Outcome, cause *Error) error {
	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.options.RollbackTimeout)
	defer cancel()

	if err := t.options.Committer.Restore(rollbackCtx, outcome.TransactionID, outcome.SnapshotID); err != nil {
		logger.Error("restoring snapshot failed", "snapshot_id", outcome.SnapshotID, "error", err)
		cause = &Error{Kind: KindFatal, Step: StepRestore, Err: errors.Join(cause, err)}
	} else {
		logger.Info("previous configuration restored", "snapshot_id", outcome.SnapshotID)
	}

	if err := t.options.AccessPoint.Start(rollbackCtx); err != nil {
		logger.Error("restarting access point failed", "error", err)
		cause = &Error{Kind: cause.Kind, Step: cause.Step, Detail: cause.Detail,
			Err: errors.Join(cause.Err, &Error{Kind: KindTransaction, Step: StepStartAccessPoint, Err: err})}
	}
	return t.deadline(ctx, cause)
}

// recoverUnanswered rolls back a commit whose helper gave no answer.
// The helper may have changed any part of the system, so the previous
// settings only count as restored once Recover succeeds. A helper
// still running holds the store lock; Recover is retried until it lets
// go or the rollback budget runs out.
func (t *Transaction) recoverUnanswered(ctx context.Context, logger *slog.Logger, transactionID string, cause *Error) *Error {
	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.options.RollbackTimeout)
	defer cancel()

	for {
		recovered, err := t.options.Committer.Recover(rollbackCtx, transactionID)
		if err == nil {
			logger.Info("helper changes rolled back", "recovered", recovered)
			return cause
		}
		var applyErr *Error
		locked := errors.As(err, &applyErr) && applyErr.Step == StepLock
		if !locked {
			logger.Error("rolling back after helper failure", "error", err)
			return &Error{Kind: KindFatal, Step: StepRestore, Err: errors.Join(cause.Err, err)}
		}
		select {
		case <-rollbackCtx.Done():
			logger.Error("helper still holds the store lock", "error", err)
			return &Error{Kind: KindFatal, Step: StepRestore, Err: errors.Join(cause.Err, err, rollbackCtx.Err())}
		case <-t.options.Clock.After(t.options.VerifyInterval):
		}
	}
}

// deadline marks errors caused by the apply deadline so callers can
// tell a timeout from other failures with errors.Is.
func (t *Transaction) deadline(ctx context.Context, applyErr *Error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(applyErr, context.DeadlineExceeded) {
		return &Error{
			Kind:   applyErr.Kind,
			Step:   applyErr.Step,
			Detail: applyErr.Detail,
			Err:    errors.Join(applyErr.Err, fmt.Errorf("apply timed out after %s: %w", t.options.Timeout, context.DeadlineExceeded)),
		}
	}
	return applyErr
}

func verifyDetail(ssid string, result probe.Result) string {
	switch result.FailedStep {
	case probe.StepAssociation:
		return fmt.Sprintf("could not join %q: check the password and that the network is in range; "+
			"the previous settings were restored", ssid)
	case probe.StepDefaultRoute:
		return fmt.Sprintf("joined %q but did not get a network address; the previous settings were restored", ssid)
	case probe.StepDNS:
		return fmt.Sprintf("joined %q but could not resolve names; the previous settings were restored", ssid)
	case probe.StepReachability:
		return fmt.Sprintf("joined %q but the internet is unreachable; the previous settings were restored", ssid)
	}
	return fmt.Sprintf("could not verify the connection to %q; the previous settings were restored", ssid)
}
