// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netapply

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/radio-headless/netrecover/lib/codec"
	"github.com/radio-headless/netrecover/lib/logging"
	"github.com/radio-headless/netrecover/lib/netprofile"
	"github.com/radio-headless/netrecover/lib/probe"
	"github.com/radio-headless/netrecover/lib/testutil"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *callLog) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeCommitter struct {
	log        *callLog
	commitErr  error
	restoreErr error
	// recoverErrs are returned by successive Recover calls; Recover
	// succeeds once they run out.
	recoverErrs []error
	// release, when set, blocks Commit until it is closed.
	release chan struct{}
	entered chan struct{}
}

func (f *fakeCommitter) Commit(ctx context.Context, transactionID string, profile netprofile.Profile) (string, error) {
	f.log.add("commit:" + profile.SSID)
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", &Error{Kind: KindTransaction, Step: StepHelper, Err: ctx.Err()}
		}
	}
	if f.commitErr != nil {
		return "snap-1", f.commitErr
	}
	return "snap-1", nil
}

func (f *fakeCommitter) Restore(_ context.Context, _ string, snapshotID string) error {
	f.log.add("restore:" + snapshotID)
	return f.restoreErr
}

func (f *fakeCommitter) Recover(_ context.Context, transactionID string) (bool, error) {
	f.log.add("recover")
	if transactionID == "" {
		return false, errors.New("recover without a transaction ID")
	}
	if len(f.recoverErrs) > 0 {
		err := f.recoverErrs[0]
		f.recoverErrs = f.recoverErrs[1:]
		return false, err
	}
	return true, nil
}

type fakeAccessPoint struct {
	log      *callLog
	stopErr  error
	startErr error
}

func (f *fakeAccessPoint) Start(context.Context) error {
	f.log.add("ap.start")
	return f.startErr
}

func (f *fakeAccessPoint) Stop(context.Context) error {
	f.log.add("ap.stop")
	return f.stopErr
}

// fakeVerifier returns the queued results in order, repeating the last.
type fakeVerifier struct {
	log     *callLog
	mu      sync.Mutex
	results []probe.Result
}

func (f *fakeVerifier) Check(context.Context, time.Duration) probe.Result {
	f.log.add("verify")
	f.mu.Lock()
	defer f.mu.Unlock()
	result := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return result
}

var (
	online  = probe.Result{Status: probe.Online}
	offline = probe.Result{Status: probe.Offline, FailedStep: probe.StepAssociation,
		Reason: "association: station not associated (wpa_state=4WAY_HANDSHAKE)"}
)

type transactionFixture struct {
	transaction *Transaction
	log         *callLog
	committer   *fakeCommitter
	accessPoint *fakeAccessPoint
	verifier    *fakeVerifier
}

func newTransactionFixture(results ...probe.Result) *transactionFixture {
	log := &callLog{}
	fixture := &transactionFixture{
		log:         log,
		committer:   &fakeCommitter{log: log},
		accessPoint: &fakeAccessPoint{log: log},
		verifier:    &fakeVerifier{log: log, results: results},
	}
	fixture.transaction = NewTransaction(TransactionOptions{
		Committer:      fixture.committer,
		AccessPoint:    fixture.accessPoint,
		Verifier:       fixture.verifier,
		Timeout:        5 * time.Second,
		VerifyTimeout:  time.Second,
		VerifyInterval: 10 * time.Millisecond,
		Logger:         logging.Discard(),
	})
	return fixture
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(online)

	outcome, err := fixture.transaction.Run(context.Background(), homeProfile())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.SnapshotID != "snap-1" || outcome.TransactionID == "" {
		t.Errorf("outcome = %+v", outcome)
	}
	want := []string{"commit:HomeNet", "ap.stop", "verify"}
	if got := fixture.log.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRunRetriesVerification(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(offline, offline, online)

	if _, err := fixture.transaction.Run(context.Background(), homeProfile()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"commit:HomeNet", "ap.stop", "verify", "verify", "verify"}
	if got := fixture.log.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRunVerificationFailureRollsBack(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(offline)

	_, err := fixture.transaction.Run(context.Background(), homeProfile())
	var applyErr *Error
	if !errors.As(err, &applyErr) {
		t.Fatalf("Run error = %v, want *Error", err)
	}
	if applyErr.Kind != KindTransient || applyErr.Step != StepVerify {
		t.Errorf("error = %v, want transient verify failure", applyErr)
	}
	if summary := applyErr.Summary(); !strings.Contains(summary, "check the password") || !strings.Contains(summary, "HomeNet") {
		t.Errorf("Summary() = %q, want actionable password hint", summary)
	}
	if strings.Contains(applyErr.Error(), "correct-horse") {
		t.Errorf("error leaked the credential: %v", applyErr)
	}

	calls := fixture.log.get()
	n := len(calls)
	if n < 4 || calls[n-2] != "restore:snap-1" || calls[n-1] != "ap.start" {
		t.Errorf("calls = %v, want to end with restore then ap.start", calls)
	}
}

func TestRunRestoreFailureIsFatal(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(offline)
	fixture.committer.restoreErr = &Error{Kind: KindFatal, Step: StepRestore, Err: errors.New("disk full")}

	_, err := fixture.transaction.Run(context.Background(), homeProfile())
	var applyErr *Error
	if !errors.As(err, &applyErr) || applyErr.Kind != KindFatal {
		t.Fatalf("Run error = %v, want fatal", err)
	}
	if calls := fixture.log.get(); calls[len(calls)-1] != "ap.start" {
		t.Errorf("access point not restarted after fatal failure: %v", calls)
	}
}

func TestRunCommitFailureKeepsAccessPoint(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(online)
	fixture.committer.commitErr = &Error{Kind: KindTransaction, Step: StepHostname, Err: errors.New("read-only")}

	_, err := fixture.transaction.Run(context.Background(), homeProfile())
	var applyErr *Error
	if !errors.As(err, &applyErr) || applyErr.Step != StepHostname {
		t.Fatalf("Run error = %v, want the committer's error", err)
	}
	want := []string{"commit:HomeNet"}
	if got := fixture.log.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if !strings.Contains(applyErr.Summary(), "setting the device name") {
		t.Errorf("Summary() = %q", applyErr.Summary())
	}
}

func TestRunStopFailureRollsBack(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(online)
	fixture.accessPoint.stopErr = errors.New("hostapd would not exit")

	_, err := fixture.transaction.Run(context.Background(), homeProfile())
	var applyErr *Error
	if !errors.As(err, &applyErr) || applyErr.Step != StepStopAccessPoint {
		t.Fatalf("Run error = %v, want stop_access_point failure", err)
	}
	want := []string{"commit:HomeNet", "ap.stop", "restore:snap-1", "ap.start"}
	if got := fixture.log.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRunValidation(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(online)

	profile := homeProfile()
	profile.Hostname = "Bad_Name"
	_, err := fixture.transaction.Run(context.Background(), profile)
	var applyErr *Error
	if !errors.As(err, &applyErr) || applyErr.Kind != KindValidation {
		t.Fatalf("Run error = %v, want validation", err)
	}
	var validationErr *netprofile.ValidationError
	if !errors.As(err, &validationErr) || validationErr.First().Field != netprofile.FieldHostname {
		t.Errorf("Run error does not carry the field error: %v", err)
	}
	if calls := fixture.log.get(); len(calls) != 0 {
		t.Errorf("validation failure reached the transaction: %v", calls)
	}
}

func TestRunRejectsConcurrentSubmission(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(online)
	fixture.committer.release = make(chan struct{})
	fixture.committer.entered = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := fixture.transaction.Run(context.Background(), homeProfile())
		done <- err
	}()
	testutil.RequireClosed(t, fixture.committer.entered, 5*time.Second, "first Run reaching Commit")

	if _, err := fixture.transaction.Run(context.Background(), officeProfile()); !errors.Is(err, ErrInFlight) {
		t.Errorf("second Run error = %v, want ErrInFlight", err)
	}

	close(fixture.committer.release)
	if err := testutil.RequireReceive(t, done, 5*time.Second, "first Run result"); err != nil {
		t.Errorf("first Run: %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(online)
	fixture.committer.release = make(chan struct{})
	fixture.transaction.options.Timeout = 20 * time.Millisecond

	_, err := fixture.transaction.Run(context.Background(), homeProfile())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run error = %v, want context.DeadlineExceeded", err)
	}
	want := []string{"commit:HomeNet", "recover"}
	if got := fixture.log.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

// silentHelper serves requests in-process, except that a commit never
// answers: interrupt does whatever the helper got done before it went
// away.
type silentHelper struct {
	t          *testing.T
	fixture    *committerFixture
	interrupt  func(ctx context.Context, request Request) error
	operations []string
}

func (h *silentHelper) RunInput(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	var request Request
	if err := codec.Unmarshal(stdin, &request); err != nil {
		h.t.Errorf("decoding request: %v", err)
		return nil, err
	}
	h.operations = append(h.operations, request.Operation)

	if request.Operation == OperationCommit {
		if err := h.interrupt(ctx, request); err != nil {
			h.t.Errorf("interrupted commit: %v", err)
		}
		return nil, context.DeadlineExceeded
	}
	var stdout bytes.Buffer
	if err := Serve(ctx, bytes.NewReader(stdin), &stdout, h.fixture.committer, logging.Discard()); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func TestRunRollsBackUnansweredCommit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		interrupt func(fixture *committerFixture) func(context.Context, Request) error
	}{
		{
			// Snapshot, journal and profile written; the supplicant
			// reload never returned.
			name: "killed part way",
			interrupt: func(fixture *committerFixture) func(context.Context, Request) error {
				return func(_ context.Context, request Request) error {
					active, err := fixture.store.Active()
					if err != nil {
						return err
					}
					snapshot, err := fixture.store.CreateSnapshot(active, "office-radio")
					if err != nil {
						return err
					}
					if err := fixture.store.BeginJournal(request.TransactionID, snapshot.ID); err != nil {
						return err
					}
					return fixture.store.WriteActive(*request.Profile)
				}
			},
		},
		{
			name: "answer lost after commit",
			interrupt: func(fixture *committerFixture) func(context.Context, Request) error {
				return func(ctx context.Context, request Request) error {
					_, err := fixture.committer.Commit(ctx, request.TransactionID, *request.Profile)
					return err
				}
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			helperFixture := newCommitterFixture(t, 5)
			if _, err := helperFixture.committer.Commit(context.Background(), "tx-0", officeProfile()); err != nil {
				t.Fatal(err)
			}
			helper := &silentHelper{t: t, fixture: helperFixture, interrupt: test.interrupt(helperFixture)}

			fixture := newTransactionFixture(online)
			fixture.transaction.options.Committer = &HelperClient{
				Argv:    []string{"/usr/local/lib/netrecover/netrecover-apply"},
				Timeout: time.Second,
				Runner:  helper,
			}

			_, err := fixture.transaction.Run(context.Background(), homeProfile())
			var applyErr *Error
			if !errors.As(err, &applyErr) {
				t.Fatalf("Run error = %v, want *Error", err)
			}
			if applyErr.Kind != KindTransaction || applyErr.Step != StepHelper {
				t.Errorf("error = %v, want transaction error at helper", applyErr)
			}
			if !strings.Contains(applyErr.Summary(), "previous settings were restored") {
				t.Errorf("Summary() = %q", applyErr.Summary())
			}

			if want := []string{OperationCommit, OperationRecover}; !reflect.DeepEqual(helper.operations, want) {
				t.Errorf("helper operations = %v, want %v", helper.operations, want)
			}
			if calls := fixture.log.get(); len(calls) != 0 {
				t.Errorf("access point or verifier touched after commit failure: %v", calls)
			}
			if active, _ := helperFixture.store.Active(); active == nil || active.SSID != "Office" {
				t.Errorf("active profile after failed apply = %+v, want Office", active)
			}
			if journal, _ := helperFixture.store.PendingJournal(time.Hour); journal != nil {
				t.Errorf("journal still pending: %+v", journal)
			}
		})
	}
}

func TestRunUnansweredCommitRecoveryFails(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(online)
	fixture.committer.commitErr = &Error{Kind: KindTransaction, Step: StepHelper, Err: context.DeadlineExceeded}
	fixture.committer.recoverErrs = []error{&Error{Kind: KindFatal, Step: StepRestore, Err: errors.New("disk full")}}

	_, err := fixture.transaction.Run(context.Background(), homeProfile())
	var applyErr *Error
	if !errors.As(err, &applyErr) || applyErr.Kind != KindFatal {
		t.Fatalf("Run error = %v, want fatal", err)
	}
	if summary := applyErr.Summary(); strings.Contains(summary, "were restored") {
		t.Errorf("Summary() = %q claims a restore that did not happen", summary)
	}
}

func TestRunUnansweredCommitWaitsForLock(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(online)
	fixture.committer.commitErr = &Error{Kind: KindTransaction, Step: StepHelper, Err: errors.New("signal: killed")}
	locked := &Error{Kind: KindTransaction, Step: StepLock, Err: errors.New("config store is locked by another process")}
	fixture.committer.recoverErrs = []error{locked, locked}

	_, err := fixture.transaction.Run(context.Background(), homeProfile())
	var applyErr *Error
	if !errors.As(err, &applyErr) || applyErr.Kind != KindTransaction || applyErr.Step != StepHelper {
		t.Fatalf("Run error = %v, want transaction error at helper", err)
	}
	want := []string{"commit:HomeNet", "recover", "recover", "recover"}
	if got := fixture.log.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRunReportsAccessPointRestartFailure(t *testing.T) {
	t.Parallel()
	fixture := newTransactionFixture(offline)
	fixture.accessPoint.startErr = errors.New("hostapd: nl80211 driver initialization failed")

	_, err := fixture.transaction.Run(context.Background(), homeProfile())
	var applyErr *Error
	if !errors.As(err, &applyErr) || applyErr.Step != StepVerify {
		t.Fatalf("Run error = %v, want verify failure", err)
	}
	var restartErr *Error
	if !errors.As(applyErr.Err, &restartErr) || restartErr.Step != StepStartAccessPoint {
		t.Errorf("error %v does not carry the access point restart failure", err)
	}
}

func TestErrorSummaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindValidation, Detail: "password must be 8 to 63 characters, got 5"}, "password must be"},
		{&Error{Kind: KindTransaction, Step: StepLock}, "try again"},
		{&Error{Kind: KindTransaction, Step: StepStation}, "configuring the wireless client"},
		{&Error{Kind: KindFatal, Step: StepRestore}, "stay in setup mode"},
	}
	for _, test := range tests {
		if got := test.err.Summary(); !strings.Contains(got, test.want) {
			t.Errorf("%v Summary() = %q, want it to contain %q", test.err, got, test.want)
		}
	}
}
