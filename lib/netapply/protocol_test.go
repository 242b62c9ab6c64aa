// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netapply

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/radio-headless/netrecover/lib/codec"
	"github.com/radio-headless/netrecover/lib/logging"
	"github.com/radio-headless/netrecover/lib/sysexec"
)

// inProcessHelper runs Serve in-process in place of the real helper
// binary, checking that the argv is exactly the configured one.
type inProcessHelper struct {
	t         *testing.T
	committer *LocalCommitter
	argv      []string
}

func (h *inProcessHelper) RunInput(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	got := append([]string{name}, args...)
	if strings.Join(got, " ") != strings.Join(h.argv, " ") {
		h.t.Errorf("helper argv = %v, want %v", got, h.argv)
	}
	var stdout bytes.Buffer
	if err := Serve(ctx, bytes.NewReader(stdin), &stdout, h.committer, logging.Discard()); err != nil {
		return nil, &sysexec.ExitError{Command: name, Code: 1, Stderr: err.Error()}
	}
	return stdout.Bytes(), nil
}

func TestHelperClientRoundtrip(t *testing.T) {
	t.Parallel()
	fixture := newCommitterFixture(t, 5)
	argv := []string{"/usr/bin/sudo", "-n", "/usr/local/lib/netrecover/netrecover-apply"}
	client := &HelperClient{
		Argv:   argv,
		Runner: &inProcessHelper{t: t, committer: fixture.committer, argv: argv},
	}

	snapshotID, err := client.Commit(context.Background(), "tx-1", homeProfile())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if snapshotID == "" {
		t.Error("Commit returned no snapshot ID")
	}
	active, _ := fixture.store.Active()
	if active == nil || active.Credential.Reveal() != "correct-horse" {
		t.Errorf("credential did not survive the helper boundary")
	}

	if err := client.Restore(context.Background(), "tx-1", snapshotID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if active, _ := fixture.store.Active(); active != nil {
		t.Errorf("Active() after Restore = %+v, want nil", active)
	}

	recovered, err := client.Recover(context.Background(), "tx-1")
	if err != nil || recovered {
		t.Errorf("Recover = %v, %v; want false, nil", recovered, err)
	}
}

func TestHelperClientRelaysFailures(t *testing.T) {
	t.Parallel()
	fixture := newCommitterFixture(t, 5)
	fixture.hostname.applyErr = func(name string) error {
		if name == "kitchen-radio" {
			return errors.New("read-only file system")
		}
		return nil
	}
	argv := []string{"/usr/local/lib/netrecover/netrecover-apply"}
	client := &HelperClient{Argv: argv, Runner: &inProcessHelper{t: t, committer: fixture.committer, argv: argv}}

	_, err := client.Commit(context.Background(), "tx-1", homeProfile())
	var applyErr *Error
	if !errors.As(err, &applyErr) {
		t.Fatalf("Commit error = %v, want *Error", err)
	}
	if applyErr.Kind != KindTransaction || applyErr.Step != StepHostname {
		t.Errorf("error = %+v, want transaction error at hostname", applyErr)
	}
	if !strings.Contains(applyErr.Error(), "read-only file system") {
		t.Errorf("error %q lost the helper's message", applyErr.Error())
	}
}

type scriptedRunner struct {
	output []byte
	err    error
}

func (s scriptedRunner) RunInput(context.Context, []byte, string, ...string) ([]byte, error) {
	return s.output, s.err
}

func TestHelperClientUnreachable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		runner scriptedRunner
	}{
		{"sudo refused", scriptedRunner{err: &sysexec.ExitError{Command: "sudo", Code: 1, Stderr: "a password is required"}}},
		{"garbage output", scriptedRunner{output: []byte("not cbor")}},
		{"no output", scriptedRunner{}},
		{"timed out", scriptedRunner{err: context.DeadlineExceeded}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			client := &HelperClient{Argv: []string{"/usr/bin/sudo"}, Runner: test.runner}
			_, err := client.Commit(context.Background(), "tx-1", homeProfile())
			var applyErr *Error
			if !errors.As(err, &applyErr) || applyErr.Step != StepHelper || applyErr.Kind != KindTransaction {
				t.Errorf("Commit error = %v, want transaction error at helper", err)
			}
		})
	}

	client := &HelperClient{Argv: []string{"/usr/bin/sudo"}, Runner: scriptedRunner{err: context.DeadlineExceeded}}
	if _, err := client.Commit(context.Background(), "tx-1", homeProfile()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Commit error = %v, want it to wrap context.DeadlineExceeded", err)
	}
}

func TestHelperClientShowsUnexpectedResponse(t *testing.T) {
	t.Parallel()

	output, err := codec.Marshal([]string{"committed"})
	if err != nil {
		t.Fatal(err)
	}
	client := &HelperClient{Argv: []string{"/usr/bin/sudo"}, Runner: scriptedRunner{output: output}}
	_, err = client.Commit(context.Background(), "tx-1", homeProfile())
	var applyErr *Error
	if !errors.As(err, &applyErr) || applyErr.Step != StepHelper {
		t.Fatalf("Commit error = %v, want helper error", err)
	}
	if !strings.Contains(err.Error(), `["committed"]`) {
		t.Errorf("error %q does not show what the helper printed", err)
	}
}

func TestHelperClientBelievesResponseOnNonZeroExit(t *testing.T) {
	t.Parallel()

	output, err := codec.Marshal(Response{Kind: KindFatal, Step: StepRestore, Message: "disk full"})
	if err != nil {
		t.Fatal(err)
	}
	client := &HelperClient{
		Argv:   []string{"/usr/bin/sudo"},
		Runner: scriptedRunner{output: output, err: &sysexec.ExitError{Command: "sudo", Code: 1}},
	}
	err = client.Restore(context.Background(), "tx-1", "snap")
	var applyErr *Error
	if !errors.As(err, &applyErr) || applyErr.Kind != KindFatal {
		t.Errorf("Restore error = %v, want the helper's fatal error", err)
	}
}

func TestServeRejectsBadRequests(t *testing.T) {
	t.Parallel()
	fixture := newCommitterFixture(t, 5)

	var stdout bytes.Buffer
	if err := Serve(context.Background(), strings.NewReader("junk"), &stdout, fixture.committer, logging.Discard()); err == nil {
		t.Error("Serve accepted an undecodable request")
	}

	oversized := bytes.Repeat([]byte{0}, MaxRequestSize+1)
	if err := Serve(context.Background(), bytes.NewReader(oversized), &stdout, fixture.committer, logging.Discard()); err == nil {
		t.Error("Serve accepted an oversized request")
	}

	for _, request := range []Request{
		{Operation: "format-disk"},
		{Operation: OperationCommit},
	} {
		payload, _ := codec.Marshal(request)
		stdout.Reset()
		if err := Serve(context.Background(), bytes.NewReader(payload), &stdout, fixture.committer, logging.Discard()); err != nil {
			t.Fatalf("Serve(%s): %v", request.Operation, err)
		}
		var response Response
		if err := codec.Unmarshal(stdout.Bytes(), &response); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if response.OK || response.Kind != KindValidation {
			t.Errorf("response to %+v = %+v, want validation failure", request, response)
		}
	}
}
