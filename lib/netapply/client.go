// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netapply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/radio-headless/netrecover/lib/codec"
	"github.com/radio-headless/netrecover/lib/netprofile"
	"github.com/radio-headless/netrecover/lib/sysexec"
)

// DefaultHelperTimeout bounds one helper invocation.
const DefaultHelperTimeout = 60 * time.Second

// HelperDeadline is how long the helper itself may work on a request
// when the daemon waits timeout for it. The remaining quarter is for
// the answer to reach the daemon.
func HelperDeadline(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = DefaultHelperTimeout
	}
	return timeout - timeout/4
}

// HelperClient is the Committer the daemon uses. Each call runs the
// privileged helper once.
type HelperClient struct {
	// Argv is the fixed helper command line, e.g. sudo -n followed by
	// the helper path. Nothing is ever appended to it.
	Argv []string

	// Timeout bounds one invocation. Defaults to DefaultHelperTimeout.
	Timeout time.Duration

	// Runner defaults to sysexec.Exec.
	Runner sysexec.InputRunner
}

// Commit implements Committer.
func (h *HelperClient) Commit(ctx context.Context, transactionID string, profile netprofile.Profile) (string, error) {
	response, err := h.call(ctx, Request{
		Operation:     OperationCommit,
		TransactionID: transactionID,
		Profile:       &profile,
	})
	if err != nil {
		return "", err
	}
	return response.SnapshotID, response.Err()
}

// Restore implements Committer.
func (h *HelperClient) Restore(ctx context.Context, transactionID, snapshotID string) error {
	response, err := h.call(ctx, Request{
		Operation:     OperationRestore,
		TransactionID: transactionID,
		SnapshotID:    snapshotID,
	})
	if err != nil {
		return err
	}
	return response.Err()
}

// Recover implements Committer.
func (h *HelperClient) Recover(ctx context.Context, transactionID string) (bool, error) {
	response, err := h.call(ctx, Request{Operation: OperationRecover, TransactionID: transactionID})
	if err != nil {
		return false, err
	}
	return response.Recovered, response.Err()
}

// call runs the helper with request on stdin. A helper that printed a
// decodable Response is believed even if it exited non-zero.
func (h *HelperClient) call(ctx context.Context, request Request) (Response, error) {
	if len(h.Argv) == 0 {
		return Response{}, &Error{Kind: KindFatal, Step: StepHelper, Err: errors.New("no helper command configured")}
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultHelperTimeout
	}
	runner := h.Runner
	if runner == nil {
		runner = sysexec.Exec{}
	}

	payload, err := codec.Marshal(request)
	if err != nil {
		return Response{}, &Error{Kind: KindTransaction, Step: StepHelper, Err: fmt.Errorf("encoding request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	output, runErr := runner.RunInput(ctx, payload, h.Argv[0], h.Argv[1:]...)

	var response Response
	if len(output) > 0 {
		decodeErr := codec.Unmarshal(output, &response)
		if decodeErr == nil {
			return response, nil
		}
		if runErr == nil {
			runErr = fmt.Errorf("decoding helper response: %w", decodeErr)
			if diagnostic, err := codec.Diagnose(output); err == nil {
				runErr = fmt.Errorf("decoding helper response %s: %w", diagnostic, decodeErr)
			}
		}
	}
	if runErr == nil {
		runErr = errors.New("helper produced no response")
	}
	return Response{}, &Error{Kind: KindTransaction, Step: StepHelper, Err: runErr}
}
