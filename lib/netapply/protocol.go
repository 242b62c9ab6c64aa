// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netapply

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/radio-headless/netrecover/lib/codec"
	"github.com/radio-headless/netrecover/lib/netprofile"
)

// MaxRequestSize bounds what the helper reads from stdin.
const MaxRequestSize = 64 * 1024

// Operations the helper accepts.
const (
	OperationCommit  = "commit"
	OperationRestore = "restore"
	OperationRecover = "recover"
)

// Request is one helper invocation.
type Request struct {
	Operation     string              `cbor:"operation"`
	TransactionID string              `cbor:"transaction_id"`
	Profile       *netprofile.Profile `cbor:"profile,omitempty"`
	SnapshotID    string              `cbor:"snapshot_id,omitempty"`
}

// Response is the helper's answer. When OK is false, Kind, Step and
// Detail describe the failure.
type Response struct {
	OK         bool   `cbor:"ok"`
	SnapshotID string `cbor:"snapshot_id,omitempty"`
	Recovered  bool   `cbor:"recovered,omitempty"`
	Kind       Kind   `cbor:"kind,omitempty"`
	Step       string `cbor:"step,omitempty"`
	Detail     string `cbor:"detail,omitempty"`
	Message    string `cbor:"message,omitempty"`
}

// Err converts a failed Response back into an *Error.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	var cause error
	if r.Message != "" {
		cause = errors.New(r.Message)
	}
	return &Error{Kind: r.Kind, Step: r.Step, Detail: r.Detail, Err: cause}
}

func responseFor(err error) Response {
	applyErr := AsError(err, StepHelper)
	response := Response{Kind: applyErr.Kind, Step: applyErr.Step, Detail: applyErr.Detail}
	if applyErr.Err != nil {
		response.Message = applyErr.Err.Error()
	}
	return response
}

// Serve reads one Request from r, performs it with committer, and
// writes one Response to w. A Response is written for every request it
// can decode, including failed ones; the returned error only reports
// that no Response could be produced.
func Serve(ctx context.Context, r io.Reader, w io.Writer, committer *LocalCommitter, logger *slog.Logger) error {
	data, err := io.ReadAll(io.LimitReader(r, MaxRequestSize+1))
	if err != nil {
		return fmt.Errorf("reading request: %w", err)
	}
	if len(data) > MaxRequestSize {
		return fmt.Errorf("request exceeds %d bytes", MaxRequestSize)
	}
	var request Request
	if err := codec.Unmarshal(data, &request); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}

	logger = logger.With("operation", request.Operation, "transaction_id", request.TransactionID)
	response := handle(ctx, request, committer)
	if response.OK {
		logger.Info("request completed", "snapshot_id", response.SnapshotID, "recovered", response.Recovered)
	} else {
		logger.Error("request failed",
			"kind", response.Kind,
			"step", response.Step,
			"detail", response.Detail,
			"error", response.Message,
		)
	}

	encoded, err := codec.Marshal(response)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

func handle(ctx context.Context, request Request, committer *LocalCommitter) Response {
	switch request.Operation {
	case OperationCommit:
		if request.Profile == nil {
			return responseFor(&Error{Kind: KindValidation, Step: StepValidate, Detail: "commit request has no profile"})
		}
		snapshotID, err := committer.Commit(ctx, request.TransactionID, *request.Profile)
		if err != nil {
			response := responseFor(err)
			response.SnapshotID = snapshotID
			return response
		}
		return Response{OK: true, SnapshotID: snapshotID}

	case OperationRestore:
		if err := committer.Restore(ctx, request.TransactionID, request.SnapshotID); err != nil {
			return responseFor(err)
		}
		return Response{OK: true, SnapshotID: request.SnapshotID}

	case OperationRecover:
		recovered, err := committer.Recover(ctx, request.TransactionID)
		if err != nil {
			return responseFor(err)
		}
		return Response{OK: true, Recovered: recovered}
	}
	return responseFor(&Error{Kind: KindValidation, Step: StepValidate,
		Detail: fmt.Sprintf("unknown operation %q", request.Operation)})
}
