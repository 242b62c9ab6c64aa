// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP body I/O for the setup API and
// its clients.
//
// Request helpers (ReadBody, DecodeBody) refuse bodies larger than the
// caller's limit instead of silently truncating them, so a client that
// sends too much gets a clear error rather than a confusing JSON parse
// failure. Response helpers (DecodeResponse, ErrorBody) bound reads at
// MaxResponseSize.
package netutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxResponseSize bounds response body reads. Setup API responses are a
// few hundred bytes.
const MaxResponseSize int64 = 1 << 20

// ErrBodyTooLarge is returned when a body exceeds its limit.
var ErrBodyTooLarge = errors.New("body too large")

// ReadBody reads at most limit bytes from body. A body longer than
// limit is an ErrBodyTooLarge, not a truncation.
func ReadBody(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// DecodeBody reads at most limit bytes from body and JSON-decodes them
// into v.
func DecodeBody(body io.Reader, limit int64, v any) error {
	data, err := ReadBody(body, limit)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// DecodeResponse reads a response body (up to MaxResponseSize bytes)
// and JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an error response body for a diagnostic message.
// Read errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
