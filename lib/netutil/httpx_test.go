// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestReadBody(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		data, err := ReadBody(strings.NewReader(`{"ssid":"HomeNet"}`), 64)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"ssid":"HomeNet"}` {
			t.Fatalf("got %q", data)
		}
	})

	t.Run("exactly at limit", func(t *testing.T) {
		data, err := ReadBody(strings.NewReader(strings.Repeat("x", 16)), 16)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(data) != 16 {
			t.Fatalf("read %d bytes, want 16", len(data))
		}
	})

	t.Run("over limit", func(t *testing.T) {
		_, err := ReadBody(strings.NewReader(strings.Repeat("x", 17)), 16)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Fatalf("error = %v, want ErrBodyTooLarge", err)
		}
	})

	t.Run("read error propagates", func(t *testing.T) {
		_, err := ReadBody(&failReader{}, 16)
		if err == nil || errors.Is(err, ErrBodyTooLarge) {
			t.Fatalf("error = %v, want the reader's error", err)
		}
	})
}

func TestDecodeBody(t *testing.T) {
	var result struct {
		SSID string `json:"ssid"`
	}
	if err := DecodeBody(strings.NewReader(`{"ssid":"HomeNet"}`), 1024, &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SSID != "HomeNet" {
		t.Errorf("SSID = %q, want %q", result.SSID, "HomeNet")
	}

	if err := DecodeBody(strings.NewReader(`not json`), 1024, &result); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestDecodeResponse(t *testing.T) {
	var result struct {
		State string `json:"state"`
	}
	if err := DecodeResponse(bytes.NewReader([]byte(`{"state":"fallback_active"}`)), &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != "fallback_active" {
		t.Errorf("State = %q, want %q", result.State, "fallback_active")
	}
	if err := DecodeResponse(&failReader{}, &result); err == nil {
		t.Error("expected error from failing reader")
	}
}

func TestErrorBody(t *testing.T) {
	if got := ErrorBody(strings.NewReader(`{"reason":"setup mode is not active"}`)); got != `{"reason":"setup mode is not active"}` {
		t.Errorf("ErrorBody = %q", got)
	}
	if got := ErrorBody(&failReader{}); got != "" {
		t.Errorf("ErrorBody on failing reader = %q, want empty", got)
	}
}

type failReader struct{}

func (*failReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated read failure")
}
