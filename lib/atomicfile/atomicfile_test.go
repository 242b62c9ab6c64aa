// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")

	if err := Write(path, []byte("first\n"), 0600); err != nil {
		t.Fatalf("Write first: %v", err)
	}
	if err := Write(path, []byte("second\n"), 0600); err != nil {
		t.Fatalf("Write second: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "second\n" {
		t.Errorf("contents = %q, want %q", data, "second\n")
	}
}

func TestWritePermissions(t *testing.T) {
	directory := t.TempDir()
	for _, perm := range []os.FileMode{0600, 0644} {
		path := filepath.Join(directory, perm.String())
		if err := Write(path, []byte("x"), perm); err != nil {
			t.Fatalf("Write: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if got := info.Mode().Perm(); got != perm {
			t.Errorf("permissions = %04o, want %04o", got, perm)
		}
	}
}

func TestWriteLeavesNoTemporaryFiles(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "state.json")

	if err := Write(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		var names []string
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Errorf("directory contains %v, want only state.json", names)
	}
}

func TestWriteMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "state.json")
	if err := Write(path, []byte("{}"), 0644); err == nil {
		t.Fatal("expected an error when the parent directory does not exist")
	}
}

func TestJSONRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	type status struct {
		State string `json:"state"`
	}

	if err := WriteJSON(path, status{State: "fallback_active"}, 0644); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got status
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.State != "fallback_active" {
		t.Errorf("State = %q, want %q", got.State, "fallback_active")
	}
}

func TestReadJSONMissing(t *testing.T) {
	var v map[string]any
	err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &v)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadJSON error = %v, want os.ErrNotExist", err)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup-mode")
	if err := Write(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := Remove(path); err != nil {
			t.Fatalf("Remove call %d: %v", i+1, err)
		}
	}
}
