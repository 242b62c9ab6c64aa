// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package sysexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// InputRunner executes a command with stdin and returns its standard
// output.
type InputRunner interface {
	RunInput(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// Exec is the production Runner and InputRunner. Stdin, when non-nil,
// is fed to every command Run executes; leave it nil for tools that
// read nothing.
type Exec struct {
	Stdin io.Reader
}

// RunInput executes name with args, feeding stdin to the process.
func (e Exec) RunInput(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	return Exec{Stdin: bytes.NewReader(stdin)}.Run(ctx, name, args...)
}

// Run executes name with args. A non-zero exit returns an *ExitError
// carrying the trimmed stderr; an expired context returns an error
// wrapping ctx.Err().
func (e Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	command := exec.CommandContext(ctx, name, args...)
	command.Stdin = e.Stdin
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctx.Err() != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), &ExitError{
			Command: name,
			Code:    exitErr.ExitCode(),
			Stderr:  strings.TrimSpace(stderr.String()),
		}
	}
	return stdout.Bytes(), fmt.Errorf("running %s: %w", name, err)
}

// ExitError is a command that ran and exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.Code, e.Stderr)
}
