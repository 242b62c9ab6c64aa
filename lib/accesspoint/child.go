// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package accesspoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"
)

// child is a supervised long-running helper process.
type child struct {
	name    string
	command *exec.Cmd
	logger  *slog.Logger

	// done is closed by the reap goroutine when the process exits.
	done     chan struct{}
	waitErr  error
	stopping atomic.Bool
}

func startChild(name string, argv []string, logger *slog.Logger) (*child, error) {
	command := exec.Command(argv[0], argv[1:]...)
	command.Stdout = os.Stderr
	command.Stderr = os.Stderr
	if err := command.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	started := &child{
		name:    name,
		command: command,
		logger:  logger,
		done:    make(chan struct{}),
	}

	// Reap in the background to avoid zombies. An exit nobody asked for
	// means the access point is degraded.
	go func() {
		started.waitErr = command.Wait()
		close(started.done)
		if started.stopping.Load() {
			return
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(started.waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else if started.waitErr == nil {
			exitCode = 0
		}
		logger.Error("access point helper exited unexpectedly",
			"process", name,
			"pid", command.Process.Pid,
			"exit_code", exitCode,
			"error", started.waitErr,
		)
	}()

	logger.Info("access point helper started", "process", name, "pid", command.Process.Pid)
	return started, nil
}

func (c *child) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// settle waits for d and fails if the process exits first, which is
// how hostapd reports a bad config or a busy interface.
func (c *child) settle(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.done:
		return fmt.Errorf("%s exited during startup: %v", c.name, c.waitErr)
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s to start: %w", c.name, ctx.Err())
	}
}

// stop sends SIGTERM and waits for exit, escalating to SIGKILL when ctx
// expires first.
func (c *child) stop(ctx context.Context) error {
	c.stopping.Store(true)
	if c.exited() {
		return nil
	}

	if err := c.command.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signalling %s: %w", c.name, err)
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.command.Process.Kill()
		<-c.done
		return fmt.Errorf("%s did not exit on SIGTERM, killed", c.name)
	}
}
