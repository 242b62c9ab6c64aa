// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netapply

import (
	"errors"
	"fmt"
)

// ErrInFlight is returned when a transaction is already running.
var ErrInFlight = errors.New("a network configuration is already being applied")

// Kind classifies a failed transaction.
type Kind string

const (
	// KindValidation: the submitted profile was rejected before any
	// change was made.
	KindValidation Kind = "validation"

	// KindTransient: the change was made but connectivity could not be
	// verified in time; the previous configuration was restored.
	KindTransient Kind = "transient"

	// KindTransaction: a step failed and the previous configuration
	// was restored.
	KindTransaction Kind = "transaction"

	// KindFatal: the previous configuration could not be restored, or
	// the store itself is unusable.
	KindFatal Kind = "fatal"
)

// Steps at which a transaction can fail.
const (
	StepValidate         = "validate"
	StepLock             = "lock"
	StepHelper           = "helper"
	StepSnapshot         = "snapshot"
	StepJournal          = "journal"
	StepWriteProfile     = "write_profile"
	StepHostname         = "hostname"
	StepStation          = "station"
	StepStopAccessPoint  = "stop_access_point"
	StepVerify           = "verify"
	StepRestore          = "restore"
	StepStartAccessPoint = "start_access_point"
)

// Error is a failed transaction.
type Error struct {
	Kind Kind
	Step string

	// Detail is safe to show an operator. It never contains the
	// credential.
	Detail string

	// Err is the underlying cause, for logs.
	Err error
}

func (e *Error) Error() string {
	message := fmt.Sprintf("%s error at %s", e.Kind, e.Step)
	if e.Detail != "" {
		message += ": " + e.Detail
	}
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *Error) Unwrap() error { return e.Err }

// Summary returns actionable text for the operator.
func (e *Error) Summary() string {
	switch e.Kind {
	case KindValidation, KindTransient:
		if e.Detail != "" {
			return e.Detail
		}
		return "the new network settings could not be verified; the previous settings were restored"
	case KindTransaction:
		if e.Step == StepLock {
			return "another configuration change is in progress; try again shortly"
		}
		return "the new network settings could not be applied (" + stepDescription(e.Step) +
			" failed); the previous settings were restored"
	case KindFatal:
		return "the device could not restore its previous network settings and will stay in setup mode; " +
			"submit the settings again"
	}
	return "the new network settings could not be applied"
}

func stepDescription(step string) string {
	switch step {
	case StepHelper:
		return "running the configuration helper"
	case StepSnapshot:
		return "backing up the current settings"
	case StepWriteProfile:
		return "saving the settings"
	case StepHostname:
		return "setting the device name"
	case StepStation:
		return "configuring the wireless client"
	case StepStopAccessPoint:
		return "stopping the setup network"
	}
	return step
}

// AsError returns err as an *Error, wrapping anything else as a
// transaction error at step.
func AsError(err error, step string) *Error {
	var applyErr *Error
	if errors.As(err, &applyErr) {
		return applyErr
	}
	return &Error{Kind: KindTransaction, Step: step, Err: err}
}
