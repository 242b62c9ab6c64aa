// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netprofile

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Field names as they appear in the setup API. The passphrase is
// called "password" on the wire.
const (
	FieldSSID     = "ssid"
	FieldPassword = "password"
	FieldHostname = "hostname"
)

const (
	MinSSIDLength       = 1
	MaxSSIDLength       = 32
	MinCredentialLength = 8
	MaxCredentialLength = 63
)

var hostnamePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// Profile is one network configuration: where to connect and what the
// device calls itself.
type Profile struct {
	SSID       string     `json:"ssid"`
	Credential Credential `json:"password"`
	Hostname   string     `json:"hostname"`
}

// Normalize returns a copy of p with surrounding whitespace trimmed
// from the SSID and hostname and the hostname lowercased. The
// credential is left untouched: leading spaces are legal in a
// passphrase.
func Normalize(p Profile) Profile {
	return Profile{
		SSID:       strings.TrimSpace(p.SSID),
		Credential: p.Credential,
		Hostname:   strings.ToLower(strings.TrimSpace(p.Hostname)),
	}
}

// Validate checks an already-normalized profile. It returns nil or a
// *ValidationError listing every rejected field.
func (p Profile) Validate() error {
	var problems []FieldError

	switch n := len(p.SSID); {
	case n == 0:
		problems = append(problems, FieldError{Field: FieldSSID, Reason: "ssid is required"})
	case n > MaxSSIDLength:
		problems = append(problems, FieldError{Field: FieldSSID,
			Reason: fmt.Sprintf("ssid must be at most %d bytes, got %d", MaxSSIDLength, n)})
	}

	switch n := len(p.Credential); {
	case n == 0:
		problems = append(problems, FieldError{Field: FieldPassword, Reason: "password is required"})
	case n < MinCredentialLength || n > MaxCredentialLength:
		problems = append(problems, FieldError{Field: FieldPassword,
			Reason: fmt.Sprintf("password must be %d to %d characters, got %d",
				MinCredentialLength, MaxCredentialLength, n)})
	}

	switch {
	case p.Hostname == "":
		problems = append(problems, FieldError{Field: FieldHostname, Reason: "hostname is required"})
	case !hostnamePattern.MatchString(p.Hostname):
		problems = append(problems, FieldError{Field: FieldHostname,
			Reason: "hostname must be 1 to 63 characters of a-z, 0-9 and '-', not starting or ending with '-'"})
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Fields: problems}
}

// LogValue logs the SSID and hostname only.
func (p Profile) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("ssid", p.SSID),
		slog.String("hostname", p.Hostname),
	)
}

// FieldError is one rejected field. Reason never contains the
// submitted value.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports every field of a profile that failed
// validation, in the order ssid, password, hostname.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return "invalid " + e.Fields[0].Field + ": " + e.Fields[0].Reason
	}
	var builder strings.Builder
	builder.WriteString("invalid profile: ")
	for i, field := range e.Fields {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(field.Field)
		builder.WriteString(": ")
		builder.WriteString(field.Reason)
	}
	return builder.String()
}

// First returns the first rejected field.
func (e *ValidationError) First() FieldError {
	if len(e.Fields) == 0 {
		return FieldError{}
	}
	return e.Fields[0]
}
