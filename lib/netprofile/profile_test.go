// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package netprofile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/radio-headless/netrecover/lib/codec"
)

func validProfile() Profile {
	return Profile{SSID: "HomeNet", Credential: "correct-horse", Hostname: "kitchen-radio"}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	got := Normalize(Profile{SSID: "  HomeNet \t", Credential: " secret pass ", Hostname: " Kitchen-Radio\n"})
	if got.SSID != "HomeNet" {
		t.Errorf("SSID = %q, want %q", got.SSID, "HomeNet")
	}
	if got.Hostname != "kitchen-radio" {
		t.Errorf("Hostname = %q, want %q", got.Hostname, "kitchen-radio")
	}
	if got.Credential.Reveal() != " secret pass " {
		t.Errorf("credential was modified by Normalize")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Profile)
		fields []string
	}{
		{"valid", func(*Profile) {}, nil},
		{"empty ssid", func(p *Profile) { p.SSID = "" }, []string{FieldSSID}},
		{"ssid 32 bytes", func(p *Profile) { p.SSID = strings.Repeat("s", 32) }, nil},
		{"ssid 33 bytes", func(p *Profile) { p.SSID = strings.Repeat("s", 33) }, []string{FieldSSID}},
		{"password length 5", func(p *Profile) { p.Credential = "short" }, []string{FieldPassword}},
		{"password length 8", func(p *Profile) { p.Credential = "12345678" }, nil},
		{"password length 63", func(p *Profile) { p.Credential = Credential(strings.Repeat("p", 63)) }, nil},
		{"password length 64", func(p *Profile) { p.Credential = Credential(strings.Repeat("p", 64)) }, []string{FieldPassword}},
		{"missing password", func(p *Profile) { p.Credential = "" }, []string{FieldPassword}},
		{"hostname uppercase", func(p *Profile) { p.Hostname = "Kitchen" }, []string{FieldHostname}},
		{"hostname underscore", func(p *Profile) { p.Hostname = "kitchen_radio" }, []string{FieldHostname}},
		{"hostname leading hyphen", func(p *Profile) { p.Hostname = "-radio" }, []string{FieldHostname}},
		{"hostname trailing hyphen", func(p *Profile) { p.Hostname = "radio-" }, []string{FieldHostname}},
		{"hostname single char", func(p *Profile) { p.Hostname = "r" }, nil},
		{"hostname 63 chars", func(p *Profile) { p.Hostname = strings.Repeat("a", 63) }, nil},
		{"hostname 64 chars", func(p *Profile) { p.Hostname = strings.Repeat("a", 64) }, []string{FieldHostname}},
		{"hostname empty", func(p *Profile) { p.Hostname = "" }, []string{FieldHostname}},
		{"everything wrong", func(p *Profile) { *p = Profile{Hostname: "A_B"} },
			[]string{FieldSSID, FieldPassword, FieldHostname}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			profile := validProfile()
			test.modify(&profile)

			err := profile.Validate()
			if test.fields == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if len(validationErr.Fields) != len(test.fields) {
				t.Fatalf("rejected %d fields (%v), want %v", len(validationErr.Fields), validationErr.Fields, test.fields)
			}
			for i, field := range test.fields {
				if validationErr.Fields[i].Field != field {
					t.Errorf("Fields[%d] = %q, want %q", i, validationErr.Fields[i].Field, field)
				}
			}
		})
	}
}

func TestValidationErrorHidesValues(t *testing.T) {
	t.Parallel()

	profile := Profile{SSID: "HomeNet", Credential: "hunter", Hostname: "Bad_Host"}
	err := profile.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	message := err.Error()
	for _, value := range []string{"hunter", "Bad_Host"} {
		if strings.Contains(message, value) {
			t.Errorf("error %q contains submitted value %q", message, value)
		}
	}

	var validationErr *ValidationError
	errors.As(err, &validationErr)
	if validationErr.First().Field != FieldPassword {
		t.Errorf("First().Field = %q, want %q", validationErr.First().Field, FieldPassword)
	}
	for _, problem := range validationErr.Fields {
		if problem.Field == FieldSSID {
			t.Errorf("valid ssid reported as %q", problem.Reason)
		}
	}
}

func TestCredentialRedaction(t *testing.T) {
	t.Parallel()

	secret := Credential("correct-horse")
	profile := validProfile()
	for _, format := range []string{"%v", "%+v", "%#v", "%s", "%q", "%x"} {
		for _, value := range []any{secret, profile, &profile} {
			output := fmt.Sprintf(format, value)
			if strings.Contains(output, "correct-horse") || strings.Contains(output, fmt.Sprintf("%x", "correct-horse")) {
				t.Errorf("Sprintf(%q, %T) leaked the credential: %s", format, value, output)
			}
		}
	}
}

func TestCredentialNotLogged(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, nil))
	profile := validProfile()
	logger.Info("applying", "profile", profile, "password", profile.Credential)

	if strings.Contains(buffer.String(), "correct-horse") {
		t.Errorf("log output leaked the credential: %s", buffer.String())
	}
	if !strings.Contains(buffer.String(), "kitchen-radio") {
		t.Errorf("log output missing hostname: %s", buffer.String())
	}
}

func TestEncodingsKeepPlaintext(t *testing.T) {
	t.Parallel()

	profile := validProfile()

	jsonData, err := json.Marshal(profile)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var fromJSON Profile
	if err := json.Unmarshal(jsonData, &fromJSON); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if fromJSON != profile {
		t.Errorf("JSON roundtrip = %+v, want %+v", fromJSON, profile)
	}

	cborData, err := codec.Marshal(profile)
	if err != nil {
		t.Fatalf("codec.Marshal: %v", err)
	}
	var fromCBOR Profile
	if err := codec.Unmarshal(cborData, &fromCBOR); err != nil {
		t.Fatalf("codec.Unmarshal: %v", err)
	}
	if fromCBOR.Credential.Reveal() != "correct-horse" {
		t.Errorf("CBOR roundtrip lost the credential")
	}
}
