// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/radio-headless/netrecover/lib/netprofile"
	"github.com/radio-headless/netrecover/lib/netutil"
	"github.com/radio-headless/netrecover/lib/provisioning"
)

func (a *app) applyCommand() *command {
	var (
		file    string
		baseURL string
	)
	return &command{
		name:    "apply",
		summary: "Submit a network profile to the local setup API",
		usage:   "netrecoverctl apply --file <profile.jsonc> [flags]",
		flags: func() *pflag.FlagSet {
			flags := a.flagSet("apply", false)
			flags.StringVarP(&file, "file", "f", "", "JSON or JSONC file with ssid, password and hostname (required)")
			flags.StringVar(&baseURL, "url", "", "setup API base URL (default: derived from provisioning.listen)")
			return flags
		},
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("apply takes no arguments; pass the profile with --file")
			}
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			request, err := readProfileFile(file)
			if err != nil {
				return err
			}
			if err := request.Profile().Validate(); err != nil {
				return err
			}
			if baseURL == "" {
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				baseURL = localURL(cfg.Provisioning.Listen)
			}
			return a.submit(baseURL, request)
		},
	}
}

// readProfileFile parses a JSONC profile file.
func readProfileFile(path string) (provisioning.ApplyRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return provisioning.ApplyRequest{}, fmt.Errorf("reading profile: %w", err)
	}
	var request provisioning.ApplyRequest
	if err := json.Unmarshal(jsonc.ToJSON(data), &request); err != nil {
		return provisioning.ApplyRequest{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return request, nil
}

// localURL turns a listen address into a loopback URL.
func localURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		listen = "127.0.0.1" + listen
	}
	return "http://" + listen
}

func (a *app) submit(baseURL string, request provisioning.ApplyRequest) error {
	body, err := json.Marshal(request)
	if err != nil {
		return err
	}
	httpRequest, err := http.NewRequestWithContext(a.ctx, http.MethodPost,
		strings.TrimSuffix(baseURL, "/")+provisioning.ApplyPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	a.logger.Debug("submitting profile", "profile", request.Profile(), "url", baseURL)
	response, err := a.http.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("reaching the setup API: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusOK {
		var applied provisioning.ApplyResponse
		if err := netutil.DecodeResponse(response.Body, &applied); err != nil {
			return fmt.Errorf("decoding setup API response: %w", err)
		}
		fmt.Fprintln(a.stdout, applied.Message)
		if applied.SnapshotID != "" {
			fmt.Fprintf(a.stdout, "Previous settings saved as snapshot %s.\n", applied.SnapshotID)
		}
		return nil
	}

	raw := netutil.ErrorBody(response.Body)
	var failure provisioning.ErrorResponse
	if err := json.Unmarshal([]byte(raw), &failure); err != nil || failure.Reason == "" {
		return fmt.Errorf("setup API returned %s: %s", response.Status, strings.TrimSpace(raw))
	}
	if len(failure.Fields) > 0 {
		return &netprofile.ValidationError{Fields: failure.Fields}
	}
	return fmt.Errorf("setup API returned %d: %s", response.StatusCode, failure.Reason)
}
