// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/radio-headless/netrecover/lib/monitor"
	"github.com/radio-headless/netrecover/lib/netapply"
	"github.com/radio-headless/netrecover/lib/netprofile"
	"github.com/radio-headless/netrecover/lib/netutil"
	"github.com/radio-headless/netrecover/lib/setupstate"
)

// MaxRequestSize bounds POST bodies.
const MaxRequestSize int64 = 64 << 10

// Paths served by the handler.
const (
	ConfigPath = "/setup/config"
	ApplyPath  = "/setup/apply"
)

// Submitter is the monitor as seen by the setup API. *monitor.Monitor
// implements it.
type Submitter interface {
	Status() setupstate.Status
	Submit(ctx context.Context, profile netprofile.Profile) (netapply.Outcome, error)
}

// ConfigResponse is the body of GET /setup/config.
type ConfigResponse struct {
	State     setupstate.State `json:"state"`
	LastError string           `json:"last_error,omitempty"`

	// SSID is the fallback access point's network name.
	SSID string `json:"ssid,omitempty"`
}

// ApplyRequest is the body of POST /setup/apply.
type ApplyRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	Hostname string `json:"hostname"`
}

// Profile converts the request to a normalized profile.
func (r ApplyRequest) Profile() netprofile.Profile {
	return netprofile.Normalize(netprofile.Profile{
		SSID:       r.SSID,
		Credential: netprofile.Credential(r.Password),
		Hostname:   r.Hostname,
	})
}

// ApplyResponse is the body of a successful POST /setup/apply.
type ApplyResponse struct {
	Message    string `json:"message"`
	SnapshotID string `json:"snapshot_id,omitempty"`
}

// ErrorResponse is the body of every non-2xx response. Field and
// Fields are set for validation failures, Kind for apply failures,
// State for 403.
type ErrorResponse struct {
	Reason string                  `json:"reason"`
	Field  string                  `json:"field,omitempty"`
	Fields []netprofile.FieldError `json:"fields,omitempty"`
	Kind   netapply.Kind           `json:"kind,omitempty"`
	State  setupstate.State        `json:"state,omitempty"`
}

type handler struct {
	submitter   Submitter
	allowOrigin string
	logger      *slog.Logger
}

// NewHandler returns the setup API handler. allowOrigin is sent as
// Access-Control-Allow-Origin; empty disables CORS headers.
func NewHandler(submitter Submitter, allowOrigin string, logger *slog.Logger) http.Handler {
	h := &handler{submitter: submitter, allowOrigin: allowOrigin, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+ConfigPath, h.requireSetupMode(h.handleConfig))
	mux.HandleFunc("POST "+ApplyPath, h.requireSetupMode(h.handleApply))
	mux.HandleFunc("OPTIONS /setup/", h.handlePreflight)
	return h.withCORS(mux)
}

func (h *handler) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.allowOrigin != "" {
			header := w.Header()
			header.Set("Access-Control-Allow-Origin", h.allowOrigin)
			header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Content-Type")
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) requireSetupMode(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := h.submitter.Status().State
		if !state.SetupMode() {
			writeJSON(w, http.StatusForbidden, ErrorResponse{
				Reason: monitor.ErrSetupNotActive.Error(),
				State:  state,
			})
			return
		}
		next(w, r)
	}
}

func (h *handler) handleConfig(w http.ResponseWriter, _ *http.Request) {
	status := h.submitter.Status()
	writeJSON(w, http.StatusOK, ConfigResponse{
		State:     status.State,
		LastError: status.LastError,
		SSID:      status.AccessPointSSID,
	})
}

func (h *handler) handleApply(w http.ResponseWriter, r *http.Request) {
	var request ApplyRequest
	if err := netutil.DecodeBody(r.Body, MaxRequestSize, &request); err != nil {
		status := http.StatusBadRequest
		reason := "request body must be a JSON object with ssid, password and hostname"
		if errors.Is(err, netutil.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
			reason = fmt.Sprintf("request body exceeds %d bytes", MaxRequestSize)
		}
		writeJSON(w, status, ErrorResponse{Reason: reason, Field: "body"})
		return
	}

	profile := request.Profile()
	if err := profile.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, validationResponse(err))
		return
	}

	h.logger.Info("setup submission received", "profile", profile, "remote", r.RemoteAddr)

	outcome, err := h.submitter.Submit(r.Context(), profile)
	if err != nil {
		status, response := applyErrorResponse(err)
		h.logger.Warn("setup submission failed", "status", status, "error", err)
		writeJSON(w, status, response)
		return
	}

	h.logger.Info("setup submission applied",
		"transaction_id", outcome.TransactionID,
		"snapshot_id", outcome.SnapshotID,
	)
	writeJSON(w, http.StatusOK, ApplyResponse{
		Message:    fmt.Sprintf("Connected to %q. Setup mode is ending; reconnect to your usual network.", profile.SSID),
		SnapshotID: outcome.SnapshotID,
	})
}

func validationResponse(err error) ErrorResponse {
	var validationErr *netprofile.ValidationError
	if !errors.As(err, &validationErr) {
		reason := err.Error()
		var applyErr *netapply.Error
		if errors.As(err, &applyErr) && applyErr.Detail != "" {
			reason = applyErr.Detail
		}
		return ErrorResponse{Reason: reason, Kind: netapply.KindValidation}
	}
	first := validationErr.First()
	return ErrorResponse{
		Reason: first.Reason,
		Field:  first.Field,
		Fields: validationErr.Fields,
		Kind:   netapply.KindValidation,
	}
}

// applyErrorResponse maps a Submit error to a status code and a body
// carrying only operator-safe text.
func applyErrorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, monitor.ErrSetupNotActive):
		return http.StatusForbidden, ErrorResponse{Reason: err.Error()}
	case errors.Is(err, netapply.ErrInFlight):
		return http.StatusConflict, ErrorResponse{Reason: err.Error()}
	}

	var applyErr *netapply.Error
	if !errors.As(err, &applyErr) {
		return http.StatusInternalServerError, ErrorResponse{Reason: "the new network settings could not be applied"}
	}
	if applyErr.Kind == netapply.KindValidation {
		return http.StatusBadRequest, validationResponse(err)
	}

	response := ErrorResponse{Reason: applyErr.Summary(), Kind: applyErr.Kind}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, response
	}
	return http.StatusInternalServerError, response
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
