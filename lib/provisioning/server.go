// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultShutdownTimeout bounds graceful shutdown when Options leaves
// it zero.
const DefaultShutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Address is the TCP listen address, e.g. ":8080". Port 0 picks a
	// free port; see Addr.
	Address string

	Submitter Submitter

	// AllowOrigin is sent as Access-Control-Allow-Origin.
	AllowOrigin string

	// ShutdownTimeout is the maximum time Stop waits for in-flight
	// requests.
	ShutdownTimeout time.Duration

	Logger *slog.Logger
}

// Server runs the setup API on demand. The zero state is stopped.
type Server struct {
	address         string
	handler         http.Handler
	shutdownTimeout time.Duration
	logger          *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	addr     net.Addr
	serveErr chan error
}

// New returns a stopped Server.
func New(options Options) *Server {
	if options.Address == "" {
		panic("provisioning.Server: Address is required")
	}
	if options.Submitter == nil {
		panic("provisioning.Server: Submitter is required")
	}
	if options.Logger == nil {
		panic("provisioning.Server: Logger is required")
	}
	timeout := options.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	logger := options.Logger.With("component", "provisioning")
	return &Server{
		address:         options.Address,
		handler:         NewHandler(options.Submitter, options.AllowOrigin, logger),
		shutdownTimeout: timeout,
		logger:          logger,
	}
}

// Start binds the listener and begins serving. Starting a running
// server is a no-op.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}

	server := &http.Server{
		Handler: s.handler,

		// Bodies are tiny; an apply request may take up to the whole
		// apply timeout before the response is written.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		err := server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
		close(serveErr)
	}()

	s.server = server
	s.addr = listener.Addr()
	s.serveErr = serveErr
	s.logger.Info("setup API listening", "address", s.addr.String())
	return nil
}

// Stop gracefully shuts the server down, waiting up to the shutdown
// timeout (or ctx, whichever is sooner) for in-flight requests.
// Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	shutdownErr := s.server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		s.server.Close()
	}
	serveErr := <-s.serveErr

	s.server = nil
	s.addr = nil
	s.serveErr = nil

	if shutdownErr != nil {
		return fmt.Errorf("setup API shutdown: %w", shutdownErr)
	}
	if serveErr != nil {
		return fmt.Errorf("setup API: %w", serveErr)
	}
	s.logger.Info("setup API stopped")
	return nil
}

// Running reports whether the server is started.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Addr returns the bound address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
