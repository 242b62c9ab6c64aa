// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package accesspoint

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// DefaultOperationTimeout bounds Start and Stop when Options leaves it
// unset.
const DefaultOperationTimeout = 15 * time.Second

// Mode is what the wireless interface is currently doing.
type Mode string

const (
	ModeStation     Mode = "station"
	ModeAccessPoint Mode = "access_point"
)

// Station is the client side of the radio. *wpa.Client implements it.
type Station interface {
	Disconnect(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// Backend brings the access point itself up and down.
type Backend interface {
	Up(ctx context.Context, settings Settings) error
	Down(ctx context.Context) error

	// Healthy reports whether everything Up started is still running.
	Healthy() bool
}

// Settings describe the fallback network.
type Settings struct {
	Interface  string
	SSID       string
	Passphrase string
	Gateway    netip.Prefix
	RangeStart netip.Addr
	RangeEnd   netip.Addr
	Channel    int
	Country    string
}

// SSIDFor returns prefix followed by the last four hex digits of mac in
// upper case, e.g. "Radio-Setup-AB12".
func SSIDFor(prefix string, mac net.HardwareAddr) string {
	digits := strings.ToUpper(strings.ReplaceAll(mac.String(), ":", ""))
	if len(digits) < 4 {
		digits = strings.Repeat("0", 4-len(digits)) + digits
	}
	return prefix + digits[len(digits)-4:]
}

// Options configures a Controller.
type Options struct {
	Station          Station
	Backend          Backend
	Settings         Settings
	OperationTimeout time.Duration
	Logger           *slog.Logger
}

// Controller switches the radio between station and access point mode.
type Controller struct {
	station  Station
	backend  Backend
	settings Settings
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	mode   Mode
	active bool
}

// New returns a Controller with the radio in station mode.
func New(options Options) *Controller {
	if options.OperationTimeout <= 0 {
		options.OperationTimeout = DefaultOperationTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Controller{
		station:  options.Station,
		backend:  options.Backend,
		settings: options.Settings,
		timeout:  options.OperationTimeout,
		logger:   options.Logger,
		mode:     ModeStation,
	}
}

// SSID returns the fallback network name.
func (c *Controller) SSID() string { return c.settings.SSID }

// Active reports whether the access point is up and serving. It turns
// false when a backend process dies on its own; Start then rebuilds
// the access point.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active && c.backend.Healthy()
}

// Mode returns the current radio mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Start brings the access point up. Calling Start while it is already
// up and healthy does nothing; a degraded access point is torn down
// and started again. On failure the radio is handed back to the
// station.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.active {
		if c.backend.Healthy() {
			return nil
		}
		c.logger.Warn("access point degraded, restarting", "ssid", c.settings.SSID)
		if err := c.backend.Down(ctx); err != nil {
			c.logger.Warn("cleaning up degraded access point", "error", err)
		}
		c.active = false
	}

	// A supplicant that is not running cannot hold the radio, so a
	// failed disconnect is not fatal.
	if err := c.station.Disconnect(ctx); err != nil {
		c.logger.Warn("releasing station before starting access point", "error", err)
	}

	if err := c.backend.Up(ctx, c.settings); err != nil {
		downCtx, downCancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer downCancel()
		if downErr := c.backend.Down(downCtx); downErr != nil {
			c.logger.Warn("cleaning up after failed access point start", "error", downErr)
		}
		if reconnectErr := c.station.Reconnect(downCtx); reconnectErr != nil {
			c.logger.Warn("returning radio to station after failed access point start", "error", reconnectErr)
		}
		return fmt.Errorf("starting access point %s: %w", c.settings.SSID, err)
	}

	c.active = true
	c.mode = ModeAccessPoint
	c.logger.Info("access point started",
		"ssid", c.settings.SSID,
		"interface", c.settings.Interface,
		"gateway", c.settings.Gateway.String(),
	)
	return nil
}

// Stop takes the access point down and reconnects the station. Calling
// Stop while the access point is down does nothing. If the access point
// cannot be taken down it stays marked active so Stop can be retried;
// a failed reconnect is reported after the mode has switched.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.backend.Down(ctx); err != nil {
		return fmt.Errorf("stopping access point %s: %w", c.settings.SSID, err)
	}
	c.active = false
	c.mode = ModeStation
	c.logger.Info("access point stopped", "ssid", c.settings.SSID)

	if err := c.station.Reconnect(ctx); err != nil {
		return fmt.Errorf("reconnecting station: %w", err)
	}
	return nil
}
