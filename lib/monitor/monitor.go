// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/radio-headless/netrecover/lib/clock"
	"github.com/radio-headless/netrecover/lib/netapply"
	"github.com/radio-headless/netrecover/lib/netprofile"
	"github.com/radio-headless/netrecover/lib/probe"
	"github.com/radio-headless/netrecover/lib/setupstate"
)

// ErrSetupNotActive is returned by Submit outside setup mode.
var ErrSetupNotActive = errors.New("setup mode is not active")

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultGraceWindow     = 60 * time.Second
	DefaultRecheckInterval = 30 * time.Second
	DefaultChannelTimeout  = 15 * time.Second
)

// Prober checks connectivity. *probe.Prober implements it.
type Prober interface {
	Check(ctx context.Context, timeout time.Duration) probe.Result
}

// AccessPoint is the fallback access point. *accesspoint.Controller
// implements it.
type AccessPoint interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Active() bool
	SSID() string
}

// Server is the setup API server. *provisioning.Server implements it.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Applier runs apply transactions. *netapply.Transaction implements it.
type Applier interface {
	Run(ctx context.Context, profile netprofile.Profile) (netapply.Outcome, error)
}

// Publisher makes the status visible outside the process.
// *setupstate.Marker implements it.
type Publisher interface {
	Publish(status setupstate.Status) error
}

// Options configures a Monitor.
type Options struct {
	Prober      Prober
	AccessPoint AccessPoint
	Server      Server
	Applier     Applier
	Publisher   Publisher

	PollInterval    time.Duration
	GraceWindow     time.Duration
	RecheckInterval time.Duration
	ProbeTimeout    time.Duration

	// ChannelTimeout bounds stopping the fallback channel at shutdown
	// and after a successful apply.
	ChannelTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Monitor is the connectivity state machine.
type Monitor struct {
	options Options

	// mu guards the fields below it. It is never held across a probe,
	// an access point operation or an apply.
	mu           sync.Mutex
	status       setupstate.Status
	offlineSince time.Time
	lastProbe    time.Time
	probing      bool
	tickPending  bool
	channelUp    bool

	// channelMu serializes fallback channel operations between the run
	// loop and Submit.
	channelMu sync.Mutex

	results chan probe.Result
}

// New returns a Monitor in the probing state. Nothing is published
// until Run starts.
func New(options Options) *Monitor {
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if options.GraceWindow <= 0 {
		options.GraceWindow = DefaultGraceWindow
	}
	if options.RecheckInterval <= 0 {
		options.RecheckInterval = DefaultRecheckInterval
	}
	if options.ProbeTimeout <= 0 {
		options.ProbeTimeout = probe.DefaultTimeout
	}
	if options.ChannelTimeout <= 0 {
		options.ChannelTimeout = DefaultChannelTimeout
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Monitor{
		options: options,
		status:  setupstate.Status{State: setupstate.Probing, UpdatedAt: options.Clock.Now()},
		results: make(chan probe.Result, 1),
	}
}

// Status returns the current status.
func (m *Monitor) Status() setupstate.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Run drives the state machine until ctx is cancelled, then takes the
// fallback channel down.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.setStateLocked(setupstate.Probing)
	m.mu.Unlock()

	ticker := m.options.Clock.NewTicker(m.options.PollInterval)
	defer ticker.Stop()

	m.launchProbe(ctx)

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case now := <-ticker.C:
			m.onTick(ctx, now)
		case result := <-m.results:
			m.observeProbe(ctx, result)
		}
	}
}

// onTick starts whatever periodic work the current state calls for.
func (m *Monitor) onTick(ctx context.Context, now time.Time) {
	m.mu.Lock()
	state := m.status.State
	due := false
	switch state {
	case setupstate.Probing:
		due = true
	case setupstate.Normal:
		due = now.Sub(m.lastProbe) >= m.options.RecheckInterval
	}
	if due && m.probing {
		m.tickPending = true
		due = false
	}
	retryChannel := state == setupstate.FallbackActive && !m.channelUp
	checkChannel := state == setupstate.FallbackActive && m.channelUp
	m.mu.Unlock()

	// hostapd or dnsmasq can die after a successful start.
	if checkChannel && !m.options.AccessPoint.Active() {
		m.mu.Lock()
		if m.status.State == setupstate.FallbackActive && m.channelUp {
			m.options.Logger.Warn("fallback access point went down, restarting")
			m.channelUp = false
			retryChannel = true
		}
		m.mu.Unlock()
	}

	if due {
		m.launchProbe(ctx)
	}
	if retryChannel {
		m.startFallbackChannel(ctx)
	}
}

// launchProbe starts a check on a worker goroutine unless one is
// already outstanding.
func (m *Monitor) launchProbe(ctx context.Context) {
	m.mu.Lock()
	if m.probing {
		m.mu.Unlock()
		return
	}
	m.probing = true
	m.tickPending = false
	m.lastProbe = m.options.Clock.Now()
	m.mu.Unlock()

	go func() {
		result := m.options.Prober.Check(ctx, m.options.ProbeTimeout)
		select {
		case m.results <- result:
		case <-ctx.Done():
		}
	}()
}

// observeProbe applies one check result to the state machine. An
// outage starts when the first failing check started, so time spent
// inside slow checks counts toward the grace window.
func (m *Monitor) observeProbe(ctx context.Context, result probe.Result) {
	at := result.CheckedAt
	if at.IsZero() {
		at = m.options.Clock.Now()
	}
	started := result.StartedAt
	if started.IsZero() || started.After(at) {
		started = at
	}

	m.mu.Lock()
	m.probing = false
	state := m.status.State
	enterFallback := false

	switch {
	case state.SetupMode():
		// A check that straddled a transition into setup mode.

	case result.Online():
		m.offlineSince = time.Time{}
		if state != setupstate.Normal {
			m.options.Logger.Info("connectivity established")
			m.setStateLocked(setupstate.Normal)
		}

	case state == setupstate.Normal:
		m.options.Logger.Warn("connectivity lost", "failed_step", result.FailedStep, "reason", result.Reason)
		m.offlineSince = started
		m.setStateLocked(setupstate.Probing)

	default:
		if m.offlineSince.IsZero() {
			m.offlineSince = started
		}
		offlineFor := at.Sub(m.offlineSince)
		m.options.Logger.Info("still offline",
			"failed_step", result.FailedStep,
			"reason", result.Reason,
			"offline_for", offlineFor,
		)
		if offlineFor >= m.options.GraceWindow {
			m.options.Logger.Warn("entering setup mode", "offline_for", offlineFor)
			m.status.AccessPointSSID = m.options.AccessPoint.SSID()
			m.setStateLocked(setupstate.FallbackActive)
			enterFallback = true
		}
	}

	retry := m.tickPending && !m.status.State.SetupMode()
	m.mu.Unlock()

	if enterFallback {
		m.startFallbackChannel(ctx)
	}
	if retry {
		m.launchProbe(ctx)
	}
}

// startFallbackChannel brings up the access point and then the setup
// server. Both starts are idempotent, so a retry after a partial start
// only finishes the missing part.
func (m *Monitor) startFallbackChannel(ctx context.Context) {
	m.channelMu.Lock()
	defer m.channelMu.Unlock()

	m.mu.Lock()
	if m.status.State != setupstate.FallbackActive || m.channelUp {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := m.options.AccessPoint.Start(ctx); err != nil {
		m.options.Logger.Error("starting fallback access point, will retry", "error", err)
		return
	}
	if err := m.options.Server.Start(ctx); err != nil {
		m.options.Logger.Error("starting setup server, will retry", "error", err)
		return
	}

	m.mu.Lock()
	m.channelUp = true
	m.mu.Unlock()
	m.options.Logger.Info("setup mode ready", "ssid", m.options.AccessPoint.SSID())
}

// Submit applies profile. It is only accepted in fallback_active;
// a submission while another is applying gets netapply.ErrInFlight.
// Validation failures leave the state unchanged.
func (m *Monitor) Submit(ctx context.Context, profile netprofile.Profile) (netapply.Outcome, error) {
	profile = netprofile.Normalize(profile)

	m.mu.Lock()
	switch m.status.State {
	case setupstate.FallbackActive:
	case setupstate.Applying, setupstate.ApplyFailed:
		m.mu.Unlock()
		return netapply.Outcome{}, netapply.ErrInFlight
	default:
		m.mu.Unlock()
		return netapply.Outcome{}, ErrSetupNotActive
	}
	if err := profile.Validate(); err != nil {
		m.mu.Unlock()
		detail := err.Error()
		var validationErr *netprofile.ValidationError
		if errors.As(err, &validationErr) {
			detail = validationErr.First().Reason
		}
		return netapply.Outcome{}, &netapply.Error{
			Kind:   netapply.KindValidation,
			Step:   netapply.StepValidate,
			Detail: detail,
			Err:    err,
		}
	}
	m.status.LastError = ""
	m.setStateLocked(setupstate.Applying)
	m.mu.Unlock()

	// The apply outlives the HTTP request that started it.
	applyCtx := context.WithoutCancel(ctx)

	m.channelMu.Lock()
	outcome, err := m.options.Applier.Run(applyCtx, profile)
	m.channelMu.Unlock()

	if err == nil {
		m.mu.Lock()
		m.offlineSince = time.Time{}
		m.lastProbe = m.options.Clock.Now()
		m.channelUp = false
		m.status.AccessPointSSID = ""
		m.setStateLocked(setupstate.Normal)
		m.mu.Unlock()

		// The server is stopped from outside the request that is still
		// being answered.
		go m.stopServer(applyCtx)
		return outcome, nil
	}

	summary := "the new network settings could not be applied"
	var applyErr *netapply.Error
	if errors.As(err, &applyErr) {
		summary = applyErr.Summary()
	}
	m.options.Logger.Error("apply failed, staying in setup mode", "error", err)

	m.mu.Lock()
	if errors.Is(err, netapply.ErrInFlight) {
		m.setStateLocked(setupstate.FallbackActive)
		m.mu.Unlock()
		return outcome, err
	}
	m.status.LastError = summary
	m.setStateLocked(setupstate.ApplyFailed)
	// The transaction restarts the access point on failure; if that
	// did not work, the next tick retries.
	m.channelUp = m.options.AccessPoint.Active()
	m.setStateLocked(setupstate.FallbackActive)
	m.mu.Unlock()
	return outcome, err
}

func (m *Monitor) stopServer(ctx context.Context) {
	m.channelMu.Lock()
	defer m.channelMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.options.ChannelTimeout)
	defer cancel()
	if err := m.options.Server.Stop(ctx); err != nil {
		m.options.Logger.Warn("stopping setup server", "error", err)
	}
}

// shutdown takes the fallback channel down so the radio is left in
// station mode when the daemon exits.
func (m *Monitor) shutdown() {
	m.channelMu.Lock()
	defer m.channelMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.options.ChannelTimeout)
	defer cancel()
	if err := m.options.Server.Stop(ctx); err != nil {
		m.options.Logger.Warn("stopping setup server at shutdown", "error", err)
	}
	if err := m.options.AccessPoint.Stop(ctx); err != nil {
		m.options.Logger.Warn("stopping access point at shutdown", "error", err)
	}
}

// setStateLocked records and publishes a transition. m.mu must be held.
// Publishing failures are logged, not returned: the state machine keeps
// running even if the marker directory is unwritable.
func (m *Monitor) setStateLocked(state setupstate.State) {
	previous := m.status.State
	m.status.State = state
	m.status.UpdatedAt = m.options.Clock.Now()
	if !state.SetupMode() {
		m.status.LastError = ""
		m.status.AccessPointSSID = ""
	}
	if err := m.options.Publisher.Publish(m.status); err != nil {
		m.options.Logger.Error("publishing status", "state", state, "error", err)
	}
	if previous != state {
		m.options.Logger.Info("state changed", "from", previous, "to", state)
	}
}
