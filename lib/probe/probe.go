// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/radio-headless/netrecover/lib/clock"
	"github.com/radio-headless/netrecover/lib/wpa"
)

// DefaultTimeout bounds a check when the caller passes no timeout.
const DefaultTimeout = 30 * time.Second

// Step names, as reported in Result.Steps and Result.FailedStep.
const (
	StepAssociation  = "association"
	StepDefaultRoute = "default_route"
	StepDNS          = "dns"
	StepReachability = "reachability"
)

// Status is the verdict of a check.
type Status string

const (
	Online  Status = "online"
	Offline Status = "offline"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of one check.
type Result struct {
	Status     Status       `json:"status"`
	Steps      []StepResult `json:"steps"`
	FailedStep string       `json:"failed_step,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	CheckedAt  time.Time    `json:"checked_at"`
}

// Online reports whether every step passed.
func (r Result) Online() bool { return r.Status == Online }

// Associator reports the station association state. *wpa.Client
// implements it.
type Associator interface {
	Status(ctx context.Context) (wpa.Status, error)
}

// RouteChecker reports whether an IPv4 default route exists.
type RouteChecker interface {
	HasDefaultRoute(ctx context.Context) (bool, error)
}

// Resolver resolves host names. *net.Resolver implements it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Dialer opens connections. *net.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober runs connectivity checks.
type Prober struct {
	Association Associator
	Routes      RouteChecker
	Resolver    Resolver
	Dialer      Dialer

	// DNSName is resolved by the dns step.
	DNSName string

	// ReachabilityAddress enables the reachability step when non-empty.
	ReachabilityAddress string

	// Clock stamps StartedAt and CheckedAt. Defaults to clock.Real().
	Clock clock.Clock
}

// Check runs one connectivity check bounded by timeout (DefaultTimeout
// when non-positive). It never returns an error: every failure,
// including the deadline expiring, is an Offline result.
func (p *Prober) Check(ctx context.Context, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := Result{Status: Online, StartedAt: p.now()}

	steps := []step{
		{StepAssociation, p.checkAssociation},
		{StepDefaultRoute, p.checkDefaultRoute},
		{StepDNS, p.checkDNS},
	}
	if p.ReachabilityAddress != "" {
		steps = append(steps, step{StepReachability, p.checkReachability})
	}

	for _, step := range steps {
		start := time.Now()
		err := ctx.Err()
		if err == nil {
			err = step.run(ctx)
		}
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		stepResult := StepResult{Name: step.name, OK: err == nil, LatencyMs: time.Since(start).Milliseconds()}
		if err != nil {
			stepResult.Error = err.Error()
			result.Status = Offline
			result.FailedStep = step.name
			result.Reason = step.name + ": " + err.Error()
		}
		result.Steps = append(result.Steps, stepResult)
		if err != nil {
			break
		}
	}

	result.CheckedAt = p.now()
	return result
}

type step struct {
	name string
	run  func(context.Context) error
}

func (p *Prober) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock.Now()
}

func (p *Prober) checkAssociation(ctx context.Context) error {
	status, err := p.Association.Status(ctx)
	if err != nil {
		return err
	}
	if !status.Associated() {
		state := status.State
		if state == "" {
			state = "unknown"
		}
		return fmt.Errorf("station not associated (wpa_state=%s)", state)
	}
	return nil
}

func (p *Prober) checkDefaultRoute(ctx context.Context) error {
	found, err := p.Routes.HasDefaultRoute(ctx)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("no IPv4 default route")
	}
	return nil
}

func (p *Prober) checkDNS(ctx context.Context) error {
	addresses, err := p.Resolver.LookupHost(ctx, p.DNSName)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", p.DNSName, err)
	}
	if len(addresses) == 0 {
		return fmt.Errorf("resolving %s: no addresses", p.DNSName)
	}
	return nil
}

func (p *Prober) checkReachability(ctx context.Context) error {
	conn, err := p.Dialer.DialContext(ctx, "tcp", p.ReachabilityAddress)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", p.ReachabilityAddress, err)
	}
	conn.Close()
	return nil
}
