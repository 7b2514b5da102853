// Package health probes the liveness of running tool servers and keeps their cached health current.
package health

import (
	"context"
	stdErrors "errors"
	"fmt"
	"reflect"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
	"github.com/mozilla-ai/mcporch/internal/registry"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

// errSuperseded marks a probe result that arrived after the server was restarted or stopped.
var errSuperseded = stdErrors.New("probe result superseded")

// Monitor runs periodic and on-demand probes.
// It only ever moves servers between running and unhealthy; it never starts or stops them.
// NewMonitor should be used to create instances of Monitor.
type Monitor struct {
	logger     hclog.Logger
	registry   *registry.Registry
	transports transport.Resolver
	opts       Options
	now        func() time.Time
}

// NewMonitor creates a Monitor.
func NewMonitor(
	logger hclog.Logger,
	reg *registry.Registry,
	transports transport.Resolver,
	opt ...Option,
) (*Monitor, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if transports == nil || reflect.ValueOf(transports).IsNil() {
		return nil, fmt.Errorf("transports cannot be nil")
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	return &Monitor{
		logger:     logger.Named("health"),
		registry:   reg,
		transports: transports,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run probes every observed server immediately and then once per interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.ProbeAll(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping server health checks")
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

// ProbeAll runs one round of probes against every running or unhealthy server and waits for it to finish.
func (m *Monitor) ProbeAll(ctx context.Context) {
	g := errgroup.Group{}
	g.SetLimit(m.opts.MaxConcurrentProbes)

	for _, snap := range m.registry.List() {
		if !snap.State.Status.Probed() {
			continue
		}
		g.Go(func() error {
			_, _ = m.probe(ctx, snap, m.opts.FailureThreshold)
			return nil
		})
	}

	_ = g.Wait()
}

// Check probes one server now, bypassing the interval.
// A single failure is enough to mark a running server unhealthy.
func (m *Monitor) Check(ctx context.Context, name string) (domain.ServerHealth, error) {
	snap, err := m.registry.Get(name)
	if err != nil {
		return domain.ServerHealth{}, err
	}
	if !snap.State.Status.Probed() {
		return domain.ServerHealth{}, fmt.Errorf(
			"%w: server '%s' (status: %s)",
			errors.ErrServerNotRunning,
			name,
			snap.State.Status,
		)
	}

	return m.probe(ctx, snap, 1)
}

// Health returns the cached health of one server.
// A reading older than the staleness bound is reported as unknown.
func (m *Monitor) Health(name string) (domain.ServerHealth, error) {
	snap, err := m.registry.Get(name)
	if err != nil {
		return domain.ServerHealth{}, err
	}

	return m.effective(snap.State.Health), nil
}

// List returns the cached health of every server ordered by name.
func (m *Monitor) List() []domain.ServerHealth {
	snaps := m.registry.List()
	out := make([]domain.ServerHealth, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, m.effective(snap.State.Health))
	}

	return out
}

// Stale reports whether h is too old to be trusted.
func (m *Monitor) Stale(h domain.ServerHealth) bool {
	return h.Stale(m.now(), m.opts.StaleAfter)
}

func (m *Monitor) effective(h domain.ServerHealth) domain.ServerHealth {
	if h.Status != domain.HealthStatusUnknown && m.Stale(h) {
		h.Status = domain.HealthStatusUnknown
	}
	return h
}

func (m *Monitor) probe(ctx context.Context, snap domain.ServerSnapshot, threshold int) (domain.ServerHealth, error) {
	desc := snap.Descriptor
	name := desc.Name
	epoch := snap.State.Epoch

	var probeErr error
	start := time.Now()

	t, err := m.transports.For(desc.Transport)
	if err != nil {
		probeErr = err
	} else {
		probeCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
		_, probeErr = transport.Run(probeCtx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, t.Probe(ctx, desc)
		})
		cancel()
	}
	latency := time.Since(start)

	// Shutting down: a cancelled round says nothing about the server.
	if ctx.Err() != nil {
		return snap.State.Health, ctx.Err()
	}

	updated, err := m.registry.Mutate(name, func(_ domain.ServerDescriptor, state *domain.ServerState) error {
		if state.Epoch != epoch || !state.Status.Probed() {
			return errSuperseded
		}
		m.record(name, state, probeErr, latency, threshold)
		return nil
	})
	if stdErrors.Is(err, errSuperseded) {
		m.logger.Debug("Discarding superseded probe result", "server", name)
		current, getErr := m.registry.Get(name)
		if getErr != nil {
			return domain.ServerHealth{}, getErr
		}
		return current.State.Health, nil
	}
	if err != nil {
		return domain.ServerHealth{}, err
	}

	return updated.State.Health, nil
}

// record applies a probe outcome to state. It is called with the registry entry lock held.
func (m *Monitor) record(
	name string,
	state *domain.ServerState,
	probeErr error,
	latency time.Duration,
	threshold int,
) {
	now := m.now()
	h := &state.Health
	h.Name = name
	h.LastChecked = &now

	if probeErr == nil {
		h.Status = domain.HealthStatusOK
		h.Latency = &latency
		h.LastSuccessful = &now
		h.ConsecutiveFailures = 0
		h.LastError = ""

		if state.Status == domain.StatusUnhealthy && registry.CanTransition(state.Status, domain.StatusRunning) {
			state.Status = domain.StatusRunning
			state.LastError = ""
			m.logger.Info("Server recovered", "server", name)
		}
		m.logger.Debug("Probe successful", "server", name, "latency", latency)
		return
	}

	h.Status = domain.HealthStatusUnreachable
	if stdErrors.Is(probeErr, errors.ErrInvocationTimeout) {
		h.Status = domain.HealthStatusTimeout
	}
	h.Latency = nil
	h.ConsecutiveFailures++
	h.LastError = probeErr.Error()

	m.logger.Warn(
		"Probe failed",
		"server", name,
		"status", h.Status,
		"failures", h.ConsecutiveFailures,
		"error", probeErr,
	)

	if state.Status == domain.StatusRunning &&
		h.ConsecutiveFailures >= threshold &&
		registry.CanTransition(state.Status, domain.StatusUnhealthy) {
		state.Status = domain.StatusUnhealthy
		state.LastError = probeErr.Error()
		m.logger.Warn("Server marked unhealthy", "server", name, "failures", h.ConsecutiveFailures)
	}
}
