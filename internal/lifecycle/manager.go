// Package lifecycle drives tool servers through the start and stop state machine.
package lifecycle

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
	"github.com/mozilla-ai/mcporch/internal/registry"
	"github.com/mozilla-ai/mcporch/internal/runtime"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

// StartedHook runs after a server has reached running.
// Hooks typically perform the initial health probe and capability discovery.
type StartedHook func(ctx context.Context, name string)

type operation string

const (
	operationStart operation = "start"
	operationStop  operation = "stop"
)

// Manager starts and stops servers.
// At most one lifecycle operation runs per server at a time; a second request for the same server
// is rejected immediately rather than queued.
// NewManager should be used to create instances of Manager.
type Manager struct {
	logger     hclog.Logger
	registry   *registry.Registry
	transports transport.Resolver
	launcher   runtime.Launcher
	catalog    CatalogInvalidator
	opts       Options

	mu       sync.Mutex
	inFlight map[string]operation
	handles  map[string]*handle
	hooks    []StartedHook
}

// handle tracks what a successful start brought up for one server.
type handle struct {
	epoch   uint64
	process runtime.Process
}

// NewManager creates a Manager.
func NewManager(deps Dependencies, opt ...Option) (*Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	return &Manager{
		logger:     deps.Logger.Named("lifecycle"),
		registry:   deps.Registry,
		transports: deps.Transports,
		launcher:   deps.Launcher,
		catalog:    deps.Catalog,
		opts:       opts,
		inFlight:   make(map[string]operation),
		handles:    make(map[string]*handle),
	}, nil
}

// OnStarted registers a hook to run after each successful start.
func (m *Manager) OnStarted(hook StartedHook) {
	if hook == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, hook)
}

// Start brings a server to running.
// Starting a server that is already running or unhealthy is a no-op.
// On failure the server is left in the failed state with the cause recorded, and the cause is returned.
func (m *Manager) Start(ctx context.Context, name string) error {
	started, err := m.start(ctx, name)
	if err != nil {
		return err
	}
	if started {
		m.runHooks(ctx, name)
	}

	return nil
}

func (m *Manager) start(ctx context.Context, name string) (bool, error) {
	if _, err := m.registry.Get(name); err != nil {
		return false, err
	}

	if err := m.acquire(name, operationStart); err != nil {
		return false, err
	}
	defer m.release(name)

	snap, err := m.registry.Get(name)
	if err != nil {
		return false, err
	}

	switch snap.State.Status {
	case domain.StatusRunning, domain.StatusUnhealthy:
		m.logger.Debug("Server already running", "server", name, "status", snap.State.Status)
		return false, nil
	}

	if !snap.Descriptor.Enabled {
		return false, fmt.Errorf("%w: %s", errors.ErrServerDisabled, name)
	}

	snap, err = m.registry.Transition(name, domain.StatusStarting, nil, domain.StatusStopped, domain.StatusFailed)
	if err != nil {
		return false, err
	}

	desc := snap.Descriptor
	m.logger.Info("Starting server", "server", name, "transport", desc.Transport, "url", desc.URL())

	process, err := m.bringUp(ctx, desc)
	if err != nil {
		if _, tErr := m.registry.Transition(name, domain.StatusFailed, err, domain.StatusStarting); tErr != nil {
			m.logger.Error("Failed to record start failure", "server", name, "error", tErr)
		}
		m.logger.Warn("Server failed to start", "server", name, "error", err)
		return false, fmt.Errorf("failed to start server '%s': %w", name, err)
	}

	h := &handle{epoch: snap.State.Epoch, process: process}
	m.setHandle(name, h)

	if _, err := m.registry.Transition(name, domain.StatusRunning, nil, domain.StatusStarting); err != nil {
		m.teardown(name, m.takeHandle(name))
		return false, err
	}

	if process != nil {
		go m.watchExit(name, h)
	}

	m.logger.Info("Server running", "server", name)

	return true, nil
}

// Stop brings a server to stopped, terminating any process the Manager launched for it and
// discarding its cached capabilities. Stopping a stopped server is a no-op.
func (m *Manager) Stop(_ context.Context, name string) error {
	return m.stopThen(name, nil)
}

// Remove stops a server and deletes it from the registry as a single lifecycle operation.
// Until it completes, a concurrent Start or Stop for the server is rejected with ErrAlreadyStopping.
func (m *Manager) Remove(_ context.Context, name string) error {
	return m.stopThen(name, func() error {
		return m.registry.Remove(name)
	})
}

// stopThen stops the server and, while still holding its in-flight slot, runs after (when non-nil).
func (m *Manager) stopThen(name string, after func() error) error {
	if _, err := m.registry.Get(name); err != nil {
		return err
	}

	if err := m.acquire(name, operationStop); err != nil {
		return err
	}
	defer m.release(name)

	if err := m.stop(name); err != nil {
		return err
	}

	if after == nil {
		return nil
	}

	return after()
}

func (m *Manager) stop(name string) error {
	snap, err := m.registry.Get(name)
	if err != nil {
		return err
	}
	if snap.State.Status == domain.StatusStopped {
		return nil
	}

	if _, err := m.registry.Transition(
		name,
		domain.StatusStopping,
		nil,
		domain.StatusRunning,
		domain.StatusUnhealthy,
		domain.StatusFailed,
	); err != nil {
		return err
	}

	m.logger.Info("Stopping server", "server", name)

	m.teardown(name, m.takeHandle(name))
	m.catalog.Invalidate(name)

	if _, err := m.registry.Transition(name, domain.StatusStopped, nil, domain.StatusStopping); err != nil {
		return err
	}

	m.logger.Info("Server stopped", "server", name)

	return nil
}

// StartAutoStart starts every enabled server marked auto_start concurrently.
// A failure to start one server does not prevent the others from starting; all failures are returned joined.
func (m *Manager) StartAutoStart(ctx context.Context) error {
	var names []string
	for _, snap := range m.registry.List() {
		if snap.Descriptor.Enabled && snap.Descriptor.AutoStart {
			names = append(names, snap.Descriptor.Name)
		}
	}

	return m.forEach(names, func(name string) error {
		return m.Start(ctx, name)
	})
}

// StopAll stops every server concurrently.
// A start that is still in flight is waited for so that nothing is left running.
func (m *Manager) StopAll(ctx context.Context) error {
	return m.forEach(m.registry.Names(), func(name string) error {
		err := m.stopWhenIdle(ctx, name)
		if stdErrors.Is(err, errors.ErrServerNotFound) {
			return nil
		}
		return err
	})
}

func (m *Manager) stopWhenIdle(ctx context.Context, name string) error {
	ticker := time.NewTicker(m.opts.ReadyPollInterval)
	defer ticker.Stop()

	for {
		err := m.Stop(ctx, name)
		if !stdErrors.Is(err, errors.ErrAlreadyStarting) {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up stopping server '%s': %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (m *Manager) forEach(names []string, fn func(name string) error) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)

	for _, name := range names {
		g.Go(func() error {
			if err := fn(name); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return stdErrors.Join(errs...)
}

// bringUp makes the server reachable. Servers without a command are expected to be running already and
// get a single probe. Servers with a command are launched and polled until they answer or time runs out.
func (m *Manager) bringUp(ctx context.Context, desc domain.ServerDescriptor) (runtime.Process, error) {
	t, err := m.transports.For(desc.Transport)
	if err != nil {
		return nil, err
	}

	timeout := desc.ReadinessTimeout()
	if timeout == 0 {
		timeout = m.opts.StartupTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !desc.Spawned() {
		if err := t.Probe(ctx, desc); err != nil {
			return nil, fmt.Errorf("server unreachable at %s: %w", desc.URL(), err)
		}
		return nil, nil
	}

	process, err := m.launcher.Launch(ctx, desc)
	if err != nil {
		return nil, err
	}

	if err := m.awaitReady(ctx, t, desc, process, timeout); err != nil {
		if stopErr := process.Stop(m.opts.ShutdownTimeout); stopErr != nil {
			m.logger.Warn("Failed to stop process after failed start", "server", desc.Name, "error", stopErr)
		}
		return nil, err
	}

	return process, nil
}

func (m *Manager) awaitReady(
	ctx context.Context,
	t transport.Transport,
	desc domain.ServerDescriptor,
	process runtime.Process,
	timeout time.Duration,
) error {
	ticker := time.NewTicker(m.opts.ReadyPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = t.Probe(ctx, desc); lastErr == nil {
			return nil
		}

		select {
		case <-process.Exited():
			return fmt.Errorf("process exited before becoming ready: %w", exitCause(process))
		case <-ctx.Done():
			return fmt.Errorf("server did not become ready within %s: %w", timeout, lastErr)
		case <-ticker.C:
		}
	}
}

// watchExit records an unexpected exit of a launched process.
// The health monitor is responsible for moving the server to unhealthy.
func (m *Manager) watchExit(name string, h *handle) {
	<-h.process.Exited()

	m.mu.Lock()
	current := m.handles[name]
	m.mu.Unlock()
	if current != h {
		return
	}

	cause := exitCause(h.process)
	m.logger.Warn("Server process exited unexpectedly", "server", name, "pid", h.process.PID(), "error", cause)

	_, _ = m.registry.Mutate(name, func(_ domain.ServerDescriptor, state *domain.ServerState) error {
		if state.Epoch != h.epoch {
			return fmt.Errorf("stale epoch")
		}
		state.LastError = fmt.Sprintf("process exited: %v", cause)
		return nil
	})
}

func (m *Manager) teardown(name string, h *handle) {
	if h == nil || h.process == nil {
		return
	}

	if err := h.process.Stop(m.opts.ShutdownTimeout); err != nil {
		m.logger.Warn("Failed to stop server process", "server", name, "pid", h.process.PID(), "error", err)
	}
}

func (m *Manager) runHooks(ctx context.Context, name string) {
	m.mu.Lock()
	hooks := append([]StartedHook(nil), m.hooks...)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx, name)
	}
}

func (m *Manager) acquire(name string, op operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, busy := m.inFlight[name]; busy {
		if current == operationStart {
			return fmt.Errorf("%w: %s", errors.ErrAlreadyStarting, name)
		}
		return fmt.Errorf("%w: %s", errors.ErrAlreadyStopping, name)
	}

	m.inFlight[name] = op

	return nil
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.inFlight, name)
}

func (m *Manager) setHandle(name string, h *handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handles[name] = h
}

func (m *Manager) takeHandle(name string) *handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.handles[name]
	delete(m.handles, name)

	return h
}

func exitCause(p runtime.Process) error {
	if err := p.Err(); err != nil {
		return err
	}
	return stdErrors.New("exit status 0")
}
