// Package orchestrator wires the registry, lifecycle manager, health monitor, capability catalog and dispatcher
// together and persists server descriptors.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/mozilla-ai/mcporch/internal/catalog"
	"github.com/mozilla-ai/mcporch/internal/config"
	"github.com/mozilla-ai/mcporch/internal/contracts"
	"github.com/mozilla-ai/mcporch/internal/dispatch"
	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/health"
	"github.com/mozilla-ai/mcporch/internal/lifecycle"
	"github.com/mozilla-ai/mcporch/internal/registry"
)

// Orchestrator is the programmatic surface of the orchestration core.
// NewOrchestrator should be used to create instances of Orchestrator.
type Orchestrator struct {
	logger     hclog.Logger
	store      *config.FileStore
	registry   *registry.Registry
	lifecycle  *lifecycle.Manager
	health     *health.Monitor
	catalog    *catalog.Catalog
	dispatcher *dispatch.Dispatcher
	opts       Options

	// configMu serializes changes to the set of servers and the file that persists them.
	configMu sync.Mutex
}

var _ contracts.Orchestrator = (*Orchestrator)(nil)

// NewOrchestrator creates an Orchestrator with an empty registry. Call Load to populate it from the servers file.
func NewOrchestrator(deps Dependencies, opt ...Option) (*Orchestrator, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	reg, err := registry.NewRegistry(deps.Logger)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.NewCatalog(deps.Logger, reg, deps.Transports, opts.Catalog...)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}

	mon, err := health.NewMonitor(deps.Logger, reg, deps.Transports, opts.Health...)
	if err != nil {
		return nil, fmt.Errorf("failed to create health monitor: %w", err)
	}

	mgr, err := lifecycle.NewManager(lifecycle.Dependencies{
		Logger:     deps.Logger,
		Registry:   reg,
		Transports: deps.Transports,
		Launcher:   deps.Launcher,
		Catalog:    cat,
	}, opts.Lifecycle...)
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle manager: %w", err)
	}

	disp, err := dispatch.NewDispatcher(dispatch.Dependencies{
		Logger:     deps.Logger,
		Registry:   reg,
		Catalog:    cat,
		Transports: deps.Transports,
		Health:     mon,
	}, opts.Dispatch...)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	o := &Orchestrator{
		logger:     deps.Logger.Named("orchestrator"),
		store:      deps.Store,
		registry:   reg,
		lifecycle:  mgr,
		health:     mon,
		catalog:    cat,
		dispatcher: disp,
		opts:       opts,
	}

	mgr.OnStarted(o.afterStart)

	return o, nil
}

// Load replaces the registry contents with the servers file. Every server must be stopped.
func (o *Orchestrator) Load() error {
	o.configMu.Lock()
	defer o.configMu.Unlock()

	return o.load()
}

func (o *Orchestrator) load() error {
	servers, err := o.store.Load()
	if err != nil {
		return err
	}

	if err := o.registry.Replace(servers); err != nil {
		return err
	}
	o.catalog.Clear()

	o.logger.Info("Loaded servers", "count", len(servers), "path", o.store.Path())

	return nil
}

// Run starts auto-start servers, runs the health monitor and the optional file watcher until ctx is cancelled,
// then stops every server.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.lifecycle.StartAutoStart(ctx); err != nil {
		o.logger.Warn("Some servers failed to start", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.health.Run(gctx)
		return nil
	})

	if o.opts.Watch {
		g.Go(func() error {
			return o.watch(gctx)
		})
	}

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.ShutdownTimeout)
	defer cancel()

	if stopErr := o.Shutdown(shutdownCtx); stopErr != nil {
		o.logger.Error("Failed to stop all servers", "error", stopErr)
	}

	return err
}

// Shutdown stops every server.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.logger.Info("Stopping all servers")
	return o.lifecycle.StopAll(ctx)
}

// Reload stops every server, re-reads the servers file and starts the auto-start servers again.
func (o *Orchestrator) Reload(ctx context.Context) error {
	o.configMu.Lock()
	defer o.configMu.Unlock()

	o.logger.Info("Reloading servers", "path", o.store.Path())

	if err := o.lifecycle.StopAll(ctx); err != nil {
		return fmt.Errorf("failed to stop servers for reload: %w", err)
	}

	if err := o.load(); err != nil {
		return err
	}

	if err := o.lifecycle.StartAutoStart(ctx); err != nil {
		o.logger.Warn("Some servers failed to start after reload", "error", err)
	}

	return nil
}

// List returns every server with its runtime state, health masked by the staleness bound.
func (o *Orchestrator) List() []domain.ServerSnapshot {
	snaps := o.registry.List()
	for i := range snaps {
		snaps[i] = o.withHealth(snaps[i])
	}

	return snaps
}

// Get returns one server.
func (o *Orchestrator) Get(name string) (domain.ServerSnapshot, error) {
	snap, err := o.registry.Get(name)
	if err != nil {
		return domain.ServerSnapshot{}, err
	}

	return o.withHealth(snap), nil
}

// Add registers a new server and persists it.
// Placeholders are resolved and the descriptor validated before anything changes.
func (o *Orchestrator) Add(desc domain.ServerDescriptor) (domain.ServerSnapshot, error) {
	prepared, err := config.PrepareDescriptor(desc)
	if err != nil {
		return domain.ServerSnapshot{}, err
	}

	o.configMu.Lock()
	defer o.configMu.Unlock()

	if err := o.registry.Register(prepared); err != nil {
		return domain.ServerSnapshot{}, err
	}

	if err := o.persist(); err != nil {
		if rbErr := o.registry.Remove(prepared.Name); rbErr != nil {
			o.logger.Error("Failed to roll back added server", "server", prepared.Name, "error", rbErr)
		}
		return domain.ServerSnapshot{}, err
	}

	o.logger.Info("Added server", "server", prepared.Name)

	return o.registry.Get(prepared.Name)
}

// Update replaces the descriptor of a stopped server and persists it.
func (o *Orchestrator) Update(name string, desc domain.ServerDescriptor) (domain.ServerSnapshot, error) {
	if desc.Name == "" {
		desc.Name = name
	}

	prepared, err := config.PrepareDescriptor(desc)
	if err != nil {
		return domain.ServerSnapshot{}, err
	}

	o.configMu.Lock()
	defer o.configMu.Unlock()

	previous, err := o.registry.Get(name)
	if err != nil {
		return domain.ServerSnapshot{}, err
	}

	if err := o.registry.Update(name, prepared); err != nil {
		return domain.ServerSnapshot{}, err
	}

	if err := o.persist(); err != nil {
		if rbErr := o.registry.Update(name, previous.Descriptor); rbErr != nil {
			o.logger.Error("Failed to roll back updated server", "server", name, "error", rbErr)
		}
		return domain.ServerSnapshot{}, err
	}

	o.logger.Info("Updated server", "server", name)

	return o.registry.Get(name)
}

// Remove stops a server if needed, deletes it and persists the change.
func (o *Orchestrator) Remove(ctx context.Context, name string) error {
	o.configMu.Lock()
	defer o.configMu.Unlock()

	previous, err := o.registry.Get(name)
	if err != nil {
		return err
	}

	if err := o.lifecycle.Remove(ctx, name); err != nil {
		return err
	}
	o.catalog.Invalidate(name)

	if err := o.persist(); err != nil {
		if rbErr := o.registry.Register(previous.Descriptor); rbErr != nil {
			o.logger.Error("Failed to roll back removed server", "server", name, "error", rbErr)
		}
		return err
	}

	o.logger.Info("Removed server", "server", name)

	return nil
}

// Start starts a server.
func (o *Orchestrator) Start(ctx context.Context, name string) (domain.ServerSnapshot, error) {
	if err := o.lifecycle.Start(ctx, name); err != nil {
		return domain.ServerSnapshot{}, err
	}

	return o.Get(name)
}

// Stop stops a server.
func (o *Orchestrator) Stop(ctx context.Context, name string) (domain.ServerSnapshot, error) {
	if err := o.lifecycle.Stop(ctx, name); err != nil {
		return domain.ServerSnapshot{}, err
	}

	return o.Get(name)
}

// CheckHealth probes a server now.
func (o *Orchestrator) CheckHealth(ctx context.Context, name string) (domain.ServerHealth, error) {
	return o.health.Check(ctx, name)
}

// Health returns the cached health of a server.
func (o *Orchestrator) Health(name string) (domain.ServerHealth, error) {
	return o.health.Health(name)
}

// HealthList returns the cached health of every server.
func (o *Orchestrator) HealthList() []domain.ServerHealth {
	return o.health.List()
}

// Discover refreshes the capability catalog of a running server.
func (o *Orchestrator) Discover(ctx context.Context, name string) (domain.Catalog, error) {
	return o.catalog.Discover(ctx, name)
}

// Catalog returns the cached capability catalog of a server.
func (o *Orchestrator) Catalog(name string) (domain.Catalog, error) {
	return o.catalog.Get(name)
}

// Invoke calls a tool.
func (o *Orchestrator) Invoke(ctx context.Context, req domain.InvocationRequest) (domain.InvocationResult, error) {
	return o.dispatcher.Invoke(ctx, req)
}

// FetchResource reads a resource.
func (o *Orchestrator) FetchResource(ctx context.Context, server string, uri string) (domain.ResourceContent, error) {
	return o.dispatcher.FetchResource(ctx, server, uri)
}

// afterStart performs the initial health probe and discovery for a server that has just reached running.
// Failures are logged and reflected in the server's state; they do not undo the start.
func (o *Orchestrator) afterStart(ctx context.Context, name string) {
	if _, err := o.health.Check(ctx, name); err != nil {
		o.logger.Warn("Initial health check failed", "server", name, "error", err)
	}

	if _, err := o.catalog.Discover(ctx, name); err != nil {
		o.logger.Warn("Initial discovery failed", "server", name, "error", err)
	}
}

func (o *Orchestrator) withHealth(snap domain.ServerSnapshot) domain.ServerSnapshot {
	if snap.State.Health.Status != domain.HealthStatusUnknown && o.health.Stale(snap.State.Health) {
		snap.State.Health.Status = domain.HealthStatusUnknown
	}
	return snap
}

// persist must be called with configMu held.
func (o *Orchestrator) persist() error {
	snaps := o.registry.List()
	servers := make([]domain.ServerDescriptor, 0, len(snaps))
	for _, s := range snaps {
		servers = append(servers, s.Descriptor)
	}

	if err := o.store.Save(servers); err != nil {
		return fmt.Errorf("failed to persist servers: %w", err)
	}

	return nil
}
