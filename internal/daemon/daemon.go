// Package daemon runs the orchestration core together with its management HTTP API.
package daemon

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/orchestrator"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

// Daemon manages the orchestrator and the API server that exposes it.
// NewDaemon should be used to create instances of Daemon.
type Daemon struct {
	logger       hclog.Logger
	orchestrator *orchestrator.Orchestrator
	apiServer    *APIServer
}

// NewDaemon creates a Daemon and loads the servers file into its registry.
func NewDaemon(deps Dependencies, opt ...Option) (*Daemon, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid daemon dependencies: %w", err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid daemon options: %w", err)
	}

	orch, err := orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Logger:     deps.Logger,
		Store:      deps.Store,
		Transports: deps.Transports,
		Launcher:   deps.Launcher,
	}, opts.OrchestratorOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	if err := orch.Load(); err != nil {
		return nil, err
	}

	apiDeps, err := NewAPIDependencies(deps.Logger, orch, deps.APIAddr)
	if err != nil {
		return nil, err
	}

	apiServer, err := NewAPIServer(apiDeps, opts.APIOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon API server: %w", err)
	}

	return &Daemon{
		logger:       deps.Logger.Named("daemon"),
		orchestrator: orch,
		apiServer:    apiServer,
	}, nil
}

// StartAndManage runs the orchestrator and the API server until ctx is cancelled or either of them fails.
// Every server is stopped before it returns.
func (d *Daemon) StartAndManage(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.orchestrator.Run(gctx)
	})

	g.Go(func() error {
		return d.apiServer.Start(gctx)
	})

	err := g.Wait()
	d.logger.Info("Daemon stopped")

	return err
}

// NewTransports builds the transport set for every supported transport kind.
func NewTransports(logger hclog.Logger, discoveryRetries int, version string) (*transport.Set, error) {
	httpTransport, err := transport.NewHTTPTransport(logger, transport.WithDiscoveryRetries(discoveryRetries))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP transport: %w", err)
	}

	mcpTransport, err := transport.NewMCPTransport(logger, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP transport: %w", err)
	}

	return transport.NewSet(map[domain.TransportKind]transport.Transport{
		domain.TransportHTTP:           httpTransport,
		domain.TransportStreamableHTTP: mcpTransport,
	})
}
