package contracts

import (
	"context"

	"github.com/mozilla-ai/mcporch/internal/domain"
)

// ServerManager manages the set of servers and their lifecycle.
type ServerManager interface {
	// List returns every server ordered by name.
	List() []domain.ServerSnapshot

	// Get returns one server.
	Get(name string) (domain.ServerSnapshot, error)

	// Add registers and persists a new server.
	Add(desc domain.ServerDescriptor) (domain.ServerSnapshot, error)

	// Update replaces and persists the descriptor of a stopped server.
	Update(name string, desc domain.ServerDescriptor) (domain.ServerSnapshot, error)

	// Remove stops, deletes and persists the removal of a server.
	Remove(ctx context.Context, name string) error

	// Start brings a server to running.
	Start(ctx context.Context, name string) (domain.ServerSnapshot, error)

	// Stop brings a server to stopped.
	Stop(ctx context.Context, name string) (domain.ServerSnapshot, error)

	// Reload replaces the servers with the contents of the servers file.
	Reload(ctx context.Context) error
}

// HealthReporter exposes server health.
type HealthReporter interface {
	// CheckHealth probes a server now.
	CheckHealth(ctx context.Context, name string) (domain.ServerHealth, error)

	// Health returns the cached health of a server.
	Health(name string) (domain.ServerHealth, error)

	// HealthList returns the cached health of every server.
	HealthList() []domain.ServerHealth
}

// CapabilityProvider exposes discovered capabilities and routes calls to them.
type CapabilityProvider interface {
	// Discover refreshes the capability catalog of a running server.
	Discover(ctx context.Context, name string) (domain.Catalog, error)

	// Catalog returns the cached capability catalog of a server.
	Catalog(name string) (domain.Catalog, error)

	// Invoke calls a tool on a running server.
	Invoke(ctx context.Context, req domain.InvocationRequest) (domain.InvocationResult, error)

	// FetchResource reads a resource from a running server.
	FetchResource(ctx context.Context, server string, uri string) (domain.ResourceContent, error)
}

// Orchestrator is everything the API layer needs from the orchestration core.
type Orchestrator interface {
	ServerManager
	HealthReporter
	CapabilityProvider
}
