package daemon

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcporch/internal/config"
	"github.com/mozilla-ai/mcporch/internal/runtime"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

// Dependencies contains required dependencies for the Daemon.
// NewDependencies should be used to create instances of Dependencies.
type Dependencies struct {
	// APIAddr specifies the network address for the APIServer to bind (e.g., "0.0.0.0:8090").
	APIAddr string

	// Logger for daemon and subcomponent (orchestrator, API server) operations.
	Logger hclog.Logger

	// Store reads and persists the servers file.
	Store *config.FileStore

	// Transports resolves the protocol adapter for each server.
	Transports transport.Resolver

	// Launcher spawns processes for servers that declare a command.
	Launcher runtime.Launcher
}

// NewDependencies creates and validates Dependencies.
func NewDependencies(
	logger hclog.Logger,
	apiAddr string,
	store *config.FileStore,
	transports transport.Resolver,
	launcher runtime.Launcher,
) (Dependencies, error) {
	deps := Dependencies{
		APIAddr:    apiAddr,
		Logger:     logger,
		Store:      store,
		Transports: transports,
		Launcher:   launcher,
	}

	if err := deps.Validate(); err != nil {
		return Dependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}

	if err := validateAddr(d.APIAddr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.APIAddr, err)
	}

	if d.Store == nil {
		return fmt.Errorf("servers file store cannot be nil")
	}

	if d.Transports == nil || reflect.ValueOf(d.Transports).IsNil() {
		return fmt.Errorf("transports cannot be nil")
	}

	if d.Launcher == nil || reflect.ValueOf(d.Launcher).IsNil() {
		return fmt.Errorf("launcher cannot be nil")
	}

	return nil
}
