package lifecycle

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcporch/internal/registry"
	"github.com/mozilla-ai/mcporch/internal/runtime"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

// CatalogInvalidator drops cached capabilities for a server.
type CatalogInvalidator interface {
	Invalidate(name string)
}

// Dependencies contains required dependencies for the Manager.
type Dependencies struct {
	Logger     hclog.Logger
	Registry   *registry.Registry
	Transports transport.Resolver
	Launcher   runtime.Launcher
	Catalog    CatalogInvalidator
}

// Validate ensures all required dependencies are provided and valid.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	if d.Registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	if d.Transports == nil || reflect.ValueOf(d.Transports).IsNil() {
		return fmt.Errorf("transports cannot be nil")
	}
	if d.Launcher == nil || reflect.ValueOf(d.Launcher).IsNil() {
		return fmt.Errorf("launcher cannot be nil")
	}
	if d.Catalog == nil || reflect.ValueOf(d.Catalog).IsNil() {
		return fmt.Errorf("catalog cannot be nil")
	}

	return nil
}
