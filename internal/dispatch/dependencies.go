package dispatch

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/registry"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

// CatalogReader resolves tools and resources from cached catalogs.
type CatalogReader interface {
	Tool(server string, tool string) (domain.ToolSpec, *gojsonschema.Schema, error)
	Resource(server string, uri string) (domain.ResourceSpec, error)
}

// StalenessChecker reports whether a cached health reading is too old to trust.
type StalenessChecker interface {
	Stale(h domain.ServerHealth) bool
}

// Dependencies contains required dependencies for the Dispatcher.
type Dependencies struct {
	Logger     hclog.Logger
	Registry   *registry.Registry
	Catalog    CatalogReader
	Transports transport.Resolver
	Health     StalenessChecker
}

// Validate ensures all required dependencies are provided and valid.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	if d.Registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	if d.Catalog == nil || reflect.ValueOf(d.Catalog).IsNil() {
		return fmt.Errorf("catalog cannot be nil")
	}
	if d.Transports == nil || reflect.ValueOf(d.Transports).IsNil() {
		return fmt.Errorf("transports cannot be nil")
	}
	if d.Health == nil || reflect.ValueOf(d.Health).IsNil() {
		return fmt.Errorf("health cannot be nil")
	}

	return nil
}
