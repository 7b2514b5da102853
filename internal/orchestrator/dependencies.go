package orchestrator

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcporch/internal/config"
	"github.com/mozilla-ai/mcporch/internal/runtime"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

// Dependencies contains required dependencies for the Orchestrator.
type Dependencies struct {
	Logger     hclog.Logger
	Store      *config.FileStore
	Transports transport.Resolver
	Launcher   runtime.Launcher
}

// Validate ensures all required dependencies are provided and valid.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	if d.Store == nil {
		return fmt.Errorf("store cannot be nil")
	}
	if d.Transports == nil || reflect.ValueOf(d.Transports).IsNil() {
		return fmt.Errorf("transports cannot be nil")
	}
	if d.Launcher == nil || reflect.ValueOf(d.Launcher).IsNil() {
		return fmt.Errorf("launcher cannot be nil")
	}

	return nil
}
