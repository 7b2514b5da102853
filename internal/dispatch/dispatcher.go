// Package dispatch routes tool invocations and resource reads to running servers.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
	"github.com/mozilla-ai/mcporch/internal/registry"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

// Dispatcher performs invocations. Calls are never serialized and never retried.
// NewDispatcher should be used to create instances of Dispatcher.
type Dispatcher struct {
	logger     hclog.Logger
	registry   *registry.Registry
	catalog    CatalogReader
	transports transport.Resolver
	health     StalenessChecker
	timeout    time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(deps Dependencies, opt ...Option) (*Dispatcher, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		logger:     deps.Logger.Named("dispatch"),
		registry:   deps.Registry,
		catalog:    deps.Catalog,
		transports: deps.Transports,
		health:     deps.Health,
		timeout:    opts.Timeout,
	}, nil
}

// Invoke calls a tool on a running server.
// Precondition failures are returned before any network activity. A server that answered but reported
// failure yields a result with Success false and a nil error.
func (d *Dispatcher) Invoke(ctx context.Context, req domain.InvocationRequest) (domain.InvocationResult, error) {
	snap, err := d.invocable(req.Server)
	if err != nil {
		return domain.InvocationResult{}, err
	}

	_, schema, err := d.catalog.Tool(req.Server, req.Tool)
	if err != nil {
		return domain.InvocationResult{}, err
	}

	desc := snap.Descriptor
	t, err := d.transports.For(desc.Transport)
	if err != nil {
		return domain.InvocationResult{}, err
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}

	id := uuid.NewString()
	logger := d.logger.With("server", req.Server, "tool", req.Tool, "invocation", id)

	warnings := validateArguments(schema, args)
	if len(warnings) > 0 {
		logger.Warn("Arguments do not match the tool's parameter schema", "warnings", warnings)
	}
	d.warnIfStale(logger, snap)

	timeout := d.timeoutFor(req.Timeout, desc)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := transport.Run(callCtx, func(ctx context.Context) (transport.Result, error) {
		return t.Invoke(ctx, desc, req.Tool, args)
	})
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("Invocation failed", "duration", elapsed, "timeout", timeout, "error", err)
		return domain.InvocationResult{}, fmt.Errorf(
			"invocation of tool '%s' on server '%s' failed: %w",
			req.Tool,
			req.Server,
			err,
		)
	}

	logger.Debug("Invocation completed", "duration", elapsed, "success", res.Success)

	return domain.InvocationResult{
		ID:               id,
		Server:           req.Server,
		Tool:             req.Tool,
		Content:          res.Content,
		Success:          res.Success,
		Error:            res.Error,
		ArgumentWarnings: warnings,
		Duration:         elapsed,
	}, nil
}

// FetchResource reads a resource from a running server.
// The URI must be present in the server's cached catalog.
func (d *Dispatcher) FetchResource(ctx context.Context, server string, uri string) (domain.ResourceContent, error) {
	snap, err := d.invocable(server)
	if err != nil {
		return domain.ResourceContent{}, err
	}

	if _, err := d.catalog.Resource(server, uri); err != nil {
		return domain.ResourceContent{}, err
	}

	desc := snap.Descriptor
	t, err := d.transports.For(desc.Transport)
	if err != nil {
		return domain.ResourceContent{}, err
	}

	logger := d.logger.With("server", server, "uri", uri)
	d.warnIfStale(logger, snap)

	callCtx, cancel := context.WithTimeout(ctx, d.timeoutFor(0, desc))
	defer cancel()

	content, err := transport.Run(callCtx, func(ctx context.Context) (domain.ResourceContent, error) {
		return t.FetchResource(ctx, desc, uri)
	})
	if err != nil {
		logger.Error("Resource fetch failed", "error", err)
		return domain.ResourceContent{}, fmt.Errorf("fetching resource '%s' from server '%s' failed: %w", uri, server, err)
	}

	content.Server = server
	if content.URI == "" {
		content.URI = uri
	}

	return content, nil
}

func (d *Dispatcher) invocable(name string) (domain.ServerSnapshot, error) {
	snap, err := d.registry.Get(name)
	if err != nil {
		return domain.ServerSnapshot{}, err
	}
	if !snap.State.Status.Invocable() {
		return domain.ServerSnapshot{}, fmt.Errorf(
			"%w: server '%s' (status: %s)",
			errors.ErrServerNotRunning,
			name,
			snap.State.Status,
		)
	}

	return snap, nil
}

// timeoutFor picks the per-call override, then the server's own timeout, then the default.
func (d *Dispatcher) timeoutFor(override time.Duration, desc domain.ServerDescriptor) time.Duration {
	if override > 0 {
		return override
	}
	if t := desc.InvocationTimeout(); t > 0 {
		return t
	}
	return d.timeout
}

func (d *Dispatcher) warnIfStale(logger hclog.Logger, snap domain.ServerSnapshot) {
	if d.health.Stale(snap.State.Health) {
		logger.Warn("Health of server is unknown or stale", "last_checked", snap.State.Health.LastChecked)
	}
}

// validateArguments checks args against the tool's schema. Mismatches are informational only:
// the remote server decides what it accepts.
func validateArguments(schema *gojsonschema.Schema, args map[string]any) []string {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return []string{fmt.Sprintf("arguments could not be validated: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	warnings := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		warnings = append(warnings, e.String())
	}

	return warnings
}
