// Package catalog discovers and caches the tools and resources each running server advertises.
package catalog

import (
	"context"
	stdErrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
	"github.com/mozilla-ai/mcporch/internal/registry"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

// Catalog is the per-server capability cache.
// Entries are only ever replaced whole: a failed discovery leaves the previous entry in place.
// NewCatalog should be used to create instances of Catalog.
type Catalog struct {
	logger     hclog.Logger
	registry   *registry.Registry
	transports transport.Resolver
	opts       Options
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	catalog domain.Catalog
	schemas map[string]*gojsonschema.Schema
}

// NewCatalog creates an empty Catalog.
func NewCatalog(
	logger hclog.Logger,
	reg *registry.Registry,
	transports transport.Resolver,
	opt ...Option,
) (*Catalog, error) {
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

	return &Catalog{
		logger:     logger.Named("catalog"),
		registry:   reg,
		transports: transports,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		entries:    make(map[string]*entry),
	}, nil
}

// Discover queries a running server for its manifest, validates it, and replaces the cached catalog.
func (c *Catalog) Discover(ctx context.Context, name string) (domain.Catalog, error) {
	snap, err := c.registry.Get(name)
	if err != nil {
		return domain.Catalog{}, err
	}
	if snap.State.Status != domain.StatusRunning {
		return domain.Catalog{}, fmt.Errorf(
			"%w: server '%s' (status: %s)",
			errors.ErrServerNotRunning,
			name,
			snap.State.Status,
		)
	}

	desc := snap.Descriptor
	t, err := c.transports.For(desc.Transport)
	if err != nil {
		return domain.Catalog{}, err
	}

	timeout := desc.InvocationTimeout()
	if timeout == 0 {
		timeout = c.opts.Timeout
	}

	discoverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	manifest, err := transport.Run(discoverCtx, func(ctx context.Context) (domain.Manifest, error) {
		return t.Discover(ctx, desc)
	})
	if err != nil {
		c.logger.Warn("Discovery failed", "server", name, "error", err)
		return domain.Catalog{}, fmt.Errorf("discovery failed for server '%s': %w", name, err)
	}

	e, err := build(name, manifest, c.now())
	if err != nil {
		c.logger.Warn("Discovered manifest rejected", "server", name, "error", err)
		return domain.Catalog{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The server may have been stopped or restarted while the manifest was in flight.
	current, err := c.registry.Get(name)
	if err != nil {
		return domain.Catalog{}, err
	}
	if current.State.Epoch != snap.State.Epoch || current.State.Status != domain.StatusRunning {
		return domain.Catalog{}, fmt.Errorf(
			"%w: server '%s' changed during discovery (status: %s)",
			errors.ErrServerNotRunning,
			name,
			current.State.Status,
		)
	}

	c.entries[name] = e
	c.logger.Info(
		"Discovered capabilities",
		"server", name,
		"tools", len(e.catalog.Tools),
		"resources", len(e.catalog.Resources),
	)

	return e.catalog.Clone(), nil
}

// Get returns the cached catalog without any network activity.
func (c *Catalog) Get(name string) (domain.Catalog, error) {
	if _, err := c.registry.Get(name); err != nil {
		return domain.Catalog{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return domain.Catalog{}, fmt.Errorf("%w: %s", errors.ErrCatalogNotDiscovered, name)
	}

	return e.catalog.Clone(), nil
}

// Invalidate drops the cached catalog for a server.
func (c *Catalog) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[name]; ok {
		delete(c.entries, name)
		c.logger.Debug("Invalidated catalog", "server", name)
	}
}

// Clear drops every cached catalog.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
}

// Tool looks up a tool in a server's cached catalog, returning its compiled parameter schema alongside.
// A server that was never discovered has no tools.
func (c *Catalog) Tool(server string, tool string) (domain.ToolSpec, *gojsonschema.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[server]; ok {
		if spec, ok := e.catalog.Tools[tool]; ok {
			return spec, e.schemas[tool], nil
		}
	}

	return domain.ToolSpec{}, nil, fmt.Errorf("%w: server '%s' has no tool '%s'", errors.ErrToolNotFound, server, tool)
}

// Resource looks up a resource in a server's cached catalog.
func (c *Catalog) Resource(server string, uri string) (domain.ResourceSpec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[server]; ok {
		if spec, ok := e.catalog.Resources[uri]; ok {
			return spec, nil
		}
	}

	return domain.ResourceSpec{}, fmt.Errorf(
		"%w: server '%s' has no resource '%s'",
		errors.ErrResourceNotFound,
		server,
		uri,
	)
}

// build validates a manifest and turns it into a cache entry.
// Tool names and resource URIs must be non-empty and unique.
// Every tool needs a parameter schema that is a JSON object and compiles.
func build(server string, m domain.Manifest, at time.Time) (*entry, error) {
	var errs []error

	tools := make(map[string]domain.ToolSpec, len(m.Tools))
	schemas := make(map[string]*gojsonschema.Schema, len(m.Tools))

	for i, tool := range m.Tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("tool at index %d has no name", i))
			continue
		}
		if _, dup := tools[name]; dup {
			errs = append(errs, fmt.Errorf("duplicate tool '%s'", name))
			continue
		}

		if tool.Parameters == nil {
			errs = append(errs, fmt.Errorf("tool '%s' has no parameter schema", name))
			continue
		}
		params, ok := tool.Parameters.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Errorf(
				"tool '%s' parameter schema must be a JSON object, got %T",
				name,
				tool.Parameters,
			))
			continue
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(params))
		if err != nil {
			errs = append(errs, fmt.Errorf("tool '%s' has an invalid parameter schema: %w", name, err))
			continue
		}

		tools[name] = domain.ToolSpec{
			Name:        name,
			Description: tool.Description,
			Parameters:  params,
		}
		schemas[name] = schema
	}

	resources := make(map[string]domain.ResourceSpec, len(m.Resources))
	for i, res := range m.Resources {
		uri := strings.TrimSpace(res.URI)
		if uri == "" {
			errs = append(errs, fmt.Errorf("resource at index %d has no uri", i))
			continue
		}
		if _, dup := resources[uri]; dup {
			errs = append(errs, fmt.Errorf("duplicate resource '%s'", uri))
			continue
		}

		res.URI = uri
		resources[uri] = res
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf(
			"%w: invalid manifest from server '%s': %w",
			errors.ErrConfiguration,
			server,
			stdErrors.Join(errs...),
		)
	}

	return &entry{
		catalog: domain.Catalog{
			Server:       server,
			DiscoveredAt: at,
			Tools:        tools,
			Resources:    resources,
		},
		schemas: schemas,
	}, nil
}
