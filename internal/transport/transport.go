// Package transport talks to remote tool servers.
// Each Transport is stateless with respect to server lifecycle: every call receives the descriptor it should use
// and opens whatever connection it needs for that call alone.
package transport

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
)

// Transport is the capability set every protocol kind must provide.
type Transport interface {
	// Probe performs a lightweight liveness check.
	Probe(ctx context.Context, desc domain.ServerDescriptor) error

	// Discover lists the server's tools and resources.
	Discover(ctx context.Context, desc domain.ServerDescriptor) (domain.Manifest, error)

	// Invoke calls a tool. Business failures reported by the server are returned as a Result with Success false;
	// transport failures and timeouts are returned as errors.
	Invoke(ctx context.Context, desc domain.ServerDescriptor, tool string, args map[string]any) (Result, error)

	// FetchResource reads a resource by URI.
	FetchResource(ctx context.Context, desc domain.ServerDescriptor, uri string) (domain.ResourceContent, error)
}

// Resolver returns the Transport registered for a kind.
type Resolver interface {
	For(kind domain.TransportKind) (Transport, error)
}

// Result is the answer to a completed tool call.
type Result struct {
	Content any
	Success bool
	Error   *domain.InvocationError
}

// Set maps transport kinds to their implementations.
// NewSet should be used to create instances of Set.
type Set struct {
	transports map[domain.TransportKind]Transport
}

var _ Resolver = (*Set)(nil)

// NewSet creates a Set from the given kind to Transport mapping.
func NewSet(transports map[domain.TransportKind]Transport) (*Set, error) {
	if len(transports) == 0 {
		return nil, fmt.Errorf("at least one transport must be registered")
	}

	m := make(map[domain.TransportKind]Transport, len(transports))
	for kind, t := range transports {
		if t == nil || reflect.ValueOf(t).IsNil() {
			return nil, fmt.Errorf("transport for kind '%s' cannot be nil", kind)
		}
		m[kind] = t
	}

	return &Set{transports: m}, nil
}

// For returns the Transport for kind, or an error wrapping errors.ErrConfiguration when none is registered.
func (s *Set) For(kind domain.TransportKind) (Transport, error) {
	if t, ok := s.transports[kind]; ok {
		return t, nil
	}

	return nil, fmt.Errorf("%w: unsupported transport '%s' (available: %s)", errors.ErrConfiguration, kind, s.kinds())
}

func (s *Set) kinds() string {
	kinds := make([]string, 0, len(s.transports))
	for k := range s.transports {
		kinds = append(kinds, string(k))
	}
	slices.Sort(kinds)
	return strings.Join(kinds, ", ")
}
