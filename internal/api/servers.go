package api

import (
	"context"
	stdErrors "errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcporch/internal/contracts"
	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
)

// ServersResponse represents the wrapped API response for a list of servers.
type ServersResponse struct {
	Body struct {
		Servers []Server `doc:"Registered servers ordered by name" json:"servers"`
	}
}

// ServerRequest identifies a server by name.
type ServerRequest struct {
	Name string `doc:"Name of the server" example:"calculator" path:"name"`
}

// ServerResponse represents the wrapped API response for a single server.
type ServerResponse struct {
	Body Server
}

// AddServerRequest represents the incoming API request to register a server.
type AddServerRequest struct {
	Body ServerInput
}

// UpdateServerRequest represents the incoming API request to replace a stopped server's descriptor.
type UpdateServerRequest struct {
	Name string `doc:"Name of the server" example:"calculator" path:"name"`
	Body ServerInput
}

// RegisterServerRoutes sets up server management API endpoints.
func RegisterServerRoutes(routerAPI huma.API, orch contracts.Orchestrator, apiPathPrefix string) {
	serversAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Servers"}

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "listServers",
			Method:      http.MethodGet,
			Summary:     "List all servers",
			Tags:        tags,
		},
		func(_ context.Context, _ *struct{}) (*ServersResponse, error) {
			return handleServers(orch)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID:   "addServer",
			Method:        http.MethodPost,
			Summary:       "Register a server",
			Tags:          tags,
			DefaultStatus: http.StatusCreated,
		},
		func(_ context.Context, input *AddServerRequest) (*ServerResponse, error) {
			snap, err := orch.Add(input.Body.ToDomainType())
			if err != nil {
				return nil, err
			}
			return serverResponse(orch, DomainServerSnapshot(snap))
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "getServer",
			Method:      http.MethodGet,
			Path:        "/{name}",
			Summary:     "Get a server",
			Tags:        tags,
		},
		func(_ context.Context, input *ServerRequest) (*ServerResponse, error) {
			snap, err := orch.Get(input.Name)
			if err != nil {
				return nil, err
			}
			return serverResponse(orch, DomainServerSnapshot(snap))
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "updateServer",
			Method:      http.MethodPut,
			Path:        "/{name}",
			Summary:     "Replace the descriptor of a stopped server",
			Tags:        tags,
		},
		func(_ context.Context, input *UpdateServerRequest) (*ServerResponse, error) {
			desc := input.Body.ToDomainType()
			if desc.Name == "" {
				desc.Name = input.Name
			}
			if desc.Name != input.Name {
				return nil, huma.Error400BadRequest("server name in body does not match path")
			}

			snap, err := orch.Update(input.Name, desc)
			if err != nil {
				return nil, err
			}
			return serverResponse(orch, DomainServerSnapshot(snap))
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID:   "removeServer",
			Method:        http.MethodDelete,
			Path:          "/{name}",
			Summary:       "Stop and remove a server",
			Tags:          tags,
			DefaultStatus: http.StatusNoContent,
		},
		func(ctx context.Context, input *ServerRequest) (*struct{}, error) {
			return nil, orch.Remove(ctx, input.Name)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "startServer",
			Method:      http.MethodPost,
			Path:        "/{name}/start",
			Summary:     "Start a server",
			Tags:        append(tags, "Lifecycle"),
		},
		func(ctx context.Context, input *ServerRequest) (*ServerResponse, error) {
			snap, err := orch.Start(ctx, input.Name)
			if err != nil {
				return nil, err
			}
			return serverResponse(orch, DomainServerSnapshot(snap))
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "stopServer",
			Method:      http.MethodPost,
			Path:        "/{name}/stop",
			Summary:     "Stop a server",
			Tags:        append(tags, "Lifecycle"),
		},
		func(ctx context.Context, input *ServerRequest) (*ServerResponse, error) {
			snap, err := orch.Stop(ctx, input.Name)
			if err != nil {
				return nil, err
			}
			return serverResponse(orch, DomainServerSnapshot(snap))
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "checkServerHealth",
			Method:      http.MethodPost,
			Path:        "/{name}/health",
			Summary:     "Probe a server now",
			Tags:        append(tags, "Health"),
		},
		func(ctx context.Context, input *ServerRequest) (*ServerHealthResponse, error) {
			health, err := orch.CheckHealth(ctx, input.Name)
			if err != nil {
				return nil, err
			}
			return serverHealthResponse(health)
		},
	)
}

// handleServers returns every registered server with its state and discovered capabilities.
func handleServers(orch contracts.Orchestrator) (*ServersResponse, error) {
	snaps := orch.List()

	servers := make([]Server, 0, len(snaps))
	for _, snap := range snaps {
		cat, err := catalogFor(orch, snap.Descriptor.Name)
		if err != nil {
			return nil, err
		}

		s, err := DomainServerSnapshot(snap).ToAPIType(cat)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}

	resp := &ServersResponse{}
	resp.Body.Servers = servers

	return resp, nil
}

func serverResponse(orch contracts.Orchestrator, snap DomainServerSnapshot) (*ServerResponse, error) {
	cat, err := catalogFor(orch, snap.Descriptor.Name)
	if err != nil {
		return nil, err
	}

	s, err := snap.ToAPIType(cat)
	if err != nil {
		return nil, err
	}

	return &ServerResponse{Body: s}, nil
}

// catalogFor returns the cached catalog for a server, or nil when it has not been discovered.
func catalogFor(orch contracts.Orchestrator, name string) (*domain.Catalog, error) {
	cat, err := orch.Catalog(name)
	if stdErrors.Is(err, errors.ErrCatalogNotDiscovered) || stdErrors.Is(err, errors.ErrServerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &cat, nil
}
