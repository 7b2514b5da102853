package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcporch/internal/contracts"
	"github.com/mozilla-ai/mcporch/internal/domain"
)

// ServersHealthResponse is the response for GET /health/servers.
type ServersHealthResponse struct {
	Body struct {
		Servers []ServerHealth `doc:"Cached server health; stale readings are reported as unknown" json:"servers"`
	}
}

// ServerHealthRequest represents the incoming request for obtaining ServerHealth.
type ServerHealthRequest struct {
	Name string `doc:"Name of the server to check" example:"calculator" path:"name"`
}

// ServerHealthResponse represents the wrapped API response for a ServerHealth.
type ServerHealthResponse struct {
	Body ServerHealth
}

// RegisterHealthRoutes sets up health-related API endpoint routes.
func RegisterHealthRoutes(routerAPI huma.API, reporter contracts.HealthReporter, apiPathPrefix string) {
	healthAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Health"}

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "listServersHealth",
			Method:      http.MethodGet,
			Path:        "/servers",
			Summary:     "List the health statuses for all servers",
			Tags:        tags,
		},
		func(_ context.Context, _ *struct{}) (*ServersHealthResponse, error) {
			return handleHealthServers(reporter)
		},
	)

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "getServerHealth",
			Method:      http.MethodGet,
			Path:        "/servers/{name}",
			Summary:     "Get the health status of a server",
			Tags:        tags,
		},
		func(_ context.Context, input *ServerHealthRequest) (*ServerHealthResponse, error) {
			health, err := reporter.Health(input.Name)
			if err != nil {
				return nil, err
			}
			return serverHealthResponse(health)
		},
	)
}

// handleHealthServers is the handler for retrieving the current health for all registered servers.
func handleHealthServers(reporter contracts.HealthReporter) (*ServersHealthResponse, error) {
	servers := reporter.HealthList()

	apiServers := make([]ServerHealth, 0, len(servers))
	for _, s := range servers {
		data, err := DomainServerHealth(s).ToAPIType()
		if err != nil {
			return nil, err
		}
		apiServers = append(apiServers, data)
	}

	resp := &ServersHealthResponse{}
	resp.Body.Servers = apiServers

	return resp, nil
}

func serverHealthResponse(health domain.ServerHealth) (*ServerHealthResponse, error) {
	data, err := DomainServerHealth(health).ToAPIType()
	if err != nil {
		return nil, err
	}

	return &ServerHealthResponse{Body: data}, nil
}
