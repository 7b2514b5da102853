package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcporch/internal/contracts"
	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
)

// CatalogResponse represents the wrapped API response for a server's capability catalog.
type CatalogResponse struct {
	Body Catalog
}

// ToolCallRequest represents the incoming API request to call a tool on a particular server.
type ToolCallRequest struct {
	Server string `doc:"Name of the server"       example:"calculator" path:"name"`
	Tool   string `doc:"Name of the tool to call" example:"calculate"  path:"tool"`
	Body   struct {
		Arguments map[string]any `doc:"Arguments passed to the tool"                 json:"arguments,omitempty"`
		Timeout   string         `doc:"Overrides the invocation timeout, e.g. \"5s\"" json:"timeout,omitempty"`
	}
}

// ToolCallResponse represents the wrapped API response for a tool call.
type ToolCallResponse struct {
	Body InvocationResult
}

// ResourceRequest represents the incoming API request to read a resource.
type ResourceRequest struct {
	Server string `doc:"Name of the server"         example:"memory"           path:"name"`
	URI    string `doc:"URI of the resource to read" example:"memory://notes" query:"uri"  required:"true"`
}

// ResourceResponse represents the wrapped API response for a resource read.
type ResourceResponse struct {
	Body ResourceContent
}

// RegisterCapabilityRoutes sets up discovery, tool call and resource endpoints for servers.
func RegisterCapabilityRoutes(routerAPI huma.API, provider contracts.CapabilityProvider, apiPathPrefix string) {
	serversAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Capabilities"}

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "discoverServer",
			Method:      http.MethodPost,
			Path:        "/{name}/discover",
			Summary:     "Discover the tools and resources of a running server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*CatalogResponse, error) {
			cat, err := provider.Discover(ctx, input.Name)
			if err != nil {
				return nil, err
			}
			return &CatalogResponse{Body: DomainCatalog(cat).ToAPIType()}, nil
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "getServerCatalog",
			Method:      http.MethodGet,
			Path:        "/{name}/catalog",
			Summary:     "Get the cached capability catalog of a server",
			Tags:        tags,
		},
		func(_ context.Context, input *ServerRequest) (*CatalogResponse, error) {
			cat, err := provider.Catalog(input.Name)
			if err != nil {
				return nil, err
			}
			return &CatalogResponse{Body: DomainCatalog(cat).ToAPIType()}, nil
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "callTool",
			Method:      http.MethodPost,
			Path:        "/{name}/tools/{tool}",
			Summary:     "Call a tool for a server",
			Description: "Remote failures are reported in the result with success set to false.",
			Tags:        append(tags, "Tools"),
		},
		func(ctx context.Context, input *ToolCallRequest) (*ToolCallResponse, error) {
			return handleToolCall(ctx, provider, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "readResource",
			Method:      http.MethodGet,
			Path:        "/{name}/resources",
			Summary:     "Read a resource from a server",
			Tags:        append(tags, "Resources"),
		},
		func(ctx context.Context, input *ResourceRequest) (*ResourceResponse, error) {
			content, err := provider.FetchResource(ctx, input.Server, input.URI)
			if err != nil {
				return nil, err
			}
			return &ResourceResponse{Body: ResourceContent{
				Server:   content.Server,
				URI:      content.URI,
				MIMEType: content.MIMEType,
				Content:  content.Content,
			}}, nil
		},
	)
}

// handleToolCall handles making a call to a specific tool on a server.
func handleToolCall(
	ctx context.Context,
	provider contracts.CapabilityProvider,
	input *ToolCallRequest,
) (*ToolCallResponse, error) {
	var timeout time.Duration
	if input.Body.Timeout != "" {
		d, err := time.ParseDuration(input.Body.Timeout)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: invalid timeout '%s'", errors.ErrBadRequest, input.Body.Timeout)
		}
		timeout = d
	}

	res, err := provider.Invoke(ctx, domain.InvocationRequest{
		Server:    input.Server,
		Tool:      input.Tool,
		Arguments: input.Body.Arguments,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, err
	}

	return &ToolCallResponse{Body: DomainInvocationResult(res).ToAPIType()}, nil
}
