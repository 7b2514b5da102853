package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcporch/internal/contracts"
)

// APIVersion is the version used in the OpenAPI spec and URL paths.
const APIVersion = "v1"

// RegisterRoutes registers all API routes on the provided Huma router.
// This is the single source of truth for the API route structure.
// Returns the API path prefix (e.g., "/api/v1") under which the routes are created.
func RegisterRoutes(router huma.API, orch contracts.Orchestrator) (string, error) {
	if isNil(router) {
		return "", fmt.Errorf("router cannot be nil")
	}
	if isNil(orch) {
		return "", fmt.Errorf("orchestrator cannot be nil")
	}

	// Safe way to ensure /api/{version}.
	apiPathPrefix, err := url.JoinPath("/api", APIVersion)
	if err != nil {
		return "", fmt.Errorf("failed to construct API path prefix: %w", err)
	}

	// Group all routes under the /api/{version} prefix.
	versionedGroup := huma.NewGroup(router, apiPathPrefix)
	RegisterHealthRoutes(versionedGroup, orch, "/health")
	RegisterServerRoutes(versionedGroup, orch, "/servers")
	RegisterCapabilityRoutes(versionedGroup, orch, "/servers")
	registerReloadRoute(versionedGroup, orch)

	return apiPathPrefix, nil
}

func registerReloadRoute(routerAPI huma.API, manager contracts.ServerManager) {
	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID:   "reloadServers",
			Method:        http.MethodPost,
			Path:          "/reload",
			Summary:       "Stop all servers and reload the servers file",
			Tags:          []string{"Servers"},
			DefaultStatus: http.StatusNoContent,
		},
		func(ctx context.Context, _ *struct{}) (*struct{}, error) {
			return nil, manager.Reload(ctx)
		},
	)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
