//go:build docsgen_api
// +build docsgen_api

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcporch/internal/api"
	"github.com/mozilla-ai/mcporch/internal/config"
	"github.com/mozilla-ai/mcporch/internal/daemon"
	"github.com/mozilla-ai/mcporch/internal/orchestrator"
	"github.com/mozilla-ai/mcporch/internal/perms"
	"github.com/mozilla-ai/mcporch/internal/runtime"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

// main generates the OpenAPI specification for the mcporch API.
// It assumes it is run from the repository root.
func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "mcporch.docsgen.api",
		Level:  hclog.Info,
		Output: os.Stderr,
	})

	// Output path for the OpenAPI spec, relative to the repository root.
	outputPath := "./docs/api/openapi.yaml"

	// The orchestrator is never loaded or run, route registration only needs a value to bind handlers to.
	orch, err := newOrchestrator(logger)
	if err != nil {
		logger.Error("failed to create orchestrator", "error", err)
		os.Exit(1)
	}

	// Create a chi router (same as the daemon).
	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)

	// Create Huma config and router (same as the daemon).
	cfg := huma.DefaultConfig("mcporch docs", api.APIVersion)
	router := humachi.New(mux, cfg)

	apiPathPrefix, err := api.RegisterRoutes(router, orch)
	if err != nil {
		logger.Error("failed to register API routes", "error", err)
		os.Exit(1)
	}

	logger.Info("Routes registered", "prefix", apiPathPrefix)

	// Get the OpenAPI spec as YAML.
	yamlBytes, err := router.OpenAPI().YAML()
	if err != nil {
		logger.Error("failed to generate OpenAPI YAML", "error", err)
		os.Exit(1)
	}

	// Ensure the docs directory exists.
	docsDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(docsDir, perms.RegularDir); err != nil {
		logger.Error("failed to create docs directory", "path", docsDir, "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outputPath, yamlBytes, perms.RegularFile); err != nil {
		logger.Error("failed to write OpenAPI spec", "path", outputPath, "error", err)
		os.Exit(1)
	}

	logger.Info("OpenAPI spec generated", "path", outputPath, "size", fmt.Sprintf("%d bytes", len(yamlBytes)))
}

func newOrchestrator(logger hclog.Logger) (*orchestrator.Orchestrator, error) {
	store, err := config.NewFileStore(os.DevNull)
	if err != nil {
		return nil, err
	}

	transports, err := daemon.NewTransports(logger, transport.DefaultDiscoveryRetries(), api.APIVersion)
	if err != nil {
		return nil, err
	}

	launcher, err := runtime.NewExecLauncher(logger)
	if err != nil {
		return nil, err
	}

	return orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Logger:     logger,
		Store:      store,
		Transports: transports,
		Launcher:   launcher,
	})
}
