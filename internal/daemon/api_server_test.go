package daemon

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcporch/internal/config"
	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/orchestrator"
	"github.com/mozilla-ai/mcporch/internal/runtime"
)

// newCalculatorServer stands in for a calculator tool server speaking the plain HTTP protocol.
func newCalculatorServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"tools": []map[string]any{{
				"name":       "calculate",
				"parameters": map[string]any{"type": "object"},
			}},
		})
	})
	mux.HandleFunc("POST /tools/calculate", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"content": "Expression: 2+3*4\nResult: 14.0", "success": true})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// newTestStore writes the given servers to a temporary servers file.
func newTestStore(t *testing.T, servers ...domain.ServerDescriptor) *config.FileStore {
	t.Helper()

	store, err := config.NewFileStore(filepath.Join(t.TempDir(), "mcp_servers.json"))
	require.NoError(t, err)
	require.NoError(t, store.Init(servers))

	return store
}

func newTestDependencies(t *testing.T, addr string, servers ...domain.ServerDescriptor) Dependencies {
	t.Helper()

	logger := hclog.NewNullLogger()

	transports, err := NewTransports(logger, 0, "test")
	require.NoError(t, err)

	launcher, err := runtime.NewExecLauncher(logger)
	require.NoError(t, err)

	deps, err := NewDependencies(logger, addr, newTestStore(t, servers...), transports, launcher)
	require.NoError(t, err)

	return deps
}

func newTestAPIServer(t *testing.T, opt ...APIOption) *APIServer {
	t.Helper()

	deps := newTestDependencies(t, "localhost:8090")
	orch, err := orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Logger:     deps.Logger,
		Store:      deps.Store,
		Transports: deps.Transports,
		Launcher:   deps.Launcher,
	})
	require.NoError(t, err)

	apiDeps, err := NewAPIDependencies(deps.Logger, orch, deps.APIAddr)
	require.NoError(t, err)

	server, err := NewAPIServer(apiDeps, opt...)
	require.NoError(t, err)

	return server
}

func TestNewAPIServer_AppliesDefaults(t *testing.T) {
	t.Parallel()

	server := newTestAPIServer(t)
	require.Equal(t, DefaultAPIShutdownTimeout(), server.shutdownTimeout)
	require.Equal(t, DefaultAPIVersion(), server.version)
	require.False(t, server.cors.Enabled)

	enabled := true
	server = newTestAPIServer(
		t,
		WithShutdownTimeout(10*time.Second),
		WithCORSSettings(config.CORSSettings{Enable: &enabled, Origins: []string{"http://localhost:3000"}}),
	)
	require.Equal(t, 10*time.Second, server.shutdownTimeout)
	require.True(t, server.cors.Enabled)

	server = newTestAPIServer(t, nil, WithShutdownTimeout(3*time.Second), nil)
	require.Equal(t, 3*time.Second, server.shutdownTimeout)
}

func TestNewAPIDependencies_Validation(t *testing.T) {
	t.Parallel()

	server := newTestAPIServer(t)

	_, err := NewAPIDependencies(hclog.NewNullLogger(), server.orchestrator, "localhost")
	require.ErrorContains(t, err, "invalid API address 'localhost'")

	_, err = NewAPIDependencies(hclog.NewNullLogger(), nil, "localhost:8090")
	require.EqualError(t, err, "orchestrator cannot be nil")

	_, err = NewAPIDependencies(nil, server.orchestrator, "localhost:8090")
	require.EqualError(t, err, "logger cannot be nil")
}

func TestAPIServer_ApplyCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		cors            CORSConfig
		origin          string
		wantOrigin      string
		wantCredentials bool
	}{
		{
			name: "listed origin allowed",
			cors: CORSConfig{
				Enabled:          true,
				AllowOrigins:     []string{"http://localhost:3000", "https://example.com"},
				AllowMethods:     []string{http.MethodGet},
				AllowCredentials: true,
			},
			origin:          "https://example.com",
			wantOrigin:      "https://example.com",
			wantCredentials: true,
		},
		{
			name: "origins are trimmed",
			cors: CORSConfig{
				Enabled:      true,
				AllowOrigins: []string{"  http://localhost:3000  "},
				AllowMethods: []string{http.MethodGet},
			},
			origin:     "http://localhost:3000",
			wantOrigin: "http://localhost:3000",
		},
		{
			name: "wildcard drops credentials",
			cors: CORSConfig{
				Enabled:          true,
				AllowOrigins:     []string{"http://localhost:3000", "*"},
				AllowMethods:     []string{http.MethodGet},
				AllowCredentials: true,
			},
			origin:     "https://anywhere.example",
			wantOrigin: "*",
		},
		{
			name: "unlisted origin rejected",
			cors: CORSConfig{
				Enabled:      true,
				AllowOrigins: []string{"http://localhost:3000"},
				AllowMethods: []string{http.MethodGet},
			},
			origin:     "https://evil.example",
			wantOrigin: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := &APIServer{logger: hclog.NewNullLogger(), cors: tc.cors}

			mux := chi.NewMux()
			server.applyCORS(mux)
			mux.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, tc.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			require.Equal(t, tc.wantCredentials, rec.Header().Get("Access-Control-Allow-Credentials") == "true")
		})
	}
}

// TestAPIServer_Handler is not parallel because building the handler installs the global huma error handler.
func TestAPIServer_Handler(t *testing.T) {
	calc := newCalculatorServer(t)

	deps := newTestDependencies(t, "localhost:8090", domain.ServerDescriptor{
		Name:      "calculator",
		Transport: domain.TransportHTTP,
		BaseURL:   calc.URL,
		Enabled:   true,
	})

	d, err := NewDaemon(deps)
	require.NoError(t, err)

	handler, prefix, err := d.apiServer.Handler()
	require.NoError(t, err)
	require.Equal(t, "/api/v1", prefix)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	post := func(path string, body any) *http.Response {
		t.Helper()

		data, err := json.Marshal(body)
		require.NoError(t, err)

		resp, err := http.Post(srv.URL+prefix+path, "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		return resp
	}

	resp := post("/servers/calculator/tools/calculate", map[string]any{})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post("/servers/calculator/start", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post("/servers/calculator/tools/calculate", map[string]any{
		"arguments": map[string]any{"expression": "2+3*4"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Success bool   `json:"success"`
		Content string `json:"content"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.True(t, result.Success)
	require.Equal(t, "Expression: 2+3*4\nResult: 14.0", result.Content)

	resp = post("/servers/calculator/stop", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	docs, err := http.Get(srv.URL + "/docs")
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Body.Close() })
	require.Equal(t, http.StatusOK, docs.StatusCode)
}
