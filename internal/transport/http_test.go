package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcporch/internal/domain"
	mcperrors "github.com/mozilla-ai/mcporch/internal/errors"
)

func newTestHTTPTransport(t *testing.T, opts ...HTTPOption) *HTTPTransport {
	t.Helper()

	opts = append([]HTTPOption{WithRetryWait(time.Millisecond, 5*time.Millisecond)}, opts...)
	tr, err := NewHTTPTransport(hclog.NewNullLogger(), opts...)
	require.NoError(t, err)

	return tr
}

func descriptorFor(srv *httptest.Server) domain.ServerDescriptor {
	return domain.ServerDescriptor{Name: "calc", Transport: domain.TransportHTTP, BaseURL: srv.URL}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestHTTPTransport_Probe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "ok", status: http.StatusOK},
		{name: "no content", status: http.StatusNoContent},
		{name: "server error", status: http.StatusServiceUnavailable, wantErr: mcperrors.ErrTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/health", r.URL.Path)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			err := newTestHTTPTransport(t).Probe(context.Background(), descriptorFor(srv))
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestHTTPTransport_ProbeConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	desc := descriptorFor(srv)
	srv.Close()

	err := newTestHTTPTransport(t).Probe(context.Background(), desc)
	require.ErrorIs(t, err, mcperrors.ErrTransport)
}

func TestHTTPTransport_ProbeTimeoutDoesNotHang(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	start := time.Now()
	err := newTestHTTPTransport(t).Probe(ctx, descriptorFor(srv))
	require.ErrorIs(t, err, mcperrors.ErrInvocationTimeout)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPTransport_Discover(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tools":
			writeJSON(w, http.StatusOK, map[string]any{
				"tools": []map[string]any{
					{
						"name":        "calculate",
						"description": "Evaluate an expression",
						"parameters": map[string]any{
							"type":       "object",
							"properties": map[string]any{"expression": map[string]any{"type": "string"}},
							"required":   []string{"expression"},
						},
					},
					{
						"name":        "sqrt",
						"inputSchema": map[string]any{"type": "object"},
					},
				},
			})
		case "/resources":
			writeJSON(w, http.StatusOK, map[string]any{
				"resources": []map[string]any{{"uri": "calc://constants", "name": "constants"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m, err := newTestHTTPTransport(t).Discover(context.Background(), descriptorFor(srv))
	require.NoError(t, err)

	require.Len(t, m.Tools, 2)
	require.Equal(t, "calculate", m.Tools[0].Name)
	params, ok := m.Tools[0].Parameters.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "object", params["type"])
	require.Equal(t, "sqrt", m.Tools[1].Name)
	require.Equal(t, map[string]any{"type": "object"}, m.Tools[1].Parameters)

	require.Equal(t, []domain.ResourceSpec{{URI: "calc://constants", Name: "constants"}}, m.Resources)
}

func TestHTTPTransport_DiscoverKeepsSchemaShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tools" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tools": []map[string]any{
				{"name": "calculate", "parameters": "not-an-object"},
				{"name": "history"},
			},
		})
	}))
	defer srv.Close()

	m, err := newTestHTTPTransport(t).Discover(context.Background(), descriptorFor(srv))
	require.NoError(t, err)
	require.Len(t, m.Tools, 2)
	require.Equal(t, "not-an-object", m.Tools[0].Parameters)
	require.Nil(t, m.Tools[1].Parameters)
}

func TestHTTPTransport_DiscoverWithoutResourcesEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tools" {
			writeJSON(w, http.StatusOK, map[string]any{"tools": []any{}})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	m, err := newTestHTTPTransport(t).Discover(context.Background(), descriptorFor(srv))
	require.NoError(t, err)
	require.Empty(t, m.Tools)
	require.Empty(t, m.Resources)
}

func TestHTTPTransport_DiscoverRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tools" {
			http.NotFound(w, r)
			return
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tools": []map[string]any{{"name": "calculate"}}})
	}))
	defer srv.Close()

	m, err := newTestHTTPTransport(t, WithDiscoveryRetries(2)).Discover(context.Background(), descriptorFor(srv))
	require.NoError(t, err)
	require.Len(t, m.Tools, 1)
	require.Equal(t, int32(2), calls.Load())
}

func TestHTTPTransport_DiscoverMalformed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := newTestHTTPTransport(t).Discover(context.Background(), descriptorFor(srv))
	require.ErrorIs(t, err, mcperrors.ErrTransport)
}

func TestHTTPTransport_Invoke(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantErr     error
		wantSuccess bool
		wantContent any
		wantKind    domain.InvocationErrorKind
		wantMessage string
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var body map[string]map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				writeJSON(w, http.StatusOK, map[string]any{
					"content": "Expression: " + body["arguments"]["expression"].(string) + "\nResult: 14.0",
					"success": true,
				})
			},
			wantSuccess: true,
			wantContent: "Expression: 2+3*4\nResult: 14.0",
		},
		{
			name: "success omitted defaults to true",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"content": map[string]any{"value": 14.0}})
			},
			wantSuccess: true,
			wantContent: map[string]any{"value": 14.0},
		},
		{
			name: "remote failure",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "division by zero"})
			},
			wantKind:    domain.InvocationErrorRemote,
			wantMessage: "division by zero",
		},
		{
			name: "rejected by server",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "expression is required"})
			},
			wantKind:    domain.InvocationErrorRejected,
			wantMessage: "expression is required",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantErr: mcperrors.ErrTransport,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			wantErr: mcperrors.ErrTransport,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodPost, r.Method)
				require.Equal(t, "/tools/calculate", r.URL.Path)
				tc.handler(w, r)
			}))
			defer srv.Close()

			res, err := newTestHTTPTransport(t).Invoke(
				context.Background(),
				descriptorFor(srv),
				"calculate",
				map[string]any{"expression": "2+3*4"},
			)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantSuccess, res.Success)
			if tc.wantSuccess {
				require.Equal(t, tc.wantContent, res.Content)
				require.Nil(t, res.Error)
				return
			}
			require.NotNil(t, res.Error)
			require.Equal(t, tc.wantKind, res.Error.Kind)
			require.Equal(t, tc.wantMessage, res.Error.Message)
		})
	}
}

func TestHTTPTransport_InvokeIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestHTTPTransport(t, WithDiscoveryRetries(3)).Invoke(
		context.Background(),
		descriptorFor(srv),
		"calculate",
		nil,
	)
	require.ErrorIs(t, err, mcperrors.ErrTransport)
	require.Equal(t, int32(1), calls.Load())
}

func TestHTTPTransport_FetchResource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/resources", r.URL.Path)
		switch r.URL.Query().Get("uri") {
		case "calc://constants":
			writeJSON(w, http.StatusOK, map[string]any{"pi": 3.14})
		case "calc://readme":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tr := newTestHTTPTransport(t)

	rc, err := tr.FetchResource(context.Background(), descriptorFor(srv), "calc://constants")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"pi": 3.14}, rc.Content)
	require.Equal(t, "application/json", rc.MIMEType)

	rc, err = tr.FetchResource(context.Background(), descriptorFor(srv), "calc://readme")
	require.NoError(t, err)
	require.Equal(t, "hello", rc.Content)

	_, err = tr.FetchResource(context.Background(), descriptorFor(srv), "calc://missing")
	require.ErrorIs(t, err, mcperrors.ErrResourceNotFound)
}

func TestNewHTTPTransport_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPTransport(nil)
	require.EqualError(t, err, "logger cannot be nil")

	_, err = NewHTTPTransport(hclog.NewNullLogger(), WithDiscoveryRetries(-1))
	require.EqualError(t, err, "discovery retries cannot be negative, got -1")

	_, err = NewHTTPTransport(hclog.NewNullLogger(), WithHTTPClient(nil))
	require.EqualError(t, err, "http client cannot be nil")

	_, err = NewHTTPTransport(hclog.NewNullLogger(), WithRetryWait(time.Second, time.Millisecond))
	require.Error(t, err)

	require.True(t, errors.Is(Classify(context.DeadlineExceeded), mcperrors.ErrInvocationTimeout))
}
