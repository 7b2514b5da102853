package dispatch

import (
	"context"
	stdErrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcporch/internal/catalog"
	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
	"github.com/mozilla-ai/mcporch/internal/registry"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

type calcTransport struct {
	invoke func(ctx context.Context, tool string, args map[string]any) (transport.Result, error)
	calls  atomic.Int32
}

func (c *calcTransport) Probe(context.Context, domain.ServerDescriptor) error { return nil }

func (c *calcTransport) Discover(context.Context, domain.ServerDescriptor) (domain.Manifest, error) {
	return domain.Manifest{
		Tools: []domain.ManifestTool{{
			Name: "calculate",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"expression": map[string]any{"type": "string"}},
				"required":   []any{"expression"},
			},
		}},
		Resources: []domain.ResourceSpec{{URI: "calc://constants"}},
	}, nil
}

func (c *calcTransport) Invoke(
	ctx context.Context,
	_ domain.ServerDescriptor,
	tool string,
	args map[string]any,
) (transport.Result, error) {
	c.calls.Add(1)
	if c.invoke != nil {
		return c.invoke(ctx, tool, args)
	}
	return transport.Result{Content: "Expression: 2+3*4\nResult: 14.0", Success: true}, nil
}

func (c *calcTransport) FetchResource(
	_ context.Context,
	_ domain.ServerDescriptor,
	uri string,
) (domain.ResourceContent, error) {
	c.calls.Add(1)
	return domain.ResourceContent{URI: uri, MIMEType: "application/json", Content: map[string]any{"pi": 3.14159}}, nil
}

type neverStale struct{}

func (neverStale) Stale(domain.ServerHealth) bool { return false }

type fixture struct {
	dispatcher *Dispatcher
	registry   *registry.Registry
	catalog    *catalog.Catalog
	transport  *calcTransport
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	logger := hclog.NewNullLogger()
	reg, err := registry.NewRegistry(logger)
	require.NoError(t, err)
	require.NoError(t, reg.Register(domain.ServerDescriptor{
		Name:      "calc",
		Transport: domain.TransportHTTP,
		Host:      "localhost",
		Port:      8004,
		Enabled:   true,
	}))

	ct := &calcTransport{}
	set, err := transport.NewSet(map[domain.TransportKind]transport.Transport{domain.TransportHTTP: ct})
	require.NoError(t, err)

	cat, err := catalog.NewCatalog(logger, reg, set)
	require.NoError(t, err)

	d, err := NewDispatcher(Dependencies{
		Logger:     logger,
		Registry:   reg,
		Catalog:    cat,
		Transports: set,
		Health:     neverStale{},
	}, opts...)
	require.NoError(t, err)

	return &fixture{dispatcher: d, registry: reg, catalog: cat, transport: ct}
}

// running starts the server in the registry and discovers its catalog.
func (f *fixture) running(t *testing.T) {
	t.Helper()

	_, err := f.registry.Transition("calc", domain.StatusStarting, nil, domain.StatusStopped)
	require.NoError(t, err)
	_, err = f.registry.Transition("calc", domain.StatusRunning, nil, domain.StatusStarting)
	require.NoError(t, err)
	_, err = f.catalog.Discover(context.Background(), "calc")
	require.NoError(t, err)
}

func calculate(expression string) domain.InvocationRequest {
	return domain.InvocationRequest{
		Server:    "calc",
		Tool:      "calculate",
		Arguments: map[string]any{"expression": expression},
	}
}

func TestNewDispatcher_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewDispatcher(Dependencies{Logger: hclog.NewNullLogger()})
	require.EqualError(t, err, "invalid dependencies: registry cannot be nil")
}

func TestDispatcher_Invoke(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.running(t)

	res, err := f.dispatcher.Invoke(context.Background(), calculate("2+3*4"))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Nil(t, res.Error)
	require.Contains(t, res.Content, "14")
	require.Equal(t, "calc", res.Server)
	require.Equal(t, "calculate", res.Tool)
	require.Empty(t, res.ArgumentWarnings)

	_, err = uuid.Parse(res.ID)
	require.NoError(t, err)
}

func TestDispatcher_InvokePreconditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture)
		req     domain.InvocationRequest
		wantErr error
	}{
		{
			name:    "unknown server",
			req:     domain.InvocationRequest{Server: "ghost", Tool: "calculate"},
			wantErr: errors.ErrServerNotFound,
		},
		{
			name:    "stopped server",
			req:     calculate("1+1"),
			wantErr: errors.ErrServerNotRunning,
		},
		{
			name: "unhealthy server",
			setup: func(t *testing.T, f *fixture) {
				f.running(t)
				_, err := f.registry.Transition("calc", domain.StatusUnhealthy, nil, domain.StatusRunning)
				require.NoError(t, err)
			},
			req:     calculate("1+1"),
			wantErr: errors.ErrServerNotRunning,
		},
		{
			name: "running but never discovered",
			setup: func(t *testing.T, f *fixture) {
				_, err := f.registry.Transition("calc", domain.StatusStarting, nil, domain.StatusStopped)
				require.NoError(t, err)
				_, err = f.registry.Transition("calc", domain.StatusRunning, nil, domain.StatusStarting)
				require.NoError(t, err)
			},
			req:     calculate("1+1"),
			wantErr: errors.ErrToolNotFound,
		},
		{
			name:    "unknown tool",
			setup:   func(t *testing.T, f *fixture) { f.running(t) },
			req:     domain.InvocationRequest{Server: "calc", Tool: "integrate"},
			wantErr: errors.ErrToolNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			if tc.setup != nil {
				tc.setup(t, f)
			}

			_, err := f.dispatcher.Invoke(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.wantErr)
			require.Zero(t, f.transport.calls.Load(), "transport must not be called")
		})
	}
}

func TestDispatcher_ArgumentWarningsDoNotBlockCall(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.running(t)

	res, err := f.dispatcher.Invoke(context.Background(), domain.InvocationRequest{
		Server:    "calc",
		Tool:      "calculate",
		Arguments: map[string]any{"expression": 42},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.ArgumentWarnings)
	require.Equal(t, int32(1), f.transport.calls.Load())
}

func TestDispatcher_RemoteFailureIsData(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.running(t)
	f.transport.invoke = func(context.Context, string, map[string]any) (transport.Result, error) {
		return transport.Result{
			Success: false,
			Error:   &domain.InvocationError{Kind: domain.InvocationErrorRemote, Message: "division by zero"},
		}, nil
	}

	res, err := f.dispatcher.Invoke(context.Background(), calculate("1/0"))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, "division by zero", res.Error.Message)
}

func TestDispatcher_TransportErrorsNotRetried(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.running(t)
	f.transport.invoke = func(context.Context, string, map[string]any) (transport.Result, error) {
		return transport.Result{}, stdErrors.New("connection refused")
	}

	_, err := f.dispatcher.Invoke(context.Background(), calculate("1+1"))
	require.ErrorIs(t, err, errors.ErrTransport)
	require.Equal(t, int32(1), f.transport.calls.Load())
}

func TestDispatcher_TimeoutAbandonsCall(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.running(t)

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	f.transport.invoke = func(context.Context, string, map[string]any) (transport.Result, error) {
		<-block
		return transport.Result{Success: true}, nil
	}

	req := calculate("1+1")
	req.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := f.dispatcher.Invoke(context.Background(), req)
	require.ErrorIs(t, err, errors.ErrInvocationTimeout)
	require.Less(t, time.Since(start), time.Second)
}

func TestDispatcher_TimeoutPrecedence(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithTimeout(45*time.Second))

	tests := []struct {
		name     string
		override time.Duration
		desc     domain.ServerDescriptor
		want     time.Duration
	}{
		{name: "default", want: 45 * time.Second},
		{name: "descriptor", desc: domain.ServerDescriptor{Timeout: 10}, want: 10 * time.Second},
		{
			name:     "override",
			override: 2 * time.Second,
			desc:     domain.ServerDescriptor{Timeout: 10},
			want:     2 * time.Second,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, f.dispatcher.timeoutFor(tc.override, tc.desc))
		})
	}
}

func TestDispatcher_FetchResource(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.dispatcher.FetchResource(context.Background(), "calc", "calc://constants")
	require.ErrorIs(t, err, errors.ErrServerNotRunning)

	f.running(t)

	content, err := f.dispatcher.FetchResource(context.Background(), "calc", "calc://constants")
	require.NoError(t, err)
	require.Equal(t, "calc", content.Server)
	require.Equal(t, "calc://constants", content.URI)
	require.Equal(t, map[string]any{"pi": 3.14159}, content.Content)

	calls := f.transport.calls.Load()
	_, err = f.dispatcher.FetchResource(context.Background(), "calc", "calc://unknown")
	require.ErrorIs(t, err, errors.ErrResourceNotFound)
	require.Equal(t, calls, f.transport.calls.Load())
}
