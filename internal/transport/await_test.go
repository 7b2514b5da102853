package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcporch/internal/domain"
	mcperrors "github.com/mozilla-ai/mcporch/internal/errors"
)

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

var _ net.Error = timeoutNetError{}

func TestAwait_ReturnsWhenCallIgnoresCancellation(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Await(ctx, func(context.Context) (int, error) {
		<-block
		return 1, nil
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestAwait_ReturnsValue(t *testing.T) {
	t.Parallel()

	v, err := Await(context.Background(), func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"deadline", context.DeadlineExceeded, mcperrors.ErrInvocationTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), mcperrors.ErrInvocationTimeout},
		{"net timeout", timeoutNetError{}, mcperrors.ErrInvocationTimeout},
		{"canceled", context.Canceled, context.Canceled},
		{"plain", errors.New("connection refused"), mcperrors.ErrTransport},
		{"already transport", fmt.Errorf("%w: x", mcperrors.ErrTransport), mcperrors.ErrTransport},
		{"resource not found", fmt.Errorf("%w: x", mcperrors.ErrResourceNotFound), mcperrors.ErrResourceNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, Classify(tc.in), tc.want)
		})
	}

	require.NoError(t, Classify(nil))
	require.NotErrorIs(t, Classify(context.Canceled), mcperrors.ErrTransport)
}

type stubTransport struct{ Transport }

func TestSet_For(t *testing.T) {
	t.Parallel()

	httpT := &stubTransport{}
	set, err := NewSet(map[domain.TransportKind]Transport{domain.TransportHTTP: httpT})
	require.NoError(t, err)

	got, err := set.For(domain.TransportHTTP)
	require.NoError(t, err)
	require.Same(t, httpT, got)

	_, err = set.For(domain.TransportStreamableHTTP)
	require.ErrorIs(t, err, mcperrors.ErrConfiguration)
	require.Contains(t, err.Error(), "available: http")

	_, err = NewSet(nil)
	require.Error(t, err)

	var nilT *stubTransport
	_, err = NewSet(map[domain.TransportKind]Transport{domain.TransportHTTP: nilT})
	require.EqualError(t, err, "transport for kind 'http' cannot be nil")
}
