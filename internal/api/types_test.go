package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcporch/internal/domain"
)

func TestParseHealthStatus_ValidCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    domain.HealthStatus
		expected HealthStatus
	}{
		{"ok", domain.HealthStatusOK, HealthStatusOK},
		{"timeout", domain.HealthStatusTimeout, HealthStatusTimeout},
		{"unreachable", domain.HealthStatusUnreachable, HealthStatusUnreachable},
		{"unknown", domain.HealthStatusUnknown, HealthStatusUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseHealthStatus(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestParseHealthStatus_InvalidCase(t *testing.T) {
	t.Parallel()

	input := domain.HealthStatus("invalid-status")
	_, err := parseHealthStatus(input)
	require.EqualError(t, err, fmt.Sprintf("unknown health status: %s", input))
}

func TestServerInput_ToDomainType(t *testing.T) {
	t.Parallel()

	in := ServerInput{Name: "calculator", Transport: "http", Port: 8004}
	require.True(t, in.ToDomainType().Enabled)

	disabled := false
	in.Enabled = &disabled
	desc := in.ToDomainType()
	require.False(t, desc.Enabled)
	require.Equal(t, domain.TransportHTTP, desc.Transport)
	require.Equal(t, 8004, desc.Port)
}

func TestDomainServerSnapshot_ToAPIType(t *testing.T) {
	t.Parallel()

	latency := 20 * time.Millisecond
	snap := DomainServerSnapshot{
		Descriptor: domain.ServerDescriptor{
			Name:      "calculator",
			Transport: domain.TransportHTTP,
			Host:      "localhost",
			Port:      8004,
			Enabled:   true,
		},
		State: domain.ServerState{
			Status: domain.StatusRunning,
			Epoch:  3,
			Health: domain.ServerHealth{Name: "calculator", Status: domain.HealthStatusOK, Latency: &latency},
		},
	}

	s, err := snap.ToAPIType(nil)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8004", s.URL)
	require.Equal(t, "running", s.Status)
	require.Equal(t, uint64(3), s.Epoch)
	require.Equal(t, "20ms", *s.Health.Latency)
	require.Nil(t, s.Tools)

	cat := &domain.Catalog{
		Server: "calculator",
		Tools: map[string]domain.ToolSpec{
			"subtract": {Name: "subtract"},
			"add":      {Name: "add"},
		},
		Resources: map[string]domain.ResourceSpec{
			"calc://history": {URI: "calc://history"},
		},
	}

	s, err = snap.ToAPIType(cat)
	require.NoError(t, err)
	require.Equal(t, []string{"add", "subtract"}, s.Tools)
	require.Equal(t, []string{"calc://history"}, s.Resources)

	snap.State.Health.Status = "bogus"
	_, err = snap.ToAPIType(nil)
	require.Error(t, err)
}

func TestDomainInvocationResult_ToAPIType(t *testing.T) {
	t.Parallel()

	res := DomainInvocationResult{
		ID:       "id",
		Server:   "calculator",
		Tool:     "calculate",
		Success:  false,
		Error:    &domain.InvocationError{Kind: domain.InvocationErrorRemote, Message: "unsupported expression"},
		Duration: 1500 * time.Millisecond,
	}.ToAPIType()

	require.Equal(t, "1.5s", res.Duration)
	require.Equal(t, &InvocationError{Kind: "remote", Message: "unsupported expression"}, res.Error)
}
