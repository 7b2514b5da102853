package runtime

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcporch/internal/domain"
)

func TestMergeEnvs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		base      []string
		overrides []string
		want      []string
	}{
		{
			name:      "override wins",
			base:      []string{"A=1", "B=2"},
			overrides: []string{"B=3"},
			want:      []string{"A=1", "B=3"},
		},
		{
			name:      "values may contain equals",
			base:      []string{"URL=http://x?a=b"},
			overrides: []string{"TOKEN=abc=="},
			want:      []string{"TOKEN=abc==", "URL=http://x?a=b"},
		},
		{
			name:      "malformed entries dropped",
			base:      []string{"NOEQUALS", "A=1"},
			overrides: nil,
			want:      []string{"A=1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, mergeEnvs(tc.base, tc.overrides))
		})
	}
}

func TestEnviron_IncludesOverrides(t *testing.T) {
	t.Setenv("MCPORCH_RUNTIME_TEST", "base")

	env := Environ(map[string]string{"MCPORCH_RUNTIME_TEST": "override", "EXTRA": "1"})

	require.Contains(t, env, "MCPORCH_RUNTIME_TEST=override")
	require.Contains(t, env, "EXTRA=1")
	require.NotContains(t, env, "MCPORCH_RUNTIME_TEST=base")
}

func TestExecLauncher_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewExecLauncher(nil)
	require.EqualError(t, err, "logger cannot be nil")

	l, err := NewExecLauncher(hclog.NewNullLogger())
	require.NoError(t, err)

	_, err = l.Launch(context.Background(), domain.ServerDescriptor{Name: "calc"})
	require.EqualError(t, err, "server 'calc' has no startup command")

	_, err = l.Launch(context.Background(), domain.ServerDescriptor{Name: "calc", Command: "/definitely/not/a/binary"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to start")
}
