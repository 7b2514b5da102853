package server

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcporch/internal/cmd"
	"github.com/mozilla-ai/mcporch/internal/config"
	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/flags"
)

// useTempServersFile points the global flags at a servers file inside a temporary directory.
// The file is only created when servers are supplied.
func useTempServersFile(t *testing.T, servers ...domain.ServerDescriptor) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, flags.DefaultServersFile)

	prevConfig, prevServers, prevLevel := flags.ConfigFile, flags.ServersFile, flags.LogLevel
	t.Cleanup(func() {
		flags.ConfigFile, flags.ServersFile, flags.LogLevel = prevConfig, prevServers, prevLevel
	})

	flags.ConfigFile = filepath.Join(dir, flags.DefaultConfigFile)
	flags.ServersFile = path
	flags.LogLevel = flags.DefaultLogLevel

	if servers != nil {
		store, err := config.NewFileStore(path)
		require.NoError(t, err)
		require.NoError(t, store.Init(servers))
	}

	return path
}

func loadServers(t *testing.T, path string) []domain.ServerDescriptor {
	t.Helper()

	store, err := config.NewFileStore(path)
	require.NoError(t, err)

	servers, err := store.Load()
	require.NoError(t, err)

	return servers
}

func execute(
	t *testing.T,
	newCmd func(baseCmd *cmd.BaseCmd) (*cobra.Command, error),
	args ...string,
) (string, error) {
	t.Helper()

	base := &cmd.BaseCmd{}
	base.SetLogger(hclog.NewNullLogger())

	c, err := newCmd(base)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	c.SetOut(out)
	c.SetErr(out)
	c.SetArgs(args)

	err = c.Execute()

	return out.String(), err
}

func testServer(name string, port int) domain.ServerDescriptor {
	return domain.ServerDescriptor{
		Name:      name,
		Transport: domain.TransportHTTP,
		Host:      domain.DefaultHost,
		Port:      port,
		Enabled:   true,
		Timeout:   domain.DefaultTimeoutSeconds,
	}
}
