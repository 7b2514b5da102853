package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcporch/cmd/server"
	"github.com/mozilla-ai/mcporch/internal/cmd"
	"github.com/mozilla-ai/mcporch/internal/flags"
)

var version = "dev" // Set at build time using -ldflags

// RootCmd represents the top level 'mcporch' command.
type RootCmd struct {
	*cmd.BaseCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd, err := NewRootCmd(&RootCmd{BaseCmd: &cmd.BaseCmd{}})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error creating root command: %s\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd(c *RootCmd) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:          cmd.AppName + " <command> [args]",
		Short:        "'" + cmd.AppName + "' starts, monitors and routes calls to tool servers",
		Long:         c.longDescription(),
		SilenceUsage: true,
		Version:      version,
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	fns := []func(baseCmd *cmd.BaseCmd) (*cobra.Command, error){
		NewInitCmd,
		NewDaemonCmd,
		server.NewServerCmd,
	}

	for _, fn := range fns {
		tempCmd, err := fn(c.BaseCmd)
		if err != nil {
			return nil, err
		}
		rootCmd.AddCommand(tempCmd)
	}

	return rootCmd, nil
}

func (c *RootCmd) longDescription() string {
	return `The '` + cmd.AppName + `' CLI manages a set of tool servers described in a servers file.

The daemon starts enabled servers, watches their health, discovers the tools and
resources they expose, and routes tool invocations to them through an HTTP API.`
}
