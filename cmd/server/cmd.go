// Package server holds the commands that edit the servers file.
package server

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcporch/internal/cmd"
	"github.com/mozilla-ai/mcporch/internal/config"
)

// NewServerCmd creates the 'server' command group.
func NewServerCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	cobraCmd := &cobra.Command{
		Use:   "server",
		Short: "Manages the servers file",
		Long: "Adds, removes and lists the servers in the servers file. " +
			"A daemon started with --watch reloads automatically after each change.",
	}

	fns := []func(baseCmd *cmd.BaseCmd) (*cobra.Command, error){
		NewAddCmd,
		NewRemoveCmd,
		NewListCmd,
	}

	for _, fn := range fns {
		tempCmd, err := fn(baseCmd)
		if err != nil {
			return nil, err
		}
		cobraCmd.AddCommand(tempCmd)
	}

	return cobraCmd, nil
}

// serverName validates the positional server name argument.
func serverName(args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("server name is required and cannot be empty")
	}

	return strings.TrimSpace(args[0]), nil
}

// loadStore returns the servers file store selected by the global flags and settings.
func loadStore(c *cmd.BaseCmd) (*config.FileStore, error) {
	settings, err := c.Settings()
	if err != nil {
		return nil, err
	}

	return c.ServersStore(settings)
}
