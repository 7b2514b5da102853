package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcporch/internal/cmd"
	"github.com/mozilla-ai/mcporch/internal/config"
	"github.com/mozilla-ai/mcporch/internal/flags"
)

// InitCmd represents the 'init' command.
type InitCmd struct {
	*cmd.BaseCmd
}

// NewInitCmd creates a newly configured (Cobra) command.
func NewInitCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &InitCmd{
		BaseCmd: baseCmd,
	}

	cobraCommand := &cobra.Command{
		Use:   "init",
		Short: "Creates a servers file populated with the default servers",
		Long:  c.longDescription(),
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}

	return cobraCommand, nil
}

func (c *InitCmd) longDescription() string {
	return fmt.Sprintf(
		"Creates a servers file populated with the default servers.\n\n"+
			"The file is written to '%s' unless overridden using the `--%s` flag, the `%s` environment variable, "+
			"or the servers_file setting in the `--%s` settings file.\n\n"+
			"An existing servers file is never overwritten.",
		flags.DefaultServersFile,
		flags.FlagNameServersFile,
		flags.EnvVarServersFile,
		flags.FlagNameConfigFile,
	)
}

func (c *InitCmd) run(cmd *cobra.Command, _ []string) error {
	logger, err := c.Logger()
	if err != nil {
		return err
	}

	settings, err := c.Settings()
	if err != nil {
		return err
	}

	store, err := c.ServersStore(settings)
	if err != nil {
		return err
	}

	defaults := config.DefaultServers()
	if err := store.Init(defaults); err != nil {
		logger.Error("Servers file initialization failed", "path", store.Path(), "error", err)
		return fmt.Errorf("error initializing servers file: %w", err)
	}

	logger.Debug("Servers file created", "path", store.Path(), "servers", len(defaults))

	if _, err := fmt.Fprintf(
		cmd.OutOrStdout(),
		"✓ Servers file created: %s (%d servers)\n", store.Path(), len(defaults),
	); err != nil {
		return err
	}

	return nil
}
