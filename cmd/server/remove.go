package server

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcporch/internal/cmd"
	"github.com/mozilla-ai/mcporch/internal/domain"
)

// RemoveCmd should be used to represent the 'server remove' command.
type RemoveCmd struct {
	*cmd.BaseCmd
}

// NewRemoveCmd creates a newly configured (Cobra) command.
func NewRemoveCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &RemoveCmd{
		BaseCmd: baseCmd,
	}

	cobraCommand := &cobra.Command{
		Use:   "remove <server-name>",
		Short: "Removes a server from the servers file",
		Long:  "Removes a server from the servers file",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}

	return cobraCommand, nil
}

// run is configured (via NewRemoveCmd) to be called by the Cobra framework when the command is executed.
// It may return an error (or nil, when there is no error).
func (c *RemoveCmd) run(cobraCmd *cobra.Command, args []string) error {
	name, err := serverName(args)
	if err != nil {
		return err
	}

	logger, err := c.Logger()
	if err != nil {
		return err
	}

	store, err := loadStore(c.BaseCmd)
	if err != nil {
		return err
	}

	servers, err := store.Load()
	if err != nil {
		return err
	}

	remaining := slices.DeleteFunc(servers, func(d domain.ServerDescriptor) bool { return d.Name == name })
	if len(remaining) == len(servers) {
		return fmt.Errorf("server '%s' not found in %s", name, store.Path())
	}

	if err := store.Save(remaining); err != nil {
		return err
	}

	logger.Debug("Server removed", "name", name)
	if _, err := fmt.Fprintf(
		cobraCmd.OutOrStdout(),
		"✓ Removed server '%s'\n", name,
	); err != nil {
		return err
	}

	return nil
}
