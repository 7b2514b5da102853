package server

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcporch/internal/cmd"
	"github.com/mozilla-ai/mcporch/internal/cmd/output"
	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/printer"
)

// ListCmd should be used to represent the 'server list' command.
type ListCmd struct {
	*cmd.BaseCmd
	Format        cmd.OutputFormat
	serverPrinter output.Printer[domain.ServerDescriptor]
}

// NewListCmd creates a newly configured (Cobra) command.
func NewListCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &ListCmd{
		BaseCmd:       baseCmd,
		Format:        cmd.FormatText, // Default to plain text
		serverPrinter: printer.NewServerPrinter(),
	}

	cobraCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the servers in the servers file",
		Long:  "Lists the servers in the servers file, sorted by name",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}

	allowed := cmd.AllowedOutputFormats()
	cobraCmd.Flags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Specify the output format (one of: %s)", allowed.String()),
	)

	return cobraCmd, nil
}

func (c *ListCmd) run(cobraCmd *cobra.Command, _ []string) error {
	handler, err := cmd.FormatHandler(cobraCmd.OutOrStdout(), c.Format, c.serverPrinter)
	if err != nil {
		return err
	}

	store, err := loadStore(c.BaseCmd)
	if err != nil {
		return handler.HandleError(err)
	}

	servers, err := store.Load()
	if err != nil {
		return handler.HandleError(err)
	}

	return handler.HandleResults(servers...)
}
