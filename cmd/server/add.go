package server

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcporch/internal/cmd"
	"github.com/mozilla-ai/mcporch/internal/config"
	"github.com/mozilla-ai/mcporch/internal/domain"
)

// AddCmd should be used to represent the 'server add' command.
type AddCmd struct {
	*cmd.BaseCmd
	Host        string
	Port        int
	Transport   string
	BaseURL     string
	Command     string
	Args        []string
	Env         []string
	AutoStart   bool
	Disabled    bool
	Timeout     int
	DisplayName string
	Description string
}

// NewAddCmd creates a newly configured (Cobra) command.
func NewAddCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &AddCmd{
		BaseCmd: baseCmd,
	}

	cobraCommand := &cobra.Command{
		Use:   "add <server-name>",
		Short: "Adds a server to the servers file",
		Long:  c.longDescription(),
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}

	cobraCommand.Flags().StringVar(&c.Host, "host", domain.DefaultHost, "Host the server listens on")
	cobraCommand.Flags().IntVar(&c.Port, "port", 0, "Port the server listens on (required unless --base-url is set)")
	cobraCommand.Flags().StringVar(
		&c.Transport,
		"transport",
		string(domain.TransportHTTP),
		fmt.Sprintf("Transport used to reach the server (one of: %s)", supportedTransports()),
	)
	cobraCommand.Flags().StringVar(&c.BaseURL, "base-url", "", "Explicit base URL, overrides --host and --port")
	cobraCommand.Flags().StringVar(&c.Command, "command", "", "Command that launches the server process")
	cobraCommand.Flags().StringArrayVar(&c.Args, "arg", nil, "Argument for --command (can be repeated)")
	cobraCommand.Flags().StringArrayVar(&c.Env, "env", nil, "Environment variable for the server in KEY=VALUE form (can be repeated)")
	cobraCommand.Flags().BoolVar(&c.AutoStart, "auto-start", false, "Start the server when the daemon starts")
	cobraCommand.Flags().BoolVar(&c.Disabled, "disabled", false, "Add the server in a disabled state")
	cobraCommand.Flags().IntVar(
		&c.Timeout,
		"timeout",
		domain.DefaultTimeoutSeconds,
		fmt.Sprintf("Invocation timeout in seconds (%d-%d)", domain.MinTimeoutSeconds, domain.MaxTimeoutSeconds),
	)
	cobraCommand.Flags().StringVar(&c.DisplayName, "display-name", "", "Human readable name")
	cobraCommand.Flags().StringVar(&c.Description, "description", "", "Short description of the server")

	cobraCommand.MarkFlagsMutuallyExclusive("auto-start", "disabled")

	return cobraCommand, nil
}

// longDescription returns the long version of the command description.
func (c *AddCmd) longDescription() string {
	return `Adds a server to the servers file.

Values may reference environment variables using ${VAR} placeholders, they are resolved before the server is saved.
Servers with a --command are launched by the daemon, otherwise the daemon expects them to be running already.`
}

// run is configured (via NewAddCmd) to be called by the Cobra framework when the command is executed.
// It may return an error (or nil, when there is no error).
func (c *AddCmd) run(cobraCmd *cobra.Command, args []string) error {
	name, err := serverName(args)
	if err != nil {
		return err
	}

	logger, err := c.Logger()
	if err != nil {
		return err
	}

	env, err := parseEnv(c.Env)
	if err != nil {
		return err
	}

	desc, err := config.PrepareDescriptor(domain.ServerDescriptor{
		Name:        name,
		DisplayName: strings.TrimSpace(c.DisplayName),
		Description: strings.TrimSpace(c.Description),
		Transport:   domain.TransportKind(c.Transport),
		Host:        c.Host,
		Port:        c.Port,
		BaseURL:     strings.TrimSpace(c.BaseURL),
		Enabled:     !c.Disabled,
		AutoStart:   c.AutoStart,
		Command:     strings.TrimSpace(c.Command),
		Args:        c.Args,
		Env:         env,
		Timeout:     c.Timeout,
	})
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

	if slices.ContainsFunc(servers, func(d domain.ServerDescriptor) bool { return d.Name == name }) {
		return fmt.Errorf("server '%s' already exists in %s", name, store.Path())
	}

	if err := store.Save(append(servers, desc)); err != nil {
		return err
	}

	logger.Debug("Server added", "name", name, "url", desc.URL(), "transport", desc.Transport)

	if _, err := fmt.Fprintf(
		cobraCmd.OutOrStdout(),
		"✓ Added server '%s' (%s, %s)\n", name, desc.Transport, desc.URL(),
	); err != nil {
		return err
	}

	return nil
}

// parseEnv converts KEY=VALUE pairs into a map.
func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid environment variable '%s', expected KEY=VALUE", pair)
		}
		env[k] = v
	}

	return env, nil
}

func supportedTransports() string {
	kinds := domain.SupportedTransports()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return strings.Join(out, ", ")
}
