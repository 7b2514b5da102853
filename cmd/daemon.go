package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcporch/internal/cmd"
	"github.com/mozilla-ai/mcporch/internal/daemon"
	"github.com/mozilla-ai/mcporch/internal/flags"
	"github.com/mozilla-ai/mcporch/internal/orchestrator"
	"github.com/mozilla-ai/mcporch/internal/runtime"
	"github.com/mozilla-ai/mcporch/internal/transport"
)

const (
	defaultDaemonAddr = "0.0.0.0:8090"
	devDaemonAddr     = "localhost:8090"
)

// DaemonCmd should be used to represent the 'daemon' command.
type DaemonCmd struct {
	*cmd.BaseCmd
	Dev   bool
	Addr  string
	Watch bool
}

// NewDaemonCmd creates a newly configured (Cobra) command.
func NewDaemonCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &DaemonCmd{
		BaseCmd: baseCmd,
	}

	cobraCommand := &cobra.Command{
		Use:   "daemon [--dev] [--addr] [--watch]",
		Short: "Launches an `" + cmd.AppName + "` daemon instance",
		Long: "Launches an `" + cmd.AppName + "` daemon instance, which starts auto-start servers, " +
			"monitors their health and routes tool invocations via HTTP API",
		Args: cobra.NoArgs,
		RunE: c.run,
	}

	cobraCommand.Flags().BoolVar(
		&c.Dev,
		"dev",
		false,
		"Run the daemon in development-focused mode",
	)

	cobraCommand.Flags().StringVar(
		&c.Addr,
		"addr",
		defaultDaemonAddr,
		"Address for the daemon to bind (not applicable in --dev mode)",
	)

	cobraCommand.Flags().BoolVar(
		&c.Watch,
		"watch",
		false,
		"Reload servers when the servers file changes on disk",
	)

	cobraCommand.MarkFlagsMutuallyExclusive("dev", "addr")

	return cobraCommand, nil
}

// run is configured (via NewDaemonCmd) to be called by the Cobra framework when the command is executed.
// It may return an error (or nil, when there is no error).
func (c *DaemonCmd) run(cobraCmd *cobra.Command, _ []string) error {
	logger, err := c.Logger()
	if err != nil {
		return err
	}

	settings, err := c.Settings()
	if err != nil {
		return err
	}

	addr := strings.TrimSpace(c.Addr)
	if !cobraCmd.Flags().Changed("addr") && settings.API.Addr != "" {
		addr = settings.API.Addr
	}

	// Override address for dev mode.
	if c.Dev {
		logger.Info("Development-focused mode", "addr", addr, "override", devDaemonAddr)
		addr = devDaemonAddr
	}

	store, err := c.ServersStore(settings)
	if err != nil {
		return err
	}

	retries := transport.DefaultDiscoveryRetries()
	if settings.Discovery.Retries != nil {
		retries = *settings.Discovery.Retries
	}

	transports, err := daemon.NewTransports(logger, retries, version)
	if err != nil {
		return err
	}

	launcher, err := runtime.NewExecLauncher(logger)
	if err != nil {
		return err
	}

	deps, err := daemon.NewDependencies(logger, addr, store, transports, launcher)
	if err != nil {
		return err
	}

	opts := []daemon.Option{
		daemon.WithAPIOptions(daemon.WithVersion(version)),
		daemon.WithSettings(settings),
	}
	if cobraCmd.Flags().Changed("watch") {
		opts = append(opts, daemon.WithOrchestratorOptions(orchestrator.WithWatch(c.Watch)))
	}

	d, err := daemon.NewDaemon(deps, opts...)
	if err != nil {
		return fmt.Errorf("failed to create %s daemon instance: %w", cmd.AppName, err)
	}

	// Create the signal handling context for the application.
	daemonCtx, daemonCtxCancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer daemonCtxCancel()

	runErr := make(chan error, 1)
	go func() {
		if err := d.StartAndManage(daemonCtx); err != nil && !errors.Is(err, context.Canceled) {
			runErr <- err
		}
		close(runErr)
	}()

	// Print --dev mode banner if required.
	if c.Dev {
		logger.Info("Launching daemon in dev mode", "addr", addr)
		banner := fmt.Sprintf("%s daemon running in 'dev' mode.\n\n"+
			"  Local API:\thttp://%s/api/v1\n"+
			"  OpenAPI UI:\thttp://%s/docs\n"+
			"  Settings:\t%s\n"+
			"  Servers file:\t%s\n",
			cmd.AppName, addr, addr, flags.ConfigFile, store.Path())

		if flags.LogPath != "" {
			banner += fmt.Sprintf("  Log file:\t%s => (%s)\n", flags.LogPath, flags.LogLevel)
		}

		banner += "\nPress Ctrl+C to stop.\n\n"
		_, _ = fmt.Fprint(cobraCmd.OutOrStdout(), banner)
	}

	select {
	case <-daemonCtx.Done():
		logger.Info("Shutting down daemon")
		err := <-runErr // Wait for cleanup and deferred logging.
		return err      // Graceful Ctrl+C / SIGTERM.
	case err, ok := <-runErr:
		if !ok {
			return nil
		}
		logger.Error("daemon exited with error", "error", err)
		return err // Propagate daemon failure.
	}
}
