package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcporch/internal/cmd/output"
	"github.com/mozilla-ai/mcporch/internal/config"
	"github.com/mozilla-ai/mcporch/internal/flags"
	"github.com/mozilla-ai/mcporch/internal/perms"
)

// AppName is the name of the binary, used for logger names and user-facing messages.
const AppName = "mcporch"

// BaseCmd holds state shared by every command.
type BaseCmd struct {
	mu     sync.Mutex
	logger hclog.Logger
}

// SetLogger updates the command's logger.
func (c *BaseCmd) SetLogger(logger hclog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger = logger
}

// Logger returns the logger for the command, creating it from the global flags on first use.
// Output is discarded unless a log path has been configured.
func (c *BaseCmd) Logger() (hclog.Logger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.logger != nil {
		return c.logger, nil
	}

	level := strings.ToLower(strings.TrimSpace(flags.LogLevel))
	if level == "" {
		level = flags.DefaultLogLevel
	}
	if hclog.LevelFromString(level) == hclog.NoLevel {
		return nil, fmt.Errorf("invalid log level '%s'", flags.LogLevel)
	}

	var out io.Writer = io.Discard
	if logPath := strings.TrimSpace(flags.LogPath); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, perms.RegularFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file (%s): %w", logPath, err)
		}
		out = f
	}

	c.logger = hclog.New(&hclog.LoggerOptions{
		Name:   AppName,
		Level:  hclog.LevelFromString(level),
		Output: out,
	})

	return c.logger, nil
}

// Settings loads the daemon settings file named by the global flags.
func (c *BaseCmd) Settings() (*config.Settings, error) {
	return config.LoadSettings(flags.ConfigFile)
}

// ServersStore returns the store for the servers file.
// An explicit flag (or environment variable) wins over the settings file, which wins over the default.
func (c *BaseCmd) ServersStore(settings *config.Settings) (*config.FileStore, error) {
	path := strings.TrimSpace(flags.ServersFile)
	if path == "" {
		path = settings.ServersFileOrDefault(flags.DefaultServersFile)
	}

	return config.NewFileStore(path)
}

// RequireTogether returns an error when only some of the named flags were set on the command.
func (c *BaseCmd) RequireTogether(cmd *cobra.Command, names ...string) error {
	set := 0
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			set++
		}
	}

	if set == 0 || set == len(names) {
		return nil
	}

	sorted := slices.Clone(names)
	slices.Sort(sorted)

	return fmt.Errorf("flags must be provided together or not at all (%s)", strings.Join(sorted, ", "))
}

// FormatHandler returns the output handler for the requested format.
func FormatHandler[T any](w io.Writer, format OutputFormat, p output.Printer[T]) (output.Handler[T], error) {
	switch format {
	case FormatJSON:
		return output.NewJSONHandler[T](w, 2), nil
	case FormatYAML:
		return output.NewYAMLHandler[T](w, 2), nil
	case FormatText:
		return output.NewTextHandler[T](w, p), nil
	default:
		allowed := AllowedOutputFormats()
		return nil, fmt.Errorf("invalid format '%s', must be one of %s", format, allowed.String())
	}
}
