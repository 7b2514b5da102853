// Package flags holds the global CLI flags shared by every command.
package flags

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	// Env vars
	EnvVarConfigFile  = "MCPORCH_CONFIG_FILE"
	EnvVarServersFile = "MCPORCH_SERVERS_FILE"
	EnvVarLogPath     = "MCPORCH_LOG_PATH"
	EnvVarLogLevel    = "MCPORCH_LOG_LEVEL"

	// Defaults
	DefaultConfigFile  = ".mcporch.toml"
	DefaultServersFile = "mcp_servers.json"
	DefaultLogPath     = ""
	DefaultLogLevel    = "info"

	// Flag names
	FlagNameConfigFile  = "config-file"
	FlagNameServersFile = "servers-file"
	FlagNameLogPath     = "log-path"
	FlagNameLogLevel    = "log-level"
)

var (
	ConfigFile  string
	ServersFile string
	LogPath     string
	LogLevel    string
)

// InitFlags registers the global flags on fs.
// Values come from the environment when set, otherwise the defaults; flags override both.
func InitFlags(fs *pflag.FlagSet) {
	initConfigFile(fs)
	initServersFile(fs)
	initLogger(fs)
}

func initConfigFile(fs *pflag.FlagSet) {
	ConfigFile = fromEnv(ConfigFile, EnvVarConfigFile, DefaultConfigFile)
	fs.StringVar(&ConfigFile, FlagNameConfigFile, ConfigFile, "path to the daemon settings file")
}

func initServersFile(fs *pflag.FlagSet) {
	ServersFile = fromEnv(ServersFile, EnvVarServersFile, "")
	fs.StringVar(
		&ServersFile,
		FlagNameServersFile,
		ServersFile,
		"path to the servers file (defaults to the settings file's servers_file, then "+DefaultServersFile+")",
	)
}

func initLogger(fs *pflag.FlagSet) {
	LogPath = fromEnv(LogPath, EnvVarLogPath, DefaultLogPath)
	fs.StringVar(&LogPath, FlagNameLogPath, LogPath, "path to generated log file")

	LogLevel = strings.ToLower(fromEnv(LogLevel, EnvVarLogLevel, DefaultLogLevel))
	fs.StringVar(&LogLevel, FlagNameLogLevel, LogLevel, "log level for mcporch logs")
}

func fromEnv(current string, envVar string, def string) string {
	if current != "" {
		return current
	}
	if env := strings.TrimSpace(os.Getenv(envVar)); env != "" {
		return env
	}
	return def
}
