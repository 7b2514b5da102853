package domain

import (
	stdErrors "errors"
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mozilla-ai/mcporch/internal/errors"
)

const (
	// TransportHTTP is the plain JSON over HTTP tool server protocol (/health, /tools, /resources).
	TransportHTTP TransportKind = "http"

	// TransportStreamableHTTP is the Model Context Protocol over streamable HTTP.
	TransportStreamableHTTP TransportKind = "streamable-http"
)

const (
	StatusStopped   ServerStatus = "stopped"
	StatusStarting  ServerStatus = "starting"
	StatusRunning   ServerStatus = "running"
	StatusUnhealthy ServerStatus = "unhealthy"
	StatusStopping  ServerStatus = "stopping"
	StatusFailed    ServerStatus = "failed"
)

const (
	// DefaultHost is used when a descriptor does not declare a host.
	DefaultHost = "localhost"

	// DefaultTimeoutSeconds is the invocation timeout applied when a descriptor does not declare one.
	DefaultTimeoutSeconds = 30

	// MinTimeoutSeconds is the smallest accepted per-server timeout.
	MinTimeoutSeconds = 5

	// MaxTimeoutSeconds is the largest accepted per-server timeout.
	MaxTimeoutSeconds = 300
)

var serverNameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// TransportKind identifies the protocol used to talk to a tool server.
type TransportKind string

// ServerStatus is the lifecycle status of a registered tool server.
type ServerStatus string

// ServerDescriptor is the static, user supplied definition of a tool server.
// Descriptors are treated as immutable values: updates replace the whole value.
type ServerDescriptor struct {
	Name           string            `json:"name"                      yaml:"name"`
	DisplayName    string            `json:"display_name,omitempty"    yaml:"display_name,omitempty"`
	Description    string            `json:"description,omitempty"     yaml:"description,omitempty"`
	Transport      TransportKind     `json:"transport"                 yaml:"transport"`
	Host           string            `json:"host,omitempty"            yaml:"host,omitempty"`
	Port           int               `json:"port,omitempty"            yaml:"port,omitempty"`
	BaseURL        string            `json:"base_url,omitempty"        yaml:"base_url,omitempty"`
	Enabled        bool              `json:"enabled"                   yaml:"enabled"`
	AutoStart      bool              `json:"auto_start"                yaml:"auto_start"`
	Command        string            `json:"command,omitempty"         yaml:"command,omitempty"`
	Args           []string          `json:"args,omitempty"            yaml:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"             yaml:"env,omitempty"`
	Timeout        int               `json:"timeout,omitempty"         yaml:"timeout,omitempty"`
	StartupTimeout int               `json:"startup_timeout,omitempty" yaml:"startup_timeout,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"        yaml:"metadata,omitempty"`
}

// SupportedTransports returns every transport kind the orchestrator can speak.
func SupportedTransports() []TransportKind {
	return []TransportKind{TransportHTTP, TransportStreamableHTTP}
}

// IsValid reports whether the status is one of the known lifecycle statuses.
func (s ServerStatus) IsValid() bool {
	switch s {
	case StatusStopped, StatusStarting, StatusRunning, StatusUnhealthy, StatusStopping, StatusFailed:
		return true
	default:
		return false
	}
}

// Invocable reports whether tool calls may be dispatched to a server in this status.
func (s ServerStatus) Invocable() bool {
	return s == StatusRunning
}

// Probed reports whether the health monitor observes servers in this status.
func (s ServerStatus) Probed() bool {
	return s == StatusRunning || s == StatusUnhealthy
}

// URL returns the base URL of the server, preferring an explicit BaseURL over host and port.
func (d ServerDescriptor) URL() string {
	if b := strings.TrimSpace(d.BaseURL); b != "" {
		return strings.TrimRight(b, "/")
	}

	host := d.Host
	if strings.TrimSpace(host) == "" {
		host = DefaultHost
	}

	return "http://" + host + ":" + strconv.Itoa(d.Port)
}

// InvocationTimeout returns the per-server timeout, or zero when the descriptor does not declare one.
func (d ServerDescriptor) InvocationTimeout() time.Duration {
	if d.Timeout <= 0 {
		return 0
	}
	return time.Duration(d.Timeout) * time.Second
}

// ReadinessTimeout returns how long to wait for a spawned server to answer probes,
// or zero when the descriptor does not declare one.
func (d ServerDescriptor) ReadinessTimeout() time.Duration {
	if d.StartupTimeout <= 0 {
		return 0
	}
	return time.Duration(d.StartupTimeout) * time.Second
}

// Spawned reports whether the lifecycle manager is responsible for running the server process.
func (d ServerDescriptor) Spawned() bool {
	return strings.TrimSpace(d.Command) != ""
}

// Clone returns a deep copy of the descriptor so callers cannot mutate registry owned data.
func (d ServerDescriptor) Clone() ServerDescriptor {
	c := d
	c.Args = slices.Clone(d.Args)
	c.Env = maps.Clone(d.Env)
	c.Metadata = maps.Clone(d.Metadata)
	return c
}

// Normalize fills in defaults for optional fields.
func (d ServerDescriptor) Normalize() ServerDescriptor {
	c := d.Clone()
	c.Name = strings.TrimSpace(c.Name)
	c.Transport = TransportKind(strings.ToLower(strings.TrimSpace(string(c.Transport))))
	if c.Transport == "" {
		c.Transport = TransportHTTP
	}
	if strings.TrimSpace(c.Host) == "" {
		c.Host = DefaultHost
	}
	return c
}

// Validate returns an error wrapping errors.ErrConfiguration describing every invalid field.
func (d ServerDescriptor) Validate() error {
	var errs []error

	if d.Name == "" {
		errs = append(errs, fmt.Errorf("name is required"))
	} else if !serverNameRegex.MatchString(d.Name) {
		errs = append(errs, fmt.Errorf("name '%s' may only contain letters, digits, '.', '_' and '-'", d.Name))
	}

	if !slices.Contains(SupportedTransports(), d.Transport) {
		errs = append(errs, fmt.Errorf("unsupported transport '%s'", d.Transport))
	}

	if strings.TrimSpace(d.BaseURL) != "" {
		u, err := url.Parse(d.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("base_url '%s' must be an absolute http(s) URL", d.BaseURL))
		}
	} else if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d must be between 1 and 65535", d.Port))
	}

	if d.Timeout != 0 && (d.Timeout < MinTimeoutSeconds || d.Timeout > MaxTimeoutSeconds) {
		errs = append(errs, fmt.Errorf(
			"timeout %d must be between %d and %d seconds",
			d.Timeout,
			MinTimeoutSeconds,
			MaxTimeoutSeconds,
		))
	}

	if d.StartupTimeout < 0 {
		errs = append(errs, fmt.Errorf("startup_timeout cannot be negative"))
	}

	if len(d.Args) > 0 && !d.Spawned() {
		errs = append(errs, fmt.Errorf("args require a command"))
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: server '%s': %w", errors.ErrConfiguration, d.Name, stdErrors.Join(errs...))
}
