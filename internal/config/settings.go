package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultServersFile is the servers file used when neither flags nor settings name one.
const DefaultServersFile = "mcp_servers.json"

// Duration wraps time.Duration so it can be decoded from strings such as "30s" in TOML.
type Duration time.Duration

// Settings holds daemon level configuration read from the TOML settings file.
type Settings struct {
	ServersFile string             `toml:"servers_file,omitempty"`
	API         APISettings        `toml:"api"`
	Health      HealthSettings     `toml:"health"`
	Invocation  InvocationSettings `toml:"invocation"`
	Lifecycle   LifecycleSettings  `toml:"lifecycle"`
	Discovery   DiscoverySettings  `toml:"discovery"`
	Watch       WatchSettings      `toml:"watch"`
}

// APISettings configures the management HTTP API.
type APISettings struct {
	Addr    string             `toml:"addr,omitempty"`
	Timeout APITimeoutSettings `toml:"timeout"`
	CORS    CORSSettings       `toml:"cors"`
}

// APITimeoutSettings configures API server timeouts.
type APITimeoutSettings struct {
	Shutdown *Duration `toml:"shutdown,omitempty"`
}

// CORSSettings configures Cross-Origin Resource Sharing for the API.
type CORSSettings struct {
	Enable           *bool     `toml:"enable,omitempty"`
	Origins          []string  `toml:"allow_origins,omitempty"`
	Methods          []string  `toml:"allow_methods,omitempty"`
	Headers          []string  `toml:"allow_headers,omitempty"`
	ExposeHeaders    []string  `toml:"expose_headers,omitempty"`
	AllowCredentials *bool     `toml:"allow_credentials,omitempty"`
	MaxAge           *Duration `toml:"max_age,omitempty"`
}

// HealthSettings configures the health monitor.
type HealthSettings struct {
	Interval            *Duration `toml:"interval,omitempty"`
	Timeout             *Duration `toml:"timeout,omitempty"`
	FailureThreshold    *int      `toml:"failure_threshold,omitempty"`
	StaleAfter          *Duration `toml:"stale_after,omitempty"`
	MaxConcurrentProbes *int      `toml:"max_concurrent_probes,omitempty"`
}

// InvocationSettings configures the invocation dispatcher.
type InvocationSettings struct {
	Timeout *Duration `toml:"timeout,omitempty"`
}

// LifecycleSettings configures starting and stopping servers.
type LifecycleSettings struct {
	StartupTimeout    *Duration `toml:"startup_timeout,omitempty"`
	ShutdownTimeout   *Duration `toml:"shutdown_timeout,omitempty"`
	ReadyPollInterval *Duration `toml:"ready_poll_interval,omitempty"`
}

// DiscoverySettings configures capability discovery.
type DiscoverySettings struct {
	Timeout *Duration `toml:"timeout,omitempty"`
	Retries *int      `toml:"retries,omitempty"`
}

// WatchSettings configures reloading when the servers file changes on disk.
type WatchSettings struct {
	Enable   *bool     `toml:"enable,omitempty"`
	Debounce *Duration `toml:"debounce,omitempty"`
}

// LoadSettings decodes the TOML settings file at path.
// A missing file is not an error: empty Settings are returned so that defaults apply.
func LoadSettings(path string) (*Settings, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return &Settings{}, nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("%w: failed to stat settings file (%s): %w", ErrConfigLoadFailed, path, err)
	}

	var s Settings
	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode settings from file (%s): %w", ErrConfigLoadFailed, path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%w: unknown settings keys in %s: %s", ErrConfigLoadFailed, path, strings.Join(keys, ", "))
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid settings (%s): %w", ErrConfigLoadFailed, path, err)
	}

	return &s, nil
}

// ServersFileOrDefault returns the configured servers file, falling back to def.
func (s *Settings) ServersFileOrDefault(def string) string {
	if s == nil || strings.TrimSpace(s.ServersFile) == "" {
		return def
	}
	return s.ServersFile
}

// Validate checks every configured value.
func (s *Settings) Validate() error {
	var errs []error

	if s.API.Addr != "" {
		if _, _, err := net.SplitHostPort(s.API.Addr); err != nil {
			errs = append(errs, NewErrInvalidValue("api.addr", s.API.Addr))
		}
	}

	positive := map[string]*Duration{
		"api.timeout.shutdown":          s.API.Timeout.Shutdown,
		"api.cors.max_age":              s.API.CORS.MaxAge,
		"health.interval":               s.Health.Interval,
		"health.timeout":                s.Health.Timeout,
		"health.stale_after":            s.Health.StaleAfter,
		"invocation.timeout":            s.Invocation.Timeout,
		"lifecycle.startup_timeout":     s.Lifecycle.StartupTimeout,
		"lifecycle.shutdown_timeout":    s.Lifecycle.ShutdownTimeout,
		"lifecycle.ready_poll_interval": s.Lifecycle.ReadyPollInterval,
		"discovery.timeout":             s.Discovery.Timeout,
		"watch.debounce":                s.Watch.Debounce,
	}
	for key, d := range positive {
		if d != nil && *d <= 0 {
			errs = append(errs, NewErrInvalidValue(key, d.String()))
		}
	}

	if v := s.Health.FailureThreshold; v != nil && *v < 1 {
		errs = append(errs, NewErrInvalidValue("health.failure_threshold", fmt.Sprint(*v)))
	}
	if v := s.Health.MaxConcurrentProbes; v != nil && *v < 1 {
		errs = append(errs, NewErrInvalidValue("health.max_concurrent_probes", fmt.Sprint(*v)))
	}
	if v := s.Discovery.Retries; v != nil && *v < 0 {
		errs = append(errs, NewErrInvalidValue("discovery.retries", fmt.Sprint(*v)))
	}

	return errors.Join(errs...)
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d *Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(*d).String()), nil
}

// String returns a human-readable string representation of the duration.
func (d *Duration) String() string {
	if d == nil {
		return ""
	}
	return time.Duration(*d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// Value returns the wrapped duration, or def when d is nil.
func (d *Duration) Value(def time.Duration) time.Duration {
	if d == nil {
		return def
	}
	return time.Duration(*d)
}
