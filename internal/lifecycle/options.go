package lifecycle

import (
	"fmt"
	"time"
)

// Options contains optional configuration for the Manager.
// NewOptions should be used to create instances of Options.
type Options struct {
	// StartupTimeout bounds how long a start may take, including waiting for a spawned process to answer probes.
	// A descriptor's startup_timeout overrides it.
	StartupTimeout time.Duration

	// ShutdownTimeout is how long a spawned process is given to exit after SIGTERM before it is killed.
	ShutdownTimeout time.Duration

	// ReadyPollInterval is the delay between readiness probes of a spawned process.
	ReadyPollInterval time.Duration
}

// Option defines a functional option for configuring Options.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
// Starts with default values, then applies options in order with later options overriding earlier ones.
func NewOptions(opts ...Option) (Options, error) {
	options := defaultOptions()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return Options{}, err
		}
	}

	return options, nil
}

// WithStartupTimeout configures the default startup timeout.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("startup timeout must be positive, got %v", timeout)
		}
		o.StartupTimeout = timeout
		return nil
	}
}

// WithShutdownTimeout configures how long to wait for a process to exit before killing it.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got %v", timeout)
		}
		o.ShutdownTimeout = timeout
		return nil
	}
}

// WithReadyPollInterval configures the delay between readiness probes.
func WithReadyPollInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval <= 0 {
			return fmt.Errorf("ready poll interval must be positive, got %v", interval)
		}
		o.ReadyPollInterval = interval
		return nil
	}
}

// DefaultStartupTimeout is the default time allowed for a server to start.
func DefaultStartupTimeout() time.Duration {
	return 30 * time.Second
}

// DefaultShutdownTimeout is the default time to wait for a process to exit after SIGTERM.
func DefaultShutdownTimeout() time.Duration {
	return 5 * time.Second
}

// DefaultReadyPollInterval is the default delay between readiness probes.
func DefaultReadyPollInterval() time.Duration {
	return 250 * time.Millisecond
}

func defaultOptions() Options {
	return Options{
		StartupTimeout:    DefaultStartupTimeout(),
		ShutdownTimeout:   DefaultShutdownTimeout(),
		ReadyPollInterval: DefaultReadyPollInterval(),
	}
}
