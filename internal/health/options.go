package health

import (
	"fmt"
	"time"
)

// Options contains optional configuration for the Monitor.
// NewOptions should be used to create instances of Options.
type Options struct {
	// Interval is the time between periodic probe rounds.
	Interval time.Duration

	// Timeout bounds each individual probe.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive periodic probe failures that make a running server unhealthy.
	FailureThreshold int

	// StaleAfter is the age beyond which a cached reading is reported as unknown.
	// Zero means three times Interval.
	StaleAfter time.Duration

	// MaxConcurrentProbes limits how many probes run at once during a round.
	MaxConcurrentProbes int
}

// Option defines a functional option for configuring Options.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
// Starts with default values, then applies options in order with later options overriding earlier ones.
func NewOptions(opts ...Option) (Options, error) {
	options := Options{
		Interval:            DefaultInterval(),
		Timeout:             DefaultTimeout(),
		FailureThreshold:    DefaultFailureThreshold(),
		MaxConcurrentProbes: DefaultMaxConcurrentProbes(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return Options{}, err
		}
	}

	if options.StaleAfter == 0 {
		options.StaleAfter = 3 * options.Interval
	}

	return options, nil
}

// WithInterval configures the time between probe rounds.
func WithInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval <= 0 {
			return fmt.Errorf("health check interval must be positive, got %v", interval)
		}
		o.Interval = interval
		return nil
	}
}

// WithTimeout configures the per-probe timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("health check timeout must be positive, got %v", timeout)
		}
		o.Timeout = timeout
		return nil
	}
}

// WithFailureThreshold configures how many consecutive failures make a server unhealthy.
func WithFailureThreshold(n int) Option {
	return func(o *Options) error {
		if n < 1 {
			return fmt.Errorf("failure threshold must be at least 1, got %d", n)
		}
		o.FailureThreshold = n
		return nil
	}
}

// WithStaleAfter configures the maximum age of a trusted health reading.
func WithStaleAfter(d time.Duration) Option {
	return func(o *Options) error {
		if d <= 0 {
			return fmt.Errorf("stale after must be positive, got %v", d)
		}
		o.StaleAfter = d
		return nil
	}
}

// WithMaxConcurrentProbes limits the number of probes that run at once.
func WithMaxConcurrentProbes(n int) Option {
	return func(o *Options) error {
		if n < 1 {
			return fmt.Errorf("max concurrent probes must be at least 1, got %d", n)
		}
		o.MaxConcurrentProbes = n
		return nil
	}
}

// DefaultInterval returns the default time between probe rounds.
func DefaultInterval() time.Duration {
	return 10 * time.Second
}

// DefaultTimeout returns the default per-probe timeout.
func DefaultTimeout() time.Duration {
	return 3 * time.Second
}

// DefaultFailureThreshold returns the default number of consecutive failures that make a server unhealthy.
func DefaultFailureThreshold() int {
	return 3
}

// DefaultMaxConcurrentProbes returns the default probe concurrency.
func DefaultMaxConcurrentProbes() int {
	return 8
}
