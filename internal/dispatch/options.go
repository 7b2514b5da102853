package dispatch

import (
	"fmt"
	"time"
)

// Options contains optional configuration for the Dispatcher.
type Options struct {
	// Timeout is used for calls that carry no override and whose server sets no timeout.
	Timeout time.Duration
}

// Option defines a functional option for configuring Options.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
func NewOptions(opts ...Option) (Options, error) {
	options := Options{Timeout: DefaultTimeout()}

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

// WithTimeout configures the default invocation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("invocation timeout must be positive, got %v", timeout)
		}
		o.Timeout = timeout
		return nil
	}
}

// DefaultTimeout returns the default invocation timeout.
func DefaultTimeout() time.Duration {
	return 30 * time.Second
}
