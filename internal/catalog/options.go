package catalog

import (
	"fmt"
	"time"
)

// Options contains optional configuration for the Catalog.
type Options struct {
	// Timeout bounds a discovery call when the server descriptor sets no timeout of its own.
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

// WithTimeout configures the default discovery timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("discovery timeout must be positive, got %v", timeout)
		}
		o.Timeout = timeout
		return nil
	}
}

// DefaultTimeout returns the default discovery timeout.
func DefaultTimeout() time.Duration {
	return 30 * time.Second
}
