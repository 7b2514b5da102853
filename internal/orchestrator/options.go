package orchestrator

import (
	"fmt"
	"time"

	"github.com/mozilla-ai/mcporch/internal/catalog"
	"github.com/mozilla-ai/mcporch/internal/dispatch"
	"github.com/mozilla-ai/mcporch/internal/health"
	"github.com/mozilla-ai/mcporch/internal/lifecycle"
)

// Options contains optional configuration for the Orchestrator and the components it wires together.
// NewOptions should be used to create instances of Options.
type Options struct {
	Lifecycle []lifecycle.Option
	Health    []health.Option
	Catalog   []catalog.Option
	Dispatch  []dispatch.Option

	// Watch enables reloading when the servers file is changed by something other than the orchestrator.
	Watch bool

	// WatchDebounce is how long the file must be quiet before a reload is attempted.
	WatchDebounce time.Duration

	// ShutdownTimeout bounds stopping every server when Run returns.
	ShutdownTimeout time.Duration
}

// Option defines a functional option for configuring Options.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
// Starts with default values, then applies options in order with later options overriding earlier ones.
func NewOptions(opts ...Option) (Options, error) {
	options := Options{
		WatchDebounce:   DefaultWatchDebounce(),
		ShutdownTimeout: DefaultShutdownTimeout(),
	}

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

// WithLifecycleOptions appends options for the lifecycle manager.
func WithLifecycleOptions(opts ...lifecycle.Option) Option {
	return func(o *Options) error {
		o.Lifecycle = append(o.Lifecycle, opts...)
		return nil
	}
}

// WithHealthOptions appends options for the health monitor.
func WithHealthOptions(opts ...health.Option) Option {
	return func(o *Options) error {
		o.Health = append(o.Health, opts...)
		return nil
	}
}

// WithCatalogOptions appends options for the capability catalog.
func WithCatalogOptions(opts ...catalog.Option) Option {
	return func(o *Options) error {
		o.Catalog = append(o.Catalog, opts...)
		return nil
	}
}

// WithDispatchOptions appends options for the invocation dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(o *Options) error {
		o.Dispatch = append(o.Dispatch, opts...)
		return nil
	}
}

// WithWatch enables or disables watching the servers file.
func WithWatch(enabled bool) Option {
	return func(o *Options) error {
		o.Watch = enabled
		return nil
	}
}

// WithWatchDebounce configures the quiet period before a file change triggers a reload.
func WithWatchDebounce(d time.Duration) Option {
	return func(o *Options) error {
		if d <= 0 {
			return fmt.Errorf("watch debounce must be positive, got %v", d)
		}
		o.WatchDebounce = d
		return nil
	}
}

// WithShutdownTimeout configures how long stopping all servers may take at shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) error {
		if d <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got %v", d)
		}
		o.ShutdownTimeout = d
		return nil
	}
}

// DefaultWatchDebounce returns the default quiet period for file change reloads.
func DefaultWatchDebounce() time.Duration {
	return 500 * time.Millisecond
}

// DefaultShutdownTimeout returns the default time allowed for stopping every server.
func DefaultShutdownTimeout() time.Duration {
	return 30 * time.Second
}
