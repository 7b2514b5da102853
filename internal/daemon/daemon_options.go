package daemon

import (
	"github.com/mozilla-ai/mcporch/internal/catalog"
	"github.com/mozilla-ai/mcporch/internal/config"
	"github.com/mozilla-ai/mcporch/internal/dispatch"
	"github.com/mozilla-ai/mcporch/internal/health"
	"github.com/mozilla-ai/mcporch/internal/lifecycle"
	"github.com/mozilla-ai/mcporch/internal/orchestrator"
)

// Options contains optional configuration for the daemon.
// NewOptions should be used to create instances of Options.
type Options struct {
	// APIOptions contains functional options for the API server.
	APIOptions []APIOption

	// OrchestratorOptions contains functional options for the orchestration core.
	OrchestratorOptions []orchestrator.Option
}

// Option defines a functional option for configuring Options.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
func NewOptions(opts ...Option) (Options, error) {
	var options Options

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

// WithAPIOptions configures API server options.
// Replaces all previous API configuration including CORS settings.
func WithAPIOptions(apiOpts ...APIOption) Option {
	return func(o *Options) error {
		o.APIOptions = apiOpts
		return nil
	}
}

// WithOrchestratorOptions appends options for the orchestration core.
func WithOrchestratorOptions(orchOpts ...orchestrator.Option) Option {
	return func(o *Options) error {
		o.OrchestratorOptions = append(o.OrchestratorOptions, orchOpts...)
		return nil
	}
}

// WithSettings maps the daemon settings file onto API and orchestrator options.
// Values absent from the file keep each component's defaults.
func WithSettings(s *config.Settings) Option {
	return func(o *Options) error {
		if s == nil {
			return nil
		}

		apiOpts := []APIOption{WithCORSSettings(s.API.CORS)}
		if s.API.Timeout.Shutdown != nil {
			apiOpts = append(apiOpts, WithShutdownTimeout(s.API.Timeout.Shutdown.Value(0)))
		}
		o.APIOptions = append(o.APIOptions, apiOpts...)

		var lifecycleOpts []lifecycle.Option
		if d := s.Lifecycle.StartupTimeout; d != nil {
			lifecycleOpts = append(lifecycleOpts, lifecycle.WithStartupTimeout(d.Value(0)))
		}
		if d := s.Lifecycle.ShutdownTimeout; d != nil {
			lifecycleOpts = append(lifecycleOpts, lifecycle.WithShutdownTimeout(d.Value(0)))
		}
		if d := s.Lifecycle.ReadyPollInterval; d != nil {
			lifecycleOpts = append(lifecycleOpts, lifecycle.WithReadyPollInterval(d.Value(0)))
		}

		var healthOpts []health.Option
		if d := s.Health.Interval; d != nil {
			healthOpts = append(healthOpts, health.WithInterval(d.Value(0)))
		}
		if d := s.Health.Timeout; d != nil {
			healthOpts = append(healthOpts, health.WithTimeout(d.Value(0)))
		}
		if n := s.Health.FailureThreshold; n != nil {
			healthOpts = append(healthOpts, health.WithFailureThreshold(*n))
		}
		if d := s.Health.StaleAfter; d != nil {
			healthOpts = append(healthOpts, health.WithStaleAfter(d.Value(0)))
		}
		if n := s.Health.MaxConcurrentProbes; n != nil {
			healthOpts = append(healthOpts, health.WithMaxConcurrentProbes(*n))
		}

		var catalogOpts []catalog.Option
		if d := s.Discovery.Timeout; d != nil {
			catalogOpts = append(catalogOpts, catalog.WithTimeout(d.Value(0)))
		}

		var dispatchOpts []dispatch.Option
		if d := s.Invocation.Timeout; d != nil {
			dispatchOpts = append(dispatchOpts, dispatch.WithTimeout(d.Value(0)))
		}

		orchOpts := []orchestrator.Option{
			orchestrator.WithLifecycleOptions(lifecycleOpts...),
			orchestrator.WithHealthOptions(healthOpts...),
			orchestrator.WithCatalogOptions(catalogOpts...),
			orchestrator.WithDispatchOptions(dispatchOpts...),
		}
		if s.Watch.Enable != nil {
			orchOpts = append(orchOpts, orchestrator.WithWatch(*s.Watch.Enable))
		}
		if d := s.Watch.Debounce; d != nil {
			orchOpts = append(orchOpts, orchestrator.WithWatchDebounce(d.Value(0)))
		}
		o.OrchestratorOptions = append(o.OrchestratorOptions, orchOpts...)

		return nil
	}
}
