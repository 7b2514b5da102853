package config

import (
	"errors"
	"fmt"

	mcperrors "github.com/mozilla-ai/mcporch/internal/errors"
)

var (
	ErrInvalidValue     = errors.New("config value invalid")
	ErrConfigLoadFailed = fmt.Errorf("%w: failed to load configuration", mcperrors.ErrConfiguration)
	ErrUnresolvedEnvVar = fmt.Errorf("%w: unresolved environment variable", mcperrors.ErrConfiguration)
)

// NewErrInvalidValue returns an error for an invalid configuration value.
func NewErrInvalidValue(key string, value string) error {
	return fmt.Errorf("%w: %w: '%s' (value: '%s')", mcperrors.ErrConfiguration, ErrInvalidValue, key, value)
}
