package api

import (
	stdErrors "errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcporch/internal/errors"
)

// MapError converts a domain error into an API error with the matching HTTP status.
// The boolean result is false when err does not wrap any known domain error.
func MapError(logger hclog.Logger, err error) (huma.StatusError, bool) {
	switch {
	case stdErrors.Is(err, errors.ErrBadRequest),
		stdErrors.Is(err, errors.ErrConfiguration):
		return huma.Error400BadRequest(err.Error()), true
	case stdErrors.Is(err, errors.ErrServerDisabled):
		return huma.Error403Forbidden(err.Error()), true
	case stdErrors.Is(err, errors.ErrServerNotFound),
		stdErrors.Is(err, errors.ErrToolNotFound),
		stdErrors.Is(err, errors.ErrResourceNotFound),
		stdErrors.Is(err, errors.ErrCatalogNotDiscovered):
		return huma.Error404NotFound(err.Error()), true
	case stdErrors.Is(err, errors.ErrDuplicateServer),
		stdErrors.Is(err, errors.ErrInvalidTransition),
		stdErrors.Is(err, errors.ErrAlreadyStarting),
		stdErrors.Is(err, errors.ErrAlreadyStopping),
		stdErrors.Is(err, errors.ErrServerNotRunning):
		return huma.Error409Conflict(err.Error()), true
	case stdErrors.Is(err, errors.ErrInvocationTimeout):
		logger.Warn("Remote call timed out", "error", err)
		return huma.Error504GatewayTimeout(err.Error()), true
	case stdErrors.Is(err, errors.ErrTransport):
		logger.Error("Remote server error", "error", err)
		return huma.Error502BadGateway("Tool server error", err), true
	default:
		return nil, false
	}
}

// ErrorHandler wraps error handling for the application when converting to API friendly errors.
// Domain errors are mapped by MapError. Errors raised by huma itself, such as request validation failures,
// keep the status huma chose. Anything else is an internal server error.
func ErrorHandler(logger hclog.Logger) func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
	return func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if len(errs) == 0 {
			return huma.NewError(status, msg)
		}

		err := errs[0]
		if len(errs) > 1 {
			err = stdErrors.Join(errs...)
		}

		if mapped, ok := MapError(logger, err); ok {
			return mapped
		}

		if status >= 400 && status < 500 {
			return huma.NewError(status, msg, errs...)
		}

		logger.Error("Unexpected error handling request", "error", err)
		return huma.Error500InternalServerError("Internal server error", err)
	}
}
