// Package errors defines domain-level errors used throughout the application.
// These errors represent orchestration failures and are mapped to appropriate HTTP status codes at the API boundary.
//
// NOTE: Important for developers
// When adding a new error here, you MUST consider how it should be handled when returned from API endpoints.
//
// Unmapped errors will default to HTTP 500 Internal Server Error.
//
// Don't forget to:
// 1. Add your error to MapError (internal/api/errors.go)
// 2. Add a test case to TestMapError (internal/api/errors_test.go)
// 3. Consider if existing handler tests need updates
package errors

import (
	"errors"
)

var (
	// ErrBadRequest indicates that the client provided invalid input or made a malformed request.
	// Recommended to map to HTTP 400 Bad Request.
	ErrBadRequest = errors.New("bad request")

	// ErrConfiguration indicates that a server descriptor or settings file is invalid.
	// This covers unresolved ${VAR} placeholders, out of range ports or timeouts, unknown transports,
	// and files that cannot be parsed.
	// Recommended to map to HTTP 400 Bad Request.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrDuplicateServer indicates that a server with the same name is already registered.
	// Recommended to map to HTTP 409 Conflict.
	ErrDuplicateServer = errors.New("server already registered")

	// ErrServerNotFound indicates that the requested tool server does not exist in the registry.
	// Recommended to map to HTTP 404 Not Found.
	ErrServerNotFound = errors.New("server not found")

	// ErrInvalidTransition indicates that the requested change is not allowed from the server's current status,
	// e.g. updating the descriptor of a running server.
	// Recommended to map to HTTP 409 Conflict.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyStarting indicates that another start operation is in flight for the server.
	// Recommended to map to HTTP 409 Conflict.
	ErrAlreadyStarting = errors.New("server is already starting")

	// ErrAlreadyStopping indicates that another stop operation is in flight for the server.
	// Recommended to map to HTTP 409 Conflict.
	ErrAlreadyStopping = errors.New("server is already stopping")

	// ErrServerNotRunning indicates that the operation requires a running server.
	// Invocations never start a server implicitly.
	// Recommended to map to HTTP 409 Conflict.
	ErrServerNotRunning = errors.New("server is not running")

	// ErrServerDisabled indicates that the server is disabled in its descriptor and cannot be started.
	// Recommended to map to HTTP 403 Forbidden.
	ErrServerDisabled = errors.New("server is disabled")

	// ErrToolNotFound indicates that the tool is absent from the server's cached catalog.
	// Recommended to map to HTTP 404 Not Found.
	ErrToolNotFound = errors.New("tool not found")

	// ErrResourceNotFound indicates that the resource URI is absent from the server's cached catalog,
	// or the server reported it as missing.
	// Recommended to map to HTTP 404 Not Found.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrCatalogNotDiscovered indicates that no catalog has been discovered for the server yet,
	// or that it was invalidated when the server stopped.
	// Recommended to map to HTTP 404 Not Found.
	ErrCatalogNotDiscovered = errors.New("catalog not discovered")

	// ErrInvocationTimeout indicates that a remote call did not complete before its deadline.
	// Recommended to map to HTTP 504 Gateway Timeout.
	ErrInvocationTimeout = errors.New("invocation timed out")

	// ErrTransport indicates that the remote server could not be reached or answered with something unusable:
	// connection refused, 5xx status, or a malformed response body.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrTransport = errors.New("transport failure")
)
