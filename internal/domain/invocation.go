package domain

import "time"

const (
	// InvocationErrorRemote is a failure reported by the tool itself.
	InvocationErrorRemote InvocationErrorKind = "remote"

	// InvocationErrorRejected is a client error (4xx) reported by the server for the request.
	InvocationErrorRejected InvocationErrorKind = "rejected"
)

// InvocationErrorKind classifies a failure the remote server reported as part of a completed call.
type InvocationErrorKind string

// InvocationRequest is a single tool call.
// A zero Timeout means the server's configured timeout (or the dispatcher default) applies.
type InvocationRequest struct {
	Server    string
	Tool      string
	Arguments map[string]any
	Timeout   time.Duration
}

// InvocationError is the business failure carried inside a completed InvocationResult.
type InvocationError struct {
	Kind    InvocationErrorKind `json:"kind"    yaml:"kind"`
	Message string              `json:"message" yaml:"message"`
}

// InvocationResult is the outcome of a call that reached the server and got an answer.
// Transport failures and timeouts are returned as errors instead.
type InvocationResult struct {
	ID               string           `json:"id"                         yaml:"id"`
	Server           string           `json:"server"                     yaml:"server"`
	Tool             string           `json:"tool"                       yaml:"tool"`
	Content          any              `json:"content"                    yaml:"content"`
	Success          bool             `json:"success"                    yaml:"success"`
	Error            *InvocationError `json:"error,omitempty"            yaml:"error,omitempty"`
	ArgumentWarnings []string         `json:"argumentWarnings,omitempty" yaml:"argumentWarnings,omitempty"`
	Duration         time.Duration    `json:"-"                          yaml:"-"`
}

// ResourceContent is the payload of a fetched resource.
type ResourceContent struct {
	Server   string `json:"server"             yaml:"server"`
	URI      string `json:"uri"                yaml:"uri"`
	MIMEType string `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Content  any    `json:"content"            yaml:"content"`
}
