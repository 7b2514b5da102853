package api

import (
	"fmt"
	"time"

	"github.com/mozilla-ai/mcporch/internal/domain"
)

// HealthStatus represents the current status of a particular server when establishing its health.
type HealthStatus string

const (
	HealthStatusOK          HealthStatus = "ok"
	HealthStatusTimeout     HealthStatus = "timeout"
	HealthStatusUnreachable HealthStatus = "unreachable"
	HealthStatusUnknown     HealthStatus = "unknown"
)

// DomainServerHealth is a wrapper that allows receivers to be declared in the API package that deal with domain types.
type DomainServerHealth domain.ServerHealth

// DomainServerSnapshot wraps domain.ServerSnapshot for conversion to Server.
type DomainServerSnapshot domain.ServerSnapshot

// DomainCatalog wraps domain.Catalog for conversion to Catalog.
type DomainCatalog domain.Catalog

// DomainInvocationResult wraps domain.InvocationResult for conversion to InvocationResult.
type DomainInvocationResult domain.InvocationResult

// ServerHealth is used to provide information about health checks that are performed on running servers.
type ServerHealth struct {
	Name                string       `json:"name"`
	Status              HealthStatus `json:"status"`
	Latency             *string      `json:"latency,omitempty"`
	LastChecked         *time.Time   `json:"lastChecked,omitempty"`
	LastSuccessful      *time.Time   `json:"lastSuccessful,omitempty"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastError           string       `json:"lastError,omitempty"`
}

// Server is a server descriptor together with its runtime state.
type Server struct {
	Name           string            `json:"name"`
	DisplayName    string            `json:"displayName,omitempty"`
	Description    string            `json:"description,omitempty"`
	Transport      string            `json:"transport"`
	URL            string            `json:"url"`
	Host           string            `json:"host,omitempty"`
	Port           int               `json:"port,omitempty"`
	BaseURL        string            `json:"baseUrl,omitempty"`
	Enabled        bool              `json:"enabled"`
	AutoStart      bool              `json:"autoStart"`
	Command        string            `json:"command,omitempty"`
	Args           []string          `json:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	Timeout        int               `json:"timeout,omitempty"`
	StartupTimeout int               `json:"startupTimeout,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	Status         string            `json:"status"`
	Epoch          uint64            `json:"epoch"`
	LastError      string            `json:"lastError,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	Health         ServerHealth      `json:"health"`
	Tools          []string          `json:"tools,omitempty"     doc:"Tools from the last successful discovery"`
	Resources      []string          `json:"resources,omitempty" doc:"Resource URIs from the last successful discovery"`
}

// ServerInput is the body accepted when adding or updating a server.
type ServerInput struct {
	Name           string            `json:"name,omitempty"           doc:"Unique server name; taken from the path on update" example:"calculator"`
	DisplayName    string            `json:"displayName,omitempty"`
	Description    string            `json:"description,omitempty"`
	Transport      string            `json:"transport,omitempty"      enum:"http,streamable-http"                              default:"http"`
	Host           string            `json:"host,omitempty"           example:"localhost"`
	Port           int               `json:"port,omitempty"           example:"8004"`
	BaseURL        string            `json:"baseUrl,omitempty"        doc:"Overrides host and port"`
	Enabled        *bool             `json:"enabled,omitempty"        doc:"Defaults to true"`
	AutoStart      bool              `json:"autoStart,omitempty"`
	Command        string            `json:"command,omitempty"        doc:"Command to launch the server; omit for servers that are already running"`
	Args           []string          `json:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	Timeout        int               `json:"timeout,omitempty"        doc:"Invocation timeout in seconds (5-300)"`
	StartupTimeout int               `json:"startupTimeout,omitempty" doc:"Seconds allowed for the server to become ready"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
}

// Tool describes a discovered tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// Resource describes a discovered resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

// Catalog is the cached capability catalog of a server.
type Catalog struct {
	Server       string     `json:"server"`
	DiscoveredAt time.Time  `json:"discoveredAt"`
	Tools        []Tool     `json:"tools"`
	Resources    []Resource `json:"resources"`
}

// InvocationError describes why a tool call was unsuccessful.
type InvocationError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// InvocationResult is the outcome of a tool call.
type InvocationResult struct {
	ID               string           `json:"id"`
	Server           string           `json:"server"`
	Tool             string           `json:"tool"`
	Content          any              `json:"content"`
	Success          bool             `json:"success"`
	Error            *InvocationError `json:"error,omitempty"`
	ArgumentWarnings []string         `json:"argumentWarnings,omitempty"`
	Duration         string           `json:"duration"`
}

// ResourceContent is the content of a resource.
type ResourceContent struct {
	Server   string `json:"server"`
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Content  any    `json:"content"`
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
func (d DomainServerHealth) ToAPIType() (ServerHealth, error) {
	status, err := parseHealthStatus(d.Status)
	if err != nil {
		return ServerHealth{}, err
	}

	var latency *string
	if d.Latency != nil {
		s := d.Latency.String()
		latency = &s
	}

	return ServerHealth{
		Name:                d.Name,
		Status:              status,
		Latency:             latency,
		LastChecked:         d.LastChecked,
		LastSuccessful:      d.LastSuccessful,
		ConsecutiveFailures: d.ConsecutiveFailures,
		LastError:           d.LastError,
	}, nil
}

// ToAPIType converts the snapshot. The catalog may be nil when the server has not been discovered.
func (d DomainServerSnapshot) ToAPIType(catalog *domain.Catalog) (Server, error) {
	health, err := DomainServerHealth(d.State.Health).ToAPIType()
	if err != nil {
		return Server{}, err
	}

	desc := d.Descriptor
	s := Server{
		Name:           desc.Name,
		DisplayName:    desc.DisplayName,
		Description:    desc.Description,
		Transport:      string(desc.Transport),
		URL:            desc.URL(),
		Host:           desc.Host,
		Port:           desc.Port,
		BaseURL:        desc.BaseURL,
		Enabled:        desc.Enabled,
		AutoStart:      desc.AutoStart,
		Command:        desc.Command,
		Args:           desc.Args,
		Env:            desc.Env,
		Timeout:        desc.Timeout,
		StartupTimeout: desc.StartupTimeout,
		Metadata:       desc.Metadata,
		Status:         string(d.State.Status),
		Epoch:          d.State.Epoch,
		LastError:      d.State.LastError,
		UpdatedAt:      d.State.UpdatedAt,
		Health:         health,
	}

	if catalog != nil {
		s.Tools = catalog.ToolNames()
		for _, r := range catalog.SortedResources() {
			s.Resources = append(s.Resources, r.URI)
		}
	}

	return s, nil
}

// ToDomainType converts the input into a server descriptor.
func (in ServerInput) ToDomainType() domain.ServerDescriptor {
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	return domain.ServerDescriptor{
		Name:           in.Name,
		DisplayName:    in.DisplayName,
		Description:    in.Description,
		Transport:      domain.TransportKind(in.Transport),
		Host:           in.Host,
		Port:           in.Port,
		BaseURL:        in.BaseURL,
		Enabled:        enabled,
		AutoStart:      in.AutoStart,
		Command:        in.Command,
		Args:           in.Args,
		Env:            in.Env,
		Timeout:        in.Timeout,
		StartupTimeout: in.StartupTimeout,
		Metadata:       in.Metadata,
	}
}

// ToAPIType converts the catalog with tools and resources in a stable order.
func (d DomainCatalog) ToAPIType() Catalog {
	c := domain.Catalog(d)

	tools := make([]Tool, 0, len(c.Tools))
	for _, t := range c.SortedTools() {
		tools = append(tools, Tool{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}

	resources := make([]Resource, 0, len(c.Resources))
	for _, r := range c.SortedResources() {
		resources = append(resources, Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MIMEType,
		})
	}

	return Catalog{
		Server:       c.Server,
		DiscoveredAt: c.DiscoveredAt,
		Tools:        tools,
		Resources:    resources,
	}
}

// ToAPIType converts the invocation result.
func (d DomainInvocationResult) ToAPIType() InvocationResult {
	res := InvocationResult{
		ID:               d.ID,
		Server:           d.Server,
		Tool:             d.Tool,
		Content:          d.Content,
		Success:          d.Success,
		ArgumentWarnings: d.ArgumentWarnings,
		Duration:         d.Duration.String(),
	}

	if d.Error != nil {
		res.Error = &InvocationError{Kind: string(d.Error.Kind), Message: d.Error.Message}
	}

	return res
}

func parseHealthStatus(status domain.HealthStatus) (HealthStatus, error) {
	switch status {
	case domain.HealthStatusOK:
		return HealthStatusOK, nil
	case domain.HealthStatusTimeout:
		return HealthStatusTimeout, nil
	case domain.HealthStatusUnreachable:
		return HealthStatusUnreachable, nil
	case domain.HealthStatusUnknown:
		return HealthStatusUnknown, nil
	default:
		return "", fmt.Errorf("unknown health status: %s", status)
	}
}
