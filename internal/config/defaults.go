package config

import "github.com/mozilla-ai/mcporch/internal/domain"

// DefaultServers returns the descriptors written by 'mcporch init'.
func DefaultServers() []domain.ServerDescriptor {
	return []domain.ServerDescriptor{
		{
			Name:        "calculator",
			DisplayName: "Calculator",
			Description: "Evaluates arithmetic expressions",
			Transport:   domain.TransportHTTP,
			Host:        domain.DefaultHost,
			Port:        8004,
			Enabled:     true,
			Timeout:     domain.DefaultTimeoutSeconds,
		},
		{
			Name:        "memory",
			DisplayName: "Memory",
			Description: "Stores and recalls facts between conversations",
			Transport:   domain.TransportHTTP,
			Host:        domain.DefaultHost,
			Port:        8003,
			Enabled:     true,
			Timeout:     domain.DefaultTimeoutSeconds,
		},
		{
			Name:        "weather",
			DisplayName: "Weather",
			Description: "Current conditions and forecasts",
			Transport:   domain.TransportHTTP,
			Host:        domain.DefaultHost,
			Port:        8002,
			Enabled:     true,
			Timeout:     domain.DefaultTimeoutSeconds,
		},
	}
}
