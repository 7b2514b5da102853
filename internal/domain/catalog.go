package domain

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// ToolSpec describes a tool exposed by a server.
// Parameters is a JSON Schema object describing the tool's arguments.
type ToolSpec struct {
	Name        string         `json:"name"                  yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"  yaml:"parameters,omitempty"`
}

// ResourceSpec describes a readable resource exposed by a server.
type ResourceSpec struct {
	URI         string `json:"uri"                   yaml:"uri"`
	Name        string `json:"name,omitempty"        yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"    yaml:"mimeType,omitempty"`
}

// Manifest is the raw capability listing returned by a server before validation.
type Manifest struct {
	Tools     []ManifestTool
	Resources []ResourceSpec
}

// ManifestTool is a tool exactly as a server advertised it.
// Parameters holds the decoded JSON value and may be nil or any JSON type until validated.
type ManifestTool struct {
	Name        string
	Description string
	Parameters  any
}

// Catalog is the validated, cached capability set of one server.
type Catalog struct {
	Server       string
	DiscoveredAt time.Time
	Tools        map[string]ToolSpec
	Resources    map[string]ResourceSpec
}

// ToolNames returns the catalog's tool names in sorted order.
func (c Catalog) ToolNames() []string {
	names := slices.Collect(maps.Keys(c.Tools))
	slices.Sort(names)
	return names
}

// SortedTools returns the catalog's tools ordered by name.
func (c Catalog) SortedTools() []ToolSpec {
	tools := slices.Collect(maps.Values(c.Tools))
	slices.SortFunc(tools, func(a, b ToolSpec) int {
		return strings.Compare(a.Name, b.Name)
	})
	return tools
}

// SortedResources returns the catalog's resources ordered by URI.
func (c Catalog) SortedResources() []ResourceSpec {
	resources := slices.Collect(maps.Values(c.Resources))
	slices.SortFunc(resources, func(a, b ResourceSpec) int {
		return strings.Compare(a.URI, b.URI)
	})
	return resources
}

// Clone returns a copy whose maps are not shared with the receiver.
func (c Catalog) Clone() Catalog {
	cp := c
	cp.Tools = make(map[string]ToolSpec, len(c.Tools))
	for k, v := range c.Tools {
		v.Parameters = maps.Clone(v.Parameters)
		cp.Tools[k] = v
	}
	cp.Resources = maps.Clone(c.Resources)
	if cp.Resources == nil {
		cp.Resources = map[string]ResourceSpec{}
	}
	return cp
}
