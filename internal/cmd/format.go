package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

var _ pflag.Value = (*OutputFormat)(nil)

// OutputFormat selects how a command renders its results.
// It implements pflag.Value so it can be bound directly with Flags().Var.
type OutputFormat string

// OutputFormats is a list of output formats.
type OutputFormats []OutputFormat

const (
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
	FormatText OutputFormat = "text"
)

// AllowedOutputFormats returns every supported format, sorted by name.
func AllowedOutputFormats() OutputFormats {
	formats := OutputFormats{FormatText, FormatJSON, FormatYAML}
	slices.Sort(formats)
	return formats
}

// String joins the formats with ", ".
func (f *OutputFormats) String() string {
	names := make([]string, 0, len(*f))
	for _, of := range *f {
		names = append(names, of.String())
	}
	return strings.Join(names, ", ")
}

func (f *OutputFormat) String() string {
	return strings.ToLower(string(*f))
}

// Set parses v case-insensitively, rejecting unknown formats.
func (f *OutputFormat) Set(v string) error {
	candidate := OutputFormat(strings.ToLower(strings.TrimSpace(v)))
	allowed := AllowedOutputFormats()

	if !slices.Contains(allowed, candidate) {
		return fmt.Errorf("invalid format '%s', must be one of %s", candidate, allowed.String())
	}

	*f = candidate
	return nil
}

func (f *OutputFormat) Type() string {
	return "format"
}
