package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/mozilla-ai/mcporch/internal/domain"
)

// EnvVarPlaceholderRegex matches ${VAR} placeholders in descriptor values.
var EnvVarPlaceholderRegex = regexp.MustCompile(`\$\{(\w+)}`)

// LookupEnvFunc resolves a single environment variable, reporting whether it was set.
type LookupEnvFunc func(key string) (string, bool)

// ExpandPlaceholders replaces every ${VAR} in s using lookup.
// The names of any variables that could not be resolved are returned, and left untouched in the output.
func ExpandPlaceholders(s string, lookup LookupEnvFunc) (string, []string) {
	var missing []string

	out := EnvVarPlaceholderRegex.ReplaceAllStringFunc(s, func(m string) string {
		name := EnvVarPlaceholderRegex.FindStringSubmatch(m)[1]
		if v, ok := lookup(name); ok {
			return v
		}
		if !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return m
	})

	return out, missing
}

// ResolveDescriptor returns a copy of d with placeholders in every string field resolved from the process environment.
// The server name is used as the registry key and is never expanded.
func ResolveDescriptor(d domain.ServerDescriptor) (domain.ServerDescriptor, error) {
	return ResolveDescriptorWith(d, os.LookupEnv)
}

// ResolveDescriptorWith is ResolveDescriptor with a caller supplied lookup.
func ResolveDescriptorWith(d domain.ServerDescriptor, lookup LookupEnvFunc) (domain.ServerDescriptor, error) {
	r := &resolver{lookup: lookup}
	out := d.Clone()

	out.DisplayName = r.expand(out.DisplayName)
	out.Description = r.expand(out.Description)
	out.Transport = domain.TransportKind(r.expand(string(out.Transport)))
	out.Host = r.expand(out.Host)
	out.BaseURL = r.expand(out.BaseURL)
	out.Command = r.expand(out.Command)

	for i, a := range out.Args {
		out.Args[i] = r.expand(a)
	}

	for k, v := range out.Env {
		out.Env[k] = r.expand(v)
	}

	for k, v := range out.Metadata {
		if s, ok := v.(string); ok {
			out.Metadata[k] = r.expand(s)
		}
	}

	if len(r.missing) > 0 {
		slices.Sort(r.missing)
		return domain.ServerDescriptor{}, fmt.Errorf(
			"%w: server '%s': %s",
			ErrUnresolvedEnvVar,
			d.Name,
			strings.Join(r.missing, ", "),
		)
	}

	return out, nil
}

type resolver struct {
	lookup  LookupEnvFunc
	missing []string
}

func (r *resolver) expand(s string) string {
	out, missing := ExpandPlaceholders(s, r.lookup)
	for _, m := range missing {
		if !slices.Contains(r.missing, m) {
			r.missing = append(r.missing, m)
		}
	}
	return out
}
