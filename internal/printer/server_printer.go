// Package printer renders servers as human-readable text for the CLI.
package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/mozilla-ai/mcporch/internal/cmd/output"
	"github.com/mozilla-ai/mcporch/internal/domain"
)

var _ output.Printer[domain.ServerDescriptor] = (*ServerPrinter)(nil)

var (
	enabledColor   = color.New(color.FgGreen)
	autoStartColor = color.New(color.FgCyan)
	disabledColor  = color.New(color.FgRed)
)

// DefaultServerHeader prints the number of configured servers.
func DefaultServerHeader() output.WriteFunc[domain.ServerDescriptor] {
	return func(w io.Writer, count int) {
		plural := "s"
		if count == 1 {
			plural = ""
		}
		_, _ = fmt.Fprintf(w, "%d server%s configured\n\n", count, plural)
	}
}

// ServerPrinter prints server descriptors.
// NewServerPrinter should be used to create instances of ServerPrinter.
type ServerPrinter struct {
	headerFunc output.WriteFunc[domain.ServerDescriptor]
	footerFunc output.WriteFunc[domain.ServerDescriptor]
}

func NewServerPrinter() *ServerPrinter {
	return &ServerPrinter{
		headerFunc: DefaultServerHeader(),
	}
}

func (p *ServerPrinter) Header(w io.Writer, count int) {
	if p.headerFunc != nil {
		p.headerFunc(w, count)
	}
}

func (p *ServerPrinter) SetHeader(fn output.WriteFunc[domain.ServerDescriptor]) {
	p.headerFunc = fn
}

func (p *ServerPrinter) Footer(w io.Writer, count int) {
	if p.footerFunc != nil {
		p.footerFunc(w, count)
	}
}

func (p *ServerPrinter) SetFooter(fn output.WriteFunc[domain.ServerDescriptor]) {
	p.footerFunc = fn
}

// Item outputs a single server.
func (p *ServerPrinter) Item(w io.Writer, d domain.ServerDescriptor) error {
	title := d.Name
	if d.DisplayName != "" && d.DisplayName != d.Name {
		title = fmt.Sprintf("%s (%s)", d.Name, d.DisplayName)
	}

	_, _ = fmt.Fprintf(w, "%s [%s]\n", title, state(d))

	if strings.TrimSpace(d.Description) != "" {
		_, _ = fmt.Fprintf(w, "  Description: %s\n", d.Description)
	}

	_, _ = fmt.Fprintf(w, "  Transport: %s\n", d.Transport)
	_, _ = fmt.Fprintf(w, "  URL: %s\n", d.URL())

	if d.Spawned() {
		_, _ = fmt.Fprintf(w, "  Command: %s\n", strings.Join(append([]string{d.Command}, d.Args...), " "))
	}

	if d.Timeout > 0 {
		_, _ = fmt.Fprintf(w, "  Timeout: %ds\n", d.Timeout)
	}

	_, _ = fmt.Fprintln(w)

	return nil
}

func state(d domain.ServerDescriptor) string {
	switch {
	case !d.Enabled:
		return disabledColor.Sprint("disabled")
	case d.AutoStart:
		return autoStartColor.Sprint("enabled, auto-start")
	default:
		return enabledColor.Sprint("enabled")
	}
}
