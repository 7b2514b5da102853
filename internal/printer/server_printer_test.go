package printer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcporch/internal/domain"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestServerPrinter_Item(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		server   domain.ServerDescriptor
		expected string
	}{
		{
			name: "enabled http server",
			server: domain.ServerDescriptor{
				Name:        "calculator",
				DisplayName: "Calculator",
				Description: "Evaluates arithmetic expressions",
				Transport:   domain.TransportHTTP,
				Host:        "localhost",
				Port:        8004,
				Enabled:     true,
				Timeout:     30,
			},
			expected: "calculator (Calculator) [enabled]\n" +
				"  Description: Evaluates arithmetic expressions\n" +
				"  Transport: http\n" +
				"  URL: http://localhost:8004\n" +
				"  Timeout: 30s\n\n",
		},
		{
			name: "auto-start spawned server",
			server: domain.ServerDescriptor{
				Name:      "memory",
				Transport: domain.TransportStreamableHTTP,
				BaseURL:   "http://127.0.0.1:9000/mcp/",
				Enabled:   true,
				AutoStart: true,
				Command:   "memory-server",
				Args:      []string{"--port", "9000"},
			},
			expected: "memory [enabled, auto-start]\n" +
				"  Transport: streamable-http\n" +
				"  URL: http://127.0.0.1:9000/mcp\n" +
				"  Command: memory-server --port 9000\n\n",
		},
		{
			name: "disabled server",
			server: domain.ServerDescriptor{
				Name:      "weather",
				Transport: domain.TransportHTTP,
				Host:      "localhost",
				Port:      8002,
				AutoStart: true,
			},
			expected: "weather [disabled]\n" +
				"  Transport: http\n" +
				"  URL: http://localhost:8002\n\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			p := NewServerPrinter()
			require.NoError(t, p.Item(&buf, tc.server))
			require.Equal(t, tc.expected, buf.String())
		})
	}
}

func TestServerPrinter_Header(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count    int
		expected string
	}{
		{count: 1, expected: "1 server configured\n\n"},
		{count: 3, expected: "3 servers configured\n\n"},
	}

	for _, tc := range tests {
		var buf bytes.Buffer
		NewServerPrinter().Header(&buf, tc.count)
		require.Equal(t, tc.expected, buf.String())
	}
}

func TestServerPrinter_SetHeaderAndFooter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewServerPrinter()
	p.SetHeader(nil)
	p.SetFooter(func(w io.Writer, count int) {
		_, _ = fmt.Fprintf(w, "total=%d\n", count)
	})

	p.Header(&buf, 2)
	p.Footer(&buf, 2)

	require.Equal(t, "total=2\n", buf.String())
}
