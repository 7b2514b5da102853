package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
)

// MCPTransport speaks the Model Context Protocol over streamable HTTP.
// Every call opens its own short-lived session.
// NewMCPTransport should be used to create instances of MCPTransport.
type MCPTransport struct {
	logger     hclog.Logger
	clientInfo mcp.Implementation
}

var _ Transport = (*MCPTransport)(nil)

// NewMCPTransport creates an MCPTransport that identifies itself with the given client version.
func NewMCPTransport(logger hclog.Logger, version string) (*MCPTransport, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &MCPTransport{
		logger:     logger.Named("transport.mcp"),
		clientInfo: mcp.Implementation{Name: "mcporch", Version: version},
	}, nil
}

// Probe opens a session and sends a ping.
func (t *MCPTransport) Probe(ctx context.Context, desc domain.ServerDescriptor) error {
	_, err := Run(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.withSession(ctx, desc, func(c *client.Client, _ *mcp.InitializeResult) error {
			return c.Ping(ctx)
		})
	})
	return err
}

// Discover lists tools, and resources when the server advertises them.
func (t *MCPTransport) Discover(ctx context.Context, desc domain.ServerDescriptor) (domain.Manifest, error) {
	return Run(ctx, func(ctx context.Context) (domain.Manifest, error) {
		var m domain.Manifest

		err := t.withSession(ctx, desc, func(c *client.Client, init *mcp.InitializeResult) error {
			tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
			if err != nil {
				return fmt.Errorf("list tools: %w", err)
			}

			m.Tools = make([]domain.ManifestTool, 0, len(tools.Tools))
			for _, tool := range tools.Tools {
				params, err := inputSchema(tool)
				if err != nil {
					return fmt.Errorf("%w: tool '%s': %w", errors.ErrTransport, tool.Name, err)
				}
				m.Tools = append(m.Tools, domain.ManifestTool{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  params,
				})
			}

			if init.Capabilities.Resources == nil {
				return nil
			}

			resources, err := c.ListResources(ctx, mcp.ListResourcesRequest{})
			if err != nil {
				return fmt.Errorf("list resources: %w", err)
			}
			m.Resources = make([]domain.ResourceSpec, 0, len(resources.Resources))
			for _, r := range resources.Resources {
				m.Resources = append(m.Resources, domain.ResourceSpec{
					URI:         r.URI,
					Name:        r.Name,
					Description: r.Description,
					MIMEType:    r.MIMEType,
				})
			}

			return nil
		})

		return m, err
	})
}

// Invoke calls tools/call. A result flagged isError is a remote failure.
func (t *MCPTransport) Invoke(
	ctx context.Context,
	desc domain.ServerDescriptor,
	tool string,
	args map[string]any,
) (Result, error) {
	return Run(ctx, func(ctx context.Context) (Result, error) {
		var res Result

		err := t.withSession(ctx, desc, func(c *client.Client, _ *mcp.InitializeResult) error {
			out, err := c.CallTool(ctx, mcp.CallToolRequest{
				Params: mcp.CallToolParams{Name: tool, Arguments: args},
			})
			if err != nil {
				return err
			}
			if out == nil {
				return fmt.Errorf("%w: empty tool result", errors.ErrTransport)
			}

			res.Content = toolContent(out)
			res.Success = !out.IsError
			if out.IsError {
				res.Error = &domain.InvocationError{
					Kind:    domain.InvocationErrorRemote,
					Message: fmt.Sprint(res.Content),
				}
			}

			return nil
		})

		return res, err
	})
}

// FetchResource calls resources/read.
func (t *MCPTransport) FetchResource(
	ctx context.Context,
	desc domain.ServerDescriptor,
	uri string,
) (domain.ResourceContent, error) {
	return Run(ctx, func(ctx context.Context) (domain.ResourceContent, error) {
		out := domain.ResourceContent{URI: uri}

		err := t.withSession(ctx, desc, func(c *client.Client, _ *mcp.InitializeResult) error {
			res, err := c.ReadResource(ctx, mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: uri}})
			if err != nil {
				return err
			}
			if res == nil || len(res.Contents) == 0 {
				return fmt.Errorf("%w: %s", errors.ErrResourceNotFound, uri)
			}

			parts := make([]any, 0, len(res.Contents))
			for _, rc := range res.Contents {
				switch v := rc.(type) {
				case mcp.TextResourceContents:
					out.MIMEType = v.MIMEType
					parts = append(parts, v.Text)
				case *mcp.TextResourceContents:
					out.MIMEType = v.MIMEType
					parts = append(parts, v.Text)
				case mcp.BlobResourceContents:
					out.MIMEType = v.MIMEType
					parts = append(parts, v.Blob)
				case *mcp.BlobResourceContents:
					out.MIMEType = v.MIMEType
					parts = append(parts, v.Blob)
				}
			}

			if len(parts) == 1 {
				out.Content = parts[0]
			} else {
				out.Content = parts
			}

			return nil
		})

		return out, err
	})
}

// withSession opens a client, initializes it, runs fn and always closes the client.
func (t *MCPTransport) withSession(
	ctx context.Context,
	desc domain.ServerDescriptor,
	fn func(c *client.Client, init *mcp.InitializeResult) error,
) error {
	c, err := client.NewStreamableHttpClient(desc.URL())
	if err != nil {
		return fmt.Errorf("%w: failed to create MCP client: %w", errors.ErrTransport, err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			t.logger.Debug("Error closing MCP session", "server", desc.Name, "error", err)
		}
	}()

	init, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      t.clientInfo,
			Capabilities:    mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	return fn(c, init)
}

// inputSchema returns the tool's input schema as a generic JSON value.
func inputSchema(tool mcp.Tool) (any, error) {
	data, err := json.Marshal(tool)
	if err != nil {
		return nil, err
	}

	var generic struct {
		InputSchema any `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}

	return generic.InputSchema, nil
}

// toolContent flattens a tool result into a value suitable for JSON callers.
// Structured content wins; otherwise text parts are joined and anything else is kept as raw JSON.
func toolContent(res *mcp.CallToolResult) any {
	if res.StructuredContent != nil {
		return res.StructuredContent
	}

	texts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		tc, ok := mcp.AsTextContent(c)
		if !ok {
			texts = nil
			break
		}
		texts = append(texts, tc.Text)
	}
	if texts != nil {
		return strings.Join(texts, "\n")
	}

	data, err := json.Marshal(res.Content)
	if err != nil {
		return nil
	}
	var generic any
	_ = json.Unmarshal(data, &generic)
	return generic
}
