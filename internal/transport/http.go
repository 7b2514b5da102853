package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
)

const (
	pathHealth    = "/health"
	pathTools     = "/tools"
	pathResources = "/resources"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 10 << 20

	// maxErrorSnippet bounds how much of an unexpected body is quoted in errors.
	maxErrorSnippet = 256
)

// HTTPTransport speaks the plain JSON over HTTP tool server protocol.
// NewHTTPTransport should be used to create instances of HTTPTransport.
type HTTPTransport struct {
	logger hclog.Logger

	// client is used for calls that must not be retried (probe, invoke, fetch).
	client *http.Client

	// discoveryClient retries read-only manifest requests.
	discoveryClient *retryablehttp.Client
}

// HTTPOptions configures an HTTPTransport.
type HTTPOptions struct {
	// DiscoveryRetries is the number of additional attempts for manifest requests.
	DiscoveryRetries int

	// RetryWaitMin and RetryWaitMax bound the backoff between discovery attempts.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// HTTPClient is the underlying client used for every request.
	HTTPClient *http.Client
}

// HTTPOption defines a functional option for configuring HTTPOptions.
type HTTPOption func(*HTTPOptions) error

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates an HTTPTransport.
func NewHTTPTransport(logger hclog.Logger, opt ...HTTPOption) (*HTTPTransport, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	opts := HTTPOptions{
		DiscoveryRetries: DefaultDiscoveryRetries(),
		RetryWaitMin:     100 * time.Millisecond,
		RetryWaitMax:     2 * time.Second,
		HTTPClient:       &http.Client{},
	}
	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return nil, err
		}
	}

	l := logger.Named("transport.http")

	rc := retryablehttp.NewClient()
	rc.HTTPClient = opts.HTTPClient
	rc.RetryMax = opts.DiscoveryRetries
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	rc.Logger = l

	return &HTTPTransport{
		logger:          l,
		client:          opts.HTTPClient,
		discoveryClient: rc,
	}, nil
}

// WithDiscoveryRetries configures how many times manifest requests are retried.
func WithDiscoveryRetries(n int) HTTPOption {
	return func(o *HTTPOptions) error {
		if n < 0 {
			return fmt.Errorf("discovery retries cannot be negative, got %d", n)
		}
		o.DiscoveryRetries = n
		return nil
	}
}

// WithRetryWait configures the backoff bounds between discovery attempts.
func WithRetryWait(minWait, maxWait time.Duration) HTTPOption {
	return func(o *HTTPOptions) error {
		if minWait <= 0 || maxWait < minWait {
			return fmt.Errorf("invalid retry wait bounds: min %v, max %v", minWait, maxWait)
		}
		o.RetryWaitMin = minWait
		o.RetryWaitMax = maxWait
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(o *HTTPOptions) error {
		if c == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		o.HTTPClient = c
		return nil
	}
}

// DefaultDiscoveryRetries is the default number of retries for manifest requests.
func DefaultDiscoveryRetries() int {
	return 2
}

// Probe issues GET /health and treats any 2xx as alive.
func (t *HTTPTransport) Probe(ctx context.Context, desc domain.ServerDescriptor) error {
	_, err := Run(ctx, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL()+pathHealth, nil)
		if err != nil {
			return struct{}{}, err
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer drain(resp)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return struct{}{}, fmt.Errorf("%w: health check returned %s", errors.ErrTransport, resp.Status)
		}

		return struct{}{}, nil
	})

	return err
}

// Discover fetches /tools and /resources.
// A server without a /resources endpoint (404) is treated as exposing no resources.
func (t *HTTPTransport) Discover(ctx context.Context, desc domain.ServerDescriptor) (domain.Manifest, error) {
	return Run(ctx, func(ctx context.Context) (domain.Manifest, error) {
		var tools httpToolsResponse
		found, err := t.getJSON(ctx, desc.URL()+pathTools, &tools)
		if err != nil {
			return domain.Manifest{}, err
		}
		if !found {
			return domain.Manifest{}, fmt.Errorf("%w: %s returned 404 Not Found", errors.ErrTransport, pathTools)
		}

		var resources httpResourcesResponse
		if _, err := t.getJSON(ctx, desc.URL()+pathResources, &resources); err != nil {
			return domain.Manifest{}, err
		}

		m := domain.Manifest{
			Tools:     make([]domain.ManifestTool, 0, len(tools.Tools)),
			Resources: resources.Resources,
		}
		for _, tool := range tools.Tools {
			params := tool.Parameters
			if params == nil {
				params = tool.InputSchema
			}
			m.Tools = append(m.Tools, domain.ManifestTool{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			})
		}

		t.logger.Debug("Discovered capabilities", "server", desc.Name, "tools", len(m.Tools), "resources", len(m.Resources))

		return m, nil
	})
}

// Invoke issues POST /tools/{tool} with {"arguments": args}.
func (t *HTTPTransport) Invoke(
	ctx context.Context,
	desc domain.ServerDescriptor,
	tool string,
	args map[string]any,
) (Result, error) {
	return Run(ctx, func(ctx context.Context) (Result, error) {
		if args == nil {
			args = map[string]any{}
		}
		body, err := json.Marshal(httpInvokeRequest{Arguments: args})
		if err != nil {
			return Result{}, fmt.Errorf("%w: failed to encode arguments: %w", errors.ErrBadRequest, err)
		}

		endpoint := desc.URL() + pathTools + "/" + url.PathEscape(tool)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return Result{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return Result{}, err
		}
		defer drain(resp)

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return Result{}, err
		}

		switch {
		case resp.StatusCode >= 500:
			return Result{}, fmt.Errorf("%w: %s: %s", errors.ErrTransport, resp.Status, snippet(data))
		case resp.StatusCode >= 400:
			return Result{
				Success: false,
				Error: &domain.InvocationError{
					Kind:    domain.InvocationErrorRejected,
					Message: errorMessage(resp.Status, data),
				},
			}, nil
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return Result{}, fmt.Errorf("%w: unexpected status %s", errors.ErrTransport, resp.Status)
		}

		var out httpInvokeResponse
		if err := json.Unmarshal(data, &out); err != nil {
			return Result{}, fmt.Errorf("%w: malformed response: %w", errors.ErrTransport, err)
		}

		success := out.Success == nil || *out.Success
		res := Result{Content: out.Content, Success: success}
		if !success {
			msg := out.Error
			if msg == "" {
				msg = fmt.Sprint(out.Content)
			}
			res.Error = &domain.InvocationError{Kind: domain.InvocationErrorRemote, Message: msg}
		}

		return res, nil
	})
}

// FetchResource issues GET /resources?uri=...
func (t *HTTPTransport) FetchResource(
	ctx context.Context,
	desc domain.ServerDescriptor,
	uri string,
) (domain.ResourceContent, error) {
	return Run(ctx, func(ctx context.Context) (domain.ResourceContent, error) {
		endpoint := desc.URL() + pathResources + "?" + url.Values{"uri": []string{uri}}.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return domain.ResourceContent{}, err
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return domain.ResourceContent{}, err
		}
		defer drain(resp)

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return domain.ResourceContent{}, err
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return domain.ResourceContent{}, fmt.Errorf("%w: %s", errors.ErrResourceNotFound, uri)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return domain.ResourceContent{}, fmt.Errorf(
				"%w: %s: %s",
				errors.ErrTransport,
				resp.Status,
				errorMessage(resp.Status, data),
			)
		}

		mimeType := resp.Header.Get("Content-Type")
		var content any = string(data)
		if strings.HasPrefix(mimeType, "application/json") {
			if err := json.Unmarshal(data, &content); err != nil {
				return domain.ResourceContent{}, fmt.Errorf("%w: malformed resource body: %w", errors.ErrTransport, err)
			}
		}

		return domain.ResourceContent{URI: uri, MIMEType: mimeType, Content: content}, nil
	})
}

// getJSON decodes a GET response into out, reporting false when the endpoint returned 404.
func (t *HTTPTransport) getJSON(ctx context.Context, endpoint string, out any) (bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.discoveryClient.Do(req)
	if err != nil {
		return false, err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("%w: GET %s returned %s", errors.ErrTransport, endpoint, resp.Status)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return false, fmt.Errorf("%w: malformed response from %s: %w", errors.ErrTransport, endpoint, err)
	}

	return true, nil
}

type httpToolsResponse struct {
	Tools []httpTool `json:"tools"`
}

type httpTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
	InputSchema any    `json:"inputSchema"`
}

type httpResourcesResponse struct {
	Resources []domain.ResourceSpec `json:"resources"`
}

type httpInvokeRequest struct {
	Arguments map[string]any `json:"arguments"`
}

type httpInvokeResponse struct {
	Content any    `json:"content"`
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// errorMessage extracts a human readable message from an error body, falling back to the status.
func errorMessage(status string, data []byte) string {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			if v, ok := body[key]; ok && v != nil {
				if s, ok := v.(string); ok {
					return s
				}
				b, _ := json.Marshal(v)
				return string(b)
			}
		}
	}

	if s := snippet(data); s != "" {
		return s
	}

	return status
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorSnippet {
		return s[:maxErrorSnippet] + "..."
	}
	return s
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
}
