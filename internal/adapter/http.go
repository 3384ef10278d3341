package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/atelierhq/relay/internal/httputil"
	relayerrors "github.com/atelierhq/relay/pkg/errors"
	"github.com/atelierhq/relay/pkg/types"
)

// Info contains provider-specific configuration shared by all HTTP adapters.
// Most upstream inference services accept a JSON prompt and return a JSON
// body with a single text field, so one generic client covers them all.
type Info struct {
	// Name is the provider identifier (e.g. "fast-chat").
	Name string

	// Endpoint is the path appended to the base URL.
	// Default: "/v1/generate"
	Endpoint string

	// APIKeyHeader is the header name for API key authentication.
	// Default: "Authorization" with "Bearer " prefix.
	APIKeyHeader string

	// APIKeyPrefix is the prefix for the API key value.
	APIKeyPrefix string

	// ExtraHeaders are additional headers to include in requests.
	ExtraHeaders map[string]string
}

// generateRequest is the wire format sent to upstream providers.
type generateRequest struct {
	Prompt  string `json:"prompt"`
	Quality string `json:"quality,omitempty"`
}

// generateResponse is the wire format returned by upstream providers.
// Providers disagree on the field name, so both are accepted.
type generateResponse struct {
	Content string `json:"content"`
	Text    string `json:"text"`
}

// HTTPAdapter is a generic JSON-over-HTTP adapter for one upstream provider.
type HTTPAdapter struct {
	info    Info
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPOption configures an HTTPAdapter.
type HTTPOption func(*HTTPAdapter)

// WithAPIKey sets the API key used for authentication.
func WithAPIKey(key string) HTTPOption {
	return func(a *HTTPAdapter) { a.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(a *HTTPAdapter) { a.client = c }
}

// NewHTTP creates a generic HTTP adapter for the given provider info and
// base URL.
func NewHTTP(info Info, baseURL string, opts ...HTTPOption) *HTTPAdapter {
	a := &HTTPAdapter{
		info:    info,
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider identifier.
func (a *HTTPAdapter) Name() string {
	return a.info.Name
}

// Call sends the prompt to the upstream provider and returns the generated
// text. HTTP status codes are mapped to classified route errors; a body that
// cannot be decoded yields a terminal malformed error.
func (a *HTTPAdapter) Call(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	req, err := a.buildRequest(ctx, prompt, opts.Quality)
	if err != nil {
		return "", relayerrors.NewInternalError(a.info.Name, fmt.Sprintf("build request: %v", err))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		// Transport-level failures (refused connection, DNS, reset) are
		// worth another attempt.
		return "", relayerrors.NewTransientError(a.info.Name, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := httputil.ReadLimitedBody(resp.Body, httputil.DefaultMaxBodyBytes)
	if err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			return "", relayerrors.NewMalformedError(a.info.Name, "response body exceeds size limit")
		}
		return "", relayerrors.NewTransientError(a.info.Name, fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", relayerrors.FromStatus(a.info.Name, resp.StatusCode, body)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", relayerrors.NewMalformedError(a.info.Name, fmt.Sprintf("unmarshal response: %v", err))
	}
	content := out.Content
	if content == "" {
		content = out.Text
	}
	if content == "" {
		return "", relayerrors.NewMalformedError(a.info.Name, "response contained no content")
	}
	return content, nil
}

func (a *HTTPAdapter) buildRequest(ctx context.Context, prompt string, quality types.QualityHint) (*http.Request, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:  prompt,
		Quality: string(quality),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := a.info.Endpoint
	if endpoint == "" {
		endpoint = "/v1/generate"
	}

	url := strings.TrimSuffix(a.baseURL, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	keyHeader := a.info.APIKeyHeader
	if keyHeader == "" {
		keyHeader = "Authorization"
	}
	keyPrefix := a.info.APIKeyPrefix
	if keyPrefix == "" && keyHeader == "Authorization" {
		keyPrefix = "Bearer "
	}
	if a.apiKey != "" {
		req.Header.Set(keyHeader, keyPrefix+a.apiKey)
	}

	for k, v := range a.info.ExtraHeaders {
		req.Header.Set(k, v)
	}

	return req, nil
}
