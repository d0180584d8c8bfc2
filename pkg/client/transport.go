package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the production Nexon Open API base URL.
const DefaultBaseURL = "https://open.api.nexon.com"

// apiKeyHeader carries the API key on every upstream request.
const apiKeyHeader = "x-nxopen-api-key"

// maxResponseBody bounds how much of an upstream response is read.
const maxResponseBody = 8 << 20

// Response is the raw outcome of one transport call that reached the
// upstream.
type Response struct {
	StatusCode int
	Body       []byte
}

// TransportError is a transport-level failure that produced no HTTP
// response.
type TransportError struct {
	Timeout bool
	Err     error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transport timeout: %v", e.Err)
	}
	return fmt.Sprintf("transport failure: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport performs one upstream call. The core never constructs HTTP
// requests itself; implementations own URL building and authentication.
type Transport interface {
	Perform(ctx context.Context, endpoint string, params map[string]string) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, endpoint string, params map[string]string) (*Response, error)

// Perform implements Transport.
func (f TransportFunc) Perform(ctx context.Context, endpoint string, params map[string]string) (*Response, error) {
	return f(ctx, endpoint, params)
}

// HTTPTransport is the default Transport against the Nexon Open API.
type HTTPTransport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPTransport creates a transport for the given base URL and API key.
// An empty baseURL selects DefaultBaseURL.
func NewHTTPTransport(baseURL, apiKey string) *HTTPTransport {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// endpointPath maps a dotted endpoint identifier to its URL path.
// "character.basic" -> "/maplestory/v1/character/basic"
func endpointPath(endpoint string) string {
	return "/maplestory/v1/" + strings.ReplaceAll(endpoint, ".", "/")
}

// Perform executes one GET against the upstream endpoint.
func (t *HTTPTransport) Perform(ctx context.Context, endpoint string, params map[string]string) (*Response, error) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}

	target := t.baseURL + endpointPath(endpoint)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, t.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Timeout: isNetTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &TransportError{Timeout: isNetTimeout(err), Err: fmt.Errorf("read response body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// isNetTimeout reports whether a raw network error was a timeout.
func isNetTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
