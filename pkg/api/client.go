// Package api is the single chokepoint for every call to the MFALite
// backend. It centralizes base-URL resolution, bearer-token attachment,
// response-type inference, and uniform error classification.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds each HTTP request.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP client for the MFALite REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu             sync.RWMutex
	token          string
	sessionExpired func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithSessionExpiredFunc registers the hook invoked after a 401 response
// has cleared the client's token. The UI layer owns what happens next
// (dropping credentials, prompting for login); the transport layer only
// reports the event.
func WithSessionExpiredFunc(fn func()) Option {
	return func(c *Client) { c.sessionExpired = fn }
}

// NewClient creates an MFALite API client rooted at baseURL (including
// the /v1 base path).
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger.With("component", "api-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string { return c.baseURL }

// SetToken sets the bearer token attached to subsequent requests. It
// takes effect on the very next call.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() { c.SetToken("") }

// Token returns the current bearer token, empty if none is set.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetSessionExpiredFunc replaces the 401 hook after construction.
func (c *Client) SetSessionExpiredFunc(fn func()) {
	c.mu.Lock()
	c.sessionExpired = fn
	c.mu.Unlock()
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	form         bool
	responseType ResponseType
}

// AsForm serializes the payload as application/x-www-form-urlencoded.
// The payload must be a url.Values.
func AsForm() RequestOption {
	return func(o *requestOptions) { o.form = true }
}

// WithResponseType overrides the extension-based response-type inference.
func WithResponseType(t ResponseType) RequestOption {
	return func(o *requestOptions) { o.responseType = t }
}

// Result is a decoded response. JSON bodies are held raw and unpacked
// with Decode; blob and text bodies are available via Bytes and Text.
type Result struct {
	Type       ResponseType
	StatusCode int
	// NoContent marks a successful JSON response with an empty body
	// (204 or zero-length). It is an explicit absence, not an error.
	NoContent bool

	body []byte
}

// Decode unmarshals a JSON result into v.
func (r *Result) Decode(v any) error {
	if r.NoContent {
		return fmt.Errorf("response has no content")
	}
	return json.Unmarshal(r.body, v)
}

// Bytes returns the raw body.
func (r *Result) Bytes() []byte { return r.body }

// Text returns the body as a string.
func (r *Result) Text() string { return string(r.body) }

// Request performs an HTTP call against the API. path is server-relative
// (it may carry a query string). A JSON payload is any marshalable value;
// with AsForm it must be a url.Values. The response is decoded per the
// inferred or overridden response type.
//
// Non-success statuses return a *HTTPError. A 401 additionally clears the
// stored token and fires the session-expired hook, in that order, before
// the error is returned.
func (c *Client) Request(ctx context.Context, method, path string, payload any, opts ...RequestOption) (*Result, error) {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}
	responseType := ro.responseType
	if responseType == "" {
		responseType = InferResponseType(path)
	}

	var bodyReader io.Reader
	if payload != nil {
		if ro.form {
			form, ok := payload.(url.Values)
			if !ok {
				return nil, fmt.Errorf("%s %s: form payload must be url.Values, got %T", method, path, payload)
			}
			bodyReader = strings.NewReader(form.Encode())
		} else {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("%s %s: marshal request: %w", method, path, err)
			}
			bodyReader = bytes.NewReader(data)
		}
	}

	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: create request: %w", method, path, err)
	}

	// Blob-inferred calls skip Content-Type so binary payload requests are
	// not mis-declared as JSON.
	if responseType != TypeBlob {
		if ro.form {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		} else {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("HTTP request", "method", method, "url", fullURL,
		"type", responseType, "form", ro.form, "body", payload != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("unauthorized response, clearing token", "method", method, "path", path)
		c.ClearToken()
		c.mu.RLock()
		expired := c.sessionExpired
		c.mu.RUnlock()
		if expired != nil {
			expired()
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: strings.TrimSpace(string(respBody))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: strings.TrimSpace(string(respBody))}
		c.logger.Error("request failed", "method", method, "path", path, "status", resp.StatusCode)
		return nil, httpErr
	}

	result := &Result{Type: responseType, StatusCode: resp.StatusCode, body: respBody}
	if responseType == TypeJSON && (resp.StatusCode == http.StatusNoContent || len(respBody) == 0) {
		result.NoContent = true
		result.body = nil
	}
	return result, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Result, error) {
	return c.Request(ctx, http.MethodGet, path, nil, opts...)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, payload any) (*Result, error) {
	return c.Request(ctx, http.MethodPost, path, payload)
}

// PostForm performs a POST request with a form-encoded body.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Result, error) {
	return c.Request(ctx, http.MethodPost, path, form, AsForm())
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, payload any) (*Result, error) {
	return c.Request(ctx, http.MethodPut, path, payload)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Result, error) {
	return c.Request(ctx, http.MethodDelete, path, nil)
}

// Head performs a HEAD request.
func (c *Client) Head(ctx context.Context, path string) (*Result, error) {
	return c.Request(ctx, http.MethodHead, path, nil)
}

// GetRaw is a best-effort GET: failures are logged and swallowed, and nil
// is returned instead. Used for optional assets (report images, generated
// summaries) where a missing file must not interrupt the surrounding
// view. It never alters client state beyond what Request itself does.
func (c *Client) GetRaw(ctx context.Context, path string) *Result {
	result, err := c.Get(ctx, path)
	if err != nil {
		c.logger.Warn("best-effort fetch failed", "path", path, "error", err)
		return nil
	}
	return result
}
