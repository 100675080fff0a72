package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/mfalite/internal/logging"
)

// echoServer records the last request it saw and replies with canned
// status and body.
type echoServer struct {
	status int
	body   string

	lastMethod  string
	lastPath    string
	lastAuth    string
	lastCT      string
	lastReqBody string
}

func (e *echoServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.lastMethod = r.Method
		e.lastPath = r.URL.RequestURI()
		e.lastAuth = r.Header.Get("Authorization")
		e.lastCT = r.Header.Get("Content-Type")
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		e.lastReqBody = string(buf[:n])
		w.WriteHeader(e.status)
		w.Write([]byte(e.body))
	})
}

func newTestClient(t *testing.T, e *echoServer, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(e.handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/v1", logging.Discard(), opts...)
}

func TestBearerTokenAttachment(t *testing.T) {
	e := &echoServer{status: 200, body: `{}`}
	c := newTestClient(t, e)

	_, err := c.Get(context.Background(), "/users")
	require.NoError(t, err)
	assert.Empty(t, e.lastAuth, "no token set, no Authorization header")

	c.SetToken("tok-1")
	_, err = c.Get(context.Background(), "/users")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", e.lastAuth)

	// A replaced token takes effect on the very next call.
	c.SetToken("tok-2")
	_, err = c.Get(context.Background(), "/users")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-2", e.lastAuth)

	c.ClearToken()
	_, err = c.Get(context.Background(), "/users")
	require.NoError(t, err)
	assert.Empty(t, e.lastAuth)
}

func TestContentTypeRules(t *testing.T) {
	e := &echoServer{status: 200, body: `{}`}
	c := newTestClient(t, e)

	_, err := c.Post(context.Background(), "/run", map[string]string{"id": "r1"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", e.lastCT)
	assert.JSONEq(t, `{"id":"r1"}`, e.lastReqBody)

	_, err = c.PostForm(context.Background(), "/login", url.Values{"email": {"a@b.co"}, "password": {"pw"}})
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", e.lastCT)
	assert.Contains(t, e.lastReqBody, "email=a%40b.co")

	// Blob-inferred paths carry no Content-Type at all.
	e.body = "binary"
	_, err = c.Get(context.Background(), "/report/r1-output.zip")
	require.NoError(t, err)
	assert.Empty(t, e.lastCT)
}

func TestUnauthorizedClearsTokenThenNotifies(t *testing.T) {
	e := &echoServer{status: 401, body: "missing bearer token"}

	var tokenAtNotify string
	notified := false
	var c *Client
	c = newTestClient(t, e, WithSessionExpiredFunc(func() {
		// The token must already be gone when the hook runs.
		tokenAtNotify = c.Token()
		notified = true
	}))
	c.SetToken("stale")

	_, err := c.Get(context.Background(), "/reports")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.True(t, notified)
	assert.Empty(t, tokenAtNotify)
	assert.Empty(t, c.Token())
}

func TestHTTPErrorCarriesContext(t *testing.T) {
	e := &echoServer{status: 500, body: "boom"}
	c := newTestClient(t, e)

	_, err := c.Delete(context.Background(), "/input/f1")
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)
	assert.Equal(t, http.MethodDelete, httpErr.Method)
	assert.Equal(t, "/input/f1", httpErr.Path)
	assert.Contains(t, err.Error(), "DELETE /input/f1: HTTP 500")
	assert.False(t, IsUnauthorized(err))
}

func TestNoContentIsNotAnError(t *testing.T) {
	e := &echoServer{status: 204}
	c := newTestClient(t, e)

	result, err := c.Post(context.Background(), "/forgot-password", map[string]string{"email": "a@b.co"})
	require.NoError(t, err)
	assert.True(t, result.NoContent)
	assert.Error(t, result.Decode(&struct{}{}))
}

func TestResponseDecoding(t *testing.T) {
	e := &echoServer{status: 200, body: `{"version":"1.4.2"}`}
	c := newTestClient(t, e)

	result, err := c.Get(context.Background(), "/version")
	require.NoError(t, err)
	var v struct {
		Version string `json:"version"`
	}
	require.NoError(t, result.Decode(&v))
	assert.Equal(t, "1.4.2", v.Version)

	e.body = "# Summary\n"
	result, err = c.Get(context.Background(), "/report/r1-BioInterpreter.md")
	require.NoError(t, err)
	assert.Equal(t, TypeText, result.Type)
	assert.Equal(t, "# Summary\n", result.Text())

	e.body = "\x89PNG"
	result, err = c.Get(context.Background(), "/report-path/u1/work/r1/flux.png")
	require.NoError(t, err)
	assert.Equal(t, TypeBlob, result.Type)
	assert.Equal(t, []byte("\x89PNG"), result.Bytes())
}

func TestResponseTypeOverride(t *testing.T) {
	e := &echoServer{status: 200, body: `raw,csv,data`}
	c := newTestClient(t, e)

	result, err := c.Get(context.Background(), "/reports", WithResponseType(TypeText))
	require.NoError(t, err)
	assert.Equal(t, TypeText, result.Type)
	assert.Equal(t, "raw,csv,data", result.Text())
}

func TestGetRawSwallowsFailures(t *testing.T) {
	e := &echoServer{status: 404, body: "not found"}
	c := newTestClient(t, e)
	c.SetToken("tok")

	result := c.GetRaw(context.Background(), "/report-path/u1/work/r1/missing.png")
	assert.Nil(t, result)
	// Best-effort failures must not disturb other state.
	assert.Equal(t, "tok", c.Token())

	e.status, e.body = 200, "content"
	result = c.GetRaw(context.Background(), "/report-path/u1/work/r1/summary.md")
	require.NotNil(t, result)
	assert.Equal(t, "content", result.Text())
}

func TestHeadRequest(t *testing.T) {
	e := &echoServer{status: 200}
	c := newTestClient(t, e)

	result, err := c.Head(context.Background(), "/report/r1-output.zip")
	require.NoError(t, err)
	assert.Equal(t, http.MethodHead, e.lastMethod)
	assert.Equal(t, 200, result.StatusCode)
}
