package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/paramtrail/internal/codec"
	"github.com/conneroisu/paramtrail/internal/config"
	"github.com/conneroisu/paramtrail/internal/errors"
	"github.com/conneroisu/paramtrail/internal/integration"
	"github.com/conneroisu/paramtrail/internal/testutils"
)

func testConfig() *config.Config {
	return testutils.TestConfig()
}

// testClient keeps cookies between requests and never follows redirects.
func testClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, c *http.Client, rawURL string) *http.Response {
	t.Helper()
	resp, err := c.Get(rawURL)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestNewRejectsInvalidRegistry(t *testing.T) {
	cfg := testConfig()
	cfg.Parameters = append(cfg.Parameters, config.ParameterConfig{Name: "other", Short: "q"})

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestCaptureAndReadBack(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := testClient(t)

	resp := get(t, c, ts.URL+"/?q=newsletter&utm_source=ignored")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "pt_session=")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp = get(t, c, ts.URL+"/api/params")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body integration.ParamsResponse
	decode(t, resp, &body)
	assert.Equal(t, map[string]string{"quelle": "newsletter", "campaign": ""}, body.Parameters)
}

func TestDeleteEndsSession(t *testing.T) {
	s, ts := newTestServer(t, testConfig())
	c := testClient(t)

	get(t, c, ts.URL+"/?q=newsletter")
	require.Equal(t, 1, s.Sessions().Len())

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/params", nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, s.Sessions().Len())

	var body integration.ParamsResponse
	decode(t, get(t, c, ts.URL+"/api/params"), &body)
	assert.NotEqual(t, "newsletter", body.Parameters["quelle"])
	assert.Equal(t, 1, s.Sessions().Len())
}

func TestDeleteWithoutSession(t *testing.T) {
	s, ts := newTestServer(t, testConfig())

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/params", nil)
	require.NoError(t, err)
	resp, err := testClient(t).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, s.Sessions().Len())
}

func TestCaptureAliasWins(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := testClient(t)

	get(t, c, ts.URL+"/?quelle=long&q=short")

	var body integration.ParamsResponse
	decode(t, get(t, c, ts.URL+"/api/params"), &body)
	assert.Equal(t, "short", body.Parameters["quelle"])
}

func TestCaptureSanitizes(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := testClient(t)

	get(t, c, ts.URL+"/?campaign="+url.QueryEscape("<script>alert(1)</script>spring  sale"))

	var body integration.ParamsResponse
	decode(t, get(t, c, ts.URL+"/api/params"), &body)
	assert.Equal(t, "spring sale", body.Parameters["campaign"])
}

func TestSessionsAreIsolated(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	a, b := testClient(t), testClient(t)

	get(t, a, ts.URL+"/?campaign=a")
	get(t, b, ts.URL+"/?campaign=b")

	var body integration.ParamsResponse
	decode(t, get(t, a, ts.URL+"/api/params"), &body)
	assert.Equal(t, "a", body.Parameters["campaign"])
	decode(t, get(t, b, ts.URL+"/api/params"), &body)
	assert.Equal(t, "b", body.Parameters["campaign"])
}

func TestCompose(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := testClient(t)
	get(t, c, ts.URL+"/?q=news&campaign=spring")

	tests := []struct {
		name     string
		query    url.Values
		status   int
		expected string
	}{
		{
			name:     "all parameters",
			query:    url.Values{"url": {"https://x.test/p?a=1#top"}},
			status:   http.StatusOK,
			expected: "https://x.test/p?a=1&q=news&campaign=spring#top",
		},
		{
			name:     "selected parameter",
			query:    url.Values{"url": {"/next"}, "p": {"campaign"}},
			status:   http.StatusOK,
			expected: "/next?campaign=spring",
		},
		{
			name:   "javascript url",
			query:  url.Values{"url": {"javascript:alert(1)"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing url",
			query:  url.Values{},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, c, ts.URL+"/api/compose?"+tt.query.Encode())
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				var body ErrorResponse
				decode(t, resp, &body)
				assert.Equal(t, errors.ErrCodeInvalidURL, body.Code)
				return
			}
			var body ComposeResponse
			decode(t, resp, &body)
			assert.Equal(t, tt.expected, body.URL)
		})
	}
}

func TestGoRedirect(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := testClient(t)

	resp := get(t, c, ts.URL+"/go/quelle")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://shop.example.com/landing?q=direct", resp.Header.Get("Location"))

	get(t, c, ts.URL+"/?campaign="+url.QueryEscape("spring & summer"))
	resp = get(t, c, ts.URL+"/go/quelle")
	assert.Equal(t, "https://shop.example.com/landing?q=direct&campaign=spring+%26+summer", resp.Header.Get("Location"))

	assert.Equal(t, http.StatusNotFound, get(t, c, ts.URL+"/go/campaign").StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, c, ts.URL+"/go/unknown").StatusCode)
}

func TestFormRedirect(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := testClient(t)
	get(t, c, ts.URL+"/?q=ad")

	resp := get(t, c, ts.URL+"/forms/signup")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://docs.google.com/forms/d/abc/viewform?entry.111=ad", resp.Header.Get("Location"))

	resp = get(t, c, ts.URL+"/forms/missing")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, errors.ErrCodeUnknownForm, body.Code)
}

func TestParamsPost(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := testClient(t)

	resp, err := c.PostForm(ts.URL+"/api/params", url.Values{
		"q":        {"<b>form</b>"},
		"campaign": {"  "},
		"other":    {"x"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body AssignResponse
	decode(t, resp, &body)
	assert.Equal(t, 1, body.Accepted)
	assert.Equal(t, map[string]string{"quelle": "form"}, body.Parameters)
}

func TestIndexPage(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := testClient(t)

	resp := get(t, c, ts.URL+"/?campaign="+url.QueryEscape(`Tom & "Jerry"`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	var sb strings.Builder
	_, err := sb.ReadFrom(resp.Body)
	require.NoError(t, err)
	page := sb.String()

	assert.Contains(t, page, "<th>campaign</th><td>Tom &amp; &#34;Jerry&#34;</td>")
	assert.Contains(t, page, "<th>quelle</th><td>direct</td>")
	assert.Contains(t, page, `<a href="https://shop.example.com/landing?q=direct&amp;campaign=Tom+%26+%22Jerry%22">follow</a>`)
	assert.Contains(t, page, `<input type="hidden" name="campaign" value="Tom &amp; &#34;Jerry&#34;">`)
}

func TestUnknownPathStillCaptures(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := testClient(t)

	resp := get(t, c, ts.URL+"/blog/post?q=blog")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body integration.ParamsResponse
	decode(t, get(t, c, ts.URL+"/api/params"), &body)
	assert.Equal(t, "blog", body.Parameters["quelle"])
}

func TestObfuscatedRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.Obfuscation = config.ObfuscationConfig{Enabled: true, SecretKey: "k3y"}
	_, ts := newTestServer(t, cfg)
	c := testClient(t)

	get(t, c, ts.URL+"/?q="+codec.Encode("partner", "k3y")+"&campaign=literal")

	var body integration.ParamsResponse
	decode(t, get(t, c, ts.URL+"/api/params"), &body)
	assert.Equal(t, "partner", body.Parameters["quelle"])
	assert.Equal(t, "literal", body.Parameters["campaign"])

	resp := get(t, c, ts.URL+"/go/quelle")
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "partner", codec.Decode(loc.Query().Get("q"), "k3y"))
	assert.Equal(t, "literal", codec.Decode(loc.Query().Get("campaign"), "k3y"))
}

func TestSessionCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.Session.MaxSessions = 1
	_, ts := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, get(t, testClient(t), ts.URL+"/").StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, testClient(t), ts.URL+"/").StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := testClient(t)
	get(t, c, ts.URL+"/?q=x")

	resp := get(t, c, ts.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Set-Cookie"))
	var health HealthResponse
	decode(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 2, health.Parameters)
	assert.Equal(t, 1, health.Sessions)

	resp = get(t, c, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sb strings.Builder
	_, err := sb.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), `paramtrail_captured_values_total{parameter="quelle"} 1`)
	assert.Contains(t, sb.String(), "paramtrail_sessions 1")
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	_, ts := newTestServer(t, cfg)

	resp := get(t, testClient(t), ts.URL+"/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReload(t *testing.T) {
	s, ts := newTestServer(t, testConfig())
	c := testClient(t)

	next := testConfig()
	next.Parameters = []config.ParameterConfig{{Name: "ref", Short: "r"}}
	next.Forms = nil
	require.NoError(t, s.Reload(next))

	get(t, c, ts.URL+"/?r=friend&q=ignored")
	var body integration.ParamsResponse
	decode(t, get(t, c, ts.URL+"/api/params"), &body)
	assert.Equal(t, map[string]string{"ref": "friend"}, body.Parameters)
	assert.Equal(t, http.StatusNotFound, get(t, c, ts.URL+"/forms/signup").StatusCode)

	bad := testConfig()
	bad.Parameters = []config.ParameterConfig{{Name: "a"}, {Name: "a"}}
	assert.Error(t, s.Reload(bad))
	assert.Equal(t, 1, s.Source().Current().Len())
}

func TestInspectorStreamsCaptures(t *testing.T) {
	cfg := testConfig()
	cfg.Inspector.Enabled = true
	s, ts := newTestServer(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/inspect"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.inspector.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	get(t, testClient(t), ts.URL+"/?q=live")

	var msg InspectMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "capture", msg.Type)
	assert.Equal(t, "quelle", msg.Parameter)
	assert.Equal(t, "q", msg.IncomingKey)
	assert.Equal(t, "live", msg.Value)
	assert.Equal(t, "query", msg.Source)

	get(t, testClient(t), ts.URL+"/?q=reset_token_42")
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "[REDACTED]", msg.Value)
}

func TestInspectorRejectsForeignOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.Inspector.Enabled = true
	_, ts := newTestServer(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/inspect"
	_, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": {"https://evil.test"}},
	})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestInspectorDisabled(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	assert.Equal(t, http.StatusNotFound, get(t, testClient(t), ts.URL+"/inspect").StatusCode)
}

func TestServeShutdown(t *testing.T) {
	s, err := New(testConfig(), nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln, time.Second) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = s.Sessions().Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, errors.IsSessionError(err))
}
