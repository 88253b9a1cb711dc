package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"

	"github.com/teemow/garelay/internal/analytics"
	"github.com/teemow/garelay/internal/credentials"
	"github.com/teemow/garelay/internal/google"
	"github.com/teemow/garelay/internal/logging"
	"github.com/teemow/garelay/internal/relay"
	"github.com/teemow/garelay/internal/sink"
	"github.com/teemow/garelay/internal/state"
)

// fakeGoogle serves the OAuth token endpoint and the Analytics Data API.
type fakeGoogle struct {
	*httptest.Server

	apiCalls atomic.Int32

	mu      sync.Mutex
	reports []analyticsdata.RunReportRequest
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	g := &fakeGoogle{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("code") == "bad-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"at-new","refresh_token":"rt-new","expires_in":3600,"token_type":"Bearer"}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		g.apiCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/v1beta/properties/123:runReport":
			var req analyticsdata.RunReportRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			g.mu.Lock()
			g.reports = append(g.reports, req)
			g.mu.Unlock()
			_, _ = io.WriteString(w, `{"kind":"analyticsData#runReport","rowCount":3}`)
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"permission denied for property","status":"PERMISSION_DENIED"}}`)
		}
	})

	g.Server = httptest.NewServer(mux)
	t.Cleanup(g.Close)
	return g
}

func (g *fakeGoogle) recordedReports() []analyticsdata.RunReportRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]analyticsdata.RunReportRequest(nil), g.reports...)
}

type testEnv struct {
	google  *fakeGoogle
	store   *credentials.MemoryStore
	server  *Server
	handler http.Handler
}

type envOption func(*Config)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	g := newFakeGoogle(t)

	oauthConfig := google.NewOAuthConfig("client-id", "client-secret", "https://relay.example.com/callback")
	oauthConfig.Endpoint.TokenURL = g.URL + "/token"
	oauthConfig.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	oauthClient := google.NewClient(oauthConfig, g.Client())

	store := credentials.NewMemoryStore()
	dispatcher, err := relay.NewDispatcher(relay.Config{
		Store:     store,
		Refresher: oauthClient,
		Factory:   analytics.NewClientFactory(oauthClient, nil, option.WithEndpoint(g.URL+"/")),
	})
	require.NoError(t, err)

	cfg := Config{
		ServiceName: "garelay",
		Version:     "test",
		Authorizer:  oauthClient,
		Sink:        sink.NewStoreSink(store),
		Relay:       dispatcher,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := New(cfg)
	require.NoError(t, err)

	return &testEnv{google: g, store: store, server: s, handler: s.Handler()}
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) connect(t *testing.T, workspaceID string, expiry time.Time) {
	t.Helper()
	require.NoError(t, e.store.Upsert(context.Background(), credentials.Record{
		WorkspaceID:  workspaceID,
		Platform:     credentials.PlatformGoogleAnalytics,
		AccessToken:  "at-" + workspaceID,
		RefreshToken: "rt-" + workspaceID,
		ExpiryDate:   credentials.ExpiryMillis(expiry),
		Status:       credentials.StatusConnected,
		ConnectedAt:  time.Now(),
	}))
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{Sink: sink.NewStoreSink(credentials.NewMemoryStore())})
	assert.Error(t, err)

	_, err = New(Config{Authorizer: google.NewClient(google.NewOAuthConfig("a", "b", "c"), nil)})
	assert.Error(t, err)
}

func TestRootAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "garelay", body["service"])
	assert.Contains(t, body["endpoints"], "/query")

	rec = env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeJSON(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthInit(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/auth/init?workspace_id=w1&redirect_url=https://app/x", "")
	require.Equal(t, http.StatusOK, rec.Code)

	authURL, ok := decodeJSON(t, rec)["auth_url"].(string)
	require.True(t, ok)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t,
		"https://www.googleapis.com/auth/analytics.readonly https://www.googleapis.com/auth/analytics",
		q.Get("scope"))
	assert.Contains(t, u.RawQuery, "scope=")
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "client-id", q.Get("client_id"))

	payload, err := state.Decode(q.Get("state"))
	require.NoError(t, err)
	assert.Equal(t, state.Payload{WorkspaceID: "w1", RedirectURL: "https://app/x"}, payload)
}

func TestAuthInitRedirectURIAlias(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/auth/init?workspace_id=w1&organization_id=o1&redirect_uri=https://app/y", "")
	require.Equal(t, http.StatusOK, rec.Code)

	u, err := url.Parse(decodeJSON(t, rec)["auth_url"].(string))
	require.NoError(t, err)
	payload, err := state.Decode(u.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, state.Payload{WorkspaceID: "w1", OrganizationID: "o1", RedirectURL: "https://app/y"}, payload)
}

func TestAuthInitMissingFields(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/auth/init",
		"/auth/init?workspace_id=w1",
		"/auth/init?redirect_url=https://app/x",
	} {
		rec := env.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, decodeJSON(t, rec)["error"], target)
		assert.NotContains(t, rec.Body.String(), "auth_url")
	}
}

func encodeState(t *testing.T, p state.Payload) string {
	t.Helper()
	token, err := state.Encode(p)
	require.NoError(t, err)
	return url.QueryEscape(token)
}

func redirectLocation(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code, "body: %s", rec.Body.String())
	u, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return u
}

func TestCallbackStoresCredentials(t *testing.T) {
	env := newTestEnv(t)
	st := encodeState(t, state.Payload{WorkspaceID: "w1", OrganizationID: "o1", RedirectURL: "https://app/x?tab=integrations"})

	for _, path := range []string{"/callback", "/auth/callback"} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, path+"?code=good-code&state="+st, "")

			loc := redirectLocation(t, rec)
			assert.Equal(t, "app", loc.Host)
			assert.Equal(t, "/x", loc.Path)
			assert.Equal(t, "true", loc.Query().Get("success"))
			assert.Equal(t, "integrations", loc.Query().Get("tab"))
			assert.Empty(t, loc.Query().Get("error"))

			rec2, err := env.store.Get(context.Background(), "w1", credentials.PlatformGoogleAnalytics)
			require.NoError(t, err)
			assert.Equal(t, credentials.StatusConnected, rec2.Status)
			assert.Equal(t, "o1", rec2.OrganizationID)
			assert.Equal(t, "at-new", rec2.AccessToken)
			assert.Equal(t, "rt-new", rec2.RefreshToken)
			assert.Greater(t, rec2.ExpiryDate, time.Now().UnixMilli())
		})
	}
}

func TestCallbackFailuresRedirect(t *testing.T) {
	validState := encodeState(t, state.Payload{WorkspaceID: "w1", RedirectURL: "https://app/x"})

	tests := []struct {
		name     string
		query    string
		wantHost string
		wantPath string
	}{
		{"exchange rejected", "code=bad-code&state=" + validState, "app", "/x"},
		{"provider error", "error=access_denied&state=" + validState, "app", "/x"},
		{"missing code", "state=" + validState, "app", "/x"},
		{"undecodable state with redirect param", "code=good-code&state=%25%25&redirect_url=https://app/fallback", "app", "/fallback"},
		{"undecodable state", "code=good-code&state=not-base64!", "", "/"},
		{"missing state", "code=good-code", "", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodGet, "/callback?"+tt.query, "")

			loc := redirectLocation(t, rec)
			assert.Equal(t, tt.wantHost, loc.Host)
			assert.Equal(t, tt.wantPath, loc.Path)
			assert.Equal(t, "auth_failed", loc.Query().Get("error"))
			assert.Empty(t, loc.Query().Get("success"))

			_, err := env.store.Get(context.Background(), "w1", credentials.PlatformGoogleAnalytics)
			assert.ErrorIs(t, err, credentials.ErrNotFound)
		})
	}
}

func TestCallbackLogsRedactedRedirect(t *testing.T) {
	st := encodeState(t, state.Payload{WorkspaceID: "w1", OrganizationID: "o1", RedirectURL: "https://app/x?session=tok123#frag"})

	tests := []struct {
		name    string
		query   string
		message string
	}{
		{"success", "code=good-code&state=" + st, "workspace connected"},
		{"failure", "code=bad-code&state=" + st, "authorization callback failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			env := newTestEnv(t, func(c *Config) {
				c.Logger = logging.New(&buf, logging.FormatJSON, false)
			})
			env.do(t, http.MethodGet, "/callback?"+tt.query, "")

			assert.NotContains(t, buf.String(), "tok123")

			var entry map[string]interface{}
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				var e map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(line), &e))
				if e["msg"] == tt.message {
					entry = e
				}
			}
			require.NotNil(t, entry, "no %q log line in %s", tt.message, buf.String())
			assert.Equal(t, "https://app/x", entry[logging.KeyRedirect])
			assert.Equal(t, "w1", entry[logging.KeyWorkspace])
			if tt.name == "success" {
				assert.Equal(t, "o1", entry[logging.KeyOrganization])
			}
		})
	}
}

func TestCallbackBridgeSink(t *testing.T) {
	var (
		gotSecret string
		gotBody   map[string]interface{}
		status    = http.StatusOK
	)
	bridge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get(sink.SecretHeader)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(status)
	}))
	defer bridge.Close()

	bridgeSink, err := sink.NewBridgeSink(bridge.URL, "shared-secret", bridge.Client())
	require.NoError(t, err)

	env := newTestEnv(t, func(c *Config) {
		c.Sink = bridgeSink
		c.Relay = nil
	})
	st := encodeState(t, state.Payload{WorkspaceID: "w1", RedirectURL: "https://app/x"})

	rec := env.do(t, http.MethodGet, "/callback?code=good-code&state="+st, "")
	loc := redirectLocation(t, rec)
	assert.Equal(t, "true", loc.Query().Get("success"))
	assert.Equal(t, "shared-secret", gotSecret)
	assert.Equal(t, "w1", gotBody["workspace_id"])
	tokens, ok := gotBody["tokens"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "at-new", tokens["access_token"])
	assert.Equal(t, "rt-new", tokens["refresh_token"])

	status = http.StatusInternalServerError
	rec = env.do(t, http.MethodGet, "/callback?code=good-code&state="+st, "")
	loc = redirectLocation(t, rec)
	assert.Equal(t, "auth_failed", loc.Query().Get("error"))

	// Bridge mode never exposes the store-backed routes.
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/query", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/disconnect", `{}`).Code)
}

func TestQueryTopPages(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "w2", time.Now().Add(time.Hour))

	rec := env.do(t, http.MethodPost, "/query",
		`{"workspace_id":"w2","tool":"get_top_pages","params":{"property_id":"123","limit":5}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data, ok := decodeJSON(t, rec)["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["rowCount"])

	reports := env.google.recordedReports()
	require.Len(t, reports, 1)
	assert.EqualValues(t, 1, env.google.apiCalls.Load())

	report := reports[0]
	require.Len(t, report.Dimensions, 1)
	assert.Equal(t, "pagePath", report.Dimensions[0].Name)
	assert.Equal(t, int64(5), report.Limit)
	require.Len(t, report.DateRanges, 1)
	assert.Equal(t, "30daysAgo", report.DateRanges[0].StartDate)
	assert.Equal(t, "today", report.DateRanges[0].EndDate)
}

func TestQueryRefreshesExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "w3", time.Now().Add(-time.Minute))

	rec := env.do(t, http.MethodPost, "/query",
		`{"workspace_id":"w3","tool":"get_traffic_overview","params":{"property_id":"properties/123"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := env.store.Get(context.Background(), "w3", credentials.PlatformGoogleAnalytics)
	require.NoError(t, err)
	assert.Equal(t, "at-new", stored.AccessToken)
	assert.Greater(t, stored.ExpiryDate, time.Now().UnixMilli())
}

func TestQueryNotConnected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/query",
		`{"workspace_id":"nobody","tool":"get_top_pages","params":{"property_id":"123"}}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Not connected to Google Analytics"}`, rec.Body.String())
	assert.Zero(t, env.google.apiCalls.Load())
}

func TestQueryClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown tool", `{"workspace_id":"w1","tool":"bogus","params":{}}`, "Unknown tool: bogus"},
		{"missing property", `{"workspace_id":"w1","tool":"get_top_pages","params":{}}`, "property_id"},
		{"missing workspace", `{"tool":"get_top_pages"}`, "workspace_id"},
		{"malformed body", `{"workspace_id":`, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.connect(t, "w1", time.Now().Add(time.Hour))

			rec := env.do(t, http.MethodPost, "/query", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeJSON(t, rec)["error"], tt.wantErr)
			assert.Zero(t, env.google.apiCalls.Load())
		})
	}
}

func TestQueryDownstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "w1", time.Now().Add(time.Hour))

	rec := env.do(t, http.MethodPost, "/query",
		`{"workspace_id":"w1","tool":"get_property_details","params":{"property_id":"999"}}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeJSON(t, rec)["error"], "permission denied for property")
	assert.EqualValues(t, 1, env.google.apiCalls.Load(), "no retry")
}

func TestDisconnect(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "w1", time.Now().Add(time.Hour))

	rec := env.do(t, http.MethodPost, "/disconnect", `{"workspace_id":"w1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	stored, err := env.store.Get(context.Background(), "w1", credentials.PlatformGoogleAnalytics)
	require.NoError(t, err)
	assert.Equal(t, credentials.StatusDisconnected, stored.Status)
	assert.Empty(t, stored.AccessToken)

	// Never connected workspaces disconnect silently.
	rec = env.do(t, http.MethodPost, "/disconnect", `{"workspace_id":"w9"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/query",
		`{"workspace_id":"w1","tool":"list_properties","params":{}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/disconnect", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMCPEndpointRequiresBearer(t *testing.T) {
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	env := newTestEnv(t, func(c *Config) {
		c.MCP = mcpHandler
		c.MCPSecret = "mcp-secret"
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic mcp-secret", http.StatusUnauthorized},
		{"wrong secret", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer mcp-secret", http.StatusAccepted},
		{"case insensitive scheme", "bearer mcp-secret", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestMCPEndpointOpenWithoutSecret(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.MCP = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})

	rec := env.do(t, http.MethodPost, "/mcp", `{}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.AllowedOrigins = []string{"https://app.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCallbackRedirect(t *testing.T) {
	tests := []struct {
		name   string
		result callbackResult
		want   string
	}{
		{
			name:   "success",
			result: callbackResult{redirectURL: "https://app/x"},
			want:   "https://app/x?provider=google_analytics&success=true",
		},
		{
			name:   "failure keeps existing query",
			result: callbackResult{redirectURL: "https://app/x?a=1", err: assert.AnError},
			want:   "https://app/x?a=1&error=auth_failed",
		},
		{
			name:   "failure without redirect",
			result: callbackResult{err: assert.AnError},
			want:   "/?error=auth_failed",
		},
		{
			name:   "unparseable redirect",
			result: callbackResult{redirectURL: "://bad", err: assert.AnError},
			want:   "/?error=auth_failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, callbackRedirect(tt.result))
		})
	}
}
