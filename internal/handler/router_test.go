package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/appshell/internal/content"
	"github.com/hitoshi/appshell/internal/middleware"
	"github.com/hitoshi/appshell/internal/repository"
	"github.com/hitoshi/appshell/internal/route"
	"github.com/hitoshi/appshell/internal/security"
	"github.com/hitoshi/appshell/internal/shell"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testViews() fstest.MapFS {
	fs := fstest.MapFS{}
	for _, r := range route.DefaultRoutes() {
		fs[r.ContentLocator] = &fstest.MapFile{Data: []byte("<h1>" + r.Label + "</h1>")}
	}
	return fs
}

func newTestRegistry() *shell.Registry {
	return newTestRegistryWithTTL(0)
}

func newTestRegistryWithTTL(ttl time.Duration) *shell.Registry {
	logger := testLogger()
	renderer := content.NewRenderer(content.CapabilitySandboxed, security.NewContentSanitizer(), content.NewLuaRunner(logger), logger)

	return shell.NewRegistry(shell.Deps{
		Table:             route.DefaultTable(),
		Store:             repository.NewMemoryKVRepo(),
		Loader:            content.NewLoader(content.NewFSFetcher(testViews()), renderer, nil, logger),
		DefaultRoute:      "dashboard",
		HomeRoute:         "storefronts",
		DiscardStaleLoads: true,
		Logger:            logger,
	}, ttl)
}

// testClient はCookieを保持し、CSRFトークンを自動で付与するクライアント。
type testClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
	csrf   string
}

func newTestServer(t *testing.T, pages PageProvider) *testClient {
	t.Helper()
	return newTestServerWithLimits(t, pages, middleware.DefaultRateLimiterConfig())
}

func newTestServerWithLimits(t *testing.T, pages PageProvider, limits middleware.RateLimiterConfig) *testClient {
	t.Helper()

	rl := middleware.NewRateLimiter(limits)
	t.Cleanup(rl.Stop)

	server := httptest.NewServer(NewRouter(&RouterDeps{
		RateLimiter: rl,
		Logger:      testLogger(),
		Pages:       pages,
		Views:       testViews(),
	}))
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	return &testClient{t: t, server: server, client: &http.Client{Jar: jar}}
}

// fetchCSRF はCSRFトークンを取得して保持する。
func (c *testClient) fetchCSRF() {
	c.t.Helper()
	resp, err := c.client.Get(c.server.URL + "/api/csrf-token")
	if err != nil {
		c.t.Fatalf("GET /api/csrf-token: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.t.Fatalf("failed to decode csrf token: %v", err)
	}
	c.csrf = body["token"]
}

func (c *testClient) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.server.URL+path, r)
	if err != nil {
		c.t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (c *testClient) state(method, path string, body any) shell.State {
	c.t.Helper()
	resp, data := c.do(method, path, body)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("%s %s status = %d, body = %s", method, path, resp.StatusCode, data)
	}
	var s shell.State
	if err := json.Unmarshal(data, &s); err != nil {
		c.t.Fatalf("failed to decode state: %v", err)
	}
	return s
}

func (c *testClient) apiError(method, path string, body any, wantStatus int) middleware.ErrorResponseBody {
	c.t.Helper()
	resp, data := c.do(method, path, body)
	if resp.StatusCode != wantStatus {
		c.t.Fatalf("%s %s status = %d, want %d, body = %s", method, path, resp.StatusCode, wantStatus, data)
	}
	var e middleware.ErrorResponseBody
	if err := json.Unmarshal(data, &e); err != nil {
		c.t.Fatalf("failed to decode error: %v", err)
	}
	return e
}

func signedToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"name":    "Ada Lovelace",
		"email":   "ada@example.com",
		"picture": "https://example.com/ada.png",
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestGetShell_NewClientSeesLanding(t *testing.T) {
	c := newTestServer(t, newTestRegistry())

	s := c.state(http.MethodGet, "/api/shell?fragment=projects", nil)

	if !s.LandingVisible || s.ShellVisible {
		t.Errorf("landing/shell = %v/%v, want true/false", s.LandingVisible, s.ShellVisible)
	}
	if s.Fragment != "" {
		t.Errorf("fragment = %q, want empty", s.Fragment)
	}
	if s.Theme != "light" {
		t.Errorf("theme = %q, want light", s.Theme)
	}
}

func TestSignInFlow(t *testing.T) {
	c := newTestServer(t, newTestRegistry())
	c.fetchCSRF()

	// 1. サインインするとホームルートが表示される
	s := c.state(http.MethodPost, "/auth/credential", map[string]string{
		"credential": signedToken(t),
		"select_by":  "btn",
	})
	if !s.ShellVisible || s.LandingVisible {
		t.Fatalf("landing/shell = %v/%v, want false/true", s.LandingVisible, s.ShellVisible)
	}
	if s.Fragment != "storefronts" || s.Title != "Storefronts" {
		t.Errorf("fragment/title = %q/%q, want storefronts/Storefronts", s.Fragment, s.Title)
	}
	if s.Profile == nil || s.Profile.DisplayName != "Ada Lovelace" {
		t.Errorf("profile = %+v", s.Profile)
	}

	// 2. ナビゲーション
	s = c.state(http.MethodPut, "/api/shell/fragment", map[string]string{"fragment": "projects"})
	if s.Title != "Projects" || !strings.Contains(s.Content, "<h1>Projects</h1>") {
		t.Errorf("title = %q, content = %q", s.Title, s.Content)
	}
	active := 0
	for _, e := range s.Nav {
		if e.Active {
			active++
			if e.ID != "projects" {
				t.Errorf("active entry = %q, want projects", e.ID)
			}
		}
	}
	if active != 1 {
		t.Errorf("active entries = %d, want 1", active)
	}

	// 3. 未知のルートは404パネル、ハイライトは維持
	s = c.state(http.MethodPut, "/api/shell/fragment", map[string]string{"fragment": "unknown-xyz"})
	if !strings.Contains(s.Content, "404 - Page Not Found") {
		t.Errorf("content = %q, want not-found panel", s.Content)
	}
	if s.Title != "Projects" {
		t.Errorf("title = %q, want Projects", s.Title)
	}

	// 4. サインアウト
	s = c.state(http.MethodPost, "/auth/signout", nil)
	if !s.LandingVisible || s.ShellVisible || s.Fragment != "" {
		t.Errorf("after sign-out = %+v", s)
	}
}

func TestCredential_Errors(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		wantStatus int
		wantCode   string
	}{
		{"empty credential", "", http.StatusBadRequest, "INVALID_CREDENTIAL"},
		{"two segments", "abc.def", http.StatusBadRequest, "INVALID_CREDENTIAL"},
		{"undecodable payload", "abc.!!!.def", http.StatusBadRequest, "MALFORMED_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, newTestRegistry())
			c.fetchCSRF()

			e := c.apiError(http.MethodPost, "/auth/credential", map[string]string{"credential": tt.credential}, tt.wantStatus)
			if e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}

			s := c.state(http.MethodGet, "/api/shell", nil)
			if s.ShellVisible {
				t.Error("shell should stay hidden after a failed sign-in")
			}
		})
	}
}

func TestCredential_InvalidJSON(t *testing.T) {
	c := newTestServer(t, newTestRegistry())
	c.fetchCSRF()

	req, _ := http.NewRequest(http.MethodPost, c.server.URL+"/auth/credential", strings.NewReader("{"))
	req.Header.Set("X-CSRF-Token", c.csrf)
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStateChangingRequestsRequireCSRF(t *testing.T) {
	c := newTestServer(t, newTestRegistry())

	e := c.apiError(http.MethodPost, "/api/shell/theme/toggle", nil, http.StatusForbidden)
	if e.Code != "CSRF_VALIDATION_FAILED" {
		t.Errorf("code = %q", e.Code)
	}
}

func TestThemeAndSidebar(t *testing.T) {
	c := newTestServer(t, newTestRegistry())
	c.fetchCSRF()

	s := c.state(http.MethodPost, "/api/shell/theme/toggle", nil)
	if s.Theme != "dark" || s.ThemeIcon != "dark_mode" {
		t.Errorf("theme = %q icon = %q, want dark/dark_mode", s.Theme, s.ThemeIcon)
	}
	s = c.state(http.MethodPost, "/api/shell/theme/toggle", nil)
	if s.Theme != "light" || s.ThemeIcon != "light_mode" {
		t.Errorf("theme = %q icon = %q, want light/light_mode", s.Theme, s.ThemeIcon)
	}

	s = c.state(http.MethodPost, "/api/shell/sidebar/toggle", nil)
	if !s.SidebarOpen || !s.OverlayVisible {
		t.Errorf("sidebar/overlay = %v/%v, want open", s.SidebarOpen, s.OverlayVisible)
	}
	s = c.state(http.MethodPost, "/api/shell/sidebar/close", nil)
	if s.SidebarOpen || s.OverlayVisible {
		t.Errorf("sidebar/overlay = %v/%v, want closed", s.SidebarOpen, s.OverlayVisible)
	}
}

// failingPages は常にエラーを返すPageProvider。
type failingPages struct{}

func (failingPages) Get(ctx context.Context, clientID, fragment string) (*shell.Page, error) {
	return nil, errors.New("store unavailable")
}

func TestGetShell_StoreFailureIsInternalError(t *testing.T) {
	c := newTestServer(t, failingPages{})

	e := c.apiError(http.MethodGet, "/api/shell", nil, http.StatusInternalServerError)
	if e.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", e.Code)
	}
	if strings.Contains(e.Message, "store unavailable") {
		t.Error("internal details must not leak")
	}
}

func TestViewsAreServed(t *testing.T) {
	c := newTestServer(t, newTestRegistry())

	resp, data := c.do(http.MethodGet, "/views/projects.html", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(data) != "<h1>Projects</h1>" {
		t.Errorf("body = %q", data)
	}
}

// mockHealthChecker はPingの結果を差し替えられるHealthChecker。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{"no checker", nil, http.StatusOK},
		{"healthy", &mockHealthChecker{}, http.StatusOK},
		{"unhealthy", &mockHealthChecker{err: errors.New("down")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.checker).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHealthDoesNotIssueClientCookie(t *testing.T) {
	c := newTestServer(t, newTestRegistry())

	resp, _ := c.do(http.MethodGet, "/health", nil)
	for _, cookie := range resp.Cookies() {
		if cookie.Name == middleware.DefaultClientCookieName {
			t.Error("/health should not issue a client cookie")
		}
	}
}
