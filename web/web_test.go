package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/antarex-ai/dashboard/web/backend/backendtest"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panel struct {
	t      *testing.T
	api    *backendtest.Server
	server *Server
	http   *httptest.Server
	client *http.Client
}

func newPanel(t *testing.T) *panel {
	t.Helper()
	api := backendtest.NewServer()
	t.Cleanup(api.Close)

	t.Setenv("ANTAREX_BACKEND_URL", api.URL)
	t.Setenv("ANTAREX_SESSION_SECRET", "web-test-secret")
	t.Setenv("ANTAREX_TIMEZONE", "UTC")
	t.Setenv("ANTAREX_BASE_PATH", "/")

	s := NewServer()
	require.NoError(t, s.init())
	engine, err := s.initRouter()
	require.NoError(t, err)

	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &panel{t: t, api: api, server: s, http: ts, client: client}
}

func (p *panel) get(path string) (*http.Response, string) {
	p.t.Helper()
	resp, err := p.client.Get(p.http.URL + path)
	require.NoError(p.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	return resp, string(body)
}

func (p *panel) post(path string, form url.Values) (*http.Response, string) {
	p.t.Helper()
	req, err := http.NewRequest(http.MethodPost, p.http.URL+path, strings.NewReader(form.Encode()))
	require.NoError(p.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp, err := p.client.Do(req)
	require.NoError(p.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	return resp, string(body)
}

func (p *panel) login(username, password string) {
	p.t.Helper()
	resp, body := p.post("/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(p.t, http.StatusOK, resp.StatusCode, body)
}

func TestLoginPage(t *testing.T) {
	p := newPanel(t)

	resp, body := p.get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Antarex AI Dashboard")
	assert.Contains(t, body, `data-action="/login"`)
	assert.NotContains(t, body, "Logout")
	assert.Contains(t, body, `data-lang="ru"`)
}

func TestLoginPageIsTranslated(t *testing.T) {
	p := newPanel(t)
	u, err := url.Parse(p.http.URL)
	require.NoError(t, err)
	p.client.Jar.SetCookies(u, []*http.Cookie{{Name: "lang", Value: "ru"}})

	_, body := p.get("/")
	assert.Contains(t, body, "Вход")
}

func TestDashboardAfterLogin(t *testing.T) {
	p := newPanel(t)
	p.api.AddAlert("incident-42.pdf", "Real Attack", "97%", time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	p.login("admin", backendtest.AdminPassword)

	resp, body := p.get("/")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	resp, body = p.get("/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "incident-42.pdf")
	assert.Contains(t, body, "2026-05-01")
	assert.Contains(t, body, "badge-danger")
	assert.Contains(t, body, `href="/manage-users"`)
	assert.Contains(t, body, "Override verdicts")
	assert.NotContains(t, body, `href="/add-user"`)
}

func TestViewerSeesReadOnlyDashboard(t *testing.T) {
	p := newPanel(t)
	p.api.AddAlert("a.pdf", "Pending", "0%", time.Now())
	p.login("viewer", backendtest.ViewerPassword)

	_, body := p.get("/dashboard")
	assert.Contains(t, body, "a.pdf")
	assert.NotContains(t, body, `href="/upload"`)
	assert.NotContains(t, body, "/download")
	assert.NotContains(t, body, "Override verdicts")
}

func TestForbiddenPageRedirectsWithNotice(t *testing.T) {
	p := newPanel(t)
	p.login("viewer", backendtest.ViewerPassword)

	resp, _ := p.get("/manage-users")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	_, body := p.get("/dashboard")
	assert.Contains(t, body, "You are not permitted to open that page.")

	_, body = p.get("/dashboard")
	assert.NotContains(t, body, "You are not permitted to open that page.")
}

func TestExpiredSessionReturnsToLogin(t *testing.T) {
	p := newPanel(t)
	p.login("admin", backendtest.AdminPassword)
	p.api.RevokeTokens()

	resp, _ := p.get("/manage-users")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	_, body := p.get("/")
	assert.Contains(t, body, "Your session has expired. Please log in again.")

	resp, _ = p.get("/dashboard")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
}

func TestLogoutShowsNotice(t *testing.T) {
	p := newPanel(t)
	p.login("viewer", backendtest.ViewerPassword)

	resp, _ := p.get("/logout")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	_, body := p.get("/")
	assert.Contains(t, body, "You have been logged out.")
}

func TestManageUsersPage(t *testing.T) {
	p := newPanel(t)
	p.api.AddUser("legacy", "pw", "operator")
	p.login("superadmin", backendtest.SuperadminPassword)

	resp, body := p.get("/manage-users")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "viewer")
	assert.Contains(t, body, "Unknown role: operator")
	assert.Contains(t, body, "Change my password")
	assert.Contains(t, body, `data-action="/api/users/viewer"`)
	assert.NotContains(t, body, `data-action="/api/users/superadmin"`)
	assert.NotContains(t, body, `data-action="/api/users/legacy"`)
}

func TestManageUsersEscapesUsernamesInActions(t *testing.T) {
	p := newPanel(t)
	p.api.AddUser("who?me#1", "pw", "read_only")
	p.login("superadmin", backendtest.SuperadminPassword)

	_, body := p.get("/manage-users")
	assert.Contains(t, body, `data-action="/api/users/who%3Fme%231"`)
	assert.Contains(t, body, `data-action="/api/users/who%3Fme%231/reset-password"`)

	req, err := http.NewRequest(http.MethodDelete, p.http.URL+"/api/users/who%3Fme%231", nil)
	require.NoError(t, err)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp, err := p.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, p.api.HasUser("who?me#1"))
}

func TestUploadAndAddUserPages(t *testing.T) {
	p := newPanel(t)
	p.login("superadmin", backendtest.SuperadminPassword)

	resp, body := p.get("/upload")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Choose up to 10 PDF files, 256.00MB in total.")

	resp, body = p.get("/add-user")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="read_only"`)
	assert.Contains(t, body, `value="superadmin"`)
}

func TestAPIRequiresLogin(t *testing.T) {
	p := newPanel(t)

	resp, body := p.get("/api/me")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Please log in again.")
}

func TestLegacyPathsRedirect(t *testing.T) {
	p := newPanel(t)

	resp, _ := p.get("/users")
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/manage-users", resp.Header.Get("Location"))
}

func TestHealthzAndMetrics(t *testing.T) {
	p := newPanel(t)

	resp, body := p.get("/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h struct {
		OK      bool `json:"ok"`
		Backend *struct {
			Up bool `json:"up"`
		} `json:"backend"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &h))
	assert.True(t, h.OK)
	assert.Nil(t, h.Backend)

	p.server.health.Check(context.Background())
	_, body = p.get("/healthz")
	require.NoError(t, json.Unmarshal([]byte(body), &h))
	require.NotNil(t, h.Backend)
	assert.True(t, h.Backend.Up)

	resp, body = p.get("/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "antarex_backend_up")
}

func TestStaticAssets(t *testing.T) {
	p := newPanel(t)

	resp, body := p.get("/assets/js/app.js")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "X-Requested-With")

	resp, _ = p.get("/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
