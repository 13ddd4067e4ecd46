package controller

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/backend/backendtest"
	"github.com/antarex-ai/dashboard/web/entity"
	"github.com/antarex-ai/dashboard/web/service"
	"github.com/antarex-ai/dashboard/web/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t       *testing.T
	api     *backendtest.Server
	engine  *gin.Engine
	cookies []*http.Cookie
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	api := backendtest.NewServer()
	t.Cleanup(api.Close)
	client, err := backend.NewClient(backend.Options{BaseURL: api.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	r := gin.New()
	r.Use(sessions.Sessions("antarex", cookie.NewStore([]byte("0123456789abcdef0123456789abcdef"))))
	r.Use(func(c *gin.Context) {
		c.Set("base_path", "/")
		c.Next()
	})
	r.Use(session.Middleware(session.NewGenerations(), session.NewMemoryRecords(0)))
	g := r.Group("/")
	NewIndexController(g, client)
	NewAPIController(g, client, service.NewAlertService(time.UTC))
	return &harness{t: t, api: api, engine: r}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range h.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	if set := w.Result().Cookies(); len(set) > 0 {
		h.cookies = set
	}
	return w
}

func (h *harness) json(method, path string, body any) (*httptest.ResponseRecorder, entity.Msg) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	w := h.do(req)
	var msg entity.Msg
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &msg))
	}
	return w, msg
}

func (h *harness) login(username, password string) {
	h.t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := h.do(req)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t)

	w, msg := h.json(http.MethodPost, "/login", gin.H{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, msg.Success)
	assert.Equal(t, "Invalid credentials", msg.Msg)

	w, _ = h.json(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginThenMe(t *testing.T) {
	h := newHarness(t)

	w, msg := h.json(http.MethodPost, "/login", gin.H{"username": "admin", "password": backendtest.AdminPassword})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, msg.Success)
	obj := msg.Obj.(map[string]any)
	assert.Equal(t, "/dashboard", obj["redirect"])
	assert.Equal(t, "admin", obj["role"])

	w, msg = h.json(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := msg.Obj.(map[string]any)
	assert.Equal(t, "admin", me["username"])
	assert.Equal(t, "admin", me["role"])
	assert.NotContains(t, w.Body.String(), "token")
	caps := me["capabilities"].([]any)
	assert.Contains(t, caps, "alerts.update")
	assert.Contains(t, caps, "users.list")
	assert.NotContains(t, caps, "users.add")
}

func TestLogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	h.login("viewer", backendtest.ViewerPassword)

	w := h.do(httptest.NewRequest(http.MethodGet, "/logout", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)

	w, _ = h.json(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestViewerCannotReachAdminEndpoints(t *testing.T) {
	h := newHarness(t)
	h.login("viewer", backendtest.ViewerPassword)
	before := h.api.TotalCalls()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/alerts/bulk-update"},
		{http.MethodGet, "/api/export/csv"},
		{http.MethodGet, "/api/alerts/a.pdf/download"},
		{http.MethodDelete, "/api/users/admin"},
	} {
		w, _ := h.json(tc.method, tc.path, gin.H{})
		assert.Equal(t, http.StatusForbidden, w.Code, tc.path)
	}
	assert.Equal(t, before, h.api.TotalCalls())

	w, _ := h.json(http.MethodGet, "/api/alerts", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAlertsOverview(t *testing.T) {
	h := newHarness(t)
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	h.api.AddAlert("a.pdf", "Real Attack", "90%", day)
	h.api.AddAlert("b.pdf", "Legit Traffic", "80%", day)
	h.api.AddAlert("c.pdf", "", "", day.Add(24*time.Hour))
	h.login("viewer", backendtest.ViewerPassword)

	w, msg := h.json(http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	raw, err := json.Marshal(msg.Obj)
	require.NoError(t, err)
	var overview service.AlertOverview
	require.NoError(t, json.Unmarshal(raw, &overview))
	assert.Equal(t, service.Summary{Total: 3, RealAttacks: 1, LegitTraffic: 1, Pending: 1}, overview.Summary)
	require.Len(t, overview.Daily, 2)
	assert.Equal(t, "2026-03-02", overview.Daily[0].Date)
	assert.Equal(t, 2, overview.Daily[0].Total)
}

func TestBulkUpdate(t *testing.T) {
	h := newHarness(t)
	h.api.AddAlert("a.pdf", "Pending", "0%", time.Now())
	h.api.AddAlert("b.pdf", "Real Attack", "90%", time.Now())
	h.login("admin", backendtest.AdminPassword)

	w, msg := h.json(http.MethodPost, "/api/alerts/bulk-update", gin.H{"verdict": "Legit Traffic"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pages.dashboard.toasts.bulkUpdated", msg.Msg)
	assert.EqualValues(t, 1, msg.Obj.(map[string]any)["updated"])

	w, msg = h.json(http.MethodPost, "/api/alerts/bulk-update", gin.H{"verdict": "Maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "verdict", msg.Field)
}

func TestUploadAndDownload(t *testing.T) {
	h := newHarness(t)
	h.login("admin", backendtest.AdminPassword)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "report.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4 report"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := h.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Uploaded 1 file(s)")

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/alerts/report.pdf/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 report", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report.pdf")
}

func TestUploadAcceptsSingularField(t *testing.T) {
	h := newHarness(t)
	h.login("admin", backendtest.AdminPassword)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, name := range map[string]string{"file": "single.pdf", "files": "batch.pdf"} {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, _ = part.Write([]byte("%PDF-1.4 " + name))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := h.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Uploaded 2 file(s)")

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/alerts/single.pdf/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 single.pdf", w.Body.String())
}

func TestUploadRejectsNonPDF(t *testing.T) {
	h := newHarness(t)
	h.login("admin", backendtest.AdminPassword)
	before := h.api.Calls("/upload")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := h.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"files"`)
	assert.Equal(t, before, h.api.Calls("/upload"))
}

func TestConflictMessagePassesThrough(t *testing.T) {
	h := newHarness(t)
	h.login("superadmin", backendtest.SuperadminPassword)

	w, msg := h.json(http.MethodPost, "/api/users", gin.H{"username": "admin", "password": "x", "role": "admin"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User already exists", msg.Msg)
}

func TestUserAdministration(t *testing.T) {
	h := newHarness(t)
	h.login("superadmin", backendtest.SuperadminPassword)

	w, _ := h.json(http.MethodPost, "/api/users", gin.H{"username": "carol", "password": "pw", "role": "read_only"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, h.api.HasUser("carol"))

	w, _ = h.json(http.MethodPost, "/api/users/carol/reset-password", gin.H{"new_password": "fresh"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, h.api.CheckPassword("carol", "fresh"))

	w, _ = h.json(http.MethodDelete, "/api/users/carol", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, h.api.HasUser("carol"))

	w, msg := h.json(http.MethodDelete, "/api/users/nobody", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User not found", msg.Msg)
}

func TestAdminCannotResetPeer(t *testing.T) {
	h := newHarness(t)
	h.api.AddUser("bob", "pw", "admin")
	h.login("admin", backendtest.AdminPassword)
	before := h.api.Calls("/auth/reset-password/bob")

	w, _ := h.json(http.MethodPost, "/api/users/bob/reset-password", gin.H{"new_password": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, before, h.api.Calls("/auth/reset-password/bob"))
}

func TestAdminCannotResetSuperadmin(t *testing.T) {
	h := newHarness(t)
	h.login("admin", backendtest.AdminPassword)
	before := h.api.Calls("/auth/reset-password/superadmin")

	w, msg := h.json(http.MethodPost, "/api/users/superadmin/reset-password", gin.H{"new_password": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "errors.authorization", msg.Msg)
	assert.Equal(t, before, h.api.Calls("/auth/reset-password/superadmin"))
	assert.True(t, h.api.CheckPassword("superadmin", backendtest.SuperadminPassword))

	w, _ = h.json(http.MethodPost, "/api/users/nobody/reset-password", gin.H{"new_password": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExpiredTokenClearsSession(t *testing.T) {
	h := newHarness(t)
	h.login("admin", backendtest.AdminPassword)
	h.api.RevokeTokens()

	w, _ := h.json(http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = h.json(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLateRejectionKeepsNewerLogin(t *testing.T) {
	h := newHarness(t)
	h.login("admin", backendtest.AdminPassword)
	h.api.RevokeTokens()
	oldCookies := h.cookies

	w, _ := h.json(http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	staleCookies := w.Result().Cookies()

	// The user logs in again from the same browser while the rejected
	// request's response is still on its way.
	h.cookies = oldCookies
	h.login("admin", backendtest.AdminPassword)

	if len(staleCookies) > 0 {
		h.cookies = staleCookies
	}
	w, _ = h.json(http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBackendOutageIsBadGateway(t *testing.T) {
	h := newHarness(t)
	h.login("admin", backendtest.AdminPassword)
	h.api.FailNext("/auth/users", http.StatusInternalServerError)

	w, _ := h.json(http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestChangeOwnPassword(t *testing.T) {
	h := newHarness(t)
	h.login("viewer", backendtest.ViewerPassword)

	w, msg := h.json(http.MethodPost, "/api/password", gin.H{"old_password": "wrong", "new_password": "next"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Incorrect old password", msg.Msg)

	w, _ = h.json(http.MethodPost, "/api/password", gin.H{"old_password": backendtest.ViewerPassword, "new_password": "next"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, h.api.CheckPassword("viewer", "next"))
}

func TestErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{&backend.Error{Kind: backend.KindAuthentication}, http.StatusUnauthorized, "errors.authentication"},
		{&backend.Error{Kind: backend.KindAuthorization, Message: "nope"}, http.StatusForbidden, "errors.authorization"},
		{&backend.Error{Kind: backend.KindValidation, Field: "role", Message: "bad role"}, http.StatusBadRequest, "bad role"},
		{&backend.Error{Kind: backend.KindConflict, Status: 400, Message: "User already exists"}, http.StatusConflict, "User already exists"},
		{&backend.Error{Kind: backend.KindTransport, Message: "boom"}, http.StatusBadGateway, "errors.transport"},
		{errors.New("plain"), http.StatusInternalServerError, "errors.internal"},
	}
	for _, tc := range cases {
		status, m := errorStatus(c, tc.err)
		assert.Equal(t, tc.status, status)
		assert.Equal(t, tc.msg, m.Msg)
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	t.Setenv("ANTAREX_LOGIN_RATE_LIMIT", "2")
	h := newHarness(t)

	for i := 0; i < 2; i++ {
		w, _ := h.json(http.MethodPost, "/login", gin.H{"username": "admin", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	before := h.api.Calls("/auth/login")
	w, _ := h.json(http.MethodPost, "/login", gin.H{"username": "admin", "password": backendtest.AdminPassword})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, before, h.api.Calls("/auth/login"))
}
