package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"panel":    "/panel/",
		"/panel":   "/panel/",
		"/panel/":  "/panel/",
		"a/b":      "/a/b/",
	}
	for in, want := range cases {
		t.Setenv("ANTAREX_BASE_PATH", in)
		assert.Equal(t, want, GetBasePath(), "input %q", in)
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("ANTAREX_DEBUG", "")
	t.Setenv("ANTAREX_LOG_LEVEL", "")
	assert.Equal(t, Info, GetLogLevel())

	t.Setenv("ANTAREX_LOG_LEVEL", "warn")
	assert.Equal(t, Warn, GetLogLevel())

	t.Setenv("ANTAREX_DEBUG", "true")
	assert.Equal(t, Debug, GetLogLevel())
}

func TestBackendSettings(t *testing.T) {
	t.Setenv("ANTAREX_BACKEND_URL", "http://api.local:8000/")
	t.Setenv("ANTAREX_BACKEND_TIMEOUT", "nonsense")
	assert.Equal(t, "http://api.local:8000", GetBackendURL())
	assert.Equal(t, 30*time.Second, GetBackendTimeout())

	t.Setenv("ANTAREX_BACKEND_TIMEOUT", "5s")
	assert.Equal(t, 5*time.Second, GetBackendTimeout())
}

func TestIntegerFallbacks(t *testing.T) {
	t.Setenv("ANTAREX_PORT", "abc")
	t.Setenv("ANTAREX_AUDIT_RETENTION_DAYS", "")
	assert.Equal(t, 8080, GetPort())
	assert.Equal(t, 90, GetAuditRetentionDays())

	t.Setenv("ANTAREX_PORT", "9090")
	assert.Equal(t, 9090, GetPort())
}

func TestSettingsHidesSecret(t *testing.T) {
	t.Setenv("ANTAREX_SESSION_SECRET", "hunter2")
	s := Settings()
	assert.Equal(t, "(set)", s["sessionSecret"])
	assert.NotContains(t, s, "hunter2")
	assert.Equal(t, GetName(), s["name"])
}
