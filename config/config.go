// Package config exposes the panel's environment-driven settings together
// with the embedded application name and version.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

const envPrefix = "ANTAREX_"

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	return LogLevel(getEnv("LOG_LEVEL", string(Info)))
}

func IsDebug() bool {
	return getEnv("DEBUG", "") == "true"
}

func GetLogFolder() string {
	return getEnv("LOG_FOLDER", "/var/log/antarex")
}

func GetDBFolderPath() string {
	return getEnv("DB_FOLDER", "/etc/antarex")
}

func GetDBPath() string {
	return filepath.Join(GetDBFolderPath(), fmt.Sprintf("%s.db", GetName()))
}

func GetListen() string {
	return getEnv("LISTEN", "")
}

func GetPort() int {
	return getEnvInt("PORT", 8080)
}

func GetCertFile() string {
	return getEnv("CERT_FILE", "")
}

func GetKeyFile() string {
	return getEnv("KEY_FILE", "")
}

// GetBasePath returns the URL prefix of the panel, always with a leading and
// trailing slash.
func GetBasePath() string {
	p := getEnv("BASE_PATH", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func GetBackendURL() string {
	return strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000"), "/")
}

func GetBackendTimeout() time.Duration {
	d, err := time.ParseDuration(getEnv("BACKEND_TIMEOUT", "30s"))
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetSessionSecret returns the configured cookie secret. An empty value means
// the caller has to generate a per-process secret.
func GetSessionSecret() string {
	return getEnv("SESSION_SECRET", "")
}

// GetSessionMaxAge returns the session cookie lifetime in minutes.
func GetSessionMaxAge() int {
	return getEnvInt("SESSION_MAX_AGE", 7*24*60)
}

func GetCookieName() string {
	return getEnv("COOKIE_NAME", GetName())
}

func GetTimeLocation() (*time.Location, error) {
	zone := getEnv("TIMEZONE", "Local")
	if zone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(zone)
}

func GetHealthCron() string {
	return getEnv("HEALTH_CRON", "@every 30s")
}

// GetLoginRateLimit returns the login attempts allowed per client address
// and minute. Zero disables the limit.
func GetLoginRateLimit() int {
	return getEnvInt("LOGIN_RATE_LIMIT", 10)
}

func GetAuditRetentionDays() int {
	return getEnvInt("AUDIT_RETENTION_DAYS", 90)
}

// Settings is a flattened view of the effective configuration, used by the
// CLI to print what the panel would run with.
func Settings() map[string]string {
	secret := "(generated per process)"
	if GetSessionSecret() != "" {
		secret = "(set)"
	}
	return map[string]string{
		"name":               GetName(),
		"version":            GetVersion(),
		"debug":              strconv.FormatBool(IsDebug()),
		"logLevel":           string(GetLogLevel()),
		"logFolder":          GetLogFolder(),
		"dbPath":             GetDBPath(),
		"listen":             GetListen(),
		"port":               strconv.Itoa(GetPort()),
		"basePath":           GetBasePath(),
		"backendURL":         GetBackendURL(),
		"backendTimeout":     GetBackendTimeout().String(),
		"sessionSecret":      secret,
		"sessionMaxAge":      strconv.Itoa(GetSessionMaxAge()),
		"cookieName":         GetCookieName(),
		"timezone":           getEnv("TIMEZONE", "Local"),
		"healthCron":         GetHealthCron(),
		"auditRetentionDays": strconv.Itoa(GetAuditRetentionDays()),
		"loginRateLimit":     strconv.Itoa(GetLoginRateLimit()),
		"tls":                strconv.FormatBool(GetCertFile() != "" && GetKeyFile() != ""),
	}
}
