package middleware

import (
	"net"
	"strings"

	"github.com/antarex-ai/dashboard/web/service"

	"github.com/gin-gonic/gin"
)

// RemoteIP prefers the proxy headers over the socket address.
func RemoteIP(c *gin.Context) string {
	if v := c.GetHeader("X-Real-IP"); v != "" {
		return v
	}
	if v := c.GetHeader("X-Forwarded-For"); v != "" {
		first, _, _ := strings.Cut(v, ",")
		return strings.TrimSpace(first)
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

// AuditMiddleware stores the caller's address in the request context, where
// services pick it up for their audit entries.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if shouldSkipAudit(c.Request.URL.Path) {
			c.Next()
			return
		}
		ctx := service.WithOrigin(c.Request.Context(), service.Origin{
			IP:        RemoteIP(c),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func shouldSkipAudit(path string) bool {
	for _, prefix := range []string{"/assets/", "/favicon.ico", "/metrics", "/healthz"} {
		if strings.HasSuffix(prefix, "/") && strings.Contains(path, prefix) {
			return true
		}
		if strings.HasSuffix(path, prefix) {
			return true
		}
	}
	return false
}
