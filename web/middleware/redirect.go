package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RedirectMiddleware sends bookmarks of retired page paths to their
// current location.
func RedirectMiddleware(basePath string) gin.HandlerFunc {
	redirects := map[string]string{
		"login": "",
		"users": "manage-users",
	}
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		path := strings.TrimSuffix(c.Request.URL.Path, "/")
		for from, to := range redirects {
			if path == basePath+from {
				c.Redirect(http.StatusMovedPermanently, basePath+to)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
