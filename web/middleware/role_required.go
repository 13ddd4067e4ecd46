package middleware

import (
	"net/http"
	"strings"

	"github.com/antarex-ai/dashboard/util/metrics"
	"github.com/antarex-ai/dashboard/web/access"
	"github.com/antarex-ai/dashboard/web/entity"
	"github.com/antarex-ai/dashboard/web/locale"
	"github.com/antarex-ai/dashboard/web/session"

	"github.com/gin-gonic/gin"
)

// IsAPI reports whether c expects a JSON answer rather than a page.
func IsAPI(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.HasPrefix(c.Request.URL.Path, c.GetString("base_path")+"api/")
}

// RequireLogin lets only authenticated sessions through. Pages redirect to
// the login form, API calls get 401.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.FromContext(c).IsAuthenticated() {
			unauthenticated(c)
			return
		}
		c.Next()
	}
}

// RequireCapability lets through sessions whose role holds capability. A
// denied page redirects to the dashboard with a "not permitted" notice.
func RequireCapability(capability access.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := session.FromContext(c).Current()
		if !snap.Authenticated() {
			unauthenticated(c)
			return
		}
		if !access.Allows(snap.Caller(), capability) {
			metrics.PolicyDenials.WithLabelValues(string(capability)).Inc()
			forbidden(c)
			return
		}
		c.Next()
	}
}

func unauthenticated(c *gin.Context) {
	if IsAPI(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{Msg: locale.I18n(c, "errors.authentication")})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, c.GetString("base_path"))
	c.Abort()
}

func forbidden(c *gin.Context) {
	if IsAPI(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, entity.Msg{Msg: locale.I18n(c, "errors.authorization")})
		return
	}
	session.AddNotice(c, session.NoticeForbidden)
	c.Redirect(http.StatusSeeOther, c.GetString("base_path")+"dashboard")
	c.Abort()
}
