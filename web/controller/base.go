// Package controller holds the gin handlers of the Antarex panel: the login
// flow, the role-gated pages and the JSON API the pages call.
package controller

import (
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/locale"
	"github.com/antarex-ai/dashboard/web/session"

	"github.com/gin-gonic/gin"
)

// BaseController gives controllers access to the API on behalf of the
// request's session.
type BaseController struct {
	client *backend.Client
}

// adapter binds the shared API client to the request's session.
func (a *BaseController) adapter(c *gin.Context) *backend.Adapter {
	return a.client.Bind(session.FromContext(c))
}

// I18nWeb translates name for the request's language.
func I18nWeb(c *gin.Context, name string, params ...string) string {
	return locale.I18n(c, name, params...)
}
