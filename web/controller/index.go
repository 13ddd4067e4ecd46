package controller

import (
	"net/http"

	"github.com/antarex-ai/dashboard/config"
	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/middleware"
	"github.com/antarex-ai/dashboard/web/service"
	"github.com/antarex-ai/dashboard/web/session"

	"github.com/gin-gonic/gin"
)

// LoginForm represents the login request structure.
type LoginForm struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// IndexController handles the login form, login and logout.
type IndexController struct {
	BaseController

	authService service.AuthService
}

func NewIndexController(g *gin.RouterGroup, client *backend.Client) *IndexController {
	a := &IndexController{BaseController: BaseController{client: client}}
	a.initRouter(g)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup) {
	g.GET("/", a.index)
	g.GET("/logout", a.logout)

	g.POST("/login", middleware.RateLimitMiddleware(middleware.DefaultRateLimitConfig(config.GetLoginRateLimit())), a.login)
}

// index shows the login form, or sends logged-in users to the dashboard.
func (a *IndexController) index(c *gin.Context) {
	if session.FromContext(c).IsAuthenticated() {
		c.Redirect(http.StatusTemporaryRedirect, c.GetString("base_path")+"dashboard")
		return
	}
	notices := session.TakeNotices(c)
	messages := make([]string, 0, len(notices))
	for _, n := range notices {
		messages = append(messages, I18nWeb(c, "notices."+n))
	}
	html(c, "login.html", "pages.login.title", gin.H{"notices": messages})
}

func (a *IndexController) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "pages.login.toasts.invalidFormData"))
		return
	}

	snap, err := a.authService.Login(c.Request.Context(), a.adapter(c), form.Username, form.Password)
	if err != nil {
		if backend.KindOf(err) == backend.KindAuthentication {
			msg := backend.MessageOf(err)
			if msg == "" {
				msg = I18nWeb(c, "pages.login.toasts.wrongUsernameOrPassword")
			}
			pureJsonMsg(c, http.StatusUnauthorized, false, msg)
			return
		}
		respondError(c, "login", err)
		return
	}

	jsonMsgObj(c, I18nWeb(c, "pages.login.toasts.successLogin"), gin.H{
		"username": snap.Username,
		"role":     snap.Role,
		"redirect": c.GetString("base_path") + "dashboard",
	})
}

func (a *IndexController) logout(c *gin.Context) {
	if err := a.authService.Logout(c.Request.Context(), a.adapter(c)); err != nil {
		logger.Warning("unable to clear session:", err)
	} else {
		session.AddNotice(c, session.NoticeLoggedOut)
	}
	c.Redirect(http.StatusTemporaryRedirect, c.GetString("base_path"))
}
