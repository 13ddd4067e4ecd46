package controller

import (
	"net/http"

	"github.com/antarex-ai/dashboard/util/common"
	"github.com/antarex-ai/dashboard/web/access"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/middleware"
	"github.com/antarex-ai/dashboard/web/service"
	"github.com/antarex-ai/dashboard/web/session"

	"github.com/gin-gonic/gin"
)

// PanelController renders the pages behind the login.
type PanelController struct {
	BaseController

	alertService     *service.AlertService
	userAdminService service.UserAdminService
}

func NewPanelController(g *gin.RouterGroup, client *backend.Client, alerts *service.AlertService) *PanelController {
	a := &PanelController{
		BaseController: BaseController{client: client},
		alertService:   alerts,
	}
	a.initRouter(g)
	return a
}

func (a *PanelController) initRouter(g *gin.RouterGroup) {
	g.GET("/dashboard", middleware.RequireCapability(access.ViewDashboard), a.dashboard)
	g.GET("/upload", middleware.RequireCapability(access.UploadAlerts), a.upload)
	g.GET("/manage-users", middleware.RequireCapability(access.ListUsers), a.manageUsers)
	g.GET("/add-user", middleware.RequireCapability(access.AddUser), a.addUser)
}

func (a *PanelController) dashboard(c *gin.Context) {
	overview, err := a.alertService.Overview(c.Request.Context(), a.adapter(c))
	if err != nil {
		a.pageError(c, "dashboard.html", "pages.dashboard.title", err)
		return
	}
	html(c, "dashboard.html", "pages.dashboard.title", gin.H{
		"overview": overview,
		"verdicts": backend.Verdicts,
		"notices":  a.notices(c),
	})
}

func (a *PanelController) upload(c *gin.Context) {
	html(c, "upload.html", "pages.upload.title", gin.H{
		"maxFiles": backend.MaxUploadFiles,
		"maxSize":  common.FormatSize(maxUploadBody),
	})
}

func (a *PanelController) manageUsers(c *gin.Context) {
	rows, err := a.userAdminService.List(c.Request.Context(), a.adapter(c))
	if err != nil {
		a.pageError(c, "manage_users.html", "pages.users.title", err)
		return
	}
	html(c, "manage_users.html", "pages.users.title", gin.H{"users": rows})
}

func (a *PanelController) addUser(c *gin.Context) {
	html(c, "add_user.html", "pages.addUser.title", gin.H{"roles": access.Roles})
}

func (a *PanelController) notices(c *gin.Context) []string {
	kinds := session.TakeNotices(c)
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, I18nWeb(c, "notices."+k))
	}
	return out
}

// pageError renders name with the failure in place of its content. A lost
// session goes back to the login form, where the expiry notice waits.
func (a *PanelController) pageError(c *gin.Context, name, title string, err error) {
	if backend.KindOf(err) == backend.KindAuthentication {
		c.Redirect(http.StatusSeeOther, c.GetString("base_path"))
		return
	}
	status, m := errorStatus(c, err)
	htmlStatus(c, status, name, title, gin.H{"error": m.Msg})
}
