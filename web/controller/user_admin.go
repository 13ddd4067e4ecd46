package controller

import (
	"github.com/antarex-ai/dashboard/web/access"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/middleware"
	"github.com/antarex-ai/dashboard/web/service"

	"github.com/gin-gonic/gin"
)

// UserAdminController manages API accounts. Per-account decisions are made
// by the service against a fresh listing.
type UserAdminController struct {
	BaseController

	userAdminService service.UserAdminService
}

func NewUserAdminController(g *gin.RouterGroup, client *backend.Client) *UserAdminController {
	a := &UserAdminController{BaseController: BaseController{client: client}}
	a.initRouter(g)
	return a
}

func (a *UserAdminController) initRouter(g *gin.RouterGroup) {
	users := g.Group("/users")
	users.Use(middleware.RequireCapability(access.ListUsers))

	users.GET("", a.list)
	users.POST("", middleware.RequireCapability(access.AddUser), a.add)
	users.DELETE("/:username", a.delete)
	users.POST("/:username/reset-password", a.resetPassword)
}

func (a *UserAdminController) list(c *gin.Context) {
	rows, err := a.userAdminService.List(c.Request.Context(), a.adapter(c))
	if err != nil {
		respondError(c, "list users", err)
		return
	}
	jsonObj(c, rows)
}

type addUserForm struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

func (a *UserAdminController) add(c *gin.Context) {
	var form addUserForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, "add user", &backend.Error{Kind: backend.KindValidation, Message: err.Error()})
		return
	}
	msg, err := a.userAdminService.Add(c.Request.Context(), a.adapter(c), form.Username, form.Password, form.Role)
	if err != nil {
		respondError(c, "add user", err)
		return
	}
	jsonMsg(c, msg)
}

func (a *UserAdminController) delete(c *gin.Context) {
	msg, err := a.userAdminService.Delete(c.Request.Context(), a.adapter(c), c.Param("username"))
	if err != nil {
		respondError(c, "delete user", err)
		return
	}
	jsonMsg(c, msg)
}

type resetPasswordForm struct {
	NewPassword string `json:"new_password" form:"new_password"`
}

func (a *UserAdminController) resetPassword(c *gin.Context) {
	var form resetPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, "reset password", &backend.Error{Kind: backend.KindValidation, Message: err.Error()})
		return
	}
	msg, err := a.userAdminService.ResetPassword(c.Request.Context(), a.adapter(c), c.Param("username"), form.NewPassword)
	if err != nil {
		respondError(c, "reset password", err)
		return
	}
	jsonMsg(c, msg)
}
