package controller

import (
	"time"

	"github.com/antarex-ai/dashboard/web/access"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/middleware"
	"github.com/antarex-ai/dashboard/web/service"
	"github.com/antarex-ai/dashboard/web/session"

	"github.com/gin-gonic/gin"
)

// APIController serves the JSON endpoints the pages call.
type APIController struct {
	BaseController

	authService service.AuthService

	alertController     *AlertController
	userAdminController *UserAdminController
}

func NewAPIController(g *gin.RouterGroup, client *backend.Client, alerts *service.AlertService) *APIController {
	a := &APIController{BaseController: BaseController{client: client}}
	a.initRouter(g, alerts)
	return a
}

func (a *APIController) initRouter(g *gin.RouterGroup, alerts *service.AlertService) {
	api := g.Group("/api")
	api.Use(middleware.RequireLogin())

	api.GET("/me", a.me)
	api.POST("/password", middleware.RequireCapability(access.ChangeOwnPassword), a.changePassword)

	a.alertController = NewAlertController(api, a.client, alerts)
	a.userAdminController = NewUserAdminController(api, a.client)
}

// meResponse describes the session without its token, which never leaves
// the server.
type meResponse struct {
	Username      string              `json:"username"`
	Role          access.Role         `json:"role"`
	EstablishedAt time.Time           `json:"establishedAt"`
	ExpiresAt     *time.Time          `json:"expiresAt"`
	Capabilities  []access.Capability `json:"capabilities"`
}

func (a *APIController) me(c *gin.Context) {
	snap := session.FromContext(c).Current()
	resp := meResponse{
		Username:      snap.Username,
		Role:          snap.Role,
		EstablishedAt: snap.EstablishedAt,
		Capabilities:  make([]access.Capability, 0, len(access.AllCapabilities)),
	}
	if !snap.ExpiresAt.IsZero() {
		resp.ExpiresAt = &snap.ExpiresAt
	}
	for _, cp := range access.AllCapabilities {
		if access.Allows(snap.Caller(), cp) {
			resp.Capabilities = append(resp.Capabilities, cp)
		}
	}
	jsonObj(c, resp)
}

type passwordForm struct {
	OldPassword string `json:"old_password" form:"old_password"`
	NewPassword string `json:"new_password" form:"new_password"`
}

func (a *APIController) changePassword(c *gin.Context) {
	var form passwordForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, "change password", &backend.Error{Kind: backend.KindValidation, Message: err.Error()})
		return
	}
	msg, err := a.authService.ChangePassword(c.Request.Context(), a.adapter(c), form.OldPassword, form.NewPassword)
	if err != nil {
		respondError(c, "change password", err)
		return
	}
	jsonMsg(c, msg)
}
