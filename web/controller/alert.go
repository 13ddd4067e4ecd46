package controller

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/antarex-ai/dashboard/web/access"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/middleware"
	"github.com/antarex-ai/dashboard/web/service"

	"github.com/gin-gonic/gin"
)

// maxUploadBody caps a whole upload request.
const maxUploadBody = 256 << 20

// AlertController serves alert listing, transfers and verdict updates.
type AlertController struct {
	BaseController

	alertService *service.AlertService
}

func NewAlertController(g *gin.RouterGroup, client *backend.Client, alerts *service.AlertService) *AlertController {
	a := &AlertController{BaseController: BaseController{client: client}, alertService: alerts}
	a.initRouter(g)
	return a
}

func (a *AlertController) initRouter(g *gin.RouterGroup) {
	g.GET("/alerts", middleware.RequireCapability(access.ViewDashboard), a.list)
	g.POST("/alerts/bulk-update", middleware.RequireCapability(access.UpdateVerdicts), a.bulkUpdate)
	g.GET("/alerts/:filename/download", middleware.RequireCapability(access.DownloadAlert), a.download)
	g.GET("/export/csv", middleware.RequireCapability(access.ExportAlerts), a.exportCSV)
	g.POST("/upload", middleware.RequireCapability(access.UploadAlerts), a.upload)
}

func (a *AlertController) list(c *gin.Context) {
	overview, err := a.alertService.Overview(c.Request.Context(), a.adapter(c))
	if err != nil {
		respondError(c, "list alerts", err)
		return
	}
	jsonObj(c, overview)
}

func (a *AlertController) bulkUpdate(c *gin.Context) {
	var req backend.BulkUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "bulk update", &backend.Error{Kind: backend.KindValidation, Message: err.Error()})
		return
	}
	res, err := a.alertService.BulkUpdate(c.Request.Context(), a.adapter(c), req)
	if err != nil {
		respondError(c, "bulk update", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "pages.dashboard.toasts.bulkUpdated", "count=="+strconv.Itoa(res.Updated)), res)
}

func (a *AlertController) download(c *gin.Context) {
	blob, err := a.alertService.Download(c.Request.Context(), a.adapter(c), c.Param("filename"))
	if err != nil {
		respondError(c, "download", err)
		return
	}
	sendBlob(c, blob)
}

func (a *AlertController) exportCSV(c *gin.Context) {
	blob, err := a.alertService.ExportCSV(c.Request.Context(), a.adapter(c))
	if err != nil {
		respondError(c, "export", err)
		return
	}
	sendBlob(c, blob)
}

func (a *AlertController) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, "upload", &backend.Error{Kind: backend.KindValidation, Field: "files", Message: I18nWeb(c, "pages.upload.toasts.unreadable")})
		return
	}
	defer form.RemoveAll()

	// Either field name is accepted, as the API does.
	headers := make([]*multipart.FileHeader, 0, len(form.File["files"])+len(form.File["file"]))
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["file"]...)
	files := make([]backend.UploadFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondError(c, "upload", &backend.Error{Kind: backend.KindValidation, Field: "files", Message: I18nWeb(c, "pages.upload.toasts.unreadable")})
			return
		}
		opened = append(opened, f)
		files = append(files, backend.UploadFile{Name: fh.Filename, Content: f})
	}

	res, err := a.alertService.Upload(c.Request.Context(), a.adapter(c), files)
	if err != nil {
		respondError(c, "upload", err)
		return
	}
	jsonMsgObj(c, res.Message, res)
}
