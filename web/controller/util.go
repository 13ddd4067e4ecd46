package controller

import (
	"errors"
	"mime"
	"net/http"

	"github.com/antarex-ai/dashboard/config"
	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/web/access"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/entity"
	"github.com/antarex-ai/dashboard/web/locale"
	"github.com/antarex-ai/dashboard/web/session"

	"github.com/gin-gonic/gin"
)

// jsonMsg sends a successful JSON response with a message.
func jsonMsg(c *gin.Context, msg string) {
	jsonMsgObj(c, msg, nil)
}

// jsonObj sends a successful JSON response with an object.
func jsonObj(c *gin.Context, obj any) {
	jsonMsgObj(c, "", obj)
}

func jsonMsgObj(c *gin.Context, msg string, obj any) {
	c.JSON(http.StatusOK, entity.Msg{Success: true, Msg: msg, Obj: obj})
}

// pureJsonMsg sends a JSON message with a custom status code.
func pureJsonMsg(c *gin.Context, statusCode int, success bool, msg string) {
	c.JSON(statusCode, entity.Msg{
		Success: success,
		Msg:     msg,
	})
}

// errorStatus maps a failure to the status and message shown to the user.
// Conflicts carry the API's own explanation.
func errorStatus(c *gin.Context, err error) (int, entity.Msg) {
	var e *backend.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, entity.Msg{Msg: I18nWeb(c, "errors.internal")}
	}
	switch e.Kind {
	case backend.KindAuthentication:
		return http.StatusUnauthorized, entity.Msg{Msg: I18nWeb(c, "errors.authentication")}
	case backend.KindAuthorization:
		return http.StatusForbidden, entity.Msg{Msg: I18nWeb(c, "errors.authorization")}
	case backend.KindValidation:
		return http.StatusBadRequest, entity.Msg{Msg: e.Message, Field: e.Field}
	case backend.KindConflict:
		return http.StatusConflict, entity.Msg{Msg: e.Message}
	default:
		return http.StatusBadGateway, entity.Msg{Msg: I18nWeb(c, "errors.transport")}
	}
}

// respondError answers a failed API call with its mapped status.
func respondError(c *gin.Context, action string, err error) {
	status, m := errorStatus(c, err)
	if status >= http.StatusInternalServerError {
		logger.Warningf("%s failed: %v", action, err)
	} else {
		logger.Debugf("%s refused: %v", action, err)
	}
	c.AbortWithStatusJSON(status, m)
}

// html renders a page with the data every layout needs.
func html(c *gin.Context, name string, title string, data gin.H) {
	htmlStatus(c, http.StatusOK, name, title, data)
}

func htmlStatus(c *gin.Context, status int, name string, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["title"] = title
	data["request_uri"] = c.Request.RequestURI
	data["base_path"] = c.GetString("base_path")
	data["loc"] = locale.FromContext(c)
	snap := session.FromContext(c).Current()
	if snap.Authenticated() {
		data["user"] = snap
		can := make(map[string]bool)
		for capability := range access.Capabilities(snap.Caller()) {
			can[string(capability)] = true
		}
		data["can"] = can
	}
	c.HTML(status, name, getContext(data))
}

// getContext adds version and other context data to the provided gin.H.
func getContext(h gin.H) gin.H {
	a := gin.H{
		"cur_ver": config.GetVersion(),
	}
	for key, value := range h {
		a[key] = value
	}
	return a
}

// sendBlob streams a file from the API to the browser as an attachment.
func sendBlob(c *gin.Context, blob *backend.Blob) {
	defer blob.Body.Close()
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": blob.Name})
	c.DataFromReader(http.StatusOK, blob.ContentLength, blob.ContentType, blob.Body, map[string]string{
		"Content-Disposition": disposition,
	})
}
