package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/maintenance-gin/internal/maintenance"
	"github.com/mautops/maintenance-gin/internal/utils"
)

// pathID 读取并校验路径中的 ID,失败时写出 400
func pathID(ctx *gin.Context, name string) (string, bool) {
	id := ctx.Param(name)
	if err := utils.ValidateID(id); err != nil {
		HandleError(ctx, maintenance.Validationf("invalid %s: %v", name, err))
		return "", false
	}
	return id, true
}

// bindJSON 绑定请求体,失败时写出 400
func bindJSON(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return false
	}
	return true
}

// bindOptionalJSON 绑定可为空的请求体,空请求体(包括分块传输)视为未提供
func bindOptionalJSON(ctx *gin.Context, req interface{}) bool {
	if ctx.Request.Body == nil || ctx.Request.ContentLength == 0 {
		return true
	}
	if err := ctx.ShouldBindJSON(req); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return false
	}
	return true
}
