package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/maintenance-gin/internal/maintenance"
)

const internalErrorDetail = "an unexpected error occurred, check the request id in server logs"

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
// 处理通过 c.Error 挂载且尚未写出的错误
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		HandleError(c, c.Errors.Last().Err)
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// StatusFor 领域错误对应的 HTTP 状态码
func StatusFor(err error) int {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.Is(err, maintenance.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, maintenance.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, maintenance.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, maintenance.ErrInvariant):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// HandleError 将错误写为统一的错误响应
func HandleError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
		return
	}

	status := StatusFor(err)
	switch status {
	case http.StatusBadRequest:
		Error(c, status, "validation failed", err.Error())
	case http.StatusNotFound:
		Error(c, status, "not found", err.Error())
	case http.StatusConflict:
		Error(c, status, "conflict", err.Error())
	case http.StatusUnprocessableEntity:
		Error(c, status, "invariant violated", err.Error())
	default:
		// 原始错误只进入请求日志,不返回给客户端
		_ = c.Error(err)
		Error(c, status, "internal server error", internalErrorDetail)
	}
}
