package handler

import (
	"net/http"

	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/logic"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// HandleError 按业务错误分类返回状态码，其余错误记录日志并返回 500
func HandleError(c *gin.Context, err error) {
	be, ok := logic.AsError(err)
	if !ok {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, http.StatusInternalServerError, "服务器内部错误")
		return
	}

	c.JSON(StatusFor(be.Kind), Response{
		Success: false,
		Code:    be.Code,
		Message: err.Error(),
	})
}

// StatusFor 错误分类对应的HTTP状态码
func StatusFor(kind logic.ErrorKind) int {
	switch kind {
	case logic.KindValidation:
		return http.StatusBadRequest
	case logic.KindAuthorization:
		return http.StatusForbidden
	case logic.KindNotFound:
		return http.StatusNotFound
	case logic.KindState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
