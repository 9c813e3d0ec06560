package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"interviewer/internal/api/middleware"
	"interviewer/internal/errcode"
	"interviewer/internal/resume"
)

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": errcode.InvalidArgument, "retryable": false})
}

func PayloadTooLarge(c *gin.Context, msg string) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msg, "code": errcode.InvalidArgument, "retryable": false})
}

func TooManyRequests(c *gin.Context, msg string) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": msg, "retryable": true})
}

// httpStatus 把错误码映射为 HTTP 状态。
var httpStatus = map[int]int{
	errcode.InvalidArgument:    http.StatusBadRequest,
	errcode.PermissionDenied:   http.StatusForbidden,
	errcode.NotFound:           http.StatusNotFound,
	errcode.Conflict:           http.StatusConflict,
	errcode.NotPublished:       http.StatusConflict,
	errcode.DepthLimitExceeded: http.StatusUnprocessableEntity,
	errcode.RenderFailure:      http.StatusBadGateway,
	errcode.ExtractFailure:     http.StatusBadGateway,
	errcode.RenderTimeout:      http.StatusGatewayTimeout,
	errcode.StorageFailure:     http.StatusServiceUnavailable,
}

// publicMessages 是各类错误对外的提示；系统错误不暴露内部细节。
var publicMessages = map[int]string{
	errcode.ContentMissing: "resume content missing",
	errcode.SystemError:    "internal error",
}

// RespondError 按错误分类输出 {error, code, retryable}，并按严重程度记录日志。
func RespondError(c *gin.Context, err error) {
	code := resume.CodeOf(err)
	status, ok := httpStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	msg, hidden := publicMessages[code]
	if !hidden {
		msg = err.Error()
	}

	log := middleware.LoggerFromContext(c)
	switch {
	case status >= 500:
		log.Error("request failed", "code", code, "error", err)
	case errors.Is(err, resume.ErrConflict):
		log.Warn("request conflicted", "error", err)
	}

	c.JSON(status, gin.H{
		"error":     msg,
		"code":      code,
		"retryable": resume.Retryable(err),
	})
}
