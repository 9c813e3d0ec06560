package resume

import (
	"errors"

	"interviewer/internal/errcode"
)

// 错误分类。调用方通过 errors.Is 判断类别，具体上下文由 fmt.Errorf 包装。
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrDepthLimitExceeded = errors.New("depth limit exceeded")
	ErrNotFound           = errors.New("resume not found")
	ErrContentMissing     = errors.New("resume content missing")
	ErrRenderFailure      = errors.New("render failure")
	ErrRenderTimeout      = errors.New("render timeout")
	ErrExtractFailure     = errors.New("resume extraction failure")
	ErrStorageFailure     = errors.New("storage failure")
	ErrConflict           = errors.New("concurrent modification")
	ErrNotPublished       = errors.New("resume is not published")
)

var codes = []struct {
	err  error
	code int
}{
	{ErrInvalidArgument, errcode.InvalidArgument},
	{ErrPermissionDenied, errcode.PermissionDenied},
	{ErrDepthLimitExceeded, errcode.DepthLimitExceeded},
	{ErrNotFound, errcode.NotFound},
	{ErrConflict, errcode.Conflict},
	{ErrNotPublished, errcode.NotPublished},
	{ErrContentMissing, errcode.ContentMissing},
	// 超时优先于一般渲染失败判断。
	{ErrRenderTimeout, errcode.RenderTimeout},
	{ErrRenderFailure, errcode.RenderFailure},
	{ErrExtractFailure, errcode.ExtractFailure},
	{ErrStorageFailure, errcode.StorageFailure},
}

// CodeOf 返回错误对应的稳定错误码，未分类的错误视为系统错误。
func CodeOf(err error) int {
	if err == nil {
		return errcode.OK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return errcode.SystemError
}

// Retryable 报告调用方是否可以稍后重试。
func Retryable(err error) bool {
	return errors.Is(err, ErrRenderFailure) ||
		errors.Is(err, ErrExtractFailure) ||
		errors.Is(err, ErrRenderTimeout) ||
		errors.Is(err, ErrStorageFailure) ||
		errors.Is(err, ErrConflict)
}
