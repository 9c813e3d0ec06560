package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"interviewer/internal/intake"
)

// multipartOverhead 是表单字段与边界占用的额外字节。
const multipartOverhead = 1 << 20

// UploadHandler 处理简历 PDF 导入。
type UploadHandler struct {
	intake *intake.Service
}

// NewUploadHandler 构造 UploadHandler。
func NewUploadHandler(svc *intake.Service) *UploadHandler {
	return &UploadHandler{intake: svc}
}

// UploadResume 接收表单字段 resume（PDF）及可选的 name/target_company/target_position，导入为一棵新树。
func (h *UploadHandler) UploadResume(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	maxBytes := h.intake.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)
	file, err := c.FormFile("resume")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			PayloadTooLarge(c, "file too large")
			return
		}
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxBytes {
		PayloadTooLarge(c, "file too large")
		return
	}

	reader, err := file.Open()
	if err != nil {
		BadRequest(c, "failed to open file")
		return
	}
	defer reader.Close()
	data, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		BadRequest(c, "failed to read file")
		return
	}

	result, err := h.intake.Import(c.Request.Context(), owner, intake.Upload{
		Filename:       file.Filename,
		Data:           data,
		Name:           c.PostForm("name"),
		TargetCompany:  c.PostForm("target_company"),
		TargetPosition: c.PostForm("target_position"),
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
