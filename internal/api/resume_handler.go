package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"interviewer/internal/api/middleware"
	"interviewer/internal/resume"
	"interviewer/internal/status"
	"interviewer/internal/tree"
)

// ResumeHandler 负责处理简历版本树相关的 API 请求。
type ResumeHandler struct {
	tree           *tree.Engine
	status         *status.Engine
	limiter        redisRateCounter
	previewPerHour int
}

// NewResumeHandler 构造 ResumeHandler。limiter 为 nil 或 previewPerHour 为 0 时不限流。
func NewResumeHandler(treeEngine *tree.Engine, statusEngine *status.Engine, limiter redisRateCounter, previewPerHour int) *ResumeHandler {
	return &ResumeHandler{
		tree:           treeEngine,
		status:         statusEngine,
		limiter:        limiter,
		previewPerHour: previewPerHour,
	}
}

type createResumeRequest struct {
	Name           string `json:"name" binding:"required"`
	TargetCompany  string `json:"target_company"`
	TargetPosition string `json:"target_position"`
}

type updateResumeRequest struct {
	Name           *string `json:"name"`
	TargetCompany  *string `json:"target_company"`
	TargetPosition *string `json:"target_position"`
}

func requireOwner(c *gin.Context) (string, bool) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
	}
	return owner, ok
}

// CreateResume 创建一棵新树的根节点。
func (h *ResumeHandler) CreateResume(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req createResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	node, err := h.tree.CreateRoot(c.Request.Context(), owner, tree.CreateRootInput{
		Name:           req.Name,
		TargetCompany:  req.TargetCompany,
		TargetPosition: req.TargetPosition,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

// ListTrees 返回当前用户的全部简历树及统计。
func (h *ResumeHandler) ListTrees(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	forest, err := h.tree.ListTrees(c.Request.Context(), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, forest)
}

// ListPublishable 返回可以挂到面试间的简历。
func (h *ResumeHandler) ListPublishable(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	nodes, err := h.status.ListPublishable(c.Request.Context(), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resumes": nodes})
}

// GetResume 返回节点详情。
func (h *ResumeHandler) GetResume(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	detail, err := h.tree.GetNode(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// UpdateResume 修改名称与目标岗位信息。
func (h *ResumeHandler) UpdateResume(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req updateResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	node, err := h.tree.UpdateMetadata(c.Request.Context(), c.Param("id"), owner, tree.UpdateMetadataInput{
		Name:           req.Name,
		TargetCompany:  req.TargetCompany,
		TargetPosition: req.TargetPosition,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// DeleteResume 软删除节点及其全部后代。
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	count, err := h.tree.DeleteSubtree(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": count})
}

// ForkResume 以节点为父创建新的草稿版本。
func (h *ResumeHandler) ForkResume(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	node, err := h.tree.Fork(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

// GetSubtree 返回以节点为根的子树。
func (h *ResumeHandler) GetSubtree(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	sub, err := h.tree.GetSubtree(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// GetContent 返回节点内容。
func (h *ResumeHandler) GetContent(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	content, err := h.status.GetContent(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, content)
}

// SaveContent 整体替换内容，已发布的节点会回到草稿。
func (h *ResumeHandler) SaveContent(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var content resume.Content
	if err := c.ShouldBindJSON(&content); err != nil {
		BadRequest(c, "invalid resume content")
		return
	}
	node, err := h.status.SaveContent(c.Request.Context(), c.Param("id"), owner, content)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// Publish 渲染并发布节点。
func (h *ResumeHandler) Publish(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	result, err := h.status.Publish(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Unpublish 把节点改回草稿。
func (h *ResumeHandler) Unpublish(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	node, err := h.status.Unpublish(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// Preview 生成 24 小时有效的预览 PDF 链接。
func (h *ResumeHandler) Preview(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	if !h.allowPreview(c, owner) {
		TooManyRequests(c, "preview rate limit exceeded")
		return
	}
	signed, err := h.status.Preview(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}

// allowPreview 按用户每小时计数；Redis 不可用时放行。
func (h *ResumeHandler) allowPreview(c *gin.Context, owner string) bool {
	if h.limiter == nil || h.previewPerHour <= 0 {
		return true
	}
	count, err := incrWithTTL(c.Request.Context(), h.limiter, previewRateKey(owner), time.Hour)
	if err != nil {
		middleware.LoggerFromContext(c).Warn("preview rate counter unavailable", slog.Any("error", err))
		return true
	}
	return count <= int64(h.previewPerHour)
}

// GetPublishedURL 返回已发布 PDF 的限时链接。
func (h *ResumeHandler) GetPublishedURL(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	signed, err := h.status.GetPublishedURL(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}

// GetRenderDescription 供内部渲染服务拉取节点的 RenderCV YAML。
func (h *ResumeHandler) GetRenderDescription(c *gin.Context) {
	data, err := h.status.RenderDescription(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/x-yaml; charset=utf-8", data)
}
