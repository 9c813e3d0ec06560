package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"interviewer/internal/interview"
)

// RoomHandler 负责面试间与简历挂载相关的 API 请求。
type RoomHandler struct {
	rooms *interview.Service
}

// NewRoomHandler 构造 RoomHandler。
func NewRoomHandler(rooms *interview.Service) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

type createRoomRequest struct {
	Name     string `json:"name" binding:"required"`
	ResumeID string `json:"resume_id"`
}

type attachResumeRequest struct {
	ResumeID string `json:"resume_id" binding:"required"`
}

// CreateRoom 创建面试间，可同时挂载一份已发布简历。
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	room, err := h.rooms.CreateRoom(c.Request.Context(), owner, req.Name, req.ResumeID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// GetRoom 返回面试间。
func (h *RoomHandler) GetRoom(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	room, err := h.rooms.GetRoom(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// AttachResume 挂载简历，只接受已发布的简历。
func (h *RoomHandler) AttachResume(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req attachResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "resume_id is required")
		return
	}
	room, err := h.rooms.AttachResume(c.Request.Context(), c.Param("id"), req.ResumeID, owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// DetachResume 清空面试间的简历引用。
func (h *RoomHandler) DetachResume(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	room, err := h.rooms.DetachResume(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}
