package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"interviewer/internal/api/middleware"
	"interviewer/internal/auth"
	"interviewer/internal/intake"
	"interviewer/internal/interview"
	"interviewer/internal/status"
	"interviewer/internal/tree"
)

// Deps 汇总路由需要的服务。
type Deps struct {
	Tree           *tree.Engine
	Status         *status.Engine
	Rooms          *interview.Service
	// Intake 为 nil 时不注册上传路由。
	Intake         *intake.Service
	Auth           *auth.AuthService
	Redis          *redis.Client
	Logger         *slog.Logger
	InternalSecret string
	PreviewPerHour int
	AllowedOrigins []string
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, deps Deps) {
	var limiter redisRateCounter
	if deps.Redis != nil {
		limiter = deps.Redis
	}
	resumeHandler := NewResumeHandler(deps.Tree, deps.Status, limiter, deps.PreviewPerHour)
	roomHandler := NewRoomHandler(deps.Rooms)
	authMiddleware := middleware.AuthMiddleware(deps.Auth)

	v1 := router.Group("/v1")
	{
		if deps.Redis != nil {
			wsHandler := NewWsHandler(deps.Redis, deps.Auth, deps.Logger, deps.AllowedOrigins)
			v1.GET("/ws", wsHandler.HandleConnection)
		}

		resumeGroup := v1.Group("/resumes")
		resumeGroup.Use(authMiddleware)
		{
			resumeGroup.POST("", resumeHandler.CreateResume)
			resumeGroup.GET("", resumeHandler.ListTrees)
			resumeGroup.GET("/publishable", resumeHandler.ListPublishable)
			if deps.Intake != nil {
				resumeGroup.POST("/upload", NewUploadHandler(deps.Intake).UploadResume)
			}
			resumeGroup.GET("/:id", resumeHandler.GetResume)
			resumeGroup.PATCH("/:id", resumeHandler.UpdateResume)
			resumeGroup.DELETE("/:id", resumeHandler.DeleteResume)
			resumeGroup.POST("/:id/fork", resumeHandler.ForkResume)
			resumeGroup.GET("/:id/subtree", resumeHandler.GetSubtree)
			resumeGroup.GET("/:id/content", resumeHandler.GetContent)
			resumeGroup.PUT("/:id/content", resumeHandler.SaveContent)
			resumeGroup.POST("/:id/publish", resumeHandler.Publish)
			resumeGroup.POST("/:id/unpublish", resumeHandler.Unpublish)
			resumeGroup.POST("/:id/preview", resumeHandler.Preview)
			resumeGroup.GET("/:id/published-url", resumeHandler.GetPublishedURL)
		}

		roomGroup := v1.Group("/rooms")
		roomGroup.Use(authMiddleware)
		{
			roomGroup.POST("", roomHandler.CreateRoom)
			roomGroup.GET("/:id", roomHandler.GetRoom)
			roomGroup.PUT("/:id/resume", roomHandler.AttachResume)
			roomGroup.DELETE("/:id/resume", roomHandler.DetachResume)
		}

		if deps.InternalSecret != "" {
			internal := v1.Group("/internal")
			internal.Use(middleware.InternalSecretMiddleware(deps.InternalSecret))
			internal.GET("/resumes/:id/rendercv.yaml", resumeHandler.GetRenderDescription)
		}
	}
}
