package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/sit-pipeline/api/handlers"
	"github.com/feichai0017/sit-pipeline/api/middleware"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger, origins ...string) {
	// 全局中间件
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(logger.NewContextLogger(log.Named("http"))))
	r.Use(middleware.CORS(origins...))

	r.GET("/health", h.Health.Health)

	// API 版本组
	v1 := r.Group("/api/v1")

	scans := v1.Group("/scans")
	{
		scans.POST("", h.Scan.CreateScan)
		scans.GET("/:id", h.Scan.GetScan)
		scans.GET("/:id/files", h.Scan.ListFiles)
		scans.GET("/:id/candidates", h.Scan.ListCandidates)
		scans.GET("/:id/progress", h.Scan.GetProgress)
		scans.GET("/:id/events", h.Scan.Events)
	}

	sits := v1.Group("/sits")
	{
		sits.POST("", h.Sit.CreateSit)
		sits.GET("/:id", h.Sit.GetSit)
		sits.POST("/:id/elements", h.Sit.AddElement)
		sits.POST("/:id/groups", h.Sit.AddGroup)
		sits.POST("/:id/filters", h.Sit.AddFilter)
		sits.POST("/:id/publish", h.Sit.Publish)
		sits.POST("/:id/test", h.Sit.TestSit)
	}
}
