package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"gapgiraffe/internal/api/middleware"
	"gapgiraffe/internal/config"
	"gapgiraffe/internal/ingest"
	"gapgiraffe/internal/repository"
	"gapgiraffe/internal/tracker"
)

// Dependencies 汇总路由需要的服务。Queue、Exports、Redis 可以为 nil。
type Dependencies struct {
	Config     config.APIConfig
	Analysis   config.AnalysisConfig
	Repository *repository.Repository
	Tracker    *tracker.Engine
	Ingester   *ingest.Ingester
	Queue      *TaskQueue
	Exports    ExportLister
	Redis      *redis.Client
	Logger     *slog.Logger
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	resumeHandler := NewResumeHandler(deps.Repository)
	jobHandler := NewJobHandler(deps.Repository, deps.Ingester, deps.Tracker, deps.Queue, deps.Analysis.AutoAnalyze)
	applicationHandler := NewApplicationHandler(deps.Repository, deps.Tracker, deps.Queue, deps.Exports)
	modelHandler := NewModelHandler(deps.Repository)
	messageHandler := NewMessageHandler(deps.Repository, deps.Ingester, deps.Tracker, deps.Queue, deps.Analysis.AutoAnalyze)

	v1 := router.Group("/v1")
	{
		if deps.Redis != nil {
			// WebSocket 在首条消息中鉴权，不走 Header 校验。
			wsHandler := NewWsHandler(deps.Redis, deps.Config.Token, deps.Logger, deps.Config.AllowedOrigins)
			v1.GET("/ws", wsHandler.HandleConnection)
		}

		authed := v1.Group("")
		authed.Use(middleware.APITokenMiddleware(deps.Config.Token))

		authed.POST("/messages", messageHandler.HandleMessage)

		resumeGroup := authed.Group("/resumes")
		{
			resumeGroup.GET("", resumeHandler.ListResumes)
			resumeGroup.POST("", resumeHandler.CreateResume)
			resumeGroup.GET("/master", resumeHandler.GetMasterResume)
			resumeGroup.GET("/:id", resumeHandler.GetResume)
			resumeGroup.PATCH("/:id", resumeHandler.UpdateResume)
			resumeGroup.DELETE("/:id", resumeHandler.DeleteResume)
			resumeGroup.POST("/:id/master", resumeHandler.SetMaster)
			resumeGroup.GET("/:id/versions", resumeHandler.ListVersions)
		}

		authed.GET("/resume-versions/:id", resumeHandler.GetVersion)

		jobGroup := authed.Group("/jobs")
		{
			jobGroup.GET("", jobHandler.ListJobs)
			jobGroup.POST("", jobHandler.IngestJob)
			jobGroup.GET("/lookup", jobHandler.LookupJob)
			jobGroup.GET("/:id", jobHandler.GetJob)
			jobGroup.PATCH("/:id", jobHandler.UpdateJob)
			jobGroup.POST("/:id/analyze", jobHandler.AnalyzeJob)
			jobGroup.POST("/:id/track", jobHandler.TrackJob)
			jobGroup.GET("/:id/applications", jobHandler.ListApplications)
			jobGroup.GET("/:id/versions", jobHandler.ListVersions)
			jobGroup.POST("/:id/versions", jobHandler.CreateVersion)
		}

		applicationGroup := authed.Group("/applications")
		{
			applicationGroup.GET("", applicationHandler.ListApplications)
			applicationGroup.GET("/stats", applicationHandler.Statistics)
			applicationGroup.GET("/board", applicationHandler.Board)
			applicationGroup.GET("/export", applicationHandler.ExportCSV)
			applicationGroup.POST("/export", applicationHandler.RequestExport)
			applicationGroup.GET("/exports", applicationHandler.ListExports)
			applicationGroup.GET("/:id", applicationHandler.GetApplication)
			applicationGroup.PATCH("/:id", applicationHandler.UpdateApplication)
			applicationGroup.POST("/:id/status", applicationHandler.UpdateStatus)
			applicationGroup.POST("/:id/move", applicationHandler.MoveToColumn)
			applicationGroup.POST("/:id/reminders", applicationHandler.AddReminder)
			applicationGroup.PATCH("/:id/reminders/:reminderId", applicationHandler.CompleteReminder)
		}

		modelGroup := authed.Group("/models")
		{
			modelGroup.GET("", modelHandler.ListModels)
			modelGroup.GET("/default", modelHandler.GetDefaultModel)
			modelGroup.POST("", modelHandler.CreateModel)
			modelGroup.PATCH("/:id", modelHandler.UpdateModel)
		}
	}
}
