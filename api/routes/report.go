package routes

import (
	"brutalist/internal/handlers"
	"brutalist/internal/services"

	"github.com/gin-gonic/gin"
)

func InitReportRoutes(router *gin.RouterGroup, reportService services.ReportServiceMethods, topicService services.TopicServiceMethods) {
	handler := handlers.NewReportHandler(reportService, topicService)

	reportRoutes := router.Group("/reports")
	{
		reportRoutes.POST("", handler.StartReport)
		reportRoutes.POST("/run", handler.RunReport)
		reportRoutes.GET("", handler.ListReports)
		reportRoutes.GET("/:id", handler.GetReportByUUID)
		reportRoutes.DELETE("/:id", handler.DeleteReport)
		reportRoutes.GET("/:id/events", handler.ReportEvents)
	}
}

func InitTopicRoutes(router *gin.RouterGroup, topicService services.TopicServiceMethods) {
	handler := handlers.NewTopicHandler(topicService)
	router.GET("/topics", handler.ListTopics)
}
