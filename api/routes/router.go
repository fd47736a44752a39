package routes

import (
	"brutalist/internal/handlers/web"
	"brutalist/internal/services"

	"github.com/gin-gonic/gin"
)

func InitRouter(reportService services.ReportServiceMethods, topicService services.TopicServiceMethods) *gin.Engine {
	router := gin.Default()

	indexHandler := web.NewIndexHandler(reportService, topicService)
	reportWebHandler := web.NewReportWebHandler(reportService)

	// REST APIs
	api := router.Group("/api")
	{
		InitReportRoutes(api, reportService, topicService)
		InitTopicRoutes(api, topicService)
	}

	// web pages
	pages := router.Group("/")
	{
		pages.GET("/", indexHandler.HomePage)
		pages.GET("/reports/:id", reportWebHandler.ReportDetailPage)
	}

	return router
}
