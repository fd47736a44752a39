package web

import (
	"net/http"

	"brutalist/internal/services"
	"brutalist/pkg/logger"
	"brutalist/templates"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type IndexHandler struct {
	reportService services.ReportServiceMethods
	topicService  services.TopicServiceMethods
	logger        *logger.Logger
}

func NewIndexHandler(reportService services.ReportServiceMethods, topicService services.TopicServiceMethods) *IndexHandler {
	return &IndexHandler{
		reportService: reportService,
		topicService:  topicService,
		logger:        logger.NewLogger(logrus.InfoLevel),
	}
}

func (h *IndexHandler) HomePage(c *gin.Context) {
	reports, err := h.reportService.ListReports()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list reports")
		c.Status(http.StatusInternalServerError)
		return
	}

	var topics []string
	for _, t := range h.topicService.ListTopics() {
		topics = append(topics, t.Name)
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := templates.Home(reports, topics).Render(c, c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to render home template")
	}
}
