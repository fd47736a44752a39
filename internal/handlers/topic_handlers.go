package handlers

import (
	"net/http"

	"brutalist/internal/services"

	"github.com/gin-gonic/gin"
)

type TopicHandler struct {
	topicService services.TopicServiceMethods
}

func NewTopicHandler(topicService services.TopicServiceMethods) *TopicHandler {
	return &TopicHandler{topicService: topicService}
}

func (h *TopicHandler) ListTopics(c *gin.Context) {
	c.JSON(http.StatusOK, h.topicService.ListTopics())
}
