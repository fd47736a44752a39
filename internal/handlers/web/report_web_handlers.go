package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"brutalist/internal/services"
	"brutalist/pkg/logger"
	"brutalist/pkg/parsers"
	"brutalist/templates"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ReportWebHandler struct {
	reportService services.ReportServiceMethods
	logger        *logger.Logger
}

func NewReportWebHandler(reportService services.ReportServiceMethods) *ReportWebHandler {
	return &ReportWebHandler{
		reportService: reportService,
		logger:        logger.NewLogger(logrus.InfoLevel),
	}
}

func (h *ReportWebHandler) ReportDetailPage(c *gin.Context) {
	reportID := c.Param("id")

	report, err := h.reportService.GetReportByUUID(reportID)
	if errors.Is(err, services.ErrReportNotFound) || (err == nil && report == nil) {
		h.logger.WithField("report_id", reportID).Warn("Report not found")
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("report_id", reportID).Error("Failed to load report detail")
		c.Status(http.StatusInternalServerError)
		return
	}

	var result *parsers.AnalysisResult
	if report.ResultJSON != "" {
		result = &parsers.AnalysisResult{}
		if err := json.Unmarshal([]byte(report.ResultJSON), result); err != nil {
			h.logger.WithError(err).WithField("report_id", reportID).Warn("Stored result is not valid JSON")
			result = nil
		}
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := templates.ReportDetailPage(report, result).Render(c, c.Writer); err != nil {
		h.logger.WithError(err).WithField("report_id", reportID).Error("Failed to render report detail page")
	}
}
