package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"brutalist/internal/models"
	"brutalist/internal/services"
	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/logger"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ReportHandler struct {
	reportService services.ReportServiceMethods
	topicService  services.TopicServiceMethods
	logger        *logger.Logger
}

func NewReportHandler(reportService services.ReportServiceMethods, topicService services.TopicServiceMethods) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		topicService:  topicService,
		logger:        logger.NewLogger(logrus.InfoLevel),
	}
}

// bindRequest reads the optional JSON body. An empty body asks for every
// topic, today.
func (h *ReportHandler) bindRequest(c *gin.Context) (ReportRequest, bool) {
	var req ReportRequest
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return req, h.checkTopic(c, req)
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return req, false
	}
	return req, h.checkTopic(c, req)
}

func (h *ReportHandler) checkTopic(c *gin.Context, req ReportRequest) bool {
	if req.Topic != nil && !h.topicService.IsValid(*req.Topic) {
		topics := make([]string, 0)
		for _, t := range h.topicService.ListTopics() {
			topics = append(topics, t.Name)
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  fmt.Sprintf("%v %q", apperrors.ErrInvalidTopic, *req.Topic),
			Topics: topics,
		})
		return false
	}
	return true
}

func (h *ReportHandler) StartReport(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	params := req.Params()
	h.logger.WithFields(logger.Fields{"params": params.String()}).Info("Starting report")

	id, err := h.reportService.StartReport(params)
	if err != nil {
		h.logger.WithError(err).Error("Failed to start report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start report"})
		return
	}
	c.JSON(http.StatusOK, ReportResponse{ReportID: id})
}

// RunReport runs the script to completion within the request.
func (h *ReportHandler) RunReport(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	res, err := h.reportService.RunReportSync(c.Request.Context(), req.Params())
	if err != nil {
		resp := ErrorResponse{Error: err.Error(), Kind: apperrors.Kind(err)}
		if res != nil {
			resp.Output = res.Output
		}

		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperrors.ErrScriptFailure):
			status = http.StatusBadGateway
		case errors.Is(err, apperrors.ErrReportReported):
			status = http.StatusBadGateway
			resp.Kind = "script_reported"
		}

		h.logger.WithError(err).WithField("kind", resp.Kind).Error("Blocking report failed")
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusOK, RunResponse{ReportID: res.ReportID, Output: res.Output, Result: res.Result})
}

// ListReports returns the most recent reports, or one page of all reports
// when page or limit is given.
func (h *ReportHandler) ListReports(c *gin.Context) {
	if c.Query("page") != "" || c.Query("limit") != "" {
		h.listReportsPage(c)
		return
	}

	reports, err := h.reportService.ListReports()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reports"})
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

func (h *ReportHandler) listReportsPage(c *gin.Context) {
	page, pageErr := queryInt(c, "page")
	limit, limitErr := queryInt(c, "limit")
	if pageErr != nil || limitErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination parameters"})
		return
	}

	result, err := h.reportService.ListReportsPage(page, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (h *ReportHandler) GetReportByUUID(c *gin.Context) {
	reportID := c.Param("id")
	report, err := h.reportService.GetReportByUUID(reportID)
	if err != nil && !errors.Is(err, services.ErrReportNotFound) {
		h.logger.WithError(err).WithField("report_id", reportID).Error("Failed to get report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get report"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) DeleteReport(c *gin.Context) {
	reportID := c.Param("id")
	if err := h.reportService.DeleteReport(reportID); err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}
		h.logger.WithError(err).WithField("report_id", reportID).Error("Failed to delete report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete report"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ReportEvents streams a report's output as server-sent events: one
// python-output event per line, then a done event with the final status.
// Finished reports replay their stored output. Each line carries its index
// as the event id, so a reconnecting client sending Last-Event-ID resumes
// after the lines it already has.
func (h *ReportHandler) ReportEvents(c *gin.Context) {
	reportID := c.Param("id")
	lastID := lastEventID(c)

	sub, live := h.reportService.Subscribe(reportID)
	if !live {
		report, err := h.reportService.GetReportByUUID(reportID)
		if err != nil || report == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}

		setEventHeaders(c)
		next := 0
		for _, line := range strings.Split(report.Output, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			sendLine(c, next, lastID, line)
			next++
		}
		h.sendDone(c, reportID)
		return
	}
	defer sub.Cancel()

	setEventHeaders(c)
	next := 0
	for _, line := range sub.History {
		sendLine(c, next, lastID, line)
		next++
	}
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case line, ok := <-sub.Lines:
			if !ok {
				if sub.Dropped != nil && sub.Dropped() {
					// Ending without done lets the client reconnect and resume.
					h.logger.WithReport(reportID).WithField("sent", next).Warn("Event subscriber fell behind, closing stream")
					return
				}
				h.sendDone(c, reportID)
				return
			}
			sendLine(c, next, lastID, line)
			next++
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// lastEventID returns the Last-Event-ID a reconnecting client sent, or -1.
func lastEventID(c *gin.Context) int {
	id, err := strconv.Atoi(c.GetHeader("Last-Event-ID"))
	if err != nil || id < 0 {
		return -1
	}
	return id
}

func sendLine(c *gin.Context, id, lastID int, line string) {
	if id <= lastID {
		return
	}
	c.Render(-1, sse.Event{
		Id:    strconv.Itoa(id),
		Event: services.OutputEvent,
		Data:  line,
	})
}

func setEventHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
}

func (h *ReportHandler) sendDone(c *gin.Context, reportID string) {
	done := gin.H{"report_id": reportID, "status": "unknown"}
	if report, err := h.reportService.GetReportByUUID(reportID); err == nil && report != nil {
		done["status"] = report.Status
		if report.ErrorMessage != "" {
			done["error_message"] = report.ErrorMessage
		}
	}
	c.SSEvent("done", done)
	c.Writer.Flush()
}
