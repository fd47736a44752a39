package services

import (
	"encoding/json"
	"fmt"

	"brutalist/internal/dao"
	"brutalist/internal/models"
	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/logger"
	"brutalist/pkg/parsers"
)

// ReportStatusManager persists status transitions. Every change reloads the
// row first, so a report deleted mid-run is not written back.
type ReportStatusManager struct {
	reportDao dao.ReportDAO
	logger    *logger.Logger
}

func newReportStatusManager(reportDao dao.ReportDAO, logger *logger.Logger) *ReportStatusManager {
	return &ReportStatusManager{
		reportDao: reportDao,
		logger:    logger,
	}
}

func (m *ReportStatusManager) update(reportID string, mutate func(*models.Report)) error {
	report, err := m.reportDao.GetReportByUUID(reportID)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	if report == nil {
		return fmt.Errorf("report %s not found", reportID)
	}

	mutate(report)

	if err := m.reportDao.UpdateReport(report); err != nil {
		return fmt.Errorf("persist report: %w", err)
	}
	return nil
}

func (m *ReportStatusManager) MarkRunning(reportID string) error {
	return m.update(reportID, func(r *models.Report) {
		r.Status = models.StatusRunning
	})
}

// UpdateProgress stores the latest progress counters of a running report.
func (m *ReportStatusManager) UpdateProgress(reportID string, lines int, ev parsers.Event) error {
	return m.update(reportID, func(r *models.Report) {
		r.Lines = lines
		if ev.Message != "" {
			r.Message = ev.Message
		}
		if ev.Kind == parsers.EventProgress {
			r.Processed = ev.Processed
			r.Total = ev.Total
		}
	})
}

func (m *ReportStatusManager) MarkCompleted(reportID, output string, lines int, result *parsers.AnalysisResult, archivePath string) error {
	var resultJSON string
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		resultJSON = string(data)
	}

	return m.update(reportID, func(r *models.Report) {
		r.Status = models.StatusCompleted
		r.Output = output
		r.Lines = lines
		r.ResultJSON = resultJSON
		r.ArchivePath = archivePath
		r.ErrorKind = ""
		r.ErrorMessage = ""
		if result != nil {
			r.TotalGroups = result.TotalGroups
			r.TotalHeadlines = result.TotalHeadlines
			r.Message = "Analysis completed successfully"
		} else {
			r.Message = "Script finished without a result"
		}
	})
}

func (m *ReportStatusManager) MarkFailed(reportID, output string, lines int, runErr error) {
	kind := apperrors.Kind(runErr)
	if kind == "internal" && isReported(runErr) {
		kind = "script_reported"
	}

	err := m.update(reportID, func(r *models.Report) {
		r.Status = models.StatusFailed
		r.Output = output
		r.Lines = lines
		r.ErrorKind = kind
		r.ErrorMessage = runErr.Error()
	})
	if err != nil {
		m.logger.WithFields(logger.Fields{
			"report_id": reportID,
		}).WithError(err).Error("Failed to persist failed report status")
	}

	m.logger.WithFields(logger.Fields{
		"report_id": reportID,
		"kind":      kind,
		"reason":    runErr.Error(),
	}).Error("Report marked as failed")
}
