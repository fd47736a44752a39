package services

import (
	"fmt"
	"path/filepath"
	"strings"

	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/logger"
	"brutalist/pkg/parsers"
	"brutalist/pkg/runner"
)

type ReportExecutor struct {
	reportService *ReportService
}

func newReportExecutor(s *ReportService) *ReportExecutor {
	return &ReportExecutor{reportService: s}
}

// runState accumulates what a streaming run has produced so far.
type runState struct {
	output  strings.Builder
	lines   int
	summary parsers.Summary
}

func (e *ReportExecutor) Execute(reportID string, params runner.Params) {
	s := e.reportService
	state := &runState{}
	var runLogger *logger.RunLogger

	defer s.hub.Close(reportID)

	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic in background report: %v", r)
			s.logger.WithReport(reportID).WithField("panic", r).Error(panicErr.Error())

			if runLogger != nil {
				runLogger.LogFailure("panic during report execution", panicErr, map[string]interface{}{"panic_value": r})
				runLogger.Close()
			}

			s.statusManager.MarkFailed(reportID, state.output.String(), state.lines, panicErr)
		}
	}()

	err := s.queue.Execute(s.ctx, func() error {
		if err := s.statusManager.MarkRunning(reportID); err != nil {
			s.logger.WithReport(reportID).WithError(err).Error("Failed to update report to running")
		}

		s.logger.WithFields(logger.Fields{
			"report_id": reportID,
			"params":    params.String(),
		}).Info("Starting report execution")

		if s.logDir != "" {
			var logErr error
			runLogger, logErr = logger.NewRunLogger(reportID, filepath.Join(s.logDir, reportID), s.logger.GetLevel(), s.logger.Out)
			if logErr != nil {
				s.logger.WithReport(reportID).WithError(logErr).Error("Failed to create report logger")
				runLogger = nil
			}
		}

		return s.runner.Stream(s.ctx, params, func(line string) error {
			return e.handleLine(reportID, state, runLogger, line)
		})
	})

	output := state.output.String()

	if err == nil && state.summary.ErrorMessage != "" {
		err = fmt.Errorf("%w: %s", apperrors.ErrReportReported, state.summary.ErrorMessage)
	}

	if err != nil {
		s.logger.WithReport(reportID).WithError(err).Error("Report execution failed")

		if runLogger != nil {
			runLogger.LogFailure("report execution error", err, map[string]interface{}{
				"params": params.String(),
				"kind":   apperrors.Kind(err),
			})
			runLogger.Close()
		}

		s.statusManager.MarkFailed(reportID, output, state.lines, err)
		s.notify(reportID, params, nil, err)
		return
	}

	archivePath := s.archiveResult(reportID, state.summary.Result)

	if runLogger != nil {
		runLogger.LogSuccess(state.lines)
		runLogger.Close()
	}

	s.logger.WithReport(reportID).Info("Report completed successfully")
	if err := s.statusManager.MarkCompleted(reportID, output, state.lines, state.summary.Result, archivePath); err != nil {
		s.logger.WithReport(reportID).WithError(err).Error("Failed to finalize report")
	}
	s.notify(reportID, params, state.summary.Result, nil)
}

func (e *ReportExecutor) handleLine(reportID string, state *runState, runLogger *logger.RunLogger, line string) error {
	s := e.reportService

	state.output.WriteString(line)
	state.output.WriteByte('\n')
	state.lines++

	if runLogger != nil {
		runLogger.LogLine(line)
	}
	s.hub.Publish(reportID, line)

	ev := parsers.ParseLine(line)
	state.summary.Add(ev)

	switch ev.Kind {
	case parsers.EventProgress, parsers.EventError:
		if err := s.statusManager.UpdateProgress(reportID, state.lines, ev); err != nil {
			s.logger.WithReport(reportID).WithError(err).Warn("Failed to record progress")
		}
	}
	return nil
}
