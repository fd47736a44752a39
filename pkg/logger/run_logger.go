package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	RunLogFile   = "report.log"
	ErrorLogFile = "error.log"
)

// RunLogger records everything a single report run prints, plus its outcome,
// in <dir>/report.log and <dir>/error.log.
type RunLogger struct {
	*Logger
	reportID  string
	dir       string
	logFile   *os.File
	errorFile *os.File
	mu        sync.Mutex
}

func NewRunLogger(reportID, dir string, level logrus.Level, console io.Writer) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report log directory: %w", err)
	}

	baseLogger := NewLogger(level)

	logFile, err := os.OpenFile(filepath.Join(dir, RunLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create report log file: %w", err)
	}

	errorFile, err := os.OpenFile(filepath.Join(dir, ErrorLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to create error log file: %w", err)
	}

	header := fmt.Sprintf("\n=== Report Log Started: %s ===\n", time.Now().Format(time.RFC3339))
	header += fmt.Sprintf("Report ID: %s\n", reportID)
	header += "==========================================\n\n"
	logFile.WriteString(header)

	if console == nil {
		console = os.Stdout
	}
	baseLogger.Logger.SetOutput(io.MultiWriter(console, logFile))

	return &RunLogger{
		Logger:    baseLogger,
		reportID:  reportID,
		dir:       dir,
		logFile:   logFile,
		errorFile: errorFile,
	}, nil
}

// LogLine appends one line of script output to the run log.
func (rl *RunLogger) LogLine(line string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	fmt.Fprintf(rl.logFile, "[%s] %s\n", time.Now().Format(time.RFC3339), line)
}

func (rl *RunLogger) LogFailure(reason string, err error, additionalInfo map[string]interface{}) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamp := time.Now().Format(time.RFC3339)
	failureMsg := fmt.Sprintf("\n=== REPORT FAILED: %s ===\n", timestamp)
	failureMsg += fmt.Sprintf("Report ID: %s\n", rl.reportID)
	failureMsg += fmt.Sprintf("Reason: %s\n", reason)
	if err != nil {
		failureMsg += fmt.Sprintf("Error: %v\n", err)
	}
	if len(additionalInfo) > 0 {
		failureMsg += fmt.Sprintf("Additional Info: %+v\n", additionalInfo)
	}
	failureMsg += "=====================================\n\n"

	rl.logFile.WriteString(failureMsg)
	rl.errorFile.WriteString(failureMsg)

	fields := Fields{
		"report_id": rl.reportID,
		"reason":    reason,
	}
	for k, v := range additionalInfo {
		fields[k] = v
	}
	if err != nil {
		rl.WithFields(fields).WithError(err).Error("Report failed")
	} else {
		rl.WithFields(fields).Error("Report failed")
	}
}

func (rl *RunLogger) LogSuccess(lines int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamp := time.Now().Format(time.RFC3339)
	successMsg := fmt.Sprintf("\n=== REPORT COMPLETED SUCCESSFULLY: %s ===\n", timestamp)
	successMsg += fmt.Sprintf("Report ID: %s\n", rl.reportID)
	successMsg += fmt.Sprintf("Lines: %d\n", lines)
	successMsg += "=========================================\n\n"

	rl.logFile.WriteString(successMsg)

	rl.WithFields(Fields{
		"report_id": rl.reportID,
		"lines":     lines,
	}).Info("Report completed successfully")
}

func (rl *RunLogger) Close() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var errs []error

	if rl.logFile != nil {
		footer := fmt.Sprintf("\n=== Report Log Ended: %s ===\n", time.Now().Format(time.RFC3339))
		rl.logFile.WriteString(footer)

		if err := rl.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close log file: %w", err))
		}
		rl.logFile = nil
	}

	if rl.errorFile != nil {
		if err := rl.errorFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close error file: %w", err))
		}
		rl.errorFile = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing report logger: %v", errs)
	}

	return nil
}

func (rl *RunLogger) LogFilePath() string {
	return filepath.Join(rl.dir, RunLogFile)
}

func (rl *RunLogger) ErrorLogFilePath() string {
	return filepath.Join(rl.dir, ErrorLogFile)
}
