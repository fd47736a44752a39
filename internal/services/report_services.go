package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"brutalist/internal/dao"
	"brutalist/internal/models"
	"brutalist/internal/notification"
	"brutalist/pkg/archive"
	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/logger"
	"brutalist/pkg/parsers"
	"brutalist/pkg/queue"
	"brutalist/pkg/runner"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrReportNotFound = errors.New("report not found")

type ReportServiceMethods interface {
	StartReport(params runner.Params) (string, error)
	RunReportSync(ctx context.Context, params runner.Params) (*SyncResult, error)
	GetReportByUUID(id string) (*models.Report, error)
	ListReports() ([]models.Report, error)
	ListReportsPage(page, limit int) (*ReportPage, error)
	DeleteReport(id string) error
	Subscribe(id string) (*Subscription, bool)
}

// Notifier delivers report outcome messages.
type Notifier interface {
	Send(msg notification.Message) error
}

// SyncResult is the outcome of a blocking run.
type SyncResult struct {
	ReportID     string                  `json:"report_id"`
	Output       string                  `json:"output"`
	Result       *parsers.AnalysisResult `json:"result,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
}

// ReportPage is one page of the report list.
type ReportPage struct {
	Reports []models.Report `json:"reports"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
}

type ReportService struct {
	ctx           context.Context
	reportDao     dao.ReportDAO
	runner        runner.ScriptRunner
	queue         *queue.Queue
	hub           *OutputHub
	notifier      Notifier
	archiveDir    string
	logDir        string
	logger        *logger.Logger
	statusManager *ReportStatusManager
	executor      *ReportExecutor
	wg            sync.WaitGroup
	// archived holds result files this service wrote, keyed by absolute path.
	archived sync.Map
}

type ServiceOpt func(*ReportService)

// WithContext bounds background runs; cancelling it kills running scripts.
func WithContext(ctx context.Context) ServiceOpt {
	return func(s *ReportService) {
		s.ctx = ctx
	}
}

func WithQueue(q *queue.Queue) ServiceOpt {
	return func(s *ReportService) {
		s.queue = q
	}
}

func WithHub(hub *OutputHub) ServiceOpt {
	return func(s *ReportService) {
		s.hub = hub
	}
}

func WithNotifier(n Notifier) ServiceOpt {
	return func(s *ReportService) {
		s.notifier = n
	}
}

// WithArchiveDir enables saving finished results under dir.
func WithArchiveDir(dir string) ServiceOpt {
	return func(s *ReportService) {
		s.archiveDir = dir
	}
}

// WithLogDir enables per-report log files under dir/<report id>.
func WithLogDir(dir string) ServiceOpt {
	return func(s *ReportService) {
		s.logDir = dir
	}
}

func WithLogger(l *logger.Logger) ServiceOpt {
	return func(s *ReportService) {
		s.logger = l
	}
}

func NewReportService(reportDao dao.ReportDAO, scriptRunner runner.ScriptRunner, opts ...ServiceOpt) *ReportService {
	s := &ReportService{
		ctx:       context.Background(),
		reportDao: reportDao,
		runner:    scriptRunner,
		logger:    logger.NewLogger(logrus.InfoLevel),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.queue == nil {
		s.queue = queue.New(1)
	}
	if s.hub == nil {
		s.hub = NewOutputHub()
	}

	s.statusManager = newReportStatusManager(reportDao, s.logger)
	s.executor = newReportExecutor(s)
	return s
}

func newReport(params runner.Params, status string) *models.Report {
	return &models.Report{
		UUID:     uuid.New().String(),
		Topic:    params.TopicValue(),
		HasTopic: params.HasTopic(),
		LastWeek: params.LastWeek,
		Status:   status,
	}
}

// StartReport records a queued report and runs it in the background with the
// streaming runner. It returns the report id immediately.
func (s *ReportService) StartReport(params runner.Params) (string, error) {
	report := newReport(params, models.StatusQueued)

	if err := s.reportDao.SaveReport(report); err != nil {
		s.logger.WithError(err).Error("SaveReport failed")
		return "", err
	}

	s.hub.Open(report.UUID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executor.Execute(report.UUID, params)
	}()

	s.logger.WithFields(logger.Fields{
		"report_id": report.UUID,
		"params":    params.String(),
	}).Info("Report started")

	return report.UUID, nil
}

// RunReportSync runs the script in blocking mode and returns its whole
// output. The run is recorded like any other report.
func (s *ReportService) RunReportSync(ctx context.Context, params runner.Params) (*SyncResult, error) {
	report := newReport(params, models.StatusRunning)
	if err := s.reportDao.SaveReport(report); err != nil {
		s.logger.WithError(err).Error("SaveReport failed")
		return nil, err
	}

	var output string
	runErr := s.queue.Execute(ctx, func() error {
		var err error
		output, err = s.runner.Output(ctx, params)
		return err
	})

	summary := parsers.Collect(output)
	lines := countLines(output)
	result := &SyncResult{ReportID: report.UUID, Output: output, Result: summary.Result, ErrorMessage: summary.ErrorMessage}

	if runErr == nil && summary.ErrorMessage != "" {
		runErr = fmt.Errorf("%w: %s", apperrors.ErrReportReported, summary.ErrorMessage)
	}

	if runErr != nil {
		s.statusManager.MarkFailed(report.UUID, output, lines, runErr)
		s.notify(report.UUID, params, nil, runErr)
		return result, runErr
	}

	archivePath := s.archiveResult(report.UUID, summary.Result)
	if err := s.statusManager.MarkCompleted(report.UUID, output, lines, summary.Result, archivePath); err != nil {
		s.logger.WithReport(report.UUID).WithError(err).Error("Failed to finalize report")
	}
	s.notify(report.UUID, params, summary.Result, nil)

	return result, nil
}

func (s *ReportService) GetReportByUUID(id string) (*models.Report, error) {
	report, err := s.reportDao.GetReportByUUID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	return report, err
}

func (s *ReportService) ListReports() ([]models.Report, error) {
	return s.reportDao.ListReports()
}

func (s *ReportService) ListReportsPage(page, limit int) (*ReportPage, error) {
	page, limit = dao.NormalizePage(page, limit)

	reports, total, err := s.reportDao.ListReportsWithPagination(page, limit)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return &ReportPage{Reports: reports, Total: total, Page: page, Limit: limit}, nil
}

func (s *ReportService) DeleteReport(id string) error {
	err := s.reportDao.DeleteReport(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrReportNotFound
	}
	return err
}

// Subscribe attaches to the live output of a running report.
func (s *ReportService) Subscribe(id string) (*Subscription, bool) {
	return s.hub.Subscribe(id)
}

// Wait blocks until every background report has finished.
func (s *ReportService) Wait() {
	s.wg.Wait()
}

// ArchiveID is the stable report id of an imported archive file.
func ArchiveID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("brutalist-archive:"+filepath.Base(path))).String()
}

// ImportArchive records an archived result file as an imported report. Files
// written by this service for its own reports are skipped.
func (s *ReportService) ImportArchive(path string) (*models.Report, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	if owner, ok := s.archived.Load(absPath); ok {
		return s.GetReportByUUID(owner.(string))
	}
	if owner, err := s.reportDao.FindByArchivePath(absPath); err == nil && owner != nil && owner.Status != models.StatusImported {
		return owner, nil
	}

	result, err := archive.Load(absPath)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	id := ArchiveID(absPath)
	topic := result.Topic
	report := &models.Report{
		UUID:           id,
		Topic:          topic,
		HasTopic:       topic != "" && topic != "all",
		LastWeek:       result.IsLastWeek,
		Status:         models.StatusImported,
		Message:        "Loaded results from " + absPath,
		ResultJSON:     string(data),
		TotalGroups:    result.TotalGroups,
		TotalHeadlines: result.TotalHeadlines,
		ArchivePath:    absPath,
	}

	existing, err := s.reportDao.GetReportByUUID(id)
	switch {
	case err == nil && existing != nil:
		report.CreatedAt = existing.CreatedAt
		err = s.reportDao.UpdateReport(report)
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = s.reportDao.SaveReport(report)
	}
	if err != nil {
		return nil, fmt.Errorf("store imported report: %w", err)
	}

	s.logger.WithFields(logger.Fields{
		"report_id": id,
		"file":      absPath,
	}).Info("Imported archived report")

	return report, nil
}

func (s *ReportService) archiveResult(reportID string, result *parsers.AnalysisResult) string {
	if s.archiveDir == "" || result == nil {
		return ""
	}

	dir, err := filepath.Abs(s.archiveDir)
	if err != nil {
		dir = s.archiveDir
	}
	s.archived.Store(filepath.Join(dir, archive.FileName(result, archive.FormatJSON)), reportID)

	path, err := archive.Save(dir, result, archive.FormatJSON)
	if err != nil {
		s.logger.WithReport(reportID).WithError(err).Error("Failed to archive result")
		return ""
	}

	s.logger.WithFields(logger.Fields{
		"report_id": reportID,
		"file":      path,
	}).Info("Result archived")
	return path
}

func (s *ReportService) notify(reportID string, params runner.Params, result *parsers.AnalysisResult, runErr error) {
	if s.notifier == nil {
		return
	}

	topic := params.TopicValue()
	if !params.HasTopic() {
		topic = "all"
	}
	period := "today"
	if params.LastWeek {
		period = "last week"
	}

	msg := notification.Message{
		Fields: map[string]string{
			"report": reportID,
			"topic":  topic,
			"period": period,
		},
	}

	if runErr != nil {
		msg.Title = "Brutalist report failed"
		msg.Description = runErr.Error()
		msg.Severity = "error"
	} else {
		msg.Title = "Brutalist report completed"
		msg.Severity = "success"
		if result != nil {
			msg.Description = fmt.Sprintf("%d topic groups, %d headlines", result.TotalGroups, result.TotalHeadlines)
			msg.Fields["date"] = result.Date
		}
	}

	if err := s.notifier.Send(msg); err != nil {
		s.logger.WithReport(reportID).WithError(err).Warn("Failed to send notification")
	}
}

func isReported(err error) bool {
	return errors.Is(err, apperrors.ErrReportReported)
}

func countLines(output string) int {
	n := 0
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
