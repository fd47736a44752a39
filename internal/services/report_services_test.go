package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"brutalist/internal/dao"
	"brutalist/internal/models"
	"brutalist/internal/notification"
	"brutalist/pkg/archive"
	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/logger"
	"brutalist/pkg/parsers"
	"brutalist/pkg/runner"
	"brutalist/pkg/testutil"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const resultLine = `{"date": "2025-03-01", "topic": "tech", "is_last_week": false, "common_topics": [{"id": 1, "topic_name": "Apple Vision Pro", "headlines": [{"title": "Apple ships Vision Pro", "url": "https://example.com/a", "source": "The Verge"}, {"title": "Vision Pro review", "url": "https://example.com/b", "source": "Ars"}], "count": 2, "sources_count": 2}], "total_groups": 1, "total_headlines": 2}`

var reportLines = []string{
	"Fetching URL: https://brutalist.report/topic/tech",
	`{"status": "progress", "message": "Scraping sources", "processed": 3, "total": 4}`,
	resultLine,
}

// memoryReportDAO keeps reports in a map.
type memoryReportDAO struct {
	mu      sync.Mutex
	reports map[string]models.Report
}

func newMemoryReportDAO() *memoryReportDAO {
	return &memoryReportDAO{reports: make(map[string]models.Report)}
}

func (d *memoryReportDAO) SaveReport(report *models.Report) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reports[report.UUID] = *report
	return nil
}

func (d *memoryReportDAO) GetReportByUUID(id string) (*models.Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &r, nil
}

func (d *memoryReportDAO) ListReports() ([]models.Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := make([]models.Report, 0, len(d.reports))
	for _, r := range d.reports {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UUID < list[j].UUID })
	return list, nil
}

func (d *memoryReportDAO) ListReportsWithPagination(page, limit int) ([]models.Report, int64, error) {
	page, limit = dao.NormalizePage(page, limit)
	list, _ := d.ListReports()

	start := (page - 1) * limit
	if start > len(list) {
		start = len(list)
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], int64(len(list)), nil
}

func (d *memoryReportDAO) UpdateReport(report *models.Report) error {
	return d.SaveReport(report)
}

func (d *memoryReportDAO) DeleteReport(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.reports[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(d.reports, id)
	return nil
}

func (d *memoryReportDAO) FindByArchivePath(path string) (*models.Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.reports {
		if r.ArchivePath == path {
			r := r
			return &r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (d *memoryReportDAO) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reports)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(msg notification.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func quietLogger() *logger.Logger {
	return logger.NewLogger(logrus.PanicLevel)
}

func TestStartReport_Completed(t *testing.T) {
	reportDao := newMemoryReportDAO()
	fake := testutil.NewFakeScriptRunner(reportLines...)
	archiveDir := t.TempDir()
	logDir := t.TempDir()

	notifier := new(mockNotifier)
	notifier.On("Send", mock.MatchedBy(func(msg notification.Message) bool {
		return msg.Severity == "success" && msg.Fields["topic"] == "tech"
	})).Return(nil).Once()

	svc := NewReportService(reportDao, fake,
		WithArchiveDir(archiveDir),
		WithLogDir(logDir),
		WithNotifier(notifier),
		WithLogger(quietLogger()))

	id, err := svc.StartReport(runner.Params{Topic: runner.Topic("tech")})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	svc.Wait()

	report, err := svc.GetReportByUUID(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, report.Status)
	assert.Equal(t, "tech", report.Topic)
	assert.True(t, report.HasTopic)
	assert.Equal(t, 3, report.Lines)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.TotalGroups)
	assert.Equal(t, 2, report.TotalHeadlines)
	assert.Contains(t, report.Output, "Fetching URL")
	assert.Contains(t, report.ResultJSON, "Apple Vision Pro")
	assert.Empty(t, report.ErrorKind)

	require.NotEmpty(t, report.ArchivePath)
	assert.Equal(t, "brutalist_report_today_tech_2025-03-01.json", filepath.Base(report.ArchivePath))
	saved, err := archive.Load(report.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.TotalHeadlines)

	logData, err := os.ReadFile(filepath.Join(logDir, id, logger.RunLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "Fetching URL: https://brutalist.report/topic/tech")

	runs := fake.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, runner.ModeStreaming, runs[0].Mode)
	assert.Equal(t, "tech", runs[0].Params.TopicValue())
	notifier.AssertExpectations(t)
}

func TestStartReport_Failures(t *testing.T) {
	testCases := []struct {
		name    string
		lines   []string
		err     error
		kind    string
		message string
	}{
		{
			name:    "script exits non-zero",
			lines:   []string{"Fetching URL: https://brutalist.report"},
			err:     &apperrors.ScriptError{ExitCode: 1, Stderr: "Traceback: boom\n"},
			kind:    "script_failure",
			message: "boom",
		},
		{
			name:    "interpreter missing",
			err:     &apperrors.LaunchError{Command: "python3", Err: errors.New("executable file not found")},
			kind:    "launch_failure",
			message: "executable file not found",
		},
		{
			name:    "script reports an error and exits zero",
			lines:   []string{`{"status": "error", "message": "No data found."}`},
			kind:    "script_reported",
			message: "No data found.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reportDao := newMemoryReportDAO()
			fake := &testutil.FakeScriptRunner{Lines: tc.lines, Err: tc.err}

			notifier := new(mockNotifier)
			notifier.On("Send", mock.MatchedBy(func(msg notification.Message) bool {
				return msg.Severity == "error"
			})).Return(errors.New("discord down")).Once()

			svc := NewReportService(reportDao, fake,
				WithArchiveDir(t.TempDir()),
				WithNotifier(notifier),
				WithLogger(quietLogger()))

			id, err := svc.StartReport(runner.Params{})
			require.NoError(t, err)
			svc.Wait()

			report, err := svc.GetReportByUUID(id)
			require.NoError(t, err)
			assert.Equal(t, models.StatusFailed, report.Status)
			assert.Equal(t, tc.kind, report.ErrorKind)
			assert.Contains(t, report.ErrorMessage, tc.message)
			assert.Equal(t, len(tc.lines), report.Lines)
			assert.Empty(t, report.ArchivePath)
			notifier.AssertExpectations(t)
		})
	}
}

func TestStartReport_Subscribe(t *testing.T) {
	fake := testutil.NewFakeScriptRunner(reportLines...)
	fake.Delay = 100 * time.Millisecond

	svc := NewReportService(newMemoryReportDAO(), fake, WithLogger(quietLogger()))

	id, err := svc.StartReport(runner.Params{})
	require.NoError(t, err)

	sub, ok := svc.Subscribe(id)
	require.True(t, ok)
	defer sub.Cancel()

	got := append([]string{}, sub.History...)
	for line := range sub.Lines {
		got = append(got, line)
	}
	assert.Equal(t, reportLines, got)

	svc.Wait()
	_, ok = svc.Subscribe(id)
	assert.False(t, ok, "finished reports have no live stream")
}

func TestStartReport_QueueLimit(t *testing.T) {
	fake := testutil.NewFakeScriptRunner("line")
	fake.Delay = 50 * time.Millisecond

	svc := NewReportService(newMemoryReportDAO(), fake, WithLogger(quietLogger()))

	ids := make([]string, 3)
	for i := range ids {
		id, err := svc.StartReport(runner.Params{LastWeek: true})
		require.NoError(t, err)
		ids[i] = id
	}
	svc.Wait()

	for _, id := range ids {
		report, err := svc.GetReportByUUID(id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, report.Status)
		assert.True(t, report.LastWeek)
		assert.Equal(t, "Script finished without a result", report.Message)
	}
	assert.Len(t, fake.Runs(), 3)
}

func TestRunReportSync(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fake := testutil.NewFakeScriptRunner(reportLines...)
		svc := NewReportService(newMemoryReportDAO(), fake, WithLogger(quietLogger()))

		res, err := svc.RunReportSync(context.Background(), runner.Params{Topic: runner.Topic("tech")})
		require.NoError(t, err)
		assert.Equal(t, reportLines[0]+"\n"+reportLines[1]+"\n"+reportLines[2]+"\n", res.Output)
		require.NotNil(t, res.Result)
		assert.Equal(t, 1, res.Result.TotalGroups)

		report, err := svc.GetReportByUUID(res.ReportID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, report.Status)

		runs := fake.Runs()
		require.Len(t, runs, 1)
		assert.Equal(t, runner.ModeBlocking, runs[0].Mode)
	})

	t.Run("script failure", func(t *testing.T) {
		fake := &testutil.FakeScriptRunner{Err: &apperrors.ScriptError{ExitCode: 2, Stderr: "bad args"}}
		svc := NewReportService(newMemoryReportDAO(), fake, WithLogger(quietLogger()))

		res, err := svc.RunReportSync(context.Background(), runner.Params{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrScriptFailure))
		require.NotNil(t, res)

		report, err := svc.GetReportByUUID(res.ReportID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, report.Status)
		assert.Equal(t, "script_failure", report.ErrorKind)
	})

	t.Run("script reported error", func(t *testing.T) {
		fake := testutil.NewFakeScriptRunner(`{"status": "error", "message": "Invalid topic."}`)
		svc := NewReportService(newMemoryReportDAO(), fake, WithLogger(quietLogger()))

		res, err := svc.RunReportSync(context.Background(), runner.Params{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrReportReported))
		assert.Equal(t, "Invalid topic.", res.ErrorMessage)
	})
}

func TestGetAndDeleteReport_NotFound(t *testing.T) {
	svc := NewReportService(newMemoryReportDAO(), testutil.NewFakeScriptRunner(), WithLogger(quietLogger()))

	_, err := svc.GetReportByUUID("missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
	assert.ErrorIs(t, svc.DeleteReport("missing"), ErrReportNotFound)
}

func TestListReportsPage(t *testing.T) {
	reportDao := newMemoryReportDAO()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, reportDao.SaveReport(&models.Report{UUID: id, Status: models.StatusCompleted}))
	}
	svc := NewReportService(reportDao, testutil.NewFakeScriptRunner(), WithLogger(quietLogger()))

	page, err := svc.ListReportsPage(2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Reports, 1)
	assert.Equal(t, "c", page.Reports[0].UUID)

	page, err = svc.ListReportsPage(0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, dao.MaxPageLimit, page.Limit)
	assert.Len(t, page.Reports, 3)

	page, err = svc.ListReportsPage(9, 0)
	require.NoError(t, err)
	assert.Equal(t, dao.DefaultPageLimit, page.Limit)
	assert.NotNil(t, page.Reports)
	assert.Empty(t, page.Reports)
}

func TestDeleteReport(t *testing.T) {
	reportDao := newMemoryReportDAO()
	svc := NewReportService(reportDao, testutil.NewFakeScriptRunner("done"), WithLogger(quietLogger()))

	id, err := svc.StartReport(runner.Params{})
	require.NoError(t, err)
	svc.Wait()

	require.NoError(t, svc.DeleteReport(id))
	_, err = svc.GetReportByUUID(id)
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func sampleResult() *parsers.AnalysisResult {
	return &parsers.AnalysisResult{
		Date:           "2025-03-02",
		Topic:          "science",
		IsLastWeek:     true,
		TotalGroups:    1,
		TotalHeadlines: 3,
		CommonTopics: []parsers.TopicGroup{{
			ID:        1,
			TopicName: "Comet sighting",
			Headlines: []parsers.Headline{{Title: "Comet visible tonight", URL: "https://example.com/c", Source: "NYT"}},
		}},
	}
}

func TestImportArchive(t *testing.T) {
	reportDao := newMemoryReportDAO()
	svc := NewReportService(reportDao, testutil.NewFakeScriptRunner(), WithLogger(quietLogger()))

	path, err := archive.Save(t.TempDir(), sampleResult(), archive.FormatYAML)
	require.NoError(t, err)

	report, err := svc.ImportArchive(path)
	require.NoError(t, err)
	assert.Equal(t, ArchiveID(path), report.UUID)
	assert.Equal(t, models.StatusImported, report.Status)
	assert.Equal(t, "science", report.Topic)
	assert.True(t, report.HasTopic)
	assert.True(t, report.LastWeek)
	assert.Equal(t, 3, report.TotalHeadlines)
	assert.Contains(t, report.ResultJSON, "Comet sighting")

	again, err := svc.ImportArchive(path)
	require.NoError(t, err)
	assert.Equal(t, report.UUID, again.UUID)
	assert.Equal(t, 1, reportDao.count())
}

func TestImportArchive_SkipsOwnResults(t *testing.T) {
	reportDao := newMemoryReportDAO()
	archiveDir := t.TempDir()
	svc := NewReportService(reportDao, testutil.NewFakeScriptRunner(reportLines...),
		WithArchiveDir(archiveDir), WithLogger(quietLogger()))

	id, err := svc.StartReport(runner.Params{})
	require.NoError(t, err)
	svc.Wait()

	report, err := svc.GetReportByUUID(id)
	require.NoError(t, err)
	require.NotEmpty(t, report.ArchivePath)

	owner, err := svc.ImportArchive(report.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, id, owner.UUID)
	assert.Equal(t, models.StatusCompleted, owner.Status)
	assert.Equal(t, 1, reportDao.count())
}

func TestImportArchive_Unreadable(t *testing.T) {
	svc := NewReportService(newMemoryReportDAO(), testutil.NewFakeScriptRunner(), WithLogger(quietLogger()))

	path := testutil.CreateTestFile(t, t.TempDir(), "broken.json", "{not json")
	_, err := svc.ImportArchive(path)
	assert.Error(t, err)
}
