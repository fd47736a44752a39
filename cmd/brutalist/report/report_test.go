package report

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"brutalist/pkg/archive"
	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/parsers"
	"brutalist/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stubResult = `{"date": "2025-03-01", "topic": "tech", "is_last_week": true, "common_topics": [{"id": 1, "topic_name": "Chip exports", "headlines": [{"title": "New chip rules", "url": "https://example.com/a", "source": "Reuters"}]}], "total_groups": 1, "total_headlines": 1}`

func runReport(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewReportCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestReportCommand_Streaming(t *testing.T) {
	dir := t.TempDir()
	script := testutil.WriteStubScript(t, dir, "report.sh", `echo "args: $@"
echo '{"status": "progress", "message": "Scraping", "processed": 1, "total": 4}'
echo '`+stubResult+`'`)
	archiveDir := filepath.Join(dir, "reports")

	out, err := runReport(t,
		"--interpreter", "/bin/sh",
		"--script", script,
		"--topic", "tech",
		"--last-week",
		"--save",
		"--out", archiveDir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "args: --topic tech --last-week")
	assert.Contains(t, out, "[ 25%] Scraping")
	assert.Contains(t, out, "2025-03-01, tech, last week: 1 topic groups, 1 headlines")
	assert.Contains(t, out, "Chip exports (1)")
	assert.Contains(t, out, "  - New chip rules [Reuters]")

	saved := filepath.Join(archiveDir, "brutalist_report_last_week_tech_2025-03-01.json")
	assert.Contains(t, out, "Saved results to "+saved)
	result, err := archive.Load(saved)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalHeadlines)
}

func TestReportCommand_Blocking(t *testing.T) {
	dir := t.TempDir()
	script := testutil.WriteStubScript(t, dir, "report.sh", `echo "args: $@"`)

	out, err := runReport(t, "--interpreter", "/bin/sh", "--script", script, "--blocking")
	require.NoError(t, err, out)
	assert.Equal(t, "args: \n", out, "no topic flag means no topic argument")
}

func TestReportCommand_Failures(t *testing.T) {
	dir := t.TempDir()

	t.Run("script exits non-zero", func(t *testing.T) {
		script := testutil.WriteStubScript(t, dir, "fail.sh", `echo "Fetching"
echo "Traceback: boom" >&2
exit 3`)

		out, err := runReport(t, "--interpreter", "/bin/sh", "--script", script)
		require.Error(t, err)

		var scriptErr *apperrors.ScriptError
		require.True(t, errors.As(err, &scriptErr))
		assert.Equal(t, 3, scriptErr.ExitCode)
		assert.Contains(t, out, "Fetching")
		assert.Contains(t, out, "Error: python script failed: Traceback: boom")
	})

	t.Run("script reports an error", func(t *testing.T) {
		script := testutil.WriteStubScript(t, dir, "reported.sh", `echo '{"status": "error", "message": "No data found."}'`)

		_, err := runReport(t, "--interpreter", "/bin/sh", "--script", script)
		assert.True(t, errors.Is(err, apperrors.ErrReportReported))
	})

	t.Run("unknown topic", func(t *testing.T) {
		script := testutil.WriteStubScript(t, dir, "unused.sh", `exit 0`)

		_, err := runReport(t, "--interpreter", "/bin/sh", "--script", script, "--topic", "weather")
		assert.True(t, errors.Is(err, apperrors.ErrInvalidTopic))
	})

	t.Run("interpreter missing", func(t *testing.T) {
		_, err := runReport(t, "--interpreter", filepath.Join(dir, "no-python"), "--script", "x.py")
		assert.True(t, errors.Is(err, apperrors.ErrLaunchFailure))
	})
}

func TestShowCommand(t *testing.T) {
	path, err := archive.Save(t.TempDir(), &parsers.AnalysisResult{
		Date:           "2025-03-02",
		TotalGroups:    1,
		TotalHeadlines: 2,
		CommonTopics: []parsers.TopicGroup{{
			TopicName: "Elections",
			Headlines: []parsers.Headline{{Title: "Polls open", Source: "AP"}, {Title: "Turnout high", Source: "BBC"}},
		}},
	}, archive.FormatYAML)
	require.NoError(t, err)

	cmd := NewShowCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "2025-03-02, all, today: 1 topic groups, 2 headlines")
	assert.Contains(t, out.String(), "Elections (2)")
	assert.Contains(t, out.String(), "  - Turnout high [BBC]")
}

func TestShowCommand_MissingFile(t *testing.T) {
	cmd := NewShowCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, cmd.Execute())
}

func TestTopicsCommand(t *testing.T) {
	cmd := NewTopicsCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "• tech\n")
	assert.Contains(t, out.String(), "• sports\n")
}

func TestPrinter_Unstyled(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	assert.False(t, p.styled)

	p.Output("plain\n\n{\"status\": \"error\", \"message\": \"bad\"}\n")
	assert.Equal(t, "plain\n{\"status\": \"error\", \"message\": \"bad\"}\n", buf.String())
}
