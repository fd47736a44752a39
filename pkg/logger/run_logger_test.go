package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLogger_Success(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run-1")
	var console bytes.Buffer

	rl, err := NewRunLogger("run-1", dir, logrus.InfoLevel, &console)
	require.NoError(t, err)

	rl.LogLine("Fetching URL: https://brutalist.report/topic/tech")
	rl.LogSuccess(1)
	require.NoError(t, rl.Close())
	assert.NoError(t, rl.Close(), "closing twice is a no-op")

	assert.Equal(t, filepath.Join(dir, RunLogFile), rl.LogFilePath())
	data, err := os.ReadFile(rl.LogFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Report ID: run-1")
	assert.Contains(t, string(data), "Fetching URL: https://brutalist.report/topic/tech")
	assert.Contains(t, string(data), "REPORT COMPLETED SUCCESSFULLY")

	errData, err := os.ReadFile(rl.ErrorLogFilePath())
	require.NoError(t, err)
	assert.Empty(t, errData)

	assert.Contains(t, console.String(), "Report completed successfully")
}

func TestRunLogger_Failure(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	rl, err := NewRunLogger("run-2", dir, logrus.InfoLevel, &console)
	require.NoError(t, err)

	rl.LogFailure("script_failure", errors.New("exit status 1"), map[string]interface{}{"lines": 3})
	require.NoError(t, rl.Close())

	errData, err := os.ReadFile(rl.ErrorLogFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(errData), "Reason: script_failure")
	assert.Contains(t, string(errData), "Error: exit status 1")

	assert.Contains(t, console.String(), "Report failed")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("loud"))
}
