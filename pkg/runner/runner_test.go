package runner_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/runner"
	"brutalist/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const missingInterpreter = "brutalist-no-such-interpreter-3f9c1"

// stubRunner returns a runner whose "interpreter" is /bin/sh and whose
// "script" is a stub with the given body.
func stubRunner(t *testing.T, body string, opts ...runner.OptFunc) *runner.Runner {
	t.Helper()

	script := testutil.WriteStubScript(t, t.TempDir(), "stub.sh", body)
	base := []runner.OptFunc{
		runner.WithInterpreter("sh"),
		runner.WithScript(script),
	}
	return runner.New(append(base, opts...)...)
}

func collect(lines *[]string) runner.LineHandler {
	return func(line string) error {
		*lines = append(*lines, line)
		return nil
	}
}

func TestRunner_Defaults(t *testing.T) {
	r := runner.New()

	assert.Equal(t, runner.DefaultInterpreter(), r.Interpreter())
	assert.Equal(t, runner.ScriptName, r.Script())
	assert.Equal(t, runner.ModeStreaming, r.Mode())
	assert.Equal(t, []string{runner.ScriptName, "--last-week"}, r.Args(runner.Params{LastWeek: true}))
}

func TestOutput_ReturnsStdout(t *testing.T) {
	r := stubRunner(t, `printf 'hello\n'`)

	out, err := r.Output(context.Background(), runner.Params{})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestOutput_ScriptFailureCarriesStderr(t *testing.T) {
	r := stubRunner(t, `printf 'boom' >&2; exit 1`)

	out, err := r.Output(context.Background(), runner.Params{})
	require.Error(t, err)
	assert.Empty(t, out)
	assert.True(t, errors.Is(err, apperrors.ErrScriptFailure))
	assert.Contains(t, err.Error(), "boom")

	var scriptErr *apperrors.ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Equal(t, 1, scriptErr.ExitCode)
	assert.Equal(t, "boom", scriptErr.Stderr)
}

func TestOutput_PassesArguments(t *testing.T) {
	r := stubRunner(t, `for a in "$@"; do echo "$a"; done`)

	out, err := r.Output(context.Background(), runner.Params{Topic: runner.Topic("tech news"), LastWeek: true})
	require.NoError(t, err)
	assert.Equal(t, "--topic\ntech news\n--last-week\n", out)
}

func TestOutput_EnvAndStderrLimit(t *testing.T) {
	r := stubRunner(t, `echo "$BRUTALIST_STUB" >&2; exit 4`,
		runner.WithEnv("BRUTALIST_STUB=0123456789"),
		runner.WithStderrLimit(4))

	_, err := r.Output(context.Background(), runner.Params{})

	var scriptErr *apperrors.ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Equal(t, 4, scriptErr.ExitCode)
	assert.Equal(t, "789\n", scriptErr.Stderr, "only the stderr tail is kept")
}

func TestStream_SuppressesBlankLines(t *testing.T) {
	r := stubRunner(t, `printf 'a\n\nb\n'`)

	var lines []string
	err := r.Stream(context.Background(), runner.Params{}, collect(&lines))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)
}

func TestStream_WhitespaceOnlyAndUnterminatedLines(t *testing.T) {
	r := stubRunner(t, `printf '  \n\t\r\nfirst\r\n  indented\nlast'`)

	var lines []string
	require.NoError(t, r.Stream(context.Background(), runner.Params{}, collect(&lines)))
	assert.Equal(t, []string{"first", "  indented", "last"}, lines)
}

func TestStream_DeliversBeforeScriptFailure(t *testing.T) {
	r := stubRunner(t, `echo only; echo oops >&2; exit 2`)

	var lines []string
	err := r.Stream(context.Background(), runner.Params{}, collect(&lines))

	assert.Equal(t, []string{"only"}, lines)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrScriptFailure))

	var scriptErr *apperrors.ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Equal(t, 2, scriptErr.ExitCode)
	assert.Contains(t, scriptErr.Stderr, "oops")
}

func TestStream_DeliveryFailure(t *testing.T) {
	r := stubRunner(t, `echo one; echo two; echo three`)

	var lines []string
	err := r.Stream(context.Background(), runner.Params{}, func(line string) error {
		lines = append(lines, line)
		return fmt.Errorf("window closed")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDelivery))
	assert.Contains(t, err.Error(), "window closed")
	assert.Equal(t, []string{"one"}, lines, "no line is delivered after a rejected one")

	var deliveryErr *apperrors.DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Equal(t, "one", deliveryErr.Line)
}

func TestStream_OrderIsPreserved(t *testing.T) {
	r := stubRunner(t, `i=0; while [ $i -lt 200 ]; do echo "line $i"; i=$((i+1)); done`)

	var lines []string
	require.NoError(t, r.Stream(context.Background(), runner.Params{}, collect(&lines)))
	require.Len(t, lines, 200)
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("line %d", i), line)
	}
}

func TestStream_ContextCancelKillsScript(t *testing.T) {
	r := stubRunner(t, `echo started; exec sleep 10`)

	ctx, cancel := testutil.WithTimeout(t, 300*time.Millisecond)
	defer cancel()

	var lines []string
	start := time.Now()
	err := r.Stream(ctx, runner.Params{}, collect(&lines))

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []string{"started"}, lines)
	assert.True(t, errors.Is(err, apperrors.ErrScriptFailure))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLaunchFailure_BothModes(t *testing.T) {
	r := runner.New(runner.WithInterpreter(missingInterpreter))

	out, err := r.Output(context.Background(), runner.Params{})
	assert.Empty(t, out)
	assert.True(t, errors.Is(err, apperrors.ErrLaunchFailure), "blocking: %v", err)

	var lines []string
	err = r.Stream(context.Background(), runner.Params{Topic: runner.Topic("tech")}, collect(&lines))
	assert.True(t, errors.Is(err, apperrors.ErrLaunchFailure), "streaming: %v", err)
	assert.Empty(t, lines)

	var launchErr *apperrors.LaunchError
	require.True(t, errors.As(err, &launchErr))
	assert.Contains(t, launchErr.Command, missingInterpreter)
}

func TestRun_DispatchesOnMode(t *testing.T) {
	body := `echo a; echo b`

	blocking := stubRunner(t, body, runner.WithMode(runner.ModeBlocking))
	var lines []string
	out, err := blocking.Run(context.Background(), runner.Params{}, collect(&lines))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)
	assert.Empty(t, lines)

	streaming := stubRunner(t, body, runner.WithMode(runner.ModeStreaming))
	out, err = streaming.Run(context.Background(), runner.Params{}, collect(&lines))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, []string{"a", "b"}, lines)
}

func TestParseMode(t *testing.T) {
	testCases := []struct {
		in      string
		want    runner.Mode
		wantErr bool
	}{
		{"", runner.ModeStreaming, false},
		{"streaming", runner.ModeStreaming, false},
		{"Blocking", runner.ModeBlocking, false},
		{" block ", runner.ModeBlocking, false},
		{"async", runner.ModeStreaming, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := runner.ParseMode(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want.String(), got.String())
		})
	}
}
