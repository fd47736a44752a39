package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/logger"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/execabs"
)

const (
	// DefaultStderrLimit bounds how much stderr is kept for error reporting.
	DefaultStderrLimit = 64 * 1024

	// waitDelay caps how long Wait lingers on pipes held open by grandchildren.
	waitDelay = 5 * time.Second
)

// Mode selects how a Runner delivers script output.
type Mode int

const (
	// ModeStreaming forwards each non-empty stdout line as it arrives.
	ModeStreaming Mode = iota
	// ModeBlocking waits for exit and returns the whole stdout.
	ModeBlocking
)

func (m Mode) String() string {
	switch m {
	case ModeBlocking:
		return "blocking"
	case ModeStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps "blocking" or "streaming" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "streaming", "stream":
		return ModeStreaming, nil
	case "blocking", "block":
		return ModeBlocking, nil
	default:
		return ModeStreaming, fmt.Errorf("unknown runner mode %q (want blocking or streaming)", s)
	}
}

// LineHandler receives one line of script output. Returning an error aborts
// the run with a delivery failure.
type LineHandler func(line string) error

// ScriptRunner is the surface services depend on.
type ScriptRunner interface {
	Output(ctx context.Context, p Params) (string, error)
	Stream(ctx context.Context, p Params, onLine LineHandler) error
}

// Runner launches the report script. It holds no per-call state, so one
// value can serve concurrent calls; each call owns its own child process.
type Runner struct {
	interpreter string
	script      string
	dir         string
	env         []string
	timeout     time.Duration
	stderrLimit int
	mode        Mode
	logger      *logger.Logger
}

type OptFunc func(*Runner)

func New(opts ...OptFunc) *Runner {
	r := &Runner{
		interpreter: DefaultInterpreter(),
		script:      ScriptName,
		stderrLimit: DefaultStderrLimit,
		mode:        ModeStreaming,
		logger:      logger.NewLogger(logrus.InfoLevel),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func WithInterpreter(interpreter string) OptFunc {
	return func(r *Runner) {
		if interpreter != "" {
			r.interpreter = interpreter
		}
	}
}

func WithScript(script string) OptFunc {
	return func(r *Runner) {
		if script != "" {
			r.script = script
		}
	}
}

// WithDir sets the working directory of the child process.
func WithDir(dir string) OptFunc {
	return func(r *Runner) {
		r.dir = dir
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) OptFunc {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithTimeout bounds each run. Zero means no timeout.
func WithTimeout(timeout time.Duration) OptFunc {
	return func(r *Runner) {
		r.timeout = timeout
	}
}

// WithStderrLimit sets how many trailing stderr bytes are kept. Zero or
// negative keeps everything.
func WithStderrLimit(limit int) OptFunc {
	return func(r *Runner) {
		r.stderrLimit = limit
	}
}

func WithMode(mode Mode) OptFunc {
	return func(r *Runner) {
		r.mode = mode
	}
}

func WithLogger(l *logger.Logger) OptFunc {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func (r *Runner) Mode() Mode { return r.mode }

func (r *Runner) Interpreter() string { return r.interpreter }

func (r *Runner) Script() string { return r.script }

// Args returns the argument list the runner would pass for p.
func (r *Runner) Args(p Params) []string {
	return BuildArgs(r.script, p)
}

// Run executes the script in the runner's configured mode. In blocking mode
// the full stdout is returned and onLine is not called. In streaming mode
// lines go to onLine and the returned string is empty.
func (r *Runner) Run(ctx context.Context, p Params, onLine LineHandler) (string, error) {
	if r.mode == ModeBlocking {
		return r.Output(ctx, p)
	}
	return "", r.Stream(ctx, p, onLine)
}

// Output runs the script to completion and returns its stdout.
func (r *Runner) Output(ctx context.Context, p Params) (string, error) {
	var output string

	err := r.logger.LogExecution(r.script, func() error {
		runCtx, cmd, cancel := r.prepare(ctx, p)
		defer cancel()

		var stdout bytes.Buffer
		stderr := newTailBuffer(r.stderrLimit)
		cmd.Stdout = &stdout
		cmd.Stderr = stderr

		if err := cmd.Start(); err != nil {
			return r.launchError(cmd, err)
		}

		if err := cmd.Wait(); err != nil {
			if stderr.Len() > 0 {
				r.logger.WithFields(logger.Fields{
					"stderr": stderr.String(),
				}).Error("Command stderr output")
			}
			return r.exitError(runCtx, err, stderr.String())
		}

		output = strings.ToValidUTF8(stdout.String(), "�")
		r.logger.WithFields(logger.Fields{
			"bytes": len(output),
		}).Debug("Command stdout captured")
		return nil
	})

	if err != nil {
		return "", err
	}
	return output, nil
}

func (r *Runner) prepare(ctx context.Context, p Params) (context.Context, *exec.Cmd, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}

	var cancel context.CancelFunc
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	args := r.Args(p)
	cmd := execabs.CommandContext(ctx, r.interpreter, args...)
	cmd.Dir = r.dir
	cmd.WaitDelay = waitDelay
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	r.logger.WithFields(logger.Fields{
		"command": r.interpreter,
		"args":    args,
		"mode":    r.mode.String(),
	}).Info("Running command")

	return ctx, cmd, cancel
}

func (r *Runner) launchError(cmd *exec.Cmd, err error) error {
	r.logger.WithFields(logger.Fields{
		"command": r.interpreter,
	}).WithError(err).Error("Failed to launch command")
	return &apperrors.LaunchError{Command: cmd.String(), Err: err}
}

func (r *Runner) exitError(ctx context.Context, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &apperrors.ScriptError{ExitCode: -1, Stderr: stderr, Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &apperrors.ScriptError{ExitCode: exitErr.ExitCode(), Stderr: stderr, Err: err}
	}

	return &apperrors.StreamReadError{Err: err}
}
