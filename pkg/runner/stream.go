package runner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"

	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/logger"
)

// Stream runs the script and hands each non-blank stdout line to onLine in
// the order the script wrote them. It only waits for the process once stdout
// is exhausted. A read or delivery failure, or a panicking onLine, kills and
// reaps the child.
func (r *Runner) Stream(ctx context.Context, p Params, onLine LineHandler) error {
	if onLine == nil {
		onLine = func(string) error { return nil }
	}

	return r.logger.LogExecution(r.script, func() error {
		runCtx, cmd, cancel := r.prepare(ctx, p)
		defer cancel()

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return r.launchError(cmd, err)
		}
		stderr := newTailBuffer(r.stderrLimit)
		cmd.Stderr = stderr

		if err := cmd.Start(); err != nil {
			return r.launchError(cmd, err)
		}
		defer func() {
			if v := recover(); v != nil {
				r.abort(cmd)
				panic(v)
			}
		}()

		delivered := 0
		reader := bufio.NewReader(stdout)
		for {
			line, readErr := reader.ReadString('\n')
			line = strings.TrimRight(line, "\r\n")

			if strings.TrimSpace(line) != "" {
				if err := onLine(line); err != nil {
					r.abort(cmd)
					r.logger.WithFields(logger.Fields{
						"delivered": delivered,
					}).WithError(err).Error("Line listener rejected output")
					return &apperrors.DeliveryError{Line: line, Err: err}
				}
				delivered++
			}

			if errors.Is(readErr, io.EOF) {
				break
			}
			if readErr != nil {
				r.abort(cmd)
				if ctxErr := runCtx.Err(); ctxErr != nil {
					return &apperrors.ScriptError{ExitCode: -1, Stderr: stderr.String(), Err: ctxErr}
				}
				return &apperrors.StreamReadError{Err: readErr}
			}
		}

		if err := cmd.Wait(); err != nil {
			if stderr.Len() > 0 {
				r.logger.WithFields(logger.Fields{
					"stderr": stderr.String(),
				}).Error("Command stderr output")
			}
			return r.exitError(runCtx, err, stderr.String())
		}

		r.logger.WithFields(logger.Fields{
			"lines": delivered,
		}).Debug("Command output streamed")
		return nil
	})
}

// abort kills a child whose output is no longer being read and reaps it.
func (r *Runner) abort(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil {
		r.logger.WithError(err).Debug("Kill after aborted stream failed")
	}
	_ = cmd.Wait()
}
