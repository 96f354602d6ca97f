package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"
	"time"

	"toolsmith/internal/logging"
)

// processWaitDelay bounds how long Wait blocks on output pipes held open by
// children after the process itself is gone.
const processWaitDelay = 5 * time.Second

// runProcess runs cmd until it exits or ctx is done. A nonzero exit is not an
// error; Killed is set when ctx ended the process.
func runProcess(ctx context.Context, backend string, cmd Command, stdout, stderr io.Writer) (*ExecutionResult, error) {
	logging.TactileDebug("executing: %s", cmd)

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Arguments...)
	c.Dir = cmd.WorkingDirectory
	if len(cmd.Environment) > 0 {
		c.Env = cmd.Environment
	}
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = processWaitDelay
	setupProcessGroup(c)
	c.Cancel = func() error { return killProcessGroup(c) }

	start := time.Now()
	if err := c.Start(); err != nil {
		if ctx.Err() != nil {
			return &ExecutionResult{ExitCode: -1, Killed: true}, nil
		}
		logging.TactileError("launch failed: %s: %v", cmd.Binary, err)
		return nil, &ExecutionLaunchError{Backend: backend, Command: cmd.String(), Err: err}
	}
	err := c.Wait()

	result := &ExecutionResult{ExitCode: -1, Duration: time.Since(start)}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	if ctx.Err() != nil {
		result.Killed = true
		return result, nil
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		// Start succeeded, so this is a failure copying stdin.
		return nil, &ExecutionLaunchError{Backend: backend, Command: cmd.String(), Err: err}
	}

	logging.TactileDebug("%s exited with %d after %v", cmd.Binary, result.ExitCode, result.Duration)
	return result, nil
}

// outputLog collects a run's stdout up to a byte limit.
type outputLog struct {
	buf bytes.Buffer
	lw  *limitedWriter
}

func newOutputLog(max int64) *outputLog {
	if max <= 0 {
		max = math.MaxInt64
	}
	o := &outputLog{}
	o.lw = &limitedWriter{w: &o.buf, max: max}
	return o
}

func (o *outputLog) Write(p []byte) (int, error) { return o.lw.Write(p) }

// String returns the captured output followed by truncation and kill
// markers, if any.
func (o *outputLog) String(result *ExecutionResult) string {
	var sb strings.Builder
	sb.WriteString(o.buf.String())
	marker := func(format string, args ...any) {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, format, args...)
		sb.WriteString("\n")
	}
	if o.lw.truncated {
		marker("[output truncated: %d bytes discarded]", o.lw.discarded)
	}
	if result != nil && result.Killed {
		marker("[killed: %s]", result.KillReason)
	}
	return sb.String()
}

// settle turns a finished process into the run's log. A process killed by
// the caller's context is reported as that context's error; one killed by
// the run timeout yields its partial output.
func settle(parent context.Context, result *ExecutionResult, out *outputLog, timeout time.Duration) (string, error) {
	if result.Killed {
		if err := parent.Err(); err != nil {
			return "", err
		}
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
		logging.TactileWarn("run killed: %s", result.KillReason)
	}
	return out.String(result), nil
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // Return original length to avoid "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
