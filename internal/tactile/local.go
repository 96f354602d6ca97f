package tactile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"toolsmith/internal/logging"
)

// LocalRunner builds and runs tools with the host Go toolchain.
type LocalRunner struct {
	goBinary string
	opts     RunnerOptions
}

// NewLocalRunner creates a Runner that uses goBinary ("go" when empty).
func NewLocalRunner(goBinary string, opts RunnerOptions) *LocalRunner {
	if goBinary == "" {
		goBinary = "go"
	}
	return &LocalRunner{goBinary: goBinary, opts: opts}
}

func (r *LocalRunner) Name() string { return "local" }

// Run writes the code into a throwaway module, builds it and runs the
// binary. Build diagnostics are returned as the log.
func (r *LocalRunner) Run(ctx context.Context, formattedCode string) (string, error) {
	timer := logging.StartTimer(logging.CategoryTactile, "LocalRunner.Run")
	defer timer.Stop()

	dir, err := os.MkdirTemp("", "toolsmith-run-*")
	if err != nil {
		return "", &ExecutionLaunchError{Backend: r.Name(), Command: "mkdir", Err: err}
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(formattedCode), 0o644); err != nil {
		return "", &ExecutionLaunchError{Backend: r.Name(), Command: "write main.go", Err: err}
	}

	env := os.Environ()
	if v, ok := r.opts.credentialVar(); ok {
		env = append(env, v)
	}

	timeout := r.opts.timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	step := func(stdout, stderr io.Writer, binary string, args ...string) (*ExecutionResult, error) {
		return runProcess(runCtx, r.Name(), Command{
			Binary:           binary,
			Arguments:        args,
			WorkingDirectory: dir,
			Environment:      env,
		}, stdout, stderr)
	}

	// Module setup failures surface in the build step.
	for _, args := range [][]string{{"mod", "init", "tool"}, {"mod", "tidy"}} {
		res, err := step(io.Discard, io.Discard, r.goBinary, args...)
		if err != nil {
			return "", err
		}
		if res.Killed {
			return settle(ctx, res, newOutputLog(r.opts.MaxOutputBytes), timeout)
		}
	}

	out := newOutputLog(r.opts.MaxOutputBytes)
	res, err := step(out, out, r.goBinary, "build", "-o", "tool", ".")
	if err != nil {
		return "", err
	}
	if res.Killed || res.ExitCode != 0 {
		logging.TactileDebug("build failed with exit code %d", res.ExitCode)
		return settle(ctx, res, out, timeout)
	}

	out = newOutputLog(r.opts.MaxOutputBytes)
	res, err = step(out, r.opts.diagnostics(), filepath.Join(dir, "tool"))
	if err != nil {
		return "", err
	}
	logging.Tactile("local run finished: exit %d", res.ExitCode)
	return settle(ctx, res, out, timeout)
}

// String describes the runner for logs.
func (r *LocalRunner) String() string {
	return fmt.Sprintf("local(%s)", r.goBinary)
}
