package tactile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"toolsmith/internal/logging"
)

// YaegiRunner interprets tools in-process. Only standard library imports are
// available. Interpreter errors are part of the log, not failures.
type YaegiRunner struct {
	opts RunnerOptions
}

// NewYaegiRunner creates an in-process Runner.
func NewYaegiRunner(opts RunnerOptions) *YaegiRunner {
	return &YaegiRunner{opts: opts}
}

func (r *YaegiRunner) Name() string { return "yaegi" }

// Run evaluates the code, which runs its main function.
func (r *YaegiRunner) Run(ctx context.Context, formattedCode string) (string, error) {
	timer := logging.StartTimer(logging.CategoryTactile, "YaegiRunner.Run")
	defer timer.Stop()

	var env []string
	if v, ok := r.opts.credentialVar(); ok {
		env = append(env, v)
	}

	out := newOutputLog(r.opts.MaxOutputBytes)
	i := interp.New(interp.Options{
		Stdout: out,
		Stderr: r.opts.diagnostics(),
		Env:    env,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return "", &ExecutionLaunchError{Backend: r.Name(), Command: "load stdlib", Err: err}
	}

	timeout := r.opts.timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	evalErr := eval(runCtx, i, formattedCode)
	result := &ExecutionResult{Duration: time.Since(start)}

	if runCtx.Err() != nil {
		result.Killed = true
		result.ExitCode = -1
		return settle(ctx, result, out, timeout)
	}
	if evalErr != nil {
		result.ExitCode = 1
		logging.TactileDebug("yaegi: %v", evalErr)
		fmt.Fprintf(out, "\n%v\n", evalErr)
	}
	return settle(ctx, result, out, timeout)
}

func eval(ctx context.Context, i *interp.Interpreter, src string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = i.EvalWithContext(ctx, src)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}
