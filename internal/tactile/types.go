package tactile

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Runner executes a formatted tool and returns its output log. A tool that
// exits nonzero still yields a log; only failing to start it is an error.
type Runner interface {
	Run(ctx context.Context, formattedCode string) (string, error)
	Name() string
}

// RunnerOptions are shared by every backend.
type RunnerOptions struct {
	// Timeout bounds one run. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxOutputBytes caps the captured log. Zero means unlimited.
	MaxOutputBytes int64
	// CredentialEnv and Credential are injected into the tool's environment.
	CredentialEnv string
	Credential    string
	// Diagnostics receives the tool's stderr. Nil means os.Stderr.
	Diagnostics io.Writer
}

// DefaultTimeout bounds a run when RunnerOptions.Timeout is zero.
const DefaultTimeout = 2 * time.Minute

func (o RunnerOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o RunnerOptions) diagnostics() io.Writer {
	if o.Diagnostics == nil {
		return os.Stderr
	}
	return o.Diagnostics
}

func (o RunnerOptions) credentialVar() (string, bool) {
	if o.CredentialEnv == "" {
		return "", false
	}
	return o.CredentialEnv + "=" + o.Credential, true
}

// Command describes one process launch.
type Command struct {
	Binary           string
	Arguments        []string
	WorkingDirectory string
	// Environment replaces the inherited environment when non-empty.
	Environment []string
	Stdin       string
}

// String renders the command line with environment values redacted.
func (c Command) String() string {
	parts := append([]string{c.Binary}, c.Arguments...)
	for i, p := range parts {
		if i > 0 && parts[i-1] == "-e" {
			if name, _, ok := strings.Cut(p, "="); ok {
				parts[i] = name + "=***"
			}
		}
	}
	return strings.Join(parts, " ")
}

// ExecutionResult describes one finished process.
type ExecutionResult struct {
	ExitCode   int
	Killed     bool
	KillReason string
	Duration   time.Duration
}

// ExecutionLaunchError is returned when a tool could not be started or fed
// its input.
type ExecutionLaunchError struct {
	Backend string
	Command string
	Err     error
}

func (e *ExecutionLaunchError) Error() string {
	return fmt.Sprintf("%s: failed to launch %q: %v", e.Backend, e.Command, e.Err)
}

func (e *ExecutionLaunchError) Unwrap() error { return e.Err }
