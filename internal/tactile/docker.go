package tactile

import (
	"context"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"toolsmith/internal/logging"
)

// DockerConfig selects the container a tool runs in.
type DockerConfig struct {
	Image       string
	Platform    string
	NetworkMode string
	// Command is appended after the image; empty uses the image entrypoint.
	Command []string
	// DockerPath defaults to "docker" on PATH.
	DockerPath string
}

// DockerRunner runs each tool in a fresh container, streaming the formatted
// code on stdin.
type DockerRunner struct {
	config DockerConfig
	opts   RunnerOptions
}

// NewDockerRunner creates a docker-backed Runner.
func NewDockerRunner(config DockerConfig, opts RunnerOptions) *DockerRunner {
	if config.DockerPath == "" {
		config.DockerPath = "docker"
	}
	return &DockerRunner{config: config, opts: opts}
}

func (r *DockerRunner) Name() string { return "docker" }

// Available reports whether the docker daemon answers.
func (r *DockerRunner) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, r.config.DockerPath, "version", "--format", "{{.Server.Version}}").Run() == nil
}

// Run starts one container, feeds it the code and returns its stdout.
func (r *DockerRunner) Run(ctx context.Context, formattedCode string) (string, error) {
	timer := logging.StartTimer(logging.CategoryTactile, "DockerRunner.Run")
	defer timer.Stop()

	name := "toolsmith-" + uuid.NewString()
	cmd := Command{
		Binary:    r.config.DockerPath,
		Arguments: r.buildDockerArgs(name),
		Stdin:     formattedCode,
	}
	logging.Tactile("running tool in %s (%s)", r.config.Image, name)

	timeout := r.opts.timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := newOutputLog(r.opts.MaxOutputBytes)
	result, err := runProcess(runCtx, r.Name(), cmd, out, r.opts.diagnostics())
	if err != nil {
		return "", err
	}
	if result.Killed {
		// Killing the client leaves the container running.
		r.kill(name)
	}
	return settle(ctx, result, out, timeout)
}

// buildDockerArgs constructs the docker run command arguments.
func (r *DockerRunner) buildDockerArgs(name string) []string {
	args := []string{"run", "--rm", "-i", "--name", name}

	if r.config.Platform != "" {
		args = append(args, "--platform", r.config.Platform)
	}
	if r.config.NetworkMode != "" {
		args = append(args, "--network", r.config.NetworkMode)
	}
	if env, ok := r.opts.credentialVar(); ok {
		args = append(args, "-e", env)
	}

	args = append(args, r.config.Image)
	args = append(args, r.config.Command...)
	return args
}

func (r *DockerRunner) kill(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, r.config.DockerPath, "kill", name).Run(); err != nil {
		logging.TactileDebug("docker kill %s: %v", name, err)
	}
}
