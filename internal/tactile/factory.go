package tactile

import (
	"fmt"
	"io"

	"toolsmith/internal/config"
	"toolsmith/internal/logging"
)

// NewRunner builds the Runner selected by cfg.Backend. credential is the
// value injected under cfg.CredentialEnv.
func NewRunner(cfg config.ExecutionConfig, credential string, diagnostics io.Writer) (Runner, error) {
	opts := RunnerOptions{
		Timeout:        cfg.GetTimeout(),
		MaxOutputBytes: cfg.MaxOutputBytes,
		CredentialEnv:  cfg.CredentialEnv,
		Credential:     credential,
		Diagnostics:    diagnostics,
	}

	logging.TactileDebug("creating %s runner (timeout=%s, max output=%d bytes)", cfg.Backend, opts.Timeout, opts.MaxOutputBytes)

	switch cfg.Backend {
	case config.BackendDocker, "":
		return NewDockerRunner(DockerConfig{
			Image:       cfg.Docker.Image,
			Platform:    cfg.Docker.Platform,
			NetworkMode: cfg.Docker.NetworkMode,
			Command:     cfg.Docker.Command,
		}, opts), nil
	case config.BackendLocal:
		return NewLocalRunner(cfg.GoBinary, opts), nil
	case config.BackendYaegi:
		return NewYaegiRunner(opts), nil
	default:
		return nil, fmt.Errorf("unknown execution backend: %q", cfg.Backend)
	}
}
