package config

import (
	"fmt"
	"time"
)

const (
	BackendDocker = "docker"
	BackendLocal  = "local"
	BackendYaegi  = "yaegi"
)

// ExecutionConfig configures the execution adapter.
type ExecutionConfig struct {
	Backend string `yaml:"backend"` // docker, local, yaegi

	// Timeout bounds one run of a formatted tool.
	Timeout string `yaml:"timeout"`

	// MaxOutputBytes caps the captured log; 0 means unlimited.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// CredentialEnv names the variable that receives the LLM API key
	// inside the execution environment.
	CredentialEnv string `yaml:"credential_env"`

	Docker DockerConfig `yaml:"docker"`

	// GoBinary is used by the local backend.
	GoBinary string `yaml:"go_binary"`
}

// DockerConfig configures the docker backend.
type DockerConfig struct {
	Image       string `yaml:"image"`
	Platform    string `yaml:"platform"`
	NetworkMode string `yaml:"network_mode"`
	// Command overrides the image entrypoint. Empty uses the image default.
	Command []string `yaml:"command"`
}

// DefaultRunnerScript builds and runs main.go read from stdin. Build
// diagnostics go to stdout so they end up in the execution log.
const DefaultRunnerScript = `set -u
dir=$(mktemp -d) && cd "$dir" || exit 1
cat > main.go
{ go mod init tool && go mod tidy; } >/dev/null 2>&1
go build -o tool . 2>&1 || exit 1
exec ./tool`

// DefaultExecutionConfig returns default execution settings.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		Backend:        BackendDocker,
		Timeout:        "2m",
		MaxOutputBytes: 1 << 20,
		CredentialEnv:  "GEMINI_API_KEY",
		Docker: DockerConfig{
			Image:       "golang:1.24-alpine",
			Platform:    "linux/amd64",
			NetworkMode: "bridge",
			Command:     []string{"sh", "-c", DefaultRunnerScript},
		},
		GoBinary: "go",
	}
}

// Validate checks the execution settings.
func (e ExecutionConfig) Validate() error {
	switch e.Backend {
	case BackendDocker:
		if e.Docker.Image == "" {
			return fmt.Errorf("execution.docker.image is required for the docker backend")
		}
	case BackendLocal, BackendYaegi:
	default:
		return fmt.Errorf("invalid execution.backend: %q (valid: %s, %s, %s)", e.Backend, BackendDocker, BackendLocal, BackendYaegi)
	}
	if e.CredentialEnv == "" {
		return fmt.Errorf("execution.credential_env must not be empty")
	}
	if e.MaxOutputBytes < 0 {
		return fmt.Errorf("execution.max_output_bytes must be >= 0")
	}
	return nil
}

// GetTimeout returns the per-run timeout as a duration.
func (e ExecutionConfig) GetTimeout() time.Duration {
	return parseDuration(e.Timeout, 2*time.Minute)
}
