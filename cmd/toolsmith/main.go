package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"toolsmith/internal/config"
	"toolsmith/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	apiKey     string
	modelName  string
	workspace  string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "toolsmith",
	Short: "toolsmith - generate and self-test Go agent tools",
	Long: `toolsmith asks a language model to write a small Go tool from a name,
a description and JSON schemas, runs it, feeds the output back, and asks for a
revision until the code stops changing.

Generated tools define Run(input string) (string, error) and Examples() []string.
The wrapped file is a runnable program that exercises Run on every example.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return logging.Initialize(logging.Options{
			Dir:        cfg.Logging.Dir,
			Level:      cfg.Logging.Level,
			JSON:       cfg.Logging.JSON(),
			Verbose:    verbose,
			Stderr:     cmd.ErrOrStderr(),
			Categories: cfg.Logging.Categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.toolsmith/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Trace every stage to stderr")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "Model name (default from config)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(iterateCmd)
	rootCmd.AddCommand(reviseCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(workspaceDir(), ".toolsmith", "config.yaml")
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		c.LLM.APIKey = apiKey
	}
	if modelName != "" {
		c.LLM.Model = modelName
	}
	if p := c.Journal.DatabasePath; p != "" && p != ":memory:" && !filepath.IsAbs(p) {
		c.Journal.DatabasePath = filepath.Join(workspaceDir(), c.Journal.DatabasePath)
	}
	return c, nil
}

func workspaceDir() string {
	if workspace != "" {
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}
