package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightfame/crewgen/internal/config"
	"github.com/brightfame/crewgen/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "crewgen",
	Short:         "crewgen - generate software projects with a crew of LLM agents",
	Long:          "crewgen runs an architect, developer, tester and technical writer agent in sequence and materializes the files they produce.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		slog.SetDefault(slog.New(logging.NewConsole(os.Stderr, consoleLevel(slog.LevelInfo))))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// consoleLevel returns the debug level under --verbose and configured otherwise.
func consoleLevel(configured slog.Level) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return configured
}

// workDir returns the current working directory.
func workDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return dir, nil
}

// loadConfig loads .env and crewgen.toml from dir, printing any warnings.
func loadConfig(cmd *cobra.Command, dir string) (*config.Config, error) {
	cfg, err := config.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
	}
	return cfg, nil
}

// argDir returns args[0] as an absolute path, or the working directory.
func argDir(args []string) (string, error) {
	if len(args) == 0 {
		return workDir()
	}
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	return dir, nil
}

// formatDuration formats a duration like "2h 15m 30s".
func formatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	h := secs / 3600
	m := (secs / 60) % 60
	s := secs % 60

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatRelativeTime formats a time.Time as a relative string like "2m ago".
func formatRelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
