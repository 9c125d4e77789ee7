package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/dgallion1/docassess/internal/config"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "docassess",
	Short: "Score documents against checklist rubrics with an LLM",
	Long: `docassess evaluates Word and PDF documents against a YAML rubric.
Each rubric rule is sent to the LLM gateway together with the matching
section of the document, and the scored findings are reported back to the
job service.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (environment variables take precedence)")
	rootCmd.AddCommand(serveCmd, evaluateCmd, submitCmd, embedCmd)
}

// loadConfig reads configuration and builds the JSON logger at the
// configured level.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, newLogger(cfg.LogLevel), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
