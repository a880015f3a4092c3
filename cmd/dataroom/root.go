package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/dataroomindexer/internal/services"
)

var (
	configPath string
	workingDir string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "dataroom",
	Short: "Index a legal data room for due diligence",
	Long: `dataroom lists a Google Drive folder, summarizes every page of every
document with Gemini, and writes a flat data room index for the analysis agent.

Configuration is read from an optional YAML file, then from environment
variables (a .env file in the current directory is loaded first).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		setupLogging(cmd.ErrOrStderr(), verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&workingDir, "working-dir", "", "working directory for processed documents (overrides WORKING_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func setupLogging(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// loadConfig resolves the config file and environment, then applies flag overrides.
func loadConfig() (*services.IndexerConfig, error) {
	cfg, err := services.LoadIndexerConfig(configPath)
	if err != nil {
		return nil, err
	}
	if workingDir != "" {
		cfg.WorkingDir = workingDir
	}
	return cfg, nil
}
