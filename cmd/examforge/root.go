package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkobayashi/examforge/version"
)

var (
	cfgFile string
	homeDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "examforge",
	Short: "Exam digitization pipeline for scanned question booklets",
	Long: `Examforge turns scanned exam PDFs into structured, answer-linked JSON.

The pipeline includes:
  - Reading-order reconstruction from text geometry
  - Rule-based detection of consecutive case-question blocks
  - LLM-powered question structuring and answer-key parsing
  - Caption-based image association
  - Multi-source record integration with deterministic output`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.examforge/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "examforge home directory (default: ~/.examforge)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stagesCmd)
	rootCmd.AddCommand(versionCmd)
}
