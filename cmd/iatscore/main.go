// Package main provides the CLI entrypoint for iatscore.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abequet/Psycho-Tasks/internal/config"
	"github.com/abequet/Psycho-Tasks/internal/model"
	"github.com/abequet/Psycho-Tasks/internal/pipeline"
	"github.com/abequet/Psycho-Tasks/internal/report"
	"github.com/abequet/Psycho-Tasks/internal/results"
	"github.com/abequet/Psycho-Tasks/internal/store"
)

const (
	defaultRetryPenalty   = 600.0
	defaultClipMin        = 300.0
	defaultClipMax        = 3000.0
	defaultExcludeLeading = 1
	defaultRTColumn       = "rt"
	defaultKeyboardColumn = "rt_keyboard"
	defaultRunsLast       = 20

	resultsFileName = "iat_results.csv"
)

var (
	scoreInput          string
	scoreOutput         string
	scoreRetryPenalty   float64
	scoreClipMin        float64
	scoreClipMax        float64
	scoreExcludeLeading int
	scoreRTColumn       string
	scoreKeyboardColumn string
	scoreNoArchive      bool

	reportResults string

	runsLast int
	runsID   int64
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "iatscore",
		Short:         "IAT response-time scoring pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runScoreCmd,
	}

	rootCmd.Flags().StringVar(&scoreInput, "input", "", "root directory of trial logs")
	rootCmd.Flags().StringVar(&scoreOutput, "output", "", "directory for the results table")
	rootCmd.Flags().Float64Var(&scoreRetryPenalty, "retry-penalty", defaultRetryPenalty, "penalty in ms added to second-chance responses")
	rootCmd.Flags().Float64Var(&scoreClipMin, "clip-min", defaultClipMin, "lower response-time bound in ms")
	rootCmd.Flags().Float64Var(&scoreClipMax, "clip-max", defaultClipMax, "upper response-time bound in ms")
	rootCmd.Flags().IntVar(&scoreExcludeLeading, "exclude-leading", defaultExcludeLeading, "warm-up trials dropped per segment")
	rootCmd.Flags().StringVar(&scoreRTColumn, "rt-column", defaultRTColumn, "column holding the raw response time")
	rootCmd.Flags().StringVar(&scoreKeyboardColumn, "rt-keyboard-column", defaultKeyboardColumn, "column holding the keyboard-only response time")
	rootCmd.Flags().BoolVar(&scoreNoArchive, "no-archive", false, "skip recording the run in the archive")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newRunsCmd())

	return rootCmd
}

func runScoreCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "input", &scoreInput, fileCfg.Paths.Input)
	applyStringConfig(cmd, "output", &scoreOutput, fileCfg.Paths.Output)
	applyFloatConfig(cmd, "retry-penalty", &scoreRetryPenalty, fileCfg.Scoring.RetryPenaltyMs)
	applyFloatConfig(cmd, "clip-min", &scoreClipMin, fileCfg.Scoring.ClipMinMs)
	applyFloatConfig(cmd, "clip-max", &scoreClipMax, fileCfg.Scoring.ClipMaxMs)
	applyIntConfig(cmd, "exclude-leading", &scoreExcludeLeading, fileCfg.Scoring.ExcludeLeadingTrials)
	applyStringConfig(cmd, "rt-column", &scoreRTColumn, fileCfg.Scoring.RTColumn)
	applyStringConfig(cmd, "rt-keyboard-column", &scoreKeyboardColumn, fileCfg.Scoring.RTKeyboardColumn)

	cfg := model.RunConfig{
		InputRoot: scoreInput,
		OutputDir: scoreOutput,
		Scoring: model.ScoringConfig{
			RetryPenaltyMs:   scoreRetryPenalty,
			ClipMinMs:        scoreClipMin,
			ClipMaxMs:        scoreClipMax,
			ExcludeLeading:   scoreExcludeLeading,
			RTColumn:         scoreRTColumn,
			RTKeyboardColumn: scoreKeyboardColumn,
			Congruent:        model.DefaultCongruent,
			Incongruent:      model.DefaultIncongruent,
		},
	}

	if err := validateRunConfig(cfg); err != nil {
		return err
	}

	started := time.Now()
	outcome, err := pipeline.Run(cfg)
	if err != nil {
		return err
	}
	for _, warning := range outcome.Warnings {
		logErrf("warning: %s\n", warning)
	}

	outPath := filepath.Join(cfg.OutputDir, resultsFileName)
	if err := outcome.Table.WriteCSV(outPath); err != nil {
		return err
	}

	if !scoreNoArchive {
		st, err := store.Open(config.DefaultDBPath())
		if err != nil {
			return fmt.Errorf("failed to open run archive: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close run archive: %v\n", cerr)
			}
		}()
		rec := model.RunRecord{
			StartedAt:    started,
			FinishedAt:   time.Now(),
			InputRoot:    cfg.InputRoot,
			OutputPath:   outPath,
			Participants: outcome.Participants,
			Files:        outcome.Files,
			Warnings:     len(outcome.Warnings),
		}
		if _, err := st.InsertRun(context.Background(), rec, outcome.Table.Archived()); err != nil {
			return fmt.Errorf("failed to archive run: %w", err)
		}
	}

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Scored %d files from %d participants into %s\n",
		outcome.Files, outcome.Participants, outPath); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a results table in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runReportCmd,
	}
	cmd.Flags().StringVar(&reportResults, "results", "", "path to a results CSV (default: <output>/"+resultsFileName+")")
	return cmd
}

func runReportCmd(_ *cobra.Command, _ []string) error {
	path := reportResults
	if path == "" {
		fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if fileCfg.Paths.Output == nil || *fileCfg.Paths.Output == "" {
			return fmt.Errorf("--results is required (or set [paths] output in the config)")
		}
		path = filepath.Join(*fileCfg.Paths.Output, resultsFileName)
	}
	table, err := results.ReadCSV(path)
	if err != nil {
		return err
	}
	return report.Render(os.Stdout, table)
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived scoring runs",
		Args:  cobra.NoArgs,
		RunE:  runRunsCmd,
	}
	cmd.Flags().IntVar(&runsLast, "last", defaultRunsLast, "limit to last N runs")
	cmd.Flags().Int64Var(&runsID, "run", 0, "show the block summaries of one run")
	return cmd
}

func runRunsCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open run archive: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close run archive: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	if runsID > 0 {
		blocks, err := st.ListRunBlocks(ctx, runsID)
		if err != nil {
			return fmt.Errorf("failed to list run blocks: %w", err)
		}
		return report.RenderRunBlocks(cmd.OutOrStdout(), blocks)
	}
	runs, err := st.ListRuns(ctx, runsLast)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return report.RenderRuns(cmd.OutOrStdout(), runs)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# iatscore configuration
# Uncomment a value to enable it. CLI flags override config values.

[paths]
# input = "/path/to/trial-logs"    # Root directory scanned for trial logs
# output = "/path/to/results"      # Directory receiving %s

[scoring]
# retry-penalty-ms = %.0f           # Penalty added when a second response attempt occurred
# clip-min-ms = %.0f                # Lower response-time bound
# clip-max-ms = %.0f               # Upper response-time bound
# exclude-leading-trials = %d       # Warm-up trials dropped per segment
# rt-column = %q                  # Column holding the raw response time (retries included)
# rt-keyboard-column = %q # Column holding the keyboard-only response time
`,
		resultsFileName,
		defaultRetryPenalty,
		defaultClipMin,
		defaultClipMax,
		defaultExcludeLeading,
		defaultRTColumn,
		defaultKeyboardColumn,
	)
}

func validateRunConfig(cfg model.RunConfig) error {
	if cfg.InputRoot == "" {
		return fmt.Errorf("--input is required (flag or [paths] input in the config)")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("--output is required (flag or [paths] output in the config)")
	}
	if cfg.Scoring.RetryPenaltyMs < 0 {
		return fmt.Errorf("--retry-penalty must be >= 0")
	}
	if cfg.Scoring.ClipMinMs < 0 {
		return fmt.Errorf("--clip-min must be >= 0")
	}
	if cfg.Scoring.ClipMaxMs < cfg.Scoring.ClipMinMs {
		return fmt.Errorf("--clip-max must be >= --clip-min")
	}
	if cfg.Scoring.ExcludeLeading < 0 {
		return fmt.Errorf("--exclude-leading must be >= 0")
	}
	if cfg.Scoring.RTColumn == "" {
		return fmt.Errorf("--rt-column must not be empty")
	}
	if cfg.Scoring.RTKeyboardColumn == "" {
		return fmt.Errorf("--rt-keyboard-column must not be empty")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
