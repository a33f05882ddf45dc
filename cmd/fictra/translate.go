package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/cleanup"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/pipeline"
	"github.com/oukeidos/fictra/internal/store"
)

type translateOptions struct {
	projectDB string
	chapterID int64
	target    string
	noCoT     bool
	provider  string
}

func newTranslateCmd(root *rootOptions) *cobra.Command {
	opts := translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate --chapter N [--to LANG]",
		Short: "Translate one stored chapter from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, root, &opts)
		},
	}
	cmd.Example = `  fictra translate --chapter 3 --to ko
  fictra translate --project-db ./novel.db --chapter 3 --provider claude --no-cot > ch3.txt`

	cmd.Flags().StringVar(&opts.projectDB, "project-db", "", "Project database (default: the configured db_path)")
	cmd.Flags().Int64Var(&opts.chapterID, "chapter", 0, "Chapter id to translate")
	cmd.Flags().StringVar(&opts.target, "to", "", "Target language code (default: the project's target)")
	cmd.Flags().BoolVar(&opts.noCoT, "no-cot", false, "Translate directly without scene reasoning")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "LLM provider: gemini, claude or openai (default: the project's)")
	_ = cmd.MarkFlagRequired("chapter")
	return cmd
}

// runTranslate prints the translated chapter on stdout and progress and
// stats on stderr. An interrupted run is not an error.
func runTranslate(cmd *cobra.Command, root *rootOptions, opts *translateOptions) error {
	cfg, err := root.setup()
	if err != nil {
		return err
	}
	dbPath := opts.projectDB
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("project database: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	cleanup.Register("store", st.Close)

	runner := pipeline.NewRunner(st, newFactory(cfg))
	signal := pipeline.NewCancelSignal()
	ctx, stop := signalContext(signal.Cancel)
	defer stop()

	errOut := cmd.ErrOrStderr()
	start := time.Now()
	res, err := runner.Run(ctx, pipeline.Options{
		ChapterID:  opts.chapterID,
		TargetLang: opts.target,
		CoT:        !opts.noCoT,
		Provider:   opts.provider,
	}, envKeys(), signal, func(stage string, fraction float64, message string) error {
		_, err := fmt.Fprintf(errOut, "[%3.0f%%] %-20s %s\n", pipeline.OverallAt(stage, fraction)*100, stage, message)
		return err
	})
	if err != nil {
		if apperrors.IsCancelled(err) || ctx.Err() != nil {
			logger.Warn("Translation canceled", "error", err)
			return nil
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.ConnectedTranslatedText)
	printRunStats(errOut, res, time.Since(start))
	return nil
}

func printRunStats(w io.Writer, res pipeline.Result, duration time.Duration) {
	s := res.Stats
	fmt.Fprintln(w, "\n--- Run Stats ---")
	fmt.Fprintf(w, "Run: %d (%s)\n", res.PipelineRunID, res.RunUUID)
	fmt.Fprintf(w, "Time: %s\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Segments: %d, Batches: %d\n", s.Segments, s.Batches)
	fmt.Fprintf(w, "Validation attempts: %d, Review iterations: %d\n", s.ValidationAttempts, s.ReviewIterations)
	fmt.Fprintf(w, "Suggestions: personas=%d, relationships=%d\n", s.PersonaSuggestions, s.RelationshipSuggestions)
	if s.TotalTokens > 0 {
		fmt.Fprintf(w, "Tokens: %d (model %s)\n", s.TotalTokens, s.Model)
		fmt.Fprintf(w, "Estimated Cost: $%.5f\n", s.EstimatedCostUSD)
	}
}
