package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/pipeline"
)

type translateParams struct {
	ChapterID      int64  `json:"chapter_id"`
	TargetLanguage string `json:"target_language"`
	UseCoT         *bool  `json:"use_cot"`
	Provider       string `json:"provider"`
}

// translateChapter runs the pipeline for one chapter and replies when it
// finishes. Progress is streamed as notifications meanwhile. A chapter
// runs at most once at a time; runs for different chapters share the run
// pool.
func (a *App) translateChapter(ctx context.Context, params json.RawMessage) (any, error) {
	var p translateParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := requireID("chapter_id", p.ChapterID); err != nil {
		return nil, err
	}
	opts := pipeline.Options{
		ChapterID:  p.ChapterID,
		TargetLang: p.TargetLanguage,
		CoT:        p.UseCoT == nil || *p.UseCoT,
		Provider:   p.Provider,
	}

	signal, err := a.startRun(p.ChapterID)
	if err != nil {
		return nil, err
	}
	defer a.finishRun(p.ChapterID)

	keys := a.keys.Snapshot()
	var (
		result pipeline.Result
		runErr error
	)
	done := make(chan struct{})
	a.runs.Go(func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("pipeline panicked: %v", r)
			}
		}()
		result, runErr = a.runner.Run(ctx, opts, keys, signal, a.progress(p.ChapterID))
	})
	<-done

	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

// startRun registers a cancel signal for chapterID, rejecting a second
// concurrent run of the same chapter.
func (a *App) startRun(chapterID int64) (*pipeline.CancelSignal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.signals[chapterID]; busy {
		return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("Chapter %d is already being translated", chapterID), nil)
	}
	signal := pipeline.NewCancelSignal()
	a.signals[chapterID] = signal
	return signal, nil
}

func (a *App) finishRun(chapterID int64) {
	a.mu.Lock()
	delete(a.signals, chapterID)
	a.mu.Unlock()
}

// progress forwards stage updates to the client.
func (a *App) progress(chapterID int64) pipeline.ProgressFunc {
	return func(stage string, fraction float64, message string) error {
		return a.server.Notify(ProgressMethod, map[string]any{
			"stage":          stage,
			"progress":       pipeline.OverallAt(stage, fraction),
			"stage_progress": fraction,
			"message":        message,
			"chapter_id":     chapterID,
		})
	}
}

// cancel flags the run of one chapter, or every run when no chapter is
// given. Runs stop before their next model call.
func (a *App) cancel(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		ChapterID int64 `json:"chapter_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for id, signal := range a.signals {
		if p.ChapterID > 0 && id != p.ChapterID {
			continue
		}
		signal.Cancel()
		n++
	}
	logger.Info("Cancel requested", "chapter", p.ChapterID, "runs", n)
	return map[string]any{"cancelled": true}, nil
}
