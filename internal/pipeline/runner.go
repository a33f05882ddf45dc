// Package pipeline runs the chapter translation state machine: context
// loading, segmentation with validation retries, batch translation with
// review retries, persona learning and the final assembly.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/metadata"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/prompts"
	"github.com/oukeidos/fictra/internal/providers"
)

// Store is the persistence a run needs.
type Store interface {
	GetChapter(ctx context.Context, id int64) (model.Chapter, error)
	GetProject(ctx context.Context, id int64) (model.Project, error)
	GlossaryMap(ctx context.Context, projectID int64) (map[string]string, error)
	ListPersonas(ctx context.Context, projectID int64) ([]model.Persona, error)
	ListRelationships(ctx context.Context, projectID int64) ([]model.Relationship, error)
	CreateRun(ctx context.Context, run *model.PipelineRun) error
	UpdateRun(ctx context.Context, run *model.PipelineRun) error
	// SaveOutcome writes a finished translation atomically.
	SaveOutcome(ctx context.Context, out model.Outcome) error
}

// Result is returned to the caller of a successful run.
type Result struct {
	Success                 bool                           `json:"success"`
	PipelineRunID           int64                          `json:"pipeline_run_id"`
	RunUUID                 string                         `json:"run_uuid"`
	ConnectedTranslatedText string                         `json:"connected_translated_text"`
	SegmentMap              []model.SegmentMapEntry        `json:"segment_map"`
	PersonaSuggestions      []model.PersonaSuggestion      `json:"persona_suggestions"`
	RelationshipSuggestions []model.RelationshipSuggestion `json:"relationship_suggestions"`
	Stats                   model.RunStats                 `json:"stats"`
}

// Runner drives the stage graph for one chapter at a time and records each
// run in the store.
type Runner struct {
	store   Store
	factory providers.Factory
	now     func() time.Time
	// visit is called before each node runs; tests use it to count visits.
	visit func(Node)
}

// NewRunner returns a Runner that builds providers through factory.
func NewRunner(store Store, factory providers.Factory) *Runner {
	return &Runner{store: store, factory: factory, now: time.Now}
}

// Run translates one chapter. keys is a snapshot of the caller's provider
// credentials. signal may be nil. The run is recorded before any stage
// starts and the chapter is only updated when every stage succeeded.
func (r *Runner) Run(ctx context.Context, opts Options, keys map[string]string, signal *CancelSignal, progress ProgressFunc) (Result, error) {
	var notes []string
	opts, notes = opts.Normalize()
	for _, note := range notes {
		logger.Warn("Options normalized", "detail", note)
	}
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	chapter, err := r.store.GetChapter(ctx, opts.ChapterID)
	if err != nil {
		return Result{}, err
	}
	project, err := r.store.GetProject(ctx, chapter.ProjectID)
	if err != nil {
		return Result{}, err
	}
	opts, providerName := opts.withDefaults(project.TargetLanguage, project.LLMProvider)

	run := &model.PipelineRun{
		UUID:           uuid.NewString(),
		ChapterID:      chapter.ID,
		TargetLanguage: opts.TargetLang,
		Status:         model.RunPending,
		Config:         model.RunConfig{LLMProvider: string(providerName), TargetLanguage: opts.TargetLang},
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return Result{}, err
	}
	started := r.now().UTC()
	run.Status = model.RunRunning
	run.StartedAt = &started
	if err := r.store.UpdateRun(ctx, run); err != nil {
		return Result{}, err
	}
	log := logger.With("run", run.UUID, "chapter", chapter.ID)
	log.Info("Pipeline started", "provider", providerName, "target", opts.TargetLang, "cot", opts.CoT)

	meter, release, err := r.provider(ctx, providerName, keys)
	if err != nil {
		return Result{}, r.fail(ctx, run, signal, err)
	}
	defer release()

	e := &execution{store: r.store, signal: signal, progress: notifier{fn: progress}}
	if meter != nil {
		e.provider = meter
	}

	state := State{
		ChapterID:    chapter.ID,
		ProjectID:    project.ID,
		SourceText:   chapter.SourceContent,
		SourceLang:   project.SourceLanguage,
		TargetLang:   opts.TargetLang,
		Provider:     string(providerName),
		CoT:          opts.CoT,
		StyleContext: prompts.StyleContext(project.StyleSettings),
	}
	for node := NodeLoadContext; node != NodeEnd; node = Next(node, state) {
		if r.visit != nil {
			r.visit(node)
		}
		if err := ctx.Err(); err != nil {
			return Result{}, r.fail(ctx, run, signal, err)
		}
		if signal.Cancelled() {
			return Result{}, r.fail(ctx, run, signal, apperrors.ErrCancelled)
		}
		u, err := e.step(ctx, node, state)
		if err != nil {
			return Result{}, r.fail(ctx, run, signal, err)
		}
		state = Merge(state, u)
	}

	stats := model.RunStats{
		Segments:                len(state.Segments),
		Batches:                 len(state.Batches),
		PersonaSuggestions:      len(state.PersonaSuggestions),
		RelationshipSuggestions: len(state.RelationshipSuggestions),
		ReviewIterations:        state.ReviewIteration,
		ValidationAttempts:      state.ValidationAttempts,
	}
	if meter != nil {
		usage := meter.Usage()
		stats.TotalTokens = usage.Total()
		stats.Model = meter.Model()
		stats.EstimatedCostUSD = metadata.EstimateCost(providerName, stats.Model, usage)
	}
	completed := r.now().UTC()
	run.Status = model.RunCompleted
	run.CompletedAt = &completed
	run.Stats = &stats
	if err := r.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error("Failed to record completed run", "error", err)
	}
	log.Info("Pipeline completed", "segments", stats.Segments, "batches", stats.Batches, "tokens", stats.TotalTokens)

	return Result{
		Success:                 true,
		PipelineRunID:           run.ID,
		RunUUID:                 run.UUID,
		ConnectedTranslatedText: state.ConnectedText,
		SegmentMap:              state.SegmentMap,
		PersonaSuggestions:      state.PersonaSuggestions,
		RelationshipSuggestions: state.RelationshipSuggestions,
		Stats:                   stats,
	}, nil
}

// provider builds the metered provider for the run. Missing credentials
// are not an error here: stages that need a model degrade or fail on their
// own terms.
func (r *Runner) provider(ctx context.Context, name llm.ProviderName, keys map[string]string) (*llm.Meter, func(), error) {
	if r.factory == nil {
		return nil, func() {}, nil
	}
	p, release, err := r.factory(ctx, name, keys)
	if err != nil {
		if apperrors.Is(err, apperrors.KindAuth) {
			logger.Warn("No credentials for provider", "provider", name)
			return nil, release, nil
		}
		return nil, release, err
	}
	if p == nil {
		return nil, release, nil
	}
	return llm.NewMeter(p), release, nil
}

// fail records the terminal status of an aborted run and returns err.
func (r *Runner) fail(ctx context.Context, run *model.PipelineRun, signal *CancelSignal, err error) error {
	status := model.RunFailed
	if apperrors.IsCancelled(err) || signal.Cancelled() || errors.Is(err, context.Canceled) {
		status = model.RunCancelled
	}
	completed := r.now().UTC()
	run.Status = status
	run.CompletedAt = &completed
	run.ErrorMessage = err.Error()
	if uerr := r.store.UpdateRun(context.WithoutCancel(ctx), run); uerr != nil {
		logger.Error("Failed to record run failure", "run", run.UUID, "error", uerr)
	}
	logger.Error("Pipeline failed", "run", run.UUID, "chapter", run.ChapterID, "status", status, "error", err)
	return err
}
