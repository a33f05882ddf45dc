package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oukeidos/fictra/internal/model"
)

// CreateRun records a new pipeline run and sets run.ID.
func (s *Store) CreateRun(ctx context.Context, run *model.PipelineRun) error {
	config, err := jsonText(run.Config)
	if err != nil {
		return err
	}
	stats, err := jsonText(run.Stats)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (run_uuid, chapter_id, target_language, status, started_at,
			completed_at, error_message, config, stats, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.UUID, run.ChapterID, run.TargetLanguage, run.Status, run.StartedAt, run.CompletedAt,
		nullString(run.ErrorMessage), config, stats, s.now())
	if err != nil {
		return fmt.Errorf("creating pipeline run: %w", err)
	}
	run.ID, err = res.LastInsertId()
	return err
}

// UpdateRun writes the mutable state of run: status, timestamps, stats and
// error message.
func (s *Store) UpdateRun(ctx context.Context, run *model.PipelineRun) error {
	stats, err := jsonText(run.Stats)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET status = ?, started_at = ?, completed_at = ?, error_message = ?, stats = ?
		WHERE id = ?
	`, run.Status, run.StartedAt, run.CompletedAt, nullString(run.ErrorMessage), stats, run.ID)
	if err != nil {
		return fmt.Errorf("updating pipeline run: %w", err)
	}
	return mustAffect(res, "Pipeline run", run.ID)
}

func (s *Store) GetRun(ctx context.Context, id int64) (model.PipelineRun, error) {
	var (
		run                  model.PipelineRun
		started, completed   sql.NullTime
		errMsg, config, stat sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_uuid, chapter_id, target_language, status, started_at, completed_at,
			error_message, config, stats
		FROM pipeline_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.UUID, &run.ChapterID, &run.TargetLanguage, &run.Status,
		&started, &completed, &errMsg, &config, &stat)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PipelineRun{}, notFound("Pipeline run", id)
	}
	if err != nil {
		return model.PipelineRun{}, fmt.Errorf("getting pipeline run: %w", err)
	}
	if started.Valid {
		run.StartedAt = &started.Time
	}
	if completed.Valid {
		run.CompletedAt = &completed.Time
	}
	run.ErrorMessage = errMsg.String
	if err := decodeJSON(config, &run.Config); err != nil {
		return model.PipelineRun{}, err
	}
	if stat.Valid {
		run.Stats = &model.RunStats{}
		if err := decodeJSON(stat, run.Stats); err != nil {
			return model.PipelineRun{}, err
		}
	}
	return run, nil
}
