package store

import (
	"context"
	"fmt"

	"github.com/oukeidos/fictra/internal/model"
)

// RecordExport stores a written export file and sets e.ID.
func (s *Store) RecordExport(ctx context.Context, projectID int64, e *model.Export) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO exports (chapter_id, project_id, target_language, format, file_path, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ChapterID, projectID, e.TargetLanguage, e.Format, e.Path, e.Size, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording export: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// ListExports returns a chapter's exports, newest first.
func (s *Store) ListExports(ctx context.Context, chapterID int64) ([]model.Export, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chapter_id, target_language, format, file_path, size, created_at
		FROM exports WHERE chapter_id = ? ORDER BY created_at DESC, id DESC
	`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	defer rows.Close()

	exports := []model.Export{}
	for rows.Next() {
		var e model.Export
		if err := rows.Scan(&e.ID, &e.ChapterID, &e.TargetLanguage, &e.Format, &e.Path, &e.Size, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning export: %w", err)
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}
