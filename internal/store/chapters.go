package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/model"
)

type ChapterPatch struct {
	Title         *string `json:"title"`
	SourceContent *string `json:"source_content"`
	Order         *int    `json:"order"`
}

// EditorData is the side-by-side view of one chapter in one language.
type EditorData struct {
	SourceConnectedText     string                `json:"source_connected_text"`
	TranslatedConnectedText string                `json:"translated_connected_text"`
	Segments                []model.EditorSegment `json:"segments"`
}

const chapterColumns = `c.id, c.project_id, c.title, c."order", c.source_content, c.translated_content,
	c.translation_stale, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM segments s WHERE s.chapter_id = c.id),
	(SELECT COUNT(*) FROM translations t JOIN segments s ON s.id = t.segment_id
		WHERE s.chapter_id = c.id AND t.status != 'pending')`

func scanChapter(row interface{ Scan(...any) error }) (model.Chapter, error) {
	var (
		c                   model.Chapter
		source, translation sql.NullString
	)
	err := row.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Order, &source, &translation,
		&c.TranslationStale, &c.CreatedAt, &c.UpdatedAt, &c.SegmentCount, &c.TranslatedCount)
	if err != nil {
		return model.Chapter{}, err
	}
	c.SourceContent = source.String
	c.TranslatedContent = translation.String
	c.WordCount = len(strings.Fields(c.SourceContent))
	return c, nil
}

// ListChapters returns the chapters of a project in reading order.
func (s *Store) ListChapters(ctx context.Context, projectID int64) ([]model.Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+chapterColumns+` FROM chapters c WHERE c.project_id = ? ORDER BY c."order", c.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing chapters: %w", err)
	}
	defer rows.Close()

	chapters := []model.Chapter{}
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chapter: %w", err)
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

func (s *Store) GetChapter(ctx context.Context, id int64) (model.Chapter, error) {
	c, err := scanChapter(s.db.QueryRowContext(ctx, `SELECT `+chapterColumns+` FROM chapters c WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Chapter{}, notFound("Chapter", id)
	}
	if err != nil {
		return model.Chapter{}, fmt.Errorf("getting chapter: %w", err)
	}
	return c, nil
}

// CreateChapter appends a chapter after the project's last one.
func (s *Store) CreateChapter(ctx context.Context, projectID int64, title, source string) (model.Chapter, error) {
	if strings.TrimSpace(title) == "" {
		return model.Chapter{}, apperrors.Validation("Chapter title is required")
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return model.Chapter{}, err
	}

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var maxOrder int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX("order"), 0) FROM chapters WHERE project_id = ?`, projectID).Scan(&maxOrder); err != nil {
			return fmt.Errorf("reading chapter order: %w", err)
		}
		now := s.now()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO chapters (project_id, title, "order", source_content, translation_stale, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?)
		`, projectID, title, maxOrder+1, source, now, now)
		if err != nil {
			return fmt.Errorf("creating chapter: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return touchProject(ctx, tx, projectID, now)
	})
	if err != nil {
		return model.Chapter{}, err
	}
	return s.GetChapter(ctx, id)
}

// UpdateChapter applies patch. Changing the source marks the stored
// translation stale.
func (s *Store) UpdateChapter(ctx context.Context, id int64, patch ChapterPatch) (model.Chapter, error) {
	current, err := s.GetChapter(ctx, id)
	if err != nil {
		return model.Chapter{}, err
	}

	u := updates{}
	u.str("title", patch.Title)
	u.str("source_content", patch.SourceContent)
	if patch.Order != nil {
		u.set("order", *patch.Order)
	}
	if patch.SourceContent != nil && *patch.SourceContent != current.SourceContent {
		u.set("translation_stale", true)
	}
	if u.empty() {
		return current, nil
	}
	now := s.now()
	u.set("updated_at", now)

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, u.query("chapters"), u.args(id)...); err != nil {
			return fmt.Errorf("updating chapter: %w", err)
		}
		return touchProject(ctx, tx, current.ProjectID, now)
	})
	if err != nil {
		return model.Chapter{}, err
	}
	return s.GetChapter(ctx, id)
}

func (s *Store) DeleteChapter(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting chapter: %w", err)
	}
	return mustAffect(res, "Chapter", id)
}

// EditorData returns the chapter texts and every segment with its
// translation in lang, if any.
func (s *Store) EditorData(ctx context.Context, chapterID int64, lang string) (EditorData, error) {
	chapter, err := s.GetChapter(ctx, chapterID)
	if err != nil {
		return EditorData{}, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s."order", s.segment_type, s.speaker, s.source_text,
			s.source_start_offset, s.source_end_offset,
			t.translated_text, t.translated_start_offset, t.translated_end_offset,
			t.batch_id, COALESCE(t.manually_edited, 0)
		FROM segments s
		LEFT JOIN translations t ON t.segment_id = s.id AND t.target_language = ?
		WHERE s.chapter_id = ?
		ORDER BY s."order"
	`, lang, chapterID)
	if err != nil {
		return EditorData{}, fmt.Errorf("loading editor segments: %w", err)
	}
	defer rows.Close()

	data := EditorData{
		SourceConnectedText:     chapter.SourceContent,
		TranslatedConnectedText: chapter.TranslatedContent,
		Segments:                []model.EditorSegment{},
	}
	for rows.Next() {
		var (
			seg                                 model.EditorSegment
			speaker, translated                 sql.NullString
			srcStart, srcEnd, trStart, trEnd, b sql.NullInt64
		)
		if err := rows.Scan(&seg.ID, &seg.Order, &seg.Type, &speaker, &seg.SourceText,
			&srcStart, &srcEnd, &translated, &trStart, &trEnd, &b, &seg.ManuallyEdited); err != nil {
			return EditorData{}, fmt.Errorf("scanning editor segment: %w", err)
		}
		if speaker.Valid {
			seg.Speaker = &speaker.String
		}
		if translated.Valid {
			seg.TranslatedText = &translated.String
		}
		seg.SourceStart, seg.SourceEnd = intPtr(srcStart), intPtr(srcEnd)
		seg.TranslatedStart, seg.TranslatedEnd = intPtr(trStart), intPtr(trEnd)
		seg.BatchID = idPtr(b)
		data.Segments = append(data.Segments, seg)
	}
	return data, rows.Err()
}
