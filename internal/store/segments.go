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

// Segment is a stored segment row.
type Segment struct {
	ID         int64
	ChapterID  int64
	Order      int
	SourceText string
	Type       model.SegmentType
	Speaker    string
}

// Segments loads the segments with the given ids in chapter order. Unknown
// ids are ignored.
func (s *Store) Segments(ctx context.Context, ids []int64) ([]Segment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chapter_id, "order", source_text, segment_type, speaker
		FROM segments
		WHERE id IN (`+placeholders(len(ids))+`)
		ORDER BY chapter_id, "order"
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("loading segments: %w", err)
	}
	defer rows.Close()

	var segs []Segment
	for rows.Next() {
		var (
			seg     Segment
			speaker sql.NullString
		)
		if err := rows.Scan(&seg.ID, &seg.ChapterID, &seg.Order, &seg.SourceText, &seg.Type, &speaker); err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}
		seg.Speaker = speaker.String
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// UpdateTranslation replaces a segment's translation with a hand edit.
func (s *Store) UpdateTranslation(ctx context.Context, segmentID int64, lang, text string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE translations SET translated_text = ?, manually_edited = 1, updated_at = ?
		WHERE segment_id = ? AND target_language = ?
	`, text, s.now(), segmentID, lang)
	if err != nil {
		return fmt.Errorf("updating translation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound(fmt.Sprintf("Translation not found for segment %d", segmentID))
	}
	return nil
}

// SaveRetranslations writes machine translations keyed by segment id,
// creating rows that do not exist yet and clearing the manual-edit flag.
func (s *Store) SaveRetranslations(ctx context.Context, lang string, texts map[int64]string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		for segID, text := range texts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO translations (segment_id, target_language, translated_text, manually_edited,
					status, created_at, updated_at)
				VALUES (?, ?, ?, 0, ?, ?, ?)
				ON CONFLICT (segment_id, target_language) DO UPDATE SET
					translated_text = excluded.translated_text,
					manually_edited = 0,
					status = excluded.status,
					updated_at = excluded.updated_at
			`, segID, lang, text, statusTranslated, now, now)
			if err != nil {
				return fmt.Errorf("saving translation for segment %d: %w", segID, err)
			}
		}
		return nil
	})
}

// BatchReasoning returns the batch that produced the segment's translation
// in lang. ok is false when there is none.
func (s *Store) BatchReasoning(ctx context.Context, segmentID int64, lang string) (batch model.StoredBatch, ok bool, err error) {
	var summary, events, cot, segIDs, feedback sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT b.id, b.situation_summary, b.character_events, b.full_cot_json, b.segment_ids,
			b.review_feedback, b.review_iteration
		FROM translations t
		JOIN translation_batches b ON b.id = t.batch_id
		WHERE t.segment_id = ? AND t.target_language = ?
	`, segmentID, lang).Scan(&batch.ID, &summary, &events, &cot, &segIDs, &feedback, &batch.ReviewIteration)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StoredBatch{}, false, nil
	}
	if err != nil {
		return model.StoredBatch{}, false, fmt.Errorf("getting batch reasoning: %w", err)
	}
	batch.SituationSummary = summary.String
	batch.CharacterEvents = rawJSON(events)
	batch.FullCoT = rawJSON(cot)
	batch.ReviewFeedback = rawJSON(feedback)
	if err := decodeJSON(segIDs, &batch.SegmentIDs); err != nil {
		return model.StoredBatch{}, false, err
	}
	return batch, true, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
