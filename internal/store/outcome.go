package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/textutil"
)

const (
	statusTranslated = "translated"
	statusFailed     = "failed"
)

// SaveOutcome replaces the chapter's segments, translations and batches for
// the outcome's language with the result of a run, and records its persona
// suggestions and newly found glossary terms. Nothing is written unless all
// of it is.
func (s *Store) SaveOutcome(ctx context.Context, out model.Outcome) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		res, err := tx.ExecContext(ctx, `
			UPDATE chapters SET translated_content = ?, translation_stale = 0, updated_at = ? WHERE id = ?
		`, out.ConnectedText, now, out.ChapterID)
		if err != nil {
			return fmt.Errorf("updating chapter: %w", err)
		}
		if err := mustAffect(res, "Chapter", out.ChapterID); err != nil {
			return err
		}
		if err := touchProject(ctx, tx, out.ProjectID, now); err != nil {
			return fmt.Errorf("touching project: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE chapter_id = ?`, out.ChapterID); err != nil {
			return fmt.Errorf("clearing segments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM translation_batches WHERE chapter_id = ? AND target_language = ?`, out.ChapterID, out.TargetLanguage); err != nil {
			return fmt.Errorf("clearing batches: %w", err)
		}

		segmentIDs, err := s.insertSegments(ctx, tx, out)
		if err != nil {
			return err
		}
		batchIDs, err := s.insertBatches(ctx, tx, out, segmentIDs)
		if err != nil {
			return err
		}
		if err := s.insertTranslations(ctx, tx, out, segmentIDs, batchIDs); err != nil {
			return err
		}
		if err := s.insertSuggestions(ctx, tx, out); err != nil {
			return err
		}
		return s.insertUnknownTerms(ctx, tx, out)
	})
}

// insertSegments returns the row id of each segment keyed by its order.
func (s *Store) insertSegments(ctx context.Context, tx *sql.Tx, out model.Outcome) (map[int]int64, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segments (chapter_id, "order", source_text, source_start_offset, source_end_offset,
			has_preceding_break, speaker, segment_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	status := make(map[int]string, len(out.Translated))
	for _, ts := range out.Translated {
		status[ts.SegmentID] = statusTranslated
		if ts.TranslatedText == model.FailedTranslation {
			status[ts.SegmentID] = statusFailed
		}
	}

	now := s.now()
	ids := make(map[int]int64, len(out.Segments))
	for _, seg := range out.Segments {
		st := status[seg.Order]
		if st == "" {
			st = "pending"
		}
		segType := seg.Type
		if segType == "" {
			segType = model.Narrative
		}
		res, err := stmt.ExecContext(ctx, out.ChapterID, seg.Order, seg.Text, seg.SourceStart, seg.SourceEnd,
			seg.HasPrecedingBreak, nullString(seg.Speaker), segType, st, now, now)
		if err != nil {
			return nil, fmt.Errorf("inserting segment %d: %w", seg.Order, err)
		}
		if ids[seg.Order], err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// insertBatches returns the row id of each batch keyed by its order.
// segment_ids are stored as segment row ids.
func (s *Store) insertBatches(ctx context.Context, tx *sql.Tx, out model.Outcome, segmentIDs map[int]int64) (map[int]int64, error) {
	now := s.now()
	ids := make(map[int]int64, len(out.Batches))
	for _, b := range out.Batches {
		rowIDs := make([]int64, 0, len(b.SegmentIDs))
		for _, id := range b.SegmentIDs {
			if rowID, ok := segmentIDs[id]; ok {
				rowIDs = append(rowIDs, rowID)
			}
		}
		segs, err := jsonText(rowIDs)
		if err != nil {
			return nil, err
		}
		events, err := jsonText(b.CharacterEvents)
		if err != nil {
			return nil, err
		}
		cot, err := jsonText(b)
		if err != nil {
			return nil, err
		}
		var feedback sql.NullString
		if len(b.Feedback) > 0 {
			if feedback, err = jsonText(b.Feedback); err != nil {
				return nil, err
			}
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO translation_batches (chapter_id, target_language, batch_order, situation_summary,
				character_events, full_cot_json, segment_ids, review_feedback, review_iteration, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, out.ChapterID, out.TargetLanguage, b.Order, nullString(b.SituationSummary), events, cot, segs,
			feedback, b.ReviewIteration, now)
		if err != nil {
			return nil, fmt.Errorf("inserting batch %d: %w", b.Order, err)
		}
		if ids[b.Order], err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// insertTranslations writes one translation per segment map entry. When a
// segment was translated more than once the last translation wins.
func (s *Store) insertTranslations(ctx context.Context, tx *sql.Tx, out model.Outcome, segmentIDs, batchIDs map[int]int64) error {
	texts := make(map[int]string, len(out.Translated))
	for _, ts := range out.Translated {
		texts[ts.SegmentID] = ts.TranslatedText
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO translations (segment_id, target_language, translated_text, translated_start_offset,
			translated_end_offset, manually_edited, status, batch_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := s.now()
	for _, e := range out.SegmentMap {
		segID, ok := segmentIDs[e.SegmentID]
		if !ok {
			logger.Warn("Translation without a segment", "chapter", out.ChapterID, "segment", e.SegmentID)
			continue
		}
		text := texts[e.SegmentID]
		status := statusTranslated
		if text == model.FailedTranslation {
			status = statusFailed
		}
		var batch sql.NullInt64
		if id, ok := batchIDs[e.BatchID]; ok {
			batch = sql.NullInt64{Int64: id, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, segID, out.TargetLanguage, text, e.TranslatedStart, e.TranslatedEnd,
			status, batch, now, now); err != nil {
			return fmt.Errorf("inserting translation for segment %d: %w", e.SegmentID, err)
		}
	}
	return nil
}

// insertSuggestions stores persona suggestions as pending. Suggestions for
// characters without a persona create one, marked auto-detected.
func (s *Store) insertSuggestions(ctx context.Context, tx *sql.Tx, out model.Outcome) error {
	if len(out.PersonaSuggestions) == 0 {
		return nil
	}
	personas, err := listPersonasTx(ctx, tx, out.ProjectID)
	if err != nil {
		return err
	}
	created := map[string]int64{}
	chapterID := out.ChapterID
	now := s.now()

	for _, sg := range out.PersonaSuggestions {
		var personaID int64
		switch {
		case sg.PersonaID != nil:
			personaID = *sg.PersonaID
		default:
			key := textutil.FoldKey(sg.Name)
			if key == "" {
				continue
			}
			if id, ok := created[key]; ok {
				personaID = id
				break
			}
			for _, p := range personas {
				if p.Matches(sg.Name) {
					personaID = p.ID
					break
				}
			}
			if personaID == 0 {
				confidence := sg.Confidence
				personaID, err = s.insertPersona(ctx, tx, model.Persona{
					ProjectID:           out.ProjectID,
					Name:                strings.TrimSpace(sg.Name),
					AutoDetected:        true,
					DetectionConfidence: &confidence,
					AppearanceCount:     1,
				}, &chapterID)
				if err != nil {
					return err
				}
				logger.Info("Created persona from suggestion", "name", sg.Name, "persona", personaID)
			}
			created[key] = personaID
		}

		confidence := sg.Confidence
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO persona_suggestions (persona_id, field_name, suggested_value, confidence,
				source_chapter_id, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, personaID, sg.Field, sg.Value, nullFloat(&confidence), chapterID, model.SuggestionPending, now); err != nil {
			return fmt.Errorf("inserting persona suggestion: %w", err)
		}
	}
	return nil
}

func listPersonasTx(ctx context.Context, tx *sql.Tx, projectID int64) ([]model.Persona, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+personaColumns+` FROM personas WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing personas: %w", err)
	}
	defer rows.Close()
	var personas []model.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning persona: %w", err)
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

// insertUnknownTerms adds terms the translator coined as auto-detected
// glossary entries, skipping any source term the project already has.
func (s *Store) insertUnknownTerms(ctx context.Context, tx *sql.Tx, out model.Outcome) error {
	if len(out.UnknownTerms) == 0 {
		return nil
	}
	rows, err := tx.QueryContext(ctx, `SELECT source_term FROM glossary_entries WHERE project_id = ?`, out.ProjectID)
	if err != nil {
		return fmt.Errorf("loading glossary terms: %w", err)
	}
	existing := map[string]bool{}
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			rows.Close()
			return fmt.Errorf("scanning glossary term: %w", err)
		}
		existing[textutil.FoldKey(term)] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	now := s.now()
	added := 0
	for _, t := range out.UnknownTerms {
		key := textutil.FoldKey(t.SourceTerm)
		if key == "" || strings.TrimSpace(t.TranslatedTerm) == "" || existing[key] {
			continue
		}
		termType := t.TermType
		if termType == "" {
			termType = model.DefaultTermType
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO glossary_entries (project_id, source_term, translated_term, term_type, auto_detected, created_at)
			VALUES (?, ?, ?, ?, 1, ?)
		`, out.ProjectID, strings.TrimSpace(t.SourceTerm), strings.TrimSpace(t.TranslatedTerm), termType, now); err != nil {
			return fmt.Errorf("inserting glossary term: %w", err)
		}
		existing[key] = true
		added++
	}
	if added > 0 {
		logger.Debug("Added auto-detected glossary terms", "project", out.ProjectID, "count", added)
	}
	return nil
}
