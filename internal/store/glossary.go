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

type GlossaryPatch struct {
	SourceTerm     *string `json:"source_term"`
	TranslatedTerm *string `json:"translated_term"`
	TermType       *string `json:"term_type"`
	Notes          *string `json:"notes"`
	Context        *string `json:"context"`
}

const glossaryColumns = `id, project_id, source_term, translated_term, term_type, notes, context, auto_detected`

func scanGlossary(row interface{ Scan(...any) error }) (model.GlossaryEntry, error) {
	var (
		g            model.GlossaryEntry
		notes, usage sql.NullString
	)
	if err := row.Scan(&g.ID, &g.ProjectID, &g.SourceTerm, &g.TranslatedTerm, &g.TermType, &notes, &usage, &g.AutoDetected); err != nil {
		return model.GlossaryEntry{}, err
	}
	g.Notes = notes.String
	g.Context = usage.String
	return g, nil
}

func (s *Store) ListGlossary(ctx context.Context, projectID int64) ([]model.GlossaryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+glossaryColumns+` FROM glossary_entries WHERE project_id = ? ORDER BY source_term`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing glossary: %w", err)
	}
	defer rows.Close()

	entries := []model.GlossaryEntry{}
	for rows.Next() {
		g, err := scanGlossary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning glossary entry: %w", err)
		}
		entries = append(entries, g)
	}
	return entries, rows.Err()
}

// GlossaryMap returns the project glossary as source term to translation.
func (s *Store) GlossaryMap(ctx context.Context, projectID int64) (map[string]string, error) {
	entries, err := s.ListGlossary(ctx, projectID)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.SourceTerm] = e.TranslatedTerm
	}
	return m, nil
}

func (s *Store) getGlossary(ctx context.Context, id int64) (model.GlossaryEntry, error) {
	g, err := scanGlossary(s.db.QueryRowContext(ctx, `SELECT `+glossaryColumns+` FROM glossary_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.GlossaryEntry{}, notFound("Glossary entry", id)
	}
	if err != nil {
		return model.GlossaryEntry{}, fmt.Errorf("getting glossary entry: %w", err)
	}
	return g, nil
}

func (s *Store) CreateGlossary(ctx context.Context, g model.GlossaryEntry) (model.GlossaryEntry, error) {
	if strings.TrimSpace(g.SourceTerm) == "" || strings.TrimSpace(g.TranslatedTerm) == "" {
		return model.GlossaryEntry{}, apperrors.Validation("source_term and translated_term are required")
	}
	if _, err := s.GetProject(ctx, g.ProjectID); err != nil {
		return model.GlossaryEntry{}, err
	}
	if g.TermType == "" {
		g.TermType = model.DefaultTermType
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO glossary_entries (project_id, source_term, translated_term, term_type, notes, context, auto_detected, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ProjectID, g.SourceTerm, g.TranslatedTerm, g.TermType, nullString(g.Notes), nullString(g.Context), g.AutoDetected, s.now())
	if err != nil {
		return model.GlossaryEntry{}, fmt.Errorf("creating glossary entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.GlossaryEntry{}, err
	}
	return s.getGlossary(ctx, id)
}

func (s *Store) UpdateGlossary(ctx context.Context, id int64, patch GlossaryPatch) (model.GlossaryEntry, error) {
	u := updates{}
	u.str("source_term", patch.SourceTerm)
	u.str("translated_term", patch.TranslatedTerm)
	u.str("term_type", patch.TermType)
	u.str("notes", patch.Notes)
	u.str("context", patch.Context)
	if u.empty() {
		return s.getGlossary(ctx, id)
	}
	res, err := s.db.ExecContext(ctx, u.query("glossary_entries"), u.args(id)...)
	if err != nil {
		return model.GlossaryEntry{}, fmt.Errorf("updating glossary entry: %w", err)
	}
	if err := mustAffect(res, "Glossary entry", id); err != nil {
		return model.GlossaryEntry{}, err
	}
	return s.getGlossary(ctx, id)
}

func (s *Store) DeleteGlossary(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM glossary_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting glossary entry: %w", err)
	}
	return mustAffect(res, "Glossary entry", id)
}
