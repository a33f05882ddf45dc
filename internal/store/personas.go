package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/model"
)

const defaultFormality = 3

type PersonaPatch struct {
	Name           *string   `json:"name"`
	Aliases        *[]string `json:"aliases"`
	Personality    *string   `json:"personality"`
	SpeechStyle    *string   `json:"speech_style"`
	FormalityLevel *int      `json:"formality_level"`
	AgeGroup       *string   `json:"age_group"`
	Notes          *string   `json:"notes"`
}

const personaColumns = `id, project_id, name, aliases, personality, speech_style, formality_level,
	age_group, notes, auto_detected, detection_confidence, appearance_count`

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanPersona(row interface{ Scan(...any) error }) (model.Persona, error) {
	var (
		p          model.Persona
		confidence sql.NullFloat64
	)
	var aliases, personality, speech, ageGroup, notes sql.NullString
	err := row.Scan(&p.ID, &p.ProjectID, &p.Name, &aliases, &personality, &speech, &p.FormalityLevel,
		&ageGroup, &notes, &p.AutoDetected, &confidence, &p.AppearanceCount)
	if err != nil {
		return model.Persona{}, err
	}
	if err := decodeJSON(aliases, &p.Aliases); err != nil {
		return model.Persona{}, err
	}
	if p.Aliases == nil {
		p.Aliases = []string{}
	}
	p.Personality = personality.String
	p.SpeechStyle = speech.String
	p.AgeGroup = ageGroup.String
	p.Notes = notes.String
	p.DetectionConfidence = floatPtr(confidence)
	return p, nil
}

// ListPersonas returns the project's personas, most frequently seen first.
func (s *Store) ListPersonas(ctx context.Context, projectID int64) ([]model.Persona, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+personaColumns+` FROM personas WHERE project_id = ? ORDER BY appearance_count DESC, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing personas: %w", err)
	}
	defer rows.Close()

	personas := []model.Persona{}
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning persona: %w", err)
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

func (s *Store) GetPersona(ctx context.Context, id int64) (model.Persona, error) {
	return getPersona(ctx, s.db, id)
}

func getPersona(ctx context.Context, q rowQuerier, id int64) (model.Persona, error) {
	p, err := scanPersona(q.QueryRowContext(ctx, `SELECT `+personaColumns+` FROM personas WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Persona{}, notFound("Persona", id)
	}
	if err != nil {
		return model.Persona{}, fmt.Errorf("getting persona: %w", err)
	}
	return p, nil
}

func (s *Store) CreatePersona(ctx context.Context, p model.Persona) (model.Persona, error) {
	if strings.TrimSpace(p.Name) == "" {
		return model.Persona{}, apperrors.Validation("Persona name is required")
	}
	if _, err := s.GetProject(ctx, p.ProjectID); err != nil {
		return model.Persona{}, err
	}
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.insertPersona(ctx, tx, p, nil)
		return err
	})
	if err != nil {
		return model.Persona{}, err
	}
	return s.GetPersona(ctx, id)
}

func (s *Store) insertPersona(ctx context.Context, tx *sql.Tx, p model.Persona, sourceChapter *int64) (int64, error) {
	if p.FormalityLevel == 0 {
		p.FormalityLevel = defaultFormality
	}
	if p.Aliases == nil {
		p.Aliases = []string{}
	}
	aliases, err := jsonText(p.Aliases)
	if err != nil {
		return 0, err
	}
	now := s.now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO personas (project_id, name, aliases, personality, speech_style, formality_level,
			age_group, notes, auto_detected, detection_confidence, source_chapter_id, appearance_count,
			last_seen_chapter_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ProjectID, p.Name, aliases, nullString(p.Personality), nullString(p.SpeechStyle), p.FormalityLevel,
		nullString(p.AgeGroup), nullString(p.Notes), p.AutoDetected, nullFloat(p.DetectionConfidence),
		nullID(sourceChapter), p.AppearanceCount, nullID(sourceChapter), now, now)
	if err != nil {
		return 0, fmt.Errorf("creating persona: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) UpdatePersona(ctx context.Context, id int64, patch PersonaPatch) (model.Persona, error) {
	u := updates{}
	u.str("name", patch.Name)
	u.str("personality", patch.Personality)
	u.str("speech_style", patch.SpeechStyle)
	u.str("age_group", patch.AgeGroup)
	u.str("notes", patch.Notes)
	if patch.FormalityLevel != nil {
		u.set("formality_level", *patch.FormalityLevel)
	}
	if patch.Aliases != nil {
		aliases, err := jsonText(*patch.Aliases)
		if err != nil {
			return model.Persona{}, err
		}
		u.set("aliases", aliases)
	}
	u.set("updated_at", s.now())

	res, err := s.db.ExecContext(ctx, u.query("personas"), u.args(id)...)
	if err != nil {
		return model.Persona{}, fmt.Errorf("updating persona: %w", err)
	}
	if err := mustAffect(res, "Persona", id); err != nil {
		return model.Persona{}, err
	}
	return s.GetPersona(ctx, id)
}

func (s *Store) DeletePersona(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM personas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting persona: %w", err)
	}
	return mustAffect(res, "Persona", id)
}

// ListSuggestions returns the pending suggestions for a persona.
func (s *Store) ListSuggestions(ctx context.Context, personaID int64) ([]model.StoredSuggestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, persona_id, field_name, suggested_value, confidence, source_chapter_id, status, created_at
		FROM persona_suggestions
		WHERE persona_id = ? AND status = ?
		ORDER BY created_at, id
	`, personaID, model.SuggestionPending)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := []model.StoredSuggestion{}
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}

func scanSuggestion(row interface{ Scan(...any) error }) (model.StoredSuggestion, error) {
	var (
		sg         model.StoredSuggestion
		value      sql.NullString
		confidence sql.NullFloat64
		chapter    sql.NullInt64
	)
	if err := row.Scan(&sg.ID, &sg.PersonaID, &sg.FieldName, &value, &confidence, &chapter, &sg.Status, &sg.CreatedAt); err != nil {
		return model.StoredSuggestion{}, err
	}
	sg.SuggestedValue = value.String
	sg.Confidence = floatPtr(confidence)
	sg.SourceChapter = idPtr(chapter)
	return sg, nil
}

// ApplySuggestion approves or rejects a pending suggestion. Approval
// writes the value into the persona: aliases gain the value when absent,
// text fields are extended with "; ", formality_level is replaced.
func (s *Store) ApplySuggestion(ctx context.Context, id int64, approve bool) (string, error) {
	status := model.SuggestionRejected
	if approve {
		status = model.SuggestionApproved
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		sg, err := scanSuggestion(tx.QueryRowContext(ctx, `
			SELECT id, persona_id, field_name, suggested_value, confidence, source_chapter_id, status, created_at
			FROM persona_suggestions WHERE id = ?
		`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Suggestion", id)
		}
		if err != nil {
			return fmt.Errorf("getting suggestion: %w", err)
		}
		if sg.Status != model.SuggestionPending {
			return apperrors.Validation(fmt.Sprintf("Suggestion %d is already %s", id, sg.Status))
		}
		if approve {
			if err := s.applyToPersona(ctx, tx, sg); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE persona_suggestions SET status = ? WHERE id = ?`, status, id)
		return err
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func (s *Store) applyToPersona(ctx context.Context, tx *sql.Tx, sg model.StoredSuggestion) error {
	p, err := getPersona(ctx, tx, sg.PersonaID)
	if err != nil {
		return err
	}
	value := strings.TrimSpace(sg.SuggestedValue)

	u := updates{}
	switch sg.FieldName {
	case "aliases":
		if value != "" && !slices.Contains(p.Aliases, value) {
			aliases, err := jsonText(append(p.Aliases, value))
			if err != nil {
				return err
			}
			u.set("aliases", aliases)
		}
	case "personality":
		u.set("personality", joinNote(p.Personality, value))
	case "speech_style":
		u.set("speech_style", joinNote(p.SpeechStyle, value))
	case "formality_level":
		level, err := strconv.Atoi(value)
		if err != nil {
			return apperrors.Validation(fmt.Sprintf("Invalid formality level %q", value))
		}
		u.set("formality_level", level)
	default:
		return apperrors.Validation(fmt.Sprintf("Unknown persona field %q", sg.FieldName))
	}
	if u.empty() {
		return nil
	}
	u.set("updated_at", s.now())
	if _, err := tx.ExecContext(ctx, u.query("personas"), u.args(p.ID)...); err != nil {
		return fmt.Errorf("applying suggestion: %w", err)
	}
	return nil
}

func joinNote(current, value string) string {
	if current == "" {
		return value
	}
	if value == "" {
		return current
	}
	return current + "; " + value
}
