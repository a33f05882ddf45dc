package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/model"
)

type RelationshipPatch struct {
	Type          *model.RelationshipType `json:"relationship_type"`
	Description   *string                 `json:"description"`
	IntimacyLevel *int                    `json:"intimacy_level"`
}

const relationshipQuery = `
	SELECT r.id, r.project_id, r.persona_id_1, r.persona_id_2, p1.name, p2.name,
		r.relationship_type, r.description, r.intimacy_level, r.auto_detected, r.detection_confidence
	FROM character_relationships r
	JOIN personas p1 ON p1.id = r.persona_id_1
	JOIN personas p2 ON p2.id = r.persona_id_2`

func scanRelationship(row interface{ Scan(...any) error }) (model.Relationship, error) {
	var (
		r          model.Relationship
		desc       sql.NullString
		confidence sql.NullFloat64
	)
	err := row.Scan(&r.ID, &r.ProjectID, &r.PersonaID1, &r.PersonaID2, &r.PersonaName1, &r.PersonaName2,
		&r.Type, &desc, &r.IntimacyLevel, &r.AutoDetected, &confidence)
	if err != nil {
		return model.Relationship{}, err
	}
	r.Description = desc.String
	r.DetectionConfidence = floatPtr(confidence)
	return r, nil
}

// ListRelationships returns the project's relationships with both persona
// names resolved.
func (s *Store) ListRelationships(ctx context.Context, projectID int64) ([]model.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, relationshipQuery+` WHERE r.project_id = ? ORDER BY r.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}
	defer rows.Close()

	rels := []model.Relationship{}
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func (s *Store) GetRelationship(ctx context.Context, id int64) (model.Relationship, error) {
	r, err := scanRelationship(s.db.QueryRowContext(ctx, relationshipQuery+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Relationship{}, notFound("Relationship", id)
	}
	if err != nil {
		return model.Relationship{}, fmt.Errorf("getting relationship: %w", err)
	}
	return r, nil
}

// CreateRelationship stores an undirected pair, ordering the persona ids so
// the smaller comes first.
func (s *Store) CreateRelationship(ctx context.Context, r model.Relationship) (model.Relationship, error) {
	if r.PersonaID1 == r.PersonaID2 {
		return model.Relationship{}, apperrors.Validation("Cannot create a relationship between a persona and itself")
	}
	if r.PersonaID1 > r.PersonaID2 {
		r.PersonaID1, r.PersonaID2 = r.PersonaID2, r.PersonaID1
	}
	if r.Type == "" {
		r.Type = model.Acquaintance
	}
	if !r.Type.Valid() {
		return model.Relationship{}, apperrors.Validation(fmt.Sprintf("Unknown relationship type %q", r.Type))
	}
	if r.IntimacyLevel == 0 {
		r.IntimacyLevel = model.DefaultIntimacy
	}
	r.IntimacyLevel = model.ClampIntimacy(r.IntimacyLevel)

	for _, id := range []int64{r.PersonaID1, r.PersonaID2} {
		p, err := s.GetPersona(ctx, id)
		if err != nil {
			return model.Relationship{}, err
		}
		if p.ProjectID != r.ProjectID {
			return model.Relationship{}, apperrors.Validation(fmt.Sprintf("Persona %d does not belong to project %d", id, r.ProjectID))
		}
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO character_relationships (project_id, persona_id_1, persona_id_2, relationship_type,
			description, intimacy_level, auto_detected, detection_confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ProjectID, r.PersonaID1, r.PersonaID2, r.Type, nullString(r.Description), r.IntimacyLevel,
		r.AutoDetected, nullFloat(r.DetectionConfidence), now, now)
	if err != nil {
		return model.Relationship{}, fmt.Errorf("creating relationship: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Relationship{}, err
	}
	return s.GetRelationship(ctx, id)
}

func (s *Store) UpdateRelationship(ctx context.Context, id int64, patch RelationshipPatch) (model.Relationship, error) {
	u := updates{}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return model.Relationship{}, apperrors.Validation(fmt.Sprintf("Unknown relationship type %q", *patch.Type))
		}
		u.set("relationship_type", *patch.Type)
	}
	u.str("description", patch.Description)
	if patch.IntimacyLevel != nil {
		u.set("intimacy_level", model.ClampIntimacy(*patch.IntimacyLevel))
	}
	u.set("updated_at", s.now())

	res, err := s.db.ExecContext(ctx, u.query("character_relationships"), u.args(id)...)
	if err != nil {
		return model.Relationship{}, fmt.Errorf("updating relationship: %w", err)
	}
	if err := mustAffect(res, "Relationship", id); err != nil {
		return model.Relationship{}, err
	}
	return s.GetRelationship(ctx, id)
}

func (s *Store) DeleteRelationship(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM character_relationships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	return mustAffect(res, "Relationship", id)
}
