package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/model"
)

// ProjectPatch lists the updatable project fields; nil means unchanged.
type ProjectPatch struct {
	Name           *string         `json:"name"`
	Description    *string         `json:"description"`
	SourceLanguage *string         `json:"source_language"`
	TargetLanguage *string         `json:"target_language"`
	Genre          *string         `json:"genre"`
	StyleSettings  *map[string]any `json:"style_settings"`
	PipelineType   *string         `json:"pipeline_type"`
	LLMProvider    *string         `json:"llm_provider"`
}

const projectColumns = `p.id, p.name, p.description, p.source_language, p.target_language, p.genre,
	p.style_settings, p.pipeline_type, p.llm_provider, p.created_at, p.updated_at,
	(SELECT COUNT(*) FROM chapters c WHERE c.project_id = p.id)`

func scanProject(row interface{ Scan(...any) error }) (model.Project, error) {
	var (
		p                                 model.Project
		desc, target, genre, styleSetting sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &desc, &p.SourceLanguage, &target, &genre,
		&styleSetting, &p.PipelineType, &p.LLMProvider, &p.CreatedAt, &p.UpdatedAt, &p.ChapterCount)
	if err != nil {
		return model.Project{}, err
	}
	p.Description = desc.String
	p.TargetLanguage = target.String
	p.Genre = genre.String
	if err := decodeJSON(styleSetting, &p.StyleSettings); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

// ListProjects returns every project, most recently updated first.
func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects p ORDER BY p.updated_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id int64) (model.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, notFound("Project", id)
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("getting project: %w", err)
	}
	return p, nil
}

// CreateProject inserts p, filling language, pipeline and provider
// defaults, and returns the stored row.
func (s *Store) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return model.Project{}, apperrors.Validation("Project name is required")
	}
	if p.SourceLanguage == "" {
		p.SourceLanguage = "ko"
	}
	if p.TargetLanguage == "" {
		p.TargetLanguage = "en"
	}
	if p.PipelineType == "" {
		p.PipelineType = model.DefaultPipelineType
	}
	if p.LLMProvider == "" {
		p.LLMProvider = string(llm.DefaultProvider)
	}
	style, err := jsonText(p.StyleSettings)
	if err != nil {
		return model.Project{}, err
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (name, description, source_language, target_language, genre,
			style_settings, pipeline_type, llm_provider, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Name, nullString(p.Description), p.SourceLanguage, p.TargetLanguage, nullString(p.Genre),
		style, p.PipelineType, p.LLMProvider, now, now)
	if err != nil {
		return model.Project{}, fmt.Errorf("creating project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Project{}, err
	}
	return s.GetProject(ctx, id)
}

func (s *Store) UpdateProject(ctx context.Context, id int64, patch ProjectPatch) (model.Project, error) {
	u := updates{}
	u.str("name", patch.Name)
	u.str("description", patch.Description)
	u.str("source_language", patch.SourceLanguage)
	u.str("target_language", patch.TargetLanguage)
	u.str("genre", patch.Genre)
	u.str("pipeline_type", patch.PipelineType)
	u.str("llm_provider", patch.LLMProvider)
	if patch.StyleSettings != nil {
		style, err := jsonText(*patch.StyleSettings)
		if err != nil {
			return model.Project{}, err
		}
		u.set("style_settings", style)
	}
	u.set("updated_at", s.now())

	res, err := s.db.ExecContext(ctx, u.query("projects"), u.args(id)...)
	if err != nil {
		return model.Project{}, fmt.Errorf("updating project: %w", err)
	}
	if err := mustAffect(res, "Project", id); err != nil {
		return model.Project{}, err
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project and, through cascades, everything in it.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return mustAffect(res, "Project", id)
}

// touchProject bumps updated_at so the project list reflects chapter edits.
func touchProject(ctx context.Context, tx *sql.Tx, projectID int64, now any) error {
	_, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, now, projectID)
	return err
}

// updates accumulates the SET clause of a partial update.
type updates struct {
	cols []string
	vals []any
}

func (u *updates) set(col string, v any) {
	u.cols = append(u.cols, col)
	u.vals = append(u.vals, v)
}

func (u *updates) str(col string, v *string) {
	if v != nil {
		u.set(col, *v)
	}
}

func (u *updates) query(table string) string {
	sets := make([]string, len(u.cols))
	for i, c := range u.cols {
		sets[i] = fmt.Sprintf("%q = ?", c)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
}

func (u *updates) args(id int64) []any {
	return append(append([]any{}, u.vals...), id)
}

func (u *updates) empty() bool {
	return len(u.cols) == 0
}
