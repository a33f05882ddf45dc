package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/language"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/store"
	"github.com/oukeidos/fictra/internal/textutil"
)

const testPrompt = "Say 'hello' in one word."

func deleted(id int64) map[string]any {
	return map[string]any{"deleted": true, "id": id}
}

// firstID returns the first positive id, so methods accept both their
// named id parameter and a plain "id".
func firstID(ids ...int64) int64 {
	for _, id := range ids {
		if id > 0 {
			return id
		}
	}
	return 0
}

// --- config ---

// setKeys accepts {"keys": {...}} or the provider keys at the top level.
func (a *App) setKeys(_ context.Context, params json.RawMessage) (any, error) {
	var raw map[string]json.RawMessage
	if err := decode(params, &raw); err != nil {
		return nil, err
	}
	if nested, ok := raw["keys"]; ok {
		raw = nil
		if err := decode(nested, &raw); err != nil {
			return nil, err
		}
	}
	keys := make(map[string]string, len(raw))
	for name, v := range raw {
		var key string
		if err := json.Unmarshal(v, &key); err != nil {
			return nil, &paramsError{err: err}
		}
		keys[name] = key
	}
	return map[string]any{"stored": a.keys.Set(keys)}, nil
}

func (a *App) getKeys(context.Context, json.RawMessage) (any, error) {
	return a.keys.Status(), nil
}

// testProvider makes one tiny call. Failures are reported in the result,
// not as an RPC error.
func (a *App) testProvider(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Provider string `json:"provider"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	failed := func(err error) map[string]any {
		return map[string]any{"success": false, "error": apperrors.PublicMessage(err)}
	}

	name, err := llm.ParseProvider(p.Provider)
	if err != nil {
		return failed(apperrors.New(apperrors.KindValidation, err.Error(), err)), nil
	}
	prov, release, err := a.factory(ctx, name, a.keys.Snapshot())
	defer release()
	if err != nil {
		return failed(err), nil
	}
	resp, err := prov.Generate(ctx, llm.Request{Prompt: testPrompt, MaxTokens: 10})
	if err != nil {
		return failed(err), nil
	}
	return map[string]any{"success": true, "response": textutil.Truncate(strings.TrimSpace(resp.Text), 100)}, nil
}

// --- projects ---

type projectParams struct {
	ProjectID int64 `json:"project_id"`
	ID        int64 `json:"id"`
}

func (p projectParams) id() (int64, error) {
	id := firstID(p.ProjectID, p.ID)
	return id, requireID("project_id", id)
}

func (a *App) listProjects(ctx context.Context, _ json.RawMessage) (any, error) {
	return a.store.ListProjects(ctx)
}

func (a *App) createProject(ctx context.Context, params json.RawMessage) (any, error) {
	var p model.Project
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	p.SourceLanguage = language.Normalize(p.SourceLanguage)
	p.TargetLanguage = language.Normalize(p.TargetLanguage)
	return a.store.CreateProject(ctx, p)
}

func (a *App) getProject(ctx context.Context, params json.RawMessage) (any, error) {
	var p projectParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	return a.store.GetProject(ctx, id)
}

func (a *App) updateProject(ctx context.Context, params json.RawMessage) (any, error) {
	var p projectParams
	var patch store.ProjectPatch
	if err := decodeAll(params, &p, &patch); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	return a.store.UpdateProject(ctx, id, patch)
}

func (a *App) deleteProject(ctx context.Context, params json.RawMessage) (any, error) {
	var p projectParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	if err := a.store.DeleteProject(ctx, id); err != nil {
		return nil, err
	}
	return deleted(id), nil
}

// --- chapters ---

type chapterParams struct {
	ChapterID      int64  `json:"chapter_id"`
	ID             int64  `json:"id"`
	TargetLanguage string `json:"target_language"`
}

func (p chapterParams) id() (int64, error) {
	id := firstID(p.ChapterID, p.ID)
	return id, requireID("chapter_id", id)
}

func (a *App) listChapters(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := requireID("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	return a.store.ListChapters(ctx, p.ProjectID)
}

func (a *App) createChapter(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		ProjectID     int64  `json:"project_id"`
		Title         string `json:"title"`
		SourceContent string `json:"source_content"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := requireID("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	return a.store.CreateChapter(ctx, p.ProjectID, p.Title, p.SourceContent)
}

func (a *App) getChapter(ctx context.Context, params json.RawMessage) (any, error) {
	var p chapterParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	return a.store.GetChapter(ctx, id)
}

func (a *App) updateChapter(ctx context.Context, params json.RawMessage) (any, error) {
	var p chapterParams
	var patch store.ChapterPatch
	if err := decodeAll(params, &p, &patch); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	return a.store.UpdateChapter(ctx, id, patch)
}

func (a *App) deleteChapter(ctx context.Context, params json.RawMessage) (any, error) {
	var p chapterParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	if err := a.store.DeleteChapter(ctx, id); err != nil {
		return nil, err
	}
	return deleted(id), nil
}

func (a *App) editorData(ctx context.Context, params json.RawMessage) (any, error) {
	var p chapterParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	chapter, err := a.store.GetChapter(ctx, id)
	if err != nil {
		return nil, err
	}
	lang, err := a.targetLanguage(ctx, chapter.ProjectID, p.TargetLanguage)
	if err != nil {
		return nil, err
	}
	return a.store.EditorData(ctx, id, lang)
}

// targetLanguage resolves the requested language, falling back to the
// project's target.
func (a *App) targetLanguage(ctx context.Context, projectID int64, requested string) (string, error) {
	if lang := language.Normalize(requested); lang != "" {
		return lang, nil
	}
	project, err := a.store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if lang := language.Normalize(project.TargetLanguage); lang != "" {
		return lang, nil
	}
	return defaultTargetLang, nil
}

// --- glossary ---

type glossaryParams struct {
	EntryID int64 `json:"entry_id"`
	ID      int64 `json:"id"`
}

func (p glossaryParams) id() (int64, error) {
	id := firstID(p.EntryID, p.ID)
	return id, requireID("entry_id", id)
}

func (a *App) listGlossary(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := requireID("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	return a.store.ListGlossary(ctx, p.ProjectID)
}

func (a *App) createGlossary(ctx context.Context, params json.RawMessage) (any, error) {
	var g model.GlossaryEntry
	if err := decode(params, &g); err != nil {
		return nil, err
	}
	if err := requireID("project_id", g.ProjectID); err != nil {
		return nil, err
	}
	g.ID = 0
	return a.store.CreateGlossary(ctx, g)
}

func (a *App) updateGlossary(ctx context.Context, params json.RawMessage) (any, error) {
	var p glossaryParams
	var patch store.GlossaryPatch
	if err := decodeAll(params, &p, &patch); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	return a.store.UpdateGlossary(ctx, id, patch)
}

func (a *App) deleteGlossary(ctx context.Context, params json.RawMessage) (any, error) {
	var p glossaryParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	if err := a.store.DeleteGlossary(ctx, id); err != nil {
		return nil, err
	}
	return deleted(id), nil
}

// --- personas ---

type personaParams struct {
	PersonaID int64 `json:"persona_id"`
	ID        int64 `json:"id"`
}

func (p personaParams) id() (int64, error) {
	id := firstID(p.PersonaID, p.ID)
	return id, requireID("persona_id", id)
}

func (a *App) listPersonas(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := requireID("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	return a.store.ListPersonas(ctx, p.ProjectID)
}

func (a *App) createPersona(ctx context.Context, params json.RawMessage) (any, error) {
	var persona model.Persona
	if err := decode(params, &persona); err != nil {
		return nil, err
	}
	if err := requireID("project_id", persona.ProjectID); err != nil {
		return nil, err
	}
	persona.ID = 0
	return a.store.CreatePersona(ctx, persona)
}

func (a *App) updatePersona(ctx context.Context, params json.RawMessage) (any, error) {
	var p personaParams
	var patch store.PersonaPatch
	if err := decodeAll(params, &p, &patch); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	return a.store.UpdatePersona(ctx, id, patch)
}

func (a *App) deletePersona(ctx context.Context, params json.RawMessage) (any, error) {
	var p personaParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	if err := a.store.DeletePersona(ctx, id); err != nil {
		return nil, err
	}
	return deleted(id), nil
}

func (a *App) listSuggestions(ctx context.Context, params json.RawMessage) (any, error) {
	var p personaParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	return a.store.ListSuggestions(ctx, id)
}

func (a *App) applySuggestion(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		SuggestionID int64 `json:"suggestion_id"`
		Approve      bool  `json:"approve"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := requireID("suggestion_id", p.SuggestionID); err != nil {
		return nil, err
	}
	status, err := a.store.ApplySuggestion(ctx, p.SuggestionID, p.Approve)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": p.SuggestionID, "status": status}, nil
}

// --- relationships ---

type relationshipParams struct {
	RelationshipID int64 `json:"relationship_id"`
	ID             int64 `json:"id"`
}

func (p relationshipParams) id() (int64, error) {
	id := firstID(p.RelationshipID, p.ID)
	return id, requireID("relationship_id", id)
}

func (a *App) listRelationships(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := requireID("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	return a.store.ListRelationships(ctx, p.ProjectID)
}

func (a *App) createRelationship(ctx context.Context, params json.RawMessage) (any, error) {
	var r model.Relationship
	if err := decode(params, &r); err != nil {
		return nil, err
	}
	if err := requireID("project_id", r.ProjectID); err != nil {
		return nil, err
	}
	r.ID = 0
	return a.store.CreateRelationship(ctx, r)
}

func (a *App) updateRelationship(ctx context.Context, params json.RawMessage) (any, error) {
	var p relationshipParams
	var patch store.RelationshipPatch
	if err := decodeAll(params, &p, &patch); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	return a.store.UpdateRelationship(ctx, id, patch)
}

func (a *App) deleteRelationship(ctx context.Context, params json.RawMessage) (any, error) {
	var p relationshipParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	if err := a.store.DeleteRelationship(ctx, id); err != nil {
		return nil, err
	}
	return deleted(id), nil
}
