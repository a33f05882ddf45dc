package rpc

import (
	"context"
	"encoding/json"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/export"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/prompts"
	"github.com/oukeidos/fictra/internal/translator"
)

type segmentTranslation struct {
	SegmentID      int64  `json:"segment_id"`
	TranslatedText string `json:"translated_text"`
}

// updateTranslation stores a manual edit. Both "translated_text" and
// "text" are accepted.
func (a *App) updateTranslation(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		SegmentID      int64   `json:"segment_id"`
		TargetLanguage string  `json:"target_language"`
		TranslatedText *string `json:"translated_text"`
		Text           *string `json:"text"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := requireID("segment_id", p.SegmentID); err != nil {
		return nil, err
	}
	text := p.TranslatedText
	if text == nil {
		text = p.Text
	}
	if text == nil {
		return nil, apperrors.Validation("translated_text is required")
	}
	lang := p.TargetLanguage
	if lang == "" {
		lang = defaultTargetLang
	}
	if err := a.store.UpdateTranslation(ctx, p.SegmentID, lang, *text); err != nil {
		return nil, err
	}
	return map[string]any{"updated": true, "segment_id": p.SegmentID}, nil
}

// retranslate re-translates stored segments with the user's guidance and
// saves the results. Segments the model skipped keep their translation.
func (a *App) retranslate(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		SegmentIDs     []int64 `json:"segment_ids"`
		TargetLanguage string  `json:"target_language"`
		UserGuide      string  `json:"user_guide"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if len(p.SegmentIDs) == 0 {
		return nil, apperrors.Validation("No segment IDs provided")
	}
	segs, err := a.store.Segments(ctx, p.SegmentIDs)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, apperrors.NotFound("No segments found for the given IDs")
	}

	chapter, err := a.store.GetChapter(ctx, segs[0].ChapterID)
	if err != nil {
		return nil, err
	}
	project, err := a.store.GetProject(ctx, chapter.ProjectID)
	if err != nil {
		return nil, err
	}
	lang, err := a.targetLanguage(ctx, project.ID, p.TargetLanguage)
	if err != nil {
		return nil, err
	}
	glossary, err := a.store.GlossaryMap(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	personas, err := a.store.ListPersonas(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	name, err := llm.ParseProvider(project.LLMProvider)
	if err != nil {
		name = llm.DefaultProvider
	}
	prov, release, err := a.factory(ctx, name, a.keys.Snapshot())
	defer release()
	if err != nil {
		return nil, err
	}

	lines := make([]prompts.Line, len(segs))
	for i, s := range segs {
		lines[i] = prompts.Line{ID: int(s.ID), Type: s.Type, Speaker: s.Speaker, Text: s.SourceText}
	}
	out, err := translator.New(prov).Retranslate(ctx, translator.RetranslateInput{
		Lines:          lines,
		SourceLang:     project.SourceLanguage,
		TargetLang:     lang,
		Glossary:       glossary,
		PersonaContext: prompts.PersonaContext(personas),
		UserGuide:      p.UserGuide,
	})
	if err != nil {
		return nil, err
	}

	texts := make(map[int64]string, len(out))
	translations := make([]segmentTranslation, 0, len(out))
	for _, tr := range out {
		texts[int64(tr.SegmentID)] = tr.Text
		translations = append(translations, segmentTranslation{SegmentID: int64(tr.SegmentID), TranslatedText: tr.Text})
	}
	if err := a.store.SaveRetranslations(ctx, lang, texts); err != nil {
		return nil, err
	}
	logger.Info("Segments retranslated", "requested", len(p.SegmentIDs), "updated", len(texts), "lang", lang)
	return map[string]any{
		"success":       true,
		"updated_count": len(texts),
		"translations":  translations,
	}, nil
}

// batchReasoning returns the reasoning trace of the batch that produced a
// segment's translation. batch_id is accepted as an alias of segment_id.
func (a *App) batchReasoning(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		SegmentID      int64  `json:"segment_id"`
		BatchID        int64  `json:"batch_id"`
		TargetLanguage string `json:"target_language"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id := firstID(p.SegmentID, p.BatchID)
	if err := requireID("segment_id", id); err != nil {
		return nil, err
	}
	lang := p.TargetLanguage
	if lang == "" {
		lang = defaultTargetLang
	}
	batch, ok, err := a.store.BatchReasoning(ctx, id, lang)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{"found": false}, nil
	}
	return struct {
		Found bool `json:"found"`
		model.StoredBatch
	}{Found: true, StoredBatch: batch}, nil
}

func (a *App) exportTxt(ctx context.Context, params json.RawMessage) (any, error) {
	return a.exportChapter(ctx, params, export.Text)
}

func (a *App) exportDocx(ctx context.Context, params json.RawMessage) (any, error) {
	return a.exportChapter(ctx, params, export.Docx)
}

// exportChapter writes the chapter's translation (source text where a
// segment has none) to the export directory and records the file.
func (a *App) exportChapter(ctx context.Context, params json.RawMessage, f export.Format) (any, error) {
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
	data, err := a.store.EditorData(ctx, id, lang)
	if err != nil {
		return nil, err
	}

	at := a.now()
	path, size, err := export.Write(a.exportDir, f, export.FromSegments(chapter.Title, lang, data.Segments), at)
	if err != nil {
		return nil, err
	}
	rec := model.Export{
		ChapterID:      id,
		TargetLanguage: lang,
		Format:         string(f),
		Path:           path,
		Size:           size,
		CreatedAt:      at,
	}
	if err := a.store.RecordExport(ctx, chapter.ProjectID, &rec); err != nil {
		return nil, err
	}
	logger.Info("Chapter exported", "chapter", id, "format", f, "path", path)
	return map[string]any{"path": path, "format": string(f), "size": size}, nil
}
