package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/credentials"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/pipeline"
	"github.com/oukeidos/fictra/internal/store"
)

type harness struct {
	t      *testing.T
	app    *App
	store  *store.Store
	out    *bytes.Buffer
	nextID int
	// notes collects every notification seen so far.
	notes []map[string]any
}

func newHarness(t *testing.T, provider llm.Provider) *harness {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, st.Close()) })

	factory := func(context.Context, llm.ProviderName, map[string]string) (llm.Provider, func(), error) {
		if provider == nil {
			return nil, func() {}, apperrors.New(apperrors.KindAuth, "No API key provided", nil)
		}
		return provider, func() {}, nil
	}
	out := &bytes.Buffer{}
	app := NewApp(Deps{
		Store:     st,
		Keys:      credentials.NewStore(),
		Factory:   factory,
		ExportDir: filepath.Join(dir, "exports"),
		MaxRuns:   2,
	}, NewServer(out))
	app.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	t.Cleanup(app.Wait)
	return &harness{t: t, app: app, store: st, out: out}
}

// call sends one request and returns its response.
func (h *harness) call(method string, params any) Response {
	h.t.Helper()
	h.nextID++
	raw, err := json.Marshal(params)
	require.NoError(h.t, err)
	line, err := json.Marshal(Request{JSONRPC: Version, ID: json.RawMessage(fmt.Sprint(h.nextID)), Method: method, Params: raw})
	require.NoError(h.t, err)

	h.out.Reset()
	h.app.server.handleLine(context.Background(), string(line))

	var resp *Response
	for _, l := range strings.Split(strings.TrimSpace(h.out.String()), "\n") {
		var probe map[string]json.RawMessage
		require.NoError(h.t, json.Unmarshal([]byte(l), &probe))
		if _, isNote := probe["method"]; isNote {
			var n map[string]any
			require.NoError(h.t, json.Unmarshal([]byte(l), &n))
			h.notes = append(h.notes, n)
			continue
		}
		resp = &Response{}
		require.NoError(h.t, json.Unmarshal([]byte(l), resp))
	}
	require.NotNil(h.t, resp, "no response to %s", method)
	return *resp
}

// ok calls method, requires success and decodes the result into out. out
// is zeroed first: json.Unmarshal merges into an existing map.
func (h *harness) ok(method string, params, out any) {
	h.t.Helper()
	resp := h.call(method, params)
	require.Nil(h.t, resp.Error, "%s failed: %+v", method, resp.Error)
	if out != nil {
		reflect.ValueOf(out).Elem().SetZero()
		require.NoError(h.t, json.Unmarshal(resp.Result, out))
	}
}

// fails calls method and returns its error object.
func (h *harness) fails(method string, params any) *Error {
	h.t.Helper()
	resp := h.call(method, params)
	require.NotNil(h.t, resp.Error, "%s unexpectedly succeeded: %s", method, resp.Result)
	return resp.Error
}

var promptLineID = regexp.MustCompile(`(?m)^\[(\d+)\|`)

// translatingModel answers translation prompts with "<prefix>-<id>" for
// every requested line and passes every review. Other prompts fail so the
// optional stages use their fallbacks.
func translatingModel() *llm.Scripted {
	return &llm.Scripted{Handler: func(_ int, req llm.Request) llm.Reply {
		switch {
		case strings.Contains(req.Prompt, "SEGMENTS TO TRANSLATE"):
			prefix := "fr"
			if strings.Contains(req.Prompt, "User Translation Guide") {
				prefix = "guided"
			}
			var parts []string
			for _, m := range promptLineID.FindAllStringSubmatch(req.Prompt, -1) {
				parts = append(parts, fmt.Sprintf(`{"segment_id":%s,"text":"%s-%s"}`, m[1], prefix, m[1]))
			}
			return llm.Reply{Text: `{"situation_summary":"scene","translations":[` + strings.Join(parts, ",") + `]}`}
		case strings.Contains(req.Prompt, "Review the source/translation pairs"):
			return llm.Reply{Text: `{"overall_passed":true,"summary":"ok","segment_reviews":[]}`}
		case req.Prompt == testPrompt:
			return llm.Reply{Text: " hello \n"}
		}
		return llm.Reply{Err: fmt.Errorf("not scripted")}
	}}
}

func (h *harness) seedChapter(source string) (model.Project, model.Chapter) {
	h.t.Helper()
	var p model.Project
	h.ok("project.create", map[string]any{"name": "Novel", "source_language": "en", "target_language": "fr-FR"}, &p)
	var c model.Chapter
	h.ok("chapter.create", map[string]any{"project_id": p.ID, "title": "Chapter One", "source_content": source}, &c)
	return p, c
}

func TestHarness_OkReplacesPreviousResult(t *testing.T) {
	h := newHarness(t, translatingModel())
	got := map[string]any{"stale": true}
	h.ok("health.check", nil, &got)
	assert.NotContains(t, got, "stale")
	assert.Equal(t, "ok", got["status"])
}

func TestApp_HealthCheck(t *testing.T) {
	h := newHarness(t, nil)
	var got map[string]string
	h.ok("health.check", nil, &got)
	assert.Equal(t, "ok", got["status"])
	assert.NotEmpty(t, got["version"])
}

func TestApp_RegistersEveryMethod(t *testing.T) {
	h := newHarness(t, nil)
	methods := h.app.server.Methods()
	assert.Len(t, methods, 36)
	assert.Contains(t, methods, "batch.get_reasoning")
	assert.Contains(t, methods, "export.chapter_docx")
}

func TestApp_Keys(t *testing.T) {
	h := newHarness(t, nil)
	var stored map[string][]string
	h.ok("config.set_keys", map[string]any{"keys": map[string]string{"gemini": "g-key", "anthropic": "c-key"}}, &stored)
	assert.Equal(t, []string{"claude", "gemini"}, stored["stored"])

	h.ok("config.set_keys", map[string]string{"openai": "o-key", "gemini": ""}, &stored)
	assert.Equal(t, []string{"claude", "openai"}, stored["stored"])

	var status map[string]bool
	h.ok("config.get_keys", nil, &status)
	assert.Equal(t, map[string]bool{"gemini": false, "claude": true, "openai": true}, status)

	e := h.fails("config.set_keys", map[string]any{"gemini": 42})
	assert.Equal(t, CodeInvalidParams, e.Code)
}

func TestApp_TestProvider(t *testing.T) {
	h := newHarness(t, translatingModel())
	var ok map[string]any
	h.ok("config.test_provider", map[string]string{"provider": "google"}, &ok)
	assert.Equal(t, map[string]any{"success": true, "response": "hello"}, ok)

	var unknown map[string]any
	h.ok("config.test_provider", map[string]string{"provider": "mystery"}, &unknown)
	assert.Equal(t, false, unknown["success"])
	assert.Contains(t, unknown["error"], "unknown provider")
	assert.NotContains(t, unknown, "response")

	h = newHarness(t, nil)
	var noKey map[string]any
	h.ok("config.test_provider", map[string]string{"provider": "openai"}, &noKey)
	assert.Equal(t, map[string]any{"success": false, "error": "No API key provided"}, noKey)
}

func TestApp_ProjectLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	e := h.fails("project.create", map[string]any{"name": "  "})
	assert.Equal(t, CodeInvalidParams, e.Code)
	assert.Equal(t, "Project name is required", e.Message)

	var p model.Project
	h.ok("project.create", map[string]any{"name": "Novel", "target_language": "ja-JP", "genre": "fantasy"}, &p)
	assert.Equal(t, "ko", p.SourceLanguage)
	assert.Equal(t, "ja", p.TargetLanguage)
	assert.Equal(t, model.DefaultPipelineType, p.PipelineType)

	h.ok("project.update", map[string]any{"project_id": p.ID, "name": "Renamed", "style_settings": map[string]any{"tone": "dry"}}, &p)
	assert.Equal(t, "Renamed", p.Name)
	assert.Equal(t, "fantasy", p.Genre)
	assert.Equal(t, map[string]any{"tone": "dry"}, p.StyleSettings)

	var list []model.Project
	h.ok("project.list", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Name)

	var del map[string]any
	h.ok("project.delete", map[string]any{"project_id": p.ID}, &del)
	assert.Equal(t, true, del["deleted"])

	e = h.fails("project.get", map[string]any{"id": p.ID})
	assert.Equal(t, CodeInternalError, e.Code)
	assert.Equal(t, fmt.Sprintf("Project %d not found", p.ID), e.Message)
	assert.Equal(t, map[string]any{"kind": "not_found"}, e.Data)

	e = h.fails("project.get", nil)
	assert.Equal(t, "project_id is required", e.Message)
}

func TestApp_ChaptersAndGlossary(t *testing.T) {
	h := newHarness(t, nil)
	p, c := h.seedChapter("Hello there.")

	var updated model.Chapter
	h.ok("chapter.update", map[string]any{"chapter_id": c.ID, "title": "Prologue"}, &updated)
	assert.Equal(t, "Prologue", updated.Title)
	assert.Equal(t, "Hello there.", updated.SourceContent)

	var chapters []model.Chapter
	h.ok("chapter.list", map[string]any{"project_id": p.ID}, &chapters)
	require.Len(t, chapters, 1)

	var g model.GlossaryEntry
	h.ok("glossary.create", map[string]any{"project_id": p.ID, "source_term": "검기", "translated_term": "sword aura"}, &g)
	assert.Equal(t, model.DefaultTermType, g.TermType)
	h.ok("glossary.update", map[string]any{"entry_id": g.ID, "notes": "skill"}, &g)
	assert.Equal(t, "skill", g.Notes)

	var entries []model.GlossaryEntry
	h.ok("glossary.list", map[string]any{"project_id": p.ID}, &entries)
	require.Len(t, entries, 1)

	h.ok("glossary.delete", map[string]any{"id": g.ID}, nil)
	h.ok("glossary.list", map[string]any{"project_id": p.ID}, &entries)
	assert.Empty(t, entries)

	h.ok("chapter.delete", map[string]any{"chapter_id": c.ID}, nil)
	e := h.fails("chapter.get", map[string]any{"chapter_id": c.ID})
	assert.Equal(t, map[string]any{"kind": "not_found"}, e.Data)
}

func TestApp_PersonasAndRelationships(t *testing.T) {
	h := newHarness(t, nil)
	p, _ := h.seedChapter("text")

	var minji, jun model.Persona
	h.ok("persona.create", map[string]any{"project_id": p.ID, "name": "Minji", "aliases": []string{"Min"}}, &minji)
	h.ok("persona.create", map[string]any{"project_id": p.ID, "name": "Jun"}, &jun)
	assert.Equal(t, 3, minji.FormalityLevel)

	h.ok("persona.update", map[string]any{"persona_id": minji.ID, "speech_style": "terse"}, &minji)
	assert.Equal(t, "terse", minji.SpeechStyle)
	assert.Equal(t, []string{"Min"}, minji.Aliases)

	var r model.Relationship
	h.ok("relationship.create", map[string]any{"project_id": p.ID, "persona_id_1": jun.ID, "persona_id_2": minji.ID}, &r)
	assert.Equal(t, minji.ID, r.PersonaID1)
	assert.Equal(t, model.RelationshipType("acquaintance"), r.Type)
	assert.Equal(t, 5, r.IntimacyLevel)

	h.ok("relationship.update", map[string]any{"relationship_id": r.ID, "intimacy_level": 42}, &r)
	assert.Equal(t, 10, r.IntimacyLevel)

	e := h.fails("relationship.create", map[string]any{"project_id": p.ID, "persona_id_1": jun.ID, "persona_id_2": jun.ID})
	assert.Equal(t, CodeInvalidParams, e.Code)

	var suggestions []model.StoredSuggestion
	h.ok("persona.list_suggestions", map[string]any{"persona_id": minji.ID}, &suggestions)
	assert.Empty(t, suggestions)

	e = h.fails("persona.apply_suggestion", map[string]any{"suggestion_id": 999, "approve": true})
	assert.Equal(t, "Suggestion 999 not found", e.Message)

	h.ok("persona.delete", map[string]any{"persona_id": jun.ID}, nil)
	var rels []model.Relationship
	h.ok("relationship.list", map[string]any{"project_id": p.ID}, &rels)
	assert.Empty(t, rels)
}

func TestApp_TranslateEditExport(t *testing.T) {
	h := newHarness(t, translatingModel())
	_, c := h.seedChapter("Hello.\n\n\"Stop!\" she shouted.")

	var res pipeline.Result
	h.ok("pipeline.translate_chapter", map[string]any{"chapter_id": c.ID}, &res)
	assert.True(t, res.Success)
	assert.Equal(t, "fr-0\n\nfr-1", res.ConnectedTranslatedText)

	var final map[string]any
	for _, n := range h.notes {
		assert.Equal(t, ProgressMethod, n["method"])
		params := n["params"].(map[string]any)
		assert.Equal(t, float64(c.ID), params["chapter_id"])
		if params["stage"] == pipeline.StageFinalize && params["stage_progress"] == float64(1) {
			final = params
		}
	}
	require.NotNil(t, final, "no final progress notification")
	assert.InDelta(t, 1.0, final["progress"], 1e-9)

	var chapter model.Chapter
	h.ok("chapter.get", map[string]any{"chapter_id": c.ID}, &chapter)
	assert.Equal(t, res.ConnectedTranslatedText, chapter.TranslatedContent)
	assert.False(t, chapter.TranslationStale)

	var editor store.EditorData
	h.ok("chapter.get_editor_data", map[string]any{"chapter_id": c.ID}, &editor)
	require.Len(t, editor.Segments, 2)
	first := editor.Segments[0]
	require.NotNil(t, first.TranslatedText)
	assert.Equal(t, "fr-0", *first.TranslatedText)

	var reasoning map[string]any
	h.ok("batch.get_reasoning", map[string]any{"segment_id": first.ID, "target_language": "fr"}, &reasoning)
	assert.Equal(t, true, reasoning["found"])
	assert.Equal(t, "scene", reasoning["situation_summary"])
	var missing map[string]any
	h.ok("batch.get_reasoning", map[string]any{"segment_id": first.ID, "target_language": "de"}, &missing)
	assert.Equal(t, map[string]any{"found": false}, missing)

	h.ok("segment.update_translation", map[string]any{"segment_id": first.ID, "target_language": "fr", "text": "Salut."}, nil)
	e := h.fails("segment.update_translation", map[string]any{"segment_id": first.ID, "target_language": "de", "translated_text": "Hallo."})
	assert.Equal(t, fmt.Sprintf("Translation not found for segment %d", first.ID), e.Message)

	var exported map[string]any
	h.ok("export.chapter_txt", map[string]any{"chapter_id": c.ID}, &exported)
	assert.Equal(t, "txt", exported["format"])
	path := exported["path"].(string)
	assert.Equal(t, "Chapter One_fr_20250304_050607.txt", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Chapter One\nSalut.\nfr-1", string(data))
	assert.Equal(t, float64(len(data)), exported["size"])

	var docx map[string]any
	h.ok("export.chapter_docx", map[string]any{"chapter_id": c.ID}, &docx)
	assert.Equal(t, "docx", docx["format"])
	assert.Equal(t, ".docx", filepath.Ext(docx["path"].(string)))
}

func TestApp_Retranslate(t *testing.T) {
	h := newHarness(t, translatingModel())
	_, c := h.seedChapter("Hello.\n\n\"Stop!\" she shouted.")
	h.ok("pipeline.translate_chapter", map[string]any{"chapter_id": c.ID, "use_cot": false}, nil)

	var editor store.EditorData
	h.ok("chapter.get_editor_data", map[string]any{"chapter_id": c.ID}, &editor)
	require.Len(t, editor.Segments, 2)
	second := editor.Segments[1].ID

	var got struct {
		Success      bool                 `json:"success"`
		UpdatedCount int                  `json:"updated_count"`
		Translations []segmentTranslation `json:"translations"`
	}
	h.ok("segment.retranslate", map[string]any{"segment_ids": []int64{second}, "user_guide": "more formal"}, &got)
	assert.True(t, got.Success)
	assert.Equal(t, 1, got.UpdatedCount)
	want := fmt.Sprintf("guided-%d", second)
	assert.Equal(t, []segmentTranslation{{SegmentID: second, TranslatedText: want}}, got.Translations)

	h.ok("chapter.get_editor_data", map[string]any{"chapter_id": c.ID, "target_language": "fr"}, &editor)
	assert.Equal(t, want, *editor.Segments[1].TranslatedText)
	assert.False(t, editor.Segments[1].ManuallyEdited)

	e := h.fails("segment.retranslate", map[string]any{"segment_ids": []int64{}})
	assert.Equal(t, "No segment IDs provided", e.Message)
	e = h.fails("segment.retranslate", map[string]any{"segment_ids": []int64{9999}})
	assert.Equal(t, "No segments found for the given IDs", e.Message)
}

func TestApp_TranslateRejectsBusyChapter(t *testing.T) {
	h := newHarness(t, translatingModel())
	_, c := h.seedChapter("Hello.")

	signal, err := h.app.startRun(c.ID)
	require.NoError(t, err)
	e := h.fails("pipeline.translate_chapter", map[string]any{"chapter_id": c.ID})
	assert.Equal(t, fmt.Sprintf("Chapter %d is already being translated", c.ID), e.Message)

	var got map[string]bool
	h.ok("pipeline.cancel", map[string]any{"chapter_id": c.ID + 1}, &got)
	assert.False(t, signal.Cancelled())
	h.ok("pipeline.cancel", nil, &got)
	assert.True(t, got["cancelled"])
	assert.True(t, signal.Cancelled())

	h.app.finishRun(c.ID)
	h.ok("pipeline.translate_chapter", map[string]any{"chapter_id": c.ID}, nil)
}

func TestApp_TranslateWithoutCredentialsFails(t *testing.T) {
	h := newHarness(t, nil)
	_, c := h.seedChapter("Hello.\n\nBye.")
	e := h.fails("pipeline.translate_chapter", map[string]any{"chapter_id": c.ID})
	assert.Equal(t, CodeInternalError, e.Code)

	var chapter model.Chapter
	h.ok("chapter.get", map[string]any{"chapter_id": c.ID}, &chapter)
	assert.Empty(t, chapter.TranslatedContent)
}
