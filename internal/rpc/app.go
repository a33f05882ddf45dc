package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/oukeidos/fictra/internal/apperrors"
	"github.com/oukeidos/fictra/internal/credentials"
	"github.com/oukeidos/fictra/internal/pipeline"
	"github.com/oukeidos/fictra/internal/providers"
	"github.com/oukeidos/fictra/internal/store"
	"github.com/oukeidos/fictra/internal/version"
)

// ProgressMethod is the notification sent while a chapter translates.
const ProgressMethod = "pipeline.progress"

const defaultTargetLang = pipeline.DefaultTargetLang

type Deps struct {
	Store     *store.Store
	Keys      *credentials.Store
	Factory   providers.Factory
	ExportDir string
	// MaxRuns bounds concurrently running pipelines; zero means 1.
	MaxRuns int
}

// App implements every sidecar method on top of its dependencies.
type App struct {
	store     *store.Store
	keys      *credentials.Store
	factory   providers.Factory
	runner    *pipeline.Runner
	exportDir string
	now       func() time.Time

	runs *pool.Pool

	mu      sync.Mutex
	signals map[int64]*pipeline.CancelSignal

	server *Server
}

func NewApp(d Deps, server *Server) *App {
	maxRuns := d.MaxRuns
	if maxRuns <= 0 {
		maxRuns = 1
	}
	a := &App{
		store:     d.Store,
		keys:      d.Keys,
		factory:   d.Factory,
		runner:    pipeline.NewRunner(d.Store, d.Factory),
		exportDir: d.ExportDir,
		now:       time.Now,
		runs:      pool.New().WithMaxGoroutines(maxRuns),
		signals:   map[int64]*pipeline.CancelSignal{},
		server:    server,
	}
	a.register(server)
	return a
}

// Wait blocks until every submitted pipeline run has returned.
func (a *App) Wait() {
	a.runs.Wait()
}

func (a *App) register(s *Server) {
	routes := map[string]HandlerFunc{
		"health.check": a.healthCheck,

		"config.set_keys":      a.setKeys,
		"config.get_keys":      a.getKeys,
		"config.test_provider": a.testProvider,

		"project.list":   a.listProjects,
		"project.create": a.createProject,
		"project.get":    a.getProject,
		"project.update": a.updateProject,
		"project.delete": a.deleteProject,

		"chapter.list":            a.listChapters,
		"chapter.create":          a.createChapter,
		"chapter.get":             a.getChapter,
		"chapter.update":          a.updateChapter,
		"chapter.delete":          a.deleteChapter,
		"chapter.get_editor_data": a.editorData,

		"glossary.list":   a.listGlossary,
		"glossary.create": a.createGlossary,
		"glossary.update": a.updateGlossary,
		"glossary.delete": a.deleteGlossary,

		"persona.list":             a.listPersonas,
		"persona.create":           a.createPersona,
		"persona.update":           a.updatePersona,
		"persona.delete":           a.deletePersona,
		"persona.list_suggestions": a.listSuggestions,
		"persona.apply_suggestion": a.applySuggestion,

		"relationship.list":   a.listRelationships,
		"relationship.create": a.createRelationship,
		"relationship.update": a.updateRelationship,
		"relationship.delete": a.deleteRelationship,

		"pipeline.translate_chapter": a.translateChapter,
		"pipeline.cancel":            a.cancel,

		"segment.update_translation": a.updateTranslation,
		"segment.retranslate":        a.retranslate,
		"batch.get_reasoning":        a.batchReasoning,

		"export.chapter_txt":  a.exportTxt,
		"export.chapter_docx": a.exportDocx,
	}
	for method, h := range routes {
		s.Handle(method, h)
	}
}

func (a *App) healthCheck(context.Context, json.RawMessage) (any, error) {
	return map[string]string{"status": "ok", "version": version.Version}, nil
}

// requireID rejects a missing or non-positive id parameter.
func requireID(name string, id int64) error {
	if id <= 0 {
		return apperrors.Validation(fmt.Sprintf("%s is required", name))
	}
	return nil
}
