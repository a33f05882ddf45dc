package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oukeidos/fictra/internal/cleanup"
	"github.com/oukeidos/fictra/internal/config"
	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/providers"
	"github.com/oukeidos/fictra/internal/store"
)

func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	require.NoError(t, cleanup.RunAll())
	return stdout.String(), stderr.String(), err
}

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = prev })
}

// isolate points the data directory at a temp dir so no test touches the
// user's database.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("FT_DATA_DIR", dir)
	t.Setenv("FT_LOG_LEVEL", "error")
	return dir
}

var promptLineID = regexp.MustCompile(`(?m)^\[(\d+)\|`)

func withModel(t *testing.T) {
	t.Helper()
	p := &llm.Scripted{Handler: func(_ int, req llm.Request) llm.Reply {
		switch {
		case strings.Contains(req.Prompt, "SEGMENTS TO TRANSLATE"):
			var parts []string
			for _, m := range promptLineID.FindAllStringSubmatch(req.Prompt, -1) {
				parts = append(parts, fmt.Sprintf(`{"segment_id":%s,"text":"T%s"}`, m[1], m[1]))
			}
			return llm.Reply{Text: `{"translations":[` + strings.Join(parts, ",") + `]}`}
		case strings.Contains(req.Prompt, "Review the source/translation pairs"):
			return llm.Reply{Text: `{"overall_passed":true,"segment_reviews":[]}`}
		}
		return llm.Reply{Err: fmt.Errorf("not scripted")}
	}}
	prev := newFactory
	newFactory = func(config.Config) providers.Factory {
		return func(context.Context, llm.ProviderName, map[string]string) (llm.Provider, func(), error) {
			return p, func() {}, nil
		}
	}
	t.Cleanup(func() { newFactory = prev })
}

func TestVersion(t *testing.T) {
	out, _, err := executeCommand(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "fictra "), out)

	out, _, err = executeCommand(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:")
}

func TestRoot_RejectsUnknownArgument(t *testing.T) {
	_, _, err := executeCommand(t, "", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "bogus"`)
}

func TestEnv_ReportsSourcesWithoutKeys(t *testing.T) {
	withEnv(t, map[string]string{"GEMINI_API_KEY": "sk-secret", "FT_OPENAI_API_KEY": "  "})
	out, _, err := executeCommand(t, "", "env")
	require.NoError(t, err)

	assert.Contains(t, out, "gemini API Key: Found (source=GEMINI_API_KEY)")
	assert.Contains(t, out, "claude API Key: Not Found (set one of FT_CLAUDE_API_KEY, ANTHROPIC_API_KEY)")
	assert.Contains(t, out, "openai API Key: Not Found")
	assert.NotContains(t, out, "sk-secret")
}

func TestServe_AnswersOverStdio(t *testing.T) {
	dir := isolate(t)
	withEnv(t, map[string]string{"ANTHROPIC_API_KEY": "c-key"})

	in := `{"jsonrpc":"2.0","id":1,"method":"health.check"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"config.get_keys"}` + "\n"
	out, _, err := executeCommand(t, in, "serve")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, out, `"status":"ok"`)
	assert.Contains(t, out, `"claude":true`)
	assert.Contains(t, out, `"gemini":false`)
	assert.FileExists(t, filepath.Join(dir, config.DefaultDBName))
}

func TestTranslate_PrintsChapter(t *testing.T) {
	dir := isolate(t)
	withEnv(t, nil)
	withModel(t)

	dbPath := filepath.Join(dir, "novel.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	p, err := st.CreateProject(ctx, model.Project{Name: "Novel", SourceLanguage: "en", TargetLanguage: "fr"})
	require.NoError(t, err)
	c, err := st.CreateChapter(ctx, p.ID, "One", "Hello.\n\n\"Stop!\" she shouted.")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, errOut, err := executeCommand(t, "", "translate", "--project-db", dbPath, "--chapter", fmt.Sprint(c.ID), "--to", "de")
	require.NoError(t, err)
	assert.Equal(t, "T0\n\nT1\n", out)
	assert.Contains(t, errOut, "[100%] finalize")
	assert.Contains(t, errOut, "Segments: 2, Batches: 1")

	st, err = store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	got, err := st.GetChapter(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "T0\n\nT1", got.TranslatedContent)
}

func TestTranslate_RequiresChapterAndDatabase(t *testing.T) {
	dir := isolate(t)

	_, _, err := executeCommand(t, "", "translate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "chapter" not set`)

	_, _, err = executeCommand(t, "", "translate", "--chapter", "1", "--project-db", filepath.Join(dir, "missing.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project database")
	assert.NoFileExists(t, filepath.Join(dir, "missing.db"))

	_, _, err = executeCommand(t, "", "translate", "--chapter", "1", "--project_db", filepath.Join(dir, "missing.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project database", "snake_case flag should be accepted")
}
