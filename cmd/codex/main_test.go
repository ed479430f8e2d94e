package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codex/cmd/codex/ui"
	"codex/internal/assistant"
	"codex/internal/editor"
	"codex/internal/llm"
	"codex/internal/workspace"
)

// codex runs the root command against dir and returns its output.
func codex(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CODEX_STORAGE", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--data-dir", dir, "-c", filepath.Join(dir, "config.yaml")}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustCodex(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := codex(t, dir, "", args...)
	require.NoError(t, err, out)
	return out
}

func TestProjectsCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustCodex(t, dir, "projects")
	assert.Contains(t, out, "No projects yet")

	out = mustCodex(t, dir, "projects", "create", "site")
	assert.Contains(t, out, "Created site")

	out = mustCodex(t, dir, "projects")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "site")
	assert.Contains(t, out, "ago")

	mustCodex(t, dir, "projects", "rename", "si", "website")
	out = mustCodex(t, dir, "projects")
	assert.Contains(t, out, "website")

	exportPath := filepath.Join(dir, "website.json")
	out = mustCodex(t, dir, "projects", "export", "website", "-f", "json", "-o", exportPath)
	assert.Contains(t, out, "Exported website")
	assert.FileExists(t, exportPath)

	_, err := codex(t, dir, "", "projects", "export", "website", "-f", "tar", "-o", exportPath)
	assert.Error(t, err)

	out = mustCodex(t, dir, "projects", "import", exportPath)
	assert.Contains(t, out, "Imported website")

	_, err = codex(t, dir, "", "projects", "delete", "nope")
	assert.Error(t, err)

	out = mustCodex(t, dir, "projects", "delete", "website")
	assert.Contains(t, out, "Deleted website")
}

func TestFilesCommands(t *testing.T) {
	dir := t.TempDir()
	mustCodex(t, dir, "projects", "create", "site")

	out, err := codex(t, dir, "<html><head></head><body><h1>Hi</h1></body></html>", "files", "write", "site", "/index.html")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Wrote /index.html")

	out, err = codex(t, dir, "body { color: red; }", "files", "write", "site", "/css/style.css")
	require.NoError(t, err, out)

	out = mustCodex(t, dir, "files", "cat", "site", "/css/style.css")
	assert.Equal(t, "body { color: red; }", out)

	out = mustCodex(t, dir, "files", "tree", "site")
	assert.Contains(t, out, "css/")
	assert.Contains(t, out, "style.css")
	assert.Contains(t, out, "index.html")

	out = mustCodex(t, dir, "search", "site", "color")
	assert.Contains(t, out, "/css/style.css")

	out = mustCodex(t, dir, "open", "site", "styl")
	assert.Equal(t, "/css/style.css\n", out)

	out = mustCodex(t, dir, "preview", "site", "-o", "-")
	assert.Contains(t, out, "color: red")
	assert.Contains(t, out, "<h1>Hi</h1>")

	out = mustCodex(t, dir, "files", "rm", "site", "/css")
	assert.Contains(t, out, "Deleted /css (1 files)")

	_, err = codex(t, dir, "", "files", "cat", "site", "/css/style.css")
	assert.Error(t, err)
}

func TestKeyAndSettingsCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustCodex(t, dir, "key", "show")
	assert.Contains(t, out, "No API key configured")

	out, err := codex(t, dir, "AIza-test-key-1234\n", "key", "set")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1234")
	assert.NotContains(t, out, "AIza-test")

	out = mustCodex(t, dir, "key", "show")
	assert.Contains(t, out, "(stored)")

	mustCodex(t, dir, "key", "clear")
	out = mustCodex(t, dir, "key", "show")
	assert.Contains(t, out, "No API key configured")

	out = mustCodex(t, dir, "settings", "set", `{"theme":"light","tabSize":2}`)
	assert.Contains(t, out, `"theme": "light"`)
	assert.Contains(t, out, `"tabSize": 2`)

	_, err = codex(t, dir, "", "settings", "set", `{"fontSize":2}`)
	assert.Error(t, err)

	out = mustCodex(t, dir, "settings", "reset")
	assert.Contains(t, out, `"theme": "dark"`)
}

func TestBackupCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustCodex(t, dir, "backup", "run")
	assert.Contains(t, out, "Nothing to back up")

	mustCodex(t, dir, "projects", "create", "first")
	out = mustCodex(t, dir, "backup", "run")
	assert.Contains(t, out, "Snapshot written to")

	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()

	out = mustCodex(t, dir, "backup", "list")
	assert.Contains(t, out, name)

	mustCodex(t, dir, "projects", "create", "second")
	out = mustCodex(t, dir, "backup", "restore", name)
	assert.Contains(t, out, "(1 projects)")

	out = mustCodex(t, dir, "projects")
	assert.Contains(t, out, "first")
	assert.NotContains(t, out, "second")
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustCodex(t, dir, "config", "init")
	assert.Contains(t, out, "config.yaml")
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))

	_, err := codex(t, dir, "", "config", "init")
	assert.Error(t, err, "an existing file is not overwritten")

	out = mustCodex(t, dir, "config", "show")
	assert.Contains(t, out, "data_dir: "+dir)
	assert.Contains(t, out, "backend: file")
}

func TestPrintTree(t *testing.T) {
	root := &workspace.Node{Name: "site", Path: "/", IsDir: true, Children: []*workspace.Node{
		{Name: "css", Path: "/css", IsDir: true, Children: []*workspace.Node{
			{Name: "a.css", Path: "/css/a.css"},
		}},
		{Name: "index.html", Path: "/index.html"},
	}}
	var buf bytes.Buffer
	printTree(&buf, root, "")
	assert.Equal(t, "site\n├── css/\n│   └── a.css\n└── index.html\n", buf.String())
}

// fakeClient replies with fixed text.
type fakeClient struct{ reply string }

func (c fakeClient) Generate(context.Context, llm.Request) (string, error) {
	return c.reply, nil
}

func TestChatModel_CommandsAndTurn(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()
	mustCodex(t, dir, "projects", "create", "site")

	ctx := context.Background()
	c, err := loadConfig()
	require.NoError(t, err)
	a, err := openApp(ctx, c)
	require.NoError(t, err)
	defer a.Close()

	a.router.Register(llm.ProviderGemini, fakeClient{reply: "ACTION: createFile\n" +
		`PARAMS: {"path": "/app.js", "content": "console.log(1)"}` + "\nREASONING: requested"})
	require.NoError(t, a.keys.Set(ctx, "test-key"))

	ws, ix, err := a.openWorkspace(ctx, "site")
	require.NoError(t, err)
	tabs := editor.NewTabs()
	s, err := a.newSession(ctx, ws, ix, tabs)
	require.NoError(t, err)

	m := newChatModel(ctx, s, ws, tabs, "site", ui.NewStyles(ui.DarkTheme()))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(chatModel)

	next, _ = m.submit("/mode ask")
	m = next.(chatModel)
	assert.Equal(t, assistant.ModeAsk, s.Mode())

	next, _ = m.submit("/mode nonsense")
	m = next.(chatModel)
	assert.Contains(t, m.status, "mode must be agent or ask")

	require.NoError(t, s.SetMode(assistant.ModeAgent))
	next, cmd := m.submit("make an app")
	m = next.(chatModel)
	assert.True(t, m.busy)
	require.NotNil(t, cmd)

	// Run the turn directly instead of through the program loop.
	require.NoError(t, s.ProcessMessage(ctx, "make an app", tabs))
	f, err := ws.FileByPath("/app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", f.Content)

	active, ok := tabs.Active()
	require.True(t, ok)
	assert.Equal(t, editor.TabDiff, active.Kind)

	next, _ = m.Update(replyMsg{})
	m = next.(chatModel)
	assert.False(t, m.busy)
	assert.Contains(t, m.View(), "site")
}
