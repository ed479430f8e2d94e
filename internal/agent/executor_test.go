package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codex/internal/index"
	"codex/internal/project"
	"codex/internal/store"
	"codex/internal/workspace"
)

type recordingTabs struct{ closed []string }

func (r *recordingTabs) CloseFile(id string) { r.closed = append(r.closed, id) }

type fixture struct {
	ws   *workspace.Workspace
	m    *project.Manager
	ix   *index.Index
	tabs *recordingTabs
	exec *Executor
	main project.File
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	seq := 0
	m, err := project.NewManager(ctx, store.NewMemoryStore(),
		project.WithClock(func() time.Time { clock = clock.Add(time.Second); return clock }),
		project.WithIDGenerator(func() string { seq++; return fmt.Sprintf("id-%d", seq) }),
	)
	require.NoError(t, err)
	p, err := m.Create(ctx, "Demo")
	require.NoError(t, err)
	ws, err := workspace.Open(m, p.ID)
	require.NoError(t, err)

	content := "line 1\nline 2\nline 3\nline 4"
	main, err := ws.CreateFile(ctx, "main.js", "/", &content)
	require.NoError(t, err)

	ix := index.New(index.DefaultOptions())
	files, err := ws.Files()
	require.NoError(t, err)
	require.NoError(t, ix.IndexAll(ctx, files))

	tabs := &recordingTabs{}
	return &fixture{
		ws:   ws,
		m:    m,
		ix:   ix,
		tabs: tabs,
		exec: NewExecutor(ws, WithIndex(ix), WithTabs(tabs)),
		main: main,
	}
}

func mustParse(t *testing.T, reply string) *Plan {
	t.Helper()
	plan, err := Parse(reply)
	require.NoError(t, err)
	return plan
}

func TestExecute_CreateUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := mustParse(t, `ACTION: createFile
PARAMS: {"path": "/js/util/helpers.js", "content": "export const x = 1;"}
REASONING: helpers
ACTION: updateFile
PARAMS: {"path": "/main.js", "content": "line 1\nline two\nline 3\nline 4"}
ACTION: deleteFile
PARAMS: {"fileId": "missing"}
ACTION: deleteFile
PARAMS: {"fileId": "/main.js"}`)

	results, err := f.exec.Execute(ctx, plan)
	require.NoError(t, err)
	require.Len(t, results, 4)

	created := results[0]
	assert.True(t, created.Success)
	assert.Equal(t, ActionCreateFile, created.Action)
	assert.Equal(t, "/js/util/helpers.js", created.FilePath)
	assert.Equal(t, "helpers", created.Reasoning)
	assert.Equal(t, `File "/js/util/helpers.js" has been created successfully.`, created.Message)
	_, err = f.ws.Folder("/js/util")
	assert.NoError(t, err, "parent folders are created")
	entry, ok := f.ix.Get(created.FileID)
	require.True(t, ok)
	assert.Equal(t, "javascript", entry.FileType)

	updated := results[1]
	assert.True(t, updated.Success)
	assert.Equal(t, "line 1\nline 2\nline 3\nline 4", updated.OriginalContent)
	require.NotNil(t, updated.Diff)
	assert.Equal(t, 1, updated.Diff.Added)
	assert.Equal(t, 1, updated.Diff.Removed)

	failed := results[2]
	assert.False(t, failed.Success)
	assert.Equal(t, ActionDeleteFile, failed.Action)
	assert.Contains(t, failed.Message, "Failed to delete file: file not found")

	deleted := results[3]
	assert.True(t, deleted.Success, "a path in fileId resolves the file")
	assert.Equal(t, f.main.ID, deleted.FileID)
	assert.Equal(t, []string{f.main.ID}, f.tabs.closed)
	_, ok = f.ix.Get(f.main.ID)
	assert.False(t, ok)
}

func TestExecute_UnknownActionStops(t *testing.T) {
	f := newFixture(t)
	plan := mustParse(t, `ACTION: createFolder
PARAMS: {"path": "/assets"}
ACTION: renameEverything
PARAMS: {}
ACTION: createFolder
PARAMS: {"path": "/never"}`)

	results, err := f.exec.Execute(context.Background(), plan)
	var unknown *UnknownActionError
	require.True(t, errors.As(err, &unknown))
	assert.EqualError(t, err, "unknown action: renameEverything")
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	_, err = f.ws.Folder("/never")
	assert.ErrorIs(t, err, workspace.ErrFolderNotFound)
}

func TestExecute_ActionNamesAreCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	results, err := f.exec.Execute(context.Background(), mustParse(t, `ACTION: CreateFolder
PARAMS: {"path": "/img"}`))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ActionCreateFolder, results[0].Action)
	assert.Equal(t, `Folder "/img" has been created successfully.`, results[0].Message)
}

func TestExecute_CopyAndMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := mustParse(t, fmt.Sprintf(`ACTION: copyFile
PARAMS: {"sourceId": %q, "destinationPath": "/backup/main.js"}
ACTION: moveFile
PARAMS: {"sourcePath": "/main.js", "destinationPath": "/src/app.js"}`, f.main.ID))

	results, err := f.exec.Execute(ctx, plan)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.True(t, results[0].Success, results[0].Message)
	require.True(t, results[1].Success, results[1].Message)

	assert.NotEqual(t, f.main.ID, results[0].FileID)
	assert.Equal(t, `File "/main.js" has been copied to "/backup/main.js" successfully.`, results[0].Message)
	assert.Equal(t, f.main.ID, results[1].FileID, "a move keeps the file ID")
	assert.Equal(t, "/src/app.js", results[1].FilePath)
	assert.Equal(t, []string{f.main.ID}, f.tabs.closed)

	entry, ok := f.ix.Get(f.main.ID)
	require.True(t, ok)
	assert.Equal(t, "/src/app.js", entry.Path)
	content, err := f.ws.FileContent(results[0].FileID)
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2\nline 3\nline 4", content)
}

func TestExecute_DeleteFolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.exec.Execute(ctx, mustParse(t, `ACTION: createFile
PARAMS: {"path": "/lib/a.js", "content": "a"}`))
	require.NoError(t, err)

	results, err := f.exec.Execute(ctx, mustParse(t, `ACTION: deleteFolder
PARAMS: {"path": "lib"}
ACTION: deleteFolder
PARAMS: {"path": "/"}`))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "/lib", results[0].FilePath)
	assert.Len(t, f.tabs.closed, 1)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Message, "Failed to delete folder:")
	assert.Equal(t, 1, f.ix.Len())
}

func TestExecute_ExplainCode(t *testing.T) {
	f := newFixture(t)
	events := 0
	cancel := f.m.Subscribe(func(project.Event) { events++ })
	defer cancel()

	cases := []struct {
		start, end int
		want       string
	}{
		{2, 3, "line 2\nline 3"},
		{1, 4, "line 1\nline 2\nline 3\nline 4"},
		{3, 2, "line 1\nline 2\nline 3\nline 4"},
		{0, 2, "line 1\nline 2\nline 3\nline 4"},
		{2, 9, "line 1\nline 2\nline 3\nline 4"},
	}
	for _, tc := range cases {
		plan := &Plan{Actions: []Action{{
			Name:   ActionExplainCode,
			Params: Params{FileID: f.main.ID, StartLine: LineNumber(tc.start), EndLine: LineNumber(tc.end)},
		}}}
		results, err := f.exec.Execute(context.Background(), plan)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Success)
		assert.Equal(t, tc.want, results[0].Content, "lines %d-%d", tc.start, tc.end)
		assert.Equal(t, "javascript", results[0].FileType)
		assert.Contains(t, results[0].Message, `Here's the explanation for the code in "/main.js"`)
	}
	assert.Zero(t, events, "explainCode does not write the project")
}

func TestExecute_ValidationMessages(t *testing.T) {
	f := newFixture(t)
	plan := &Plan{Actions: []Action{
		{Name: ActionCreateFile},
		{Name: ActionUpdateFile, Params: Params{FileID: f.main.ID}},
		{Name: ActionCopyFile, Params: Params{SourceID: f.main.ID}},
		{Name: ActionCreateFolder, Params: Params{Path: "/"}},
		{Name: ActionExplainCode},
	}}
	results, err := f.exec.Execute(context.Background(), plan)
	require.NoError(t, err)
	want := []string{
		"Failed to create file: file path is required",
		"Failed to update file: file ID and content (string) are required",
		"Failed to copy file: source file and destination path are required",
		"Failed to create folder: folder path is required",
		"Failed to explain code: file ID or path is required",
	}
	require.Len(t, results, len(want))
	for i, r := range results {
		assert.False(t, r.Success)
		assert.Equal(t, want[i], r.Message)
	}
}

func TestExecuteAtomic(t *testing.T) {
	ctx := context.Background()

	t.Run("commits every action", func(t *testing.T) {
		f := newFixture(t)
		results, err := f.exec.ExecuteAtomic(ctx, mustParse(t, `ACTION: createFile
PARAMS: {"path": "/css/site.css", "content": "body {}"}
ACTION: updateFile
PARAMS: {"path": "/css/site.css", "content": "body { margin: 0; }"}`))
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.True(t, results[1].Success)
		assert.Equal(t, "body {}", results[1].OriginalContent)

		file, err := f.ws.FileByPath("/css/site.css")
		require.NoError(t, err)
		assert.Equal(t, "body { margin: 0; }", file.Content)
		entry, ok := f.ix.Get(file.ID)
		require.True(t, ok)
		assert.True(t, entry.HasToken("margin"))
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		f := newFixture(t)
		before, err := f.ws.Files()
		require.NoError(t, err)

		results, err := f.exec.ExecuteAtomic(ctx, mustParse(t, `ACTION: createFile
PARAMS: {"path": "/new.txt", "content": "x"}
ACTION: deleteFile
PARAMS: {"fileId": "nope"}`))
		require.Error(t, err)
		assert.Nil(t, results)
		assert.ErrorIs(t, err, workspace.ErrFileNotFound)
		assert.Contains(t, err.Error(), "action 2 (deleteFile) failed to delete file")

		after, err := f.ws.Files()
		require.NoError(t, err)
		assert.Equal(t, before, after)
		assert.Equal(t, 1, f.ix.Len())
	})

	t.Run("unknown action runs nothing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.exec.ExecuteAtomic(ctx, mustParse(t, `ACTION: createFolder
PARAMS: {"path": "/a"}
ACTION: frobnicate
PARAMS: {}`))
		var unknown *UnknownActionError
		require.True(t, errors.As(err, &unknown))
		_, err = f.ws.Folder("/a")
		assert.ErrorIs(t, err, workspace.ErrFolderNotFound)
	})
}
