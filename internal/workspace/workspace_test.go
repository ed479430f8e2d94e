package workspace

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codex/internal/project"
	"codex/internal/store"
)

func newTestWorkspace(t *testing.T) (*Workspace, *project.Manager) {
	t.Helper()
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seq := 0
	m, err := project.NewManager(context.Background(), store.NewMemoryStore(),
		project.WithClock(func() time.Time { clock = clock.Add(time.Second); return clock }),
		project.WithIDGenerator(func() string { seq++; return fmt.Sprintf("id-%d", seq) }),
	)
	require.NoError(t, err)
	p, err := m.Create(context.Background(), "Site")
	require.NoError(t, err)
	w, err := Open(m, p.ID)
	require.NoError(t, err)
	return w, m
}

func strPtr(s string) *string { return &s }

func TestPaths(t *testing.T) {
	assert.Equal(t, "/", NormalizeFolderPath(""))
	assert.Equal(t, "/", NormalizeFolderPath("/"))
	assert.Equal(t, "/a/b/", NormalizeFolderPath("a//b/"))
	assert.Equal(t, "/a/b", CleanPath("/a/b/"))

	dir, name := SplitPath("/css/style.css")
	assert.Equal(t, "/css", dir)
	assert.Equal(t, "style.css", name)

	assert.True(t, isWithin("/a/b", "/a"))
	assert.True(t, isWithin("/a", "/a"))
	assert.False(t, isWithin("/ab", "/a"))
}

func TestDefaultContent(t *testing.T) {
	assert.Contains(t, DefaultContent("index.html"), "<!DOCTYPE html>")
	assert.Contains(t, DefaultContent("INDEX.HTML"), "<!DOCTYPE html>")
	assert.Empty(t, DefaultContent("page.htm"))
	assert.Contains(t, DefaultContent("a.css"), "font-family")
	assert.Contains(t, DefaultContent("a.js"), "DOMContentLoaded")
	assert.Contains(t, DefaultContent("a.json"), `"version": "1.0.0"`)
	assert.Contains(t, DefaultContent("README.md"), "# My Project")
	assert.Empty(t, DefaultContent("notes.txt"))
	assert.Empty(t, DefaultContent("Makefile"))
}

func TestOpen_UnknownProject(t *testing.T) {
	_, m := newTestWorkspace(t)
	_, err := Open(m, "nope")
	assert.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestCreateFileAndFolder(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)

	f, err := w.CreateFile(ctx, "index.html", "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "/index.html", f.Path)
	assert.Equal(t, "/", f.FolderPath)
	assert.Contains(t, f.Content, "<!DOCTYPE html>")

	_, err = w.CreateFolder(ctx, "css", "/")
	require.NoError(t, err)
	css, err := w.CreateFile(ctx, "style.css", "/css", strPtr("body{}"))
	require.NoError(t, err)
	assert.Equal(t, "/css/style.css", css.Path)
	assert.Equal(t, "/css/", css.FolderPath)
	assert.Equal(t, "body{}", css.Content)

	_, err = w.CreateFile(ctx, "style.css", "/css/", nil)
	assert.ErrorIs(t, err, ErrFileExists)
	_, err = w.CreateFile(ctx, "a.js", "/missing", nil)
	assert.ErrorIs(t, err, ErrFolderNotFound)
	_, err = w.CreateFile(ctx, "a/b.js", "/", nil)
	assert.ErrorIs(t, err, project.ErrInvalidName)
	_, err = w.CreateFolder(ctx, "css", "/")
	assert.ErrorIs(t, err, ErrFolderExists)
	_, err = w.CreateFolder(ctx, "x", "/nope")
	assert.ErrorIs(t, err, ErrParentNotFound)
	for _, name := range []string{".", "..", " .. "} {
		_, err = w.CreateFolder(ctx, name, "/")
		assert.ErrorIs(t, err, project.ErrInvalidName, name)
		_, err = w.CreateFile(ctx, name, "/", nil)
		assert.ErrorIs(t, err, project.ErrInvalidName, name)
	}

	byPath, err := w.FileByPath("css/style.css")
	require.NoError(t, err)
	assert.Equal(t, css.ID, byPath.ID)

	files, err := w.FilesInFolder("/css")
	require.NoError(t, err)
	assert.Len(t, files, 1)
	subs, err := w.Subfolders("/")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "css", subs[0].Name)
}

func TestMkdirAll(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)

	require.NoError(t, w.MkdirAll(ctx, "/src/components/ui"))
	for _, p := range []string{"/src", "/src/components", "/src/components/ui"} {
		f, err := w.Folder(p)
		require.NoError(t, err, p)
		assert.Equal(t, p, f.Path)
	}
	ui, _ := w.Folder("/src/components/ui")
	assert.Equal(t, "/src/components/", ui.ParentPath)
	require.NoError(t, w.MkdirAll(ctx, "/src"))
}

func TestUpdateFileContent(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)
	f, _ := w.CreateFile(ctx, "a.js", "/", strPtr("old"))

	require.NoError(t, w.UpdateFileContent(ctx, f.ID, "new"))
	got, err := w.FileContent(f.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got)

	err = w.UpdateFileContent(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.EqualError(t, err, "file not found with ID: missing")
}

func TestRenameFolderRewritesSubtree(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)
	require.NoError(t, w.MkdirAll(ctx, "/src/lib/deep"))
	top, _ := w.CreateFile(ctx, "main.js", "/src", strPtr("m"))
	deep, _ := w.CreateFile(ctx, "util.js", "/src/lib/deep", strPtr("u"))

	changes, err := w.RenameFolder(ctx, "/src", "app")
	require.NoError(t, err)
	assert.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, ChangeMoved, c.Kind)
	}

	got, _ := w.File(top.ID)
	assert.Equal(t, "/app/main.js", got.Path)
	got, _ = w.File(deep.ID)
	assert.Equal(t, "/app/lib/deep/util.js", got.Path)
	assert.Equal(t, "/app/lib/deep/", got.FolderPath)

	lib, err := w.Folder("/app/lib")
	require.NoError(t, err)
	assert.Equal(t, "/app/", lib.ParentPath)
	_, err = w.Folder("/src")
	assert.ErrorIs(t, err, ErrFolderNotFound)

	_, err = w.RenameFolder(ctx, "/", "x")
	assert.ErrorIs(t, err, ErrRootFolder)
}

func TestRenameFile(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)
	a, _ := w.CreateFile(ctx, "a.js", "/", nil)
	_, _ = w.CreateFile(ctx, "b.js", "/", nil)

	changes, err := w.RenameFile(ctx, a.ID, "c.js")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "/a.js", changes[0].OldPath)
	assert.Equal(t, "/c.js", changes[0].File.Path)

	_, err = w.RenameFile(ctx, a.ID, "b.js")
	assert.ErrorIs(t, err, ErrFileExists)
}

func TestDeleteFolder(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)
	require.NoError(t, w.MkdirAll(ctx, "/a/b"))
	_, _ = w.CreateFile(ctx, "x.js", "/a", nil)
	_, _ = w.CreateFile(ctx, "y.js", "/a/b", nil)
	keep, _ := w.CreateFile(ctx, "keep.js", "/", nil)
	require.NoError(t, w.MkdirAll(ctx, "/ab"))

	changes, err := w.DeleteFolder(ctx, "/a")
	require.NoError(t, err)
	assert.Len(t, changes, 2)

	files, _ := w.Files()
	require.Len(t, files, 1)
	assert.Equal(t, keep.ID, files[0].ID)
	_, err = w.Folder("/ab")
	assert.NoError(t, err, "sibling with a shared prefix survives")

	_, err = w.DeleteFolder(ctx, "/")
	assert.ErrorIs(t, err, ErrRootFolder)
}

func TestCopyAndMoveFile(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)
	require.NoError(t, w.MkdirAll(ctx, "/lib"))
	a, _ := w.CreateFile(ctx, "a.js", "/", strPtr("A"))

	cp, err := w.CopyFile(ctx, a.ID, "/lib/a2.js")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, cp.ID)
	assert.Equal(t, "A", cp.Content)

	mv, err := w.MoveFile(ctx, a.ID, "/lib/a.js")
	require.NoError(t, err)
	assert.Equal(t, a.ID, mv.ID)
	assert.Equal(t, "/lib/a.js", mv.Path)

	_, err = w.MoveFile(ctx, a.ID, "/nope/a.js")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestCopyAndMoveFolder(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)
	require.NoError(t, w.MkdirAll(ctx, "/src/lib"))
	require.NoError(t, w.MkdirAll(ctx, "/dist"))
	_, _ = w.CreateFile(ctx, "main.js", "/src", strPtr("m"))
	_, _ = w.CreateFile(ctx, "u.js", "/src/lib", strPtr("u"))

	root, changes, err := w.CopyFolder(ctx, "/src", "/dist")
	require.NoError(t, err)
	assert.Equal(t, "/dist/src", root.Path)
	assert.Len(t, changes, 2)
	f, err := w.FileByPath("/dist/src/lib/u.js")
	require.NoError(t, err)
	assert.Equal(t, "u", f.Content)

	_, _, err = w.CopyFolder(ctx, "/src", "/src/lib")
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = w.MoveFolder(ctx, "/src", "/src/lib")
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = w.MoveFolder(ctx, "/dist/src", "/")
	assert.ErrorIs(t, err, ErrFolderExists)

	_, err = w.MoveFolder(ctx, "/src/lib", "/dist")
	require.NoError(t, err)
	_, err = w.FileByPath("/dist/lib/u.js")
	assert.NoError(t, err)
}

func TestBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)
	before, _ := w.Snapshot()

	boom := errors.New("boom")
	_, err := w.Batch(ctx, func(tx *Tx) error {
		if _, err := tx.CreateFile("a.js", "/", nil); err != nil {
			return err
		}
		if err := tx.MkdirAll("/x/y"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	after, _ := w.Snapshot()
	assert.Equal(t, before.Files, after.Files)
	assert.Equal(t, before.Folders, after.Folders)
}

func TestViewDiscardsMutations(t *testing.T) {
	w, _ := newTestWorkspace(t)
	err := w.View(func(tx *Tx) error {
		_, err := tx.CreateFile("scratch.txt", "/", strPtr("x"))
		return err
	})
	require.NoError(t, err)
	_, err = w.FileByPath("/scratch.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestTree(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)
	_, _ = w.CreateFile(ctx, "z.js", "/", nil)
	_, _ = w.CreateFile(ctx, "a.html", "/", nil)
	require.NoError(t, w.MkdirAll(ctx, "/styles"))
	_, _ = w.CreateFile(ctx, "main.css", "/styles", nil)

	root, err := w.Tree()
	require.NoError(t, err)
	assert.Equal(t, "Site", root.Name)
	require.Len(t, root.Children, 3)
	assert.Equal(t, "styles", root.Children[0].Name)
	assert.True(t, root.Children[0].IsDir)
	assert.Equal(t, "a.html", root.Children[1].Name)
	assert.Equal(t, "z.js", root.Children[2].Name)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "/styles/main.css", root.Children[0].Children[0].Path)
}

func TestClipboard(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorkspace(t)
	require.NoError(t, w.MkdirAll(ctx, "/lib"))
	a, _ := w.CreateFile(ctx, "a.js", "/", strPtr("A"))

	var cb Clipboard
	_, err := cb.Paste(ctx, w, "/")
	assert.ErrorIs(t, err, ErrClipboardEmpty)

	cb.CopyFile(a.ID)
	_, err = cb.Paste(ctx, w, "/")
	require.NoError(t, err)
	_, err = cb.Paste(ctx, w, "/")
	require.NoError(t, err)
	for _, p := range []string{"/a copy.js", "/a copy 2.js"} {
		f, err := w.FileByPath(p)
		require.NoError(t, err, p)
		assert.Equal(t, "A", f.Content)
	}
	_, ok := cb.Peek()
	assert.True(t, ok, "copy stays on the clipboard")

	cb.CutFile(a.ID)
	_, err = cb.Paste(ctx, w, "/lib")
	require.NoError(t, err)
	moved, _ := w.File(a.ID)
	assert.Equal(t, "/lib/a.js", moved.Path)
	_, ok = cb.Peek()
	assert.False(t, ok, "cut clears the clipboard")

	cb.CopyFolder("/lib")
	_, err = cb.Paste(ctx, w, "/")
	require.NoError(t, err)
	_, err = w.FileByPath("/lib copy/a.js")
	assert.NoError(t, err)

	cb.CutFolder("/lib copy")
	_, err = cb.Paste(ctx, w, "/lib")
	require.NoError(t, err)
	_, err = w.FileByPath("/lib/lib copy/a.js")
	assert.NoError(t, err)

	cb.CopyFile(a.ID)
	_, err = cb.Paste(ctx, w, "/missing")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}
