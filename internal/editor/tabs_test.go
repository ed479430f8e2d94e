package editor

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codex/internal/project"
)

func file(id, p string) project.File {
	return project.File{ID: id, Name: path.Base(p), Path: p}
}

func TestLanguage(t *testing.T) {
	cases := map[string]string{
		"index.html":   "html",
		"a/b/Site.CSS": "css",
		"app.js":       "javascript",
		"app.ts":       "plaintext",
		"package.json": "json",
		"README.md":    "markdown",
		"notes.txt":    "plaintext",
		"Makefile":     "plaintext",
	}
	for name, want := range cases {
		assert.Equal(t, want, Language(name), name)
	}
}

func TestIconType(t *testing.T) {
	cases := map[string]string{
		"index.html": "html",
		"x.css":      "css",
		"x.tsx":      "js",
		"x.json":     "json",
		"x.md":       "md",
		"logo.SVG":   "image",
		"photo.jpeg": "image",
		"notes.txt":  "",
	}
	for name, want := range cases {
		assert.Equal(t, want, IconType(name), name)
	}
}

func TestTabs_OpenReusesTab(t *testing.T) {
	tabs := NewTabs()
	tabs.Open(file("a", "/index.html"))
	tabs.Open(file("b", "/style.css"))
	tab := tabs.Open(file("a", "/index.html"))

	assert.Equal(t, "index.html", tab.Title)
	assert.Equal(t, "html", tab.Language)
	assert.Len(t, tabs.List(), 2)
	assert.Equal(t, "a", tabs.CurrentFileID())
	assert.Equal(t, []string{"a", "b"}, tabs.OpenFileIDs())
}

func TestTabs_OpenDiff(t *testing.T) {
	tabs := NewTabs()
	tabs.Open(file("a", "/js/app.js"))
	tab := tabs.OpenDiff("a", "/js/app.js", "let x = 1;\n", "let x = 2;\n", "")

	assert.Equal(t, "diff-a", tab.ID)
	assert.Equal(t, "Diff: app.js", tab.Title)
	assert.Equal(t, TabDiff, tab.Kind)
	require.NotNil(t, tab.Diff)
	assert.Equal(t, 1, tab.Diff.Added)
	assert.Equal(t, "", tabs.CurrentFileID(), "a diff tab has no current file")

	again := tabs.OpenDiff("a", "/js/app.js", "a\n", "b\n", "Agent: ")
	assert.Equal(t, "Agent: app.js", again.Title)
	assert.Len(t, tabs.List(), 2)
}

func TestTabs_CloseActivatesFirst(t *testing.T) {
	tabs := NewTabs()
	tabs.Open(file("a", "/a.js"))
	tabs.Open(file("b", "/b.js"))
	tabs.Open(file("c", "/c.js"))
	require.NoError(t, tabs.Activate("b"))

	assert.True(t, tabs.Close("b"))
	assert.Equal(t, "a", tabs.CurrentFileID())

	assert.True(t, tabs.Close("c"))
	assert.Equal(t, "a", tabs.CurrentFileID(), "closing an inactive tab keeps the active one")

	assert.True(t, tabs.Close("a"))
	assert.Equal(t, "", tabs.CurrentFileID())
	_, ok := tabs.Active()
	assert.False(t, ok)
	assert.False(t, tabs.Close("a"))
	assert.ErrorIs(t, tabs.Activate("zzz"), ErrTabNotFound)
}

func TestTabs_CloseFileClosesDiffToo(t *testing.T) {
	tabs := NewTabs()
	tabs.Open(file("a", "/a.js"))
	tabs.Open(file("b", "/b.js"))
	tabs.OpenDiff("a", "/a.js", "", "x", "")

	tabs.CloseFile("a")
	list := tabs.List()
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "b", tabs.CurrentFileID())
}

func TestTabs_Rename(t *testing.T) {
	tabs := NewTabs()
	tabs.Open(file("a", "/a.js"))
	tabs.OpenDiff("a", "/a.js", "", "x", "")
	tabs.Rename("a", "/docs/a.md")

	list := tabs.List()
	assert.Equal(t, "a.md", list[0].Title)
	assert.Equal(t, "markdown", list[0].Language)
	assert.Equal(t, "md", list[0].Icon)
	assert.Equal(t, "/docs/a.md", list[1].Path)
	assert.Equal(t, "Diff: a.js", list[1].Title)
}
