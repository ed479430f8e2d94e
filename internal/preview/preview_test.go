package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codex/internal/project"
)

func file(p, content string) project.File {
	i := strings.LastIndex(p, "/")
	return project.File{ID: p, Name: p[i+1:], Path: p, FolderPath: p[:i+1], Content: content}
}

func TestBuild_NoHTML(t *testing.T) {
	page := Build([]project.File{file("/style.css", "body{}")}, Options{})
	assert.Equal(t, EmptyPage, page.HTML)
	assert.Empty(t, page.Main)
}

func TestBuild_PrefersIndex(t *testing.T) {
	files := []project.File{
		file("/about.html", "<html><body>about</body></html>"),
		file("/INDEX.HTML", "<html><body>home</body></html>"),
	}
	page := Build(files, Options{NoConsole: true})
	assert.Equal(t, "/INDEX.HTML", page.Main)
	assert.Contains(t, page.HTML, "home")

	page = Build(files[:1], Options{NoConsole: true})
	assert.Equal(t, "/about.html", page.Main)
}

func TestBuild_InlinesReferences(t *testing.T) {
	html := `<html><head><link rel="stylesheet" href="./css/style.css"></head>` +
		`<body><script src="app.js"></script></body></html>`
	files := []project.File{
		file("/index.html", html),
		file("/css/style.css", "h1 { color: $red; }"),
		file("/app.js", "console.log('hi')"),
	}
	page := Build(files, Options{NoConsole: true})

	assert.Equal(t, `<html><head><style>h1 { color: $red; }</style></head>`+
		`<body><script>console.log('hi')</script></body></html>`, page.HTML)
	assert.Equal(t, []string{"/css/style.css", "/app.js"}, page.Inlined)
	assert.Empty(t, page.Injected)
}

func TestBuild_InjectsUnreferenced(t *testing.T) {
	files := []project.File{
		file("/index.html", "<html><head><title>t</title></head><body><p>x</p></body></html>"),
		file("/a.css", "a{}"),
		file("/b.css", "b{}"),
		file("/main.js", "run()"),
	}
	page := Build(files, Options{NoConsole: true})

	assert.Equal(t, "<html><head><title>t</title><style>/* a.css */\na{}</style>\n<style>/* b.css */\nb{}</style></head>"+
		"<body><p>x</p><script>/* main.js */\nrun()</script></body></html>", page.HTML)
	assert.Equal(t, []string{"/a.css", "/b.css", "/main.js"}, page.Injected)
}

func TestBuild_MissingTagsAppend(t *testing.T) {
	page := Build([]project.File{file("/index.html", "<p>bare</p>"), file("/x.js", "go()")}, Options{NoConsole: true})
	assert.Equal(t, "<p>bare</p><script>/* x.js */\ngo()</script>", page.HTML)
}

func TestBuild_QuotesFileNames(t *testing.T) {
	// "a.js" must not match "aXjs".
	files := []project.File{
		file("/index.html", `<html><body><script src="aXjs"></script><!-- a.js --></body></html>`),
		file("/a.js", "nope()"),
	}
	page := Build(files, Options{NoConsole: true})
	assert.Contains(t, page.HTML, `<script src="aXjs"></script>`)
	assert.NotContains(t, page.HTML, "nope()")
}

func TestBuild_ConsoleInterceptor(t *testing.T) {
	files := []project.File{file("/index.html", `<html><head lang="en"><title>t</title></head><body></body></html>`)}

	page := Build(files, Options{})
	require.True(t, strings.HasPrefix(page.HTML, `<html><head lang="en"><script>`))
	assert.Contains(t, page.HTML, "var relayURL = null;")
	assert.Contains(t, page.HTML, "messageType: type")
	assert.Contains(t, page.HTML, "warn: 'warning'")

	page = Build(files, Options{RelayURL: "ws://127.0.0.1:8420/ws/preview/p1</script>"})
	assert.Contains(t, page.HTML, `var relayURL = "ws://127.0.0.1:8420/ws/preview/p1\u003c/script\u003e";`)
	assert.NotContains(t, page.HTML, "p1</script>")
}

func TestBuild_InterceptorWithoutHead(t *testing.T) {
	page := Build([]project.File{file("/index.html", "<html><body></body></html>")}, Options{})
	assert.True(t, strings.HasPrefix(page.HTML, "<html><script>"))

	page = Build([]project.File{file("/index.html", "<p>x</p>")}, Options{})
	assert.True(t, strings.HasPrefix(page.HTML, "<script>"))
	assert.True(t, strings.HasSuffix(page.HTML, "<p>x</p>"))
}
