// Package preview assembles a self-contained HTML page from a project's
// HTML, CSS and JavaScript files and collects console output from it.
package preview

import (
	"encoding/json"
	"path"
	"regexp"
	"strings"

	"codex/internal/project"
)

// EmptyPage is served when a project has no HTML file.
const EmptyPage = `<html><body><h1>No HTML file found</h1><p>Create an HTML file to see the preview</p></body></html>`

// Options controls page assembly.
type Options struct {
	// RelayURL is a websocket endpoint the page forwards console output to
	// and listens on for reload requests. Empty disables the relay.
	RelayURL string
	// NoConsole skips the console interceptor.
	NoConsole bool
}

// Page is an assembled preview.
type Page struct {
	HTML string
	// Main is the path of the HTML file the page was built from.
	Main string
	// Inlined lists stylesheets and scripts that replaced a reference.
	Inlined []string
	// Injected lists stylesheets and scripts the HTML never referenced.
	Injected []string
}

var (
	headOpen  = regexp.MustCompile(`(?i)<head[^>]*>`)
	htmlOpen  = regexp.MustCompile(`(?i)<html[^>]*>`)
	headClose = regexp.MustCompile(`(?i)</head>`)
	bodyClose = regexp.MustCompile(`(?i)</body>`)
)

// Build renders the preview for files. The main document is index.html
// (case-insensitive) or else the first HTML file.
func Build(files []project.File, opts Options) Page {
	var htmlFiles, cssFiles, jsFiles []project.File
	for _, f := range files {
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".html", ".htm":
			htmlFiles = append(htmlFiles, f)
		case ".css":
			cssFiles = append(cssFiles, f)
		case ".js":
			jsFiles = append(jsFiles, f)
		}
	}
	if len(htmlFiles) == 0 {
		return Page{HTML: EmptyPage}
	}

	main := htmlFiles[0]
	for _, f := range htmlFiles {
		if strings.EqualFold(f.Name, "index.html") {
			main = f
			break
		}
	}

	page := Page{Main: main.Path}
	doc := main.Content

	var orphanCSS []string
	for _, f := range cssFiles {
		if !strings.Contains(doc, f.Name) {
			orphanCSS = append(orphanCSS, "<style>/* "+f.Name+" */\n"+f.Content+"</style>")
			page.Injected = append(page.Injected, f.Path)
			continue
		}
		link := regexp.MustCompile(`<link[^>]*href=["']([^"']*` + regexp.QuoteMeta(f.Name) + `)["'][^>]*>`)
		if link.MatchString(doc) {
			content := f.Content
			doc = link.ReplaceAllStringFunc(doc, func(string) string { return "<style>" + content + "</style>" })
			page.Inlined = append(page.Inlined, f.Path)
		}
	}
	if len(orphanCSS) > 0 {
		doc = insertBefore(doc, headClose, strings.Join(orphanCSS, "\n"))
	}

	var orphanJS []string
	for _, f := range jsFiles {
		if !strings.Contains(doc, f.Name) {
			orphanJS = append(orphanJS, "<script>/* "+f.Name+" */\n"+f.Content+"</script>")
			page.Injected = append(page.Injected, f.Path)
			continue
		}
		script := regexp.MustCompile(`<script[^>]*src=["']([^"']*` + regexp.QuoteMeta(f.Name) + `)["'][^>]*></script>`)
		if script.MatchString(doc) {
			content := f.Content
			doc = script.ReplaceAllStringFunc(doc, func(string) string { return "<script>" + content + "</script>" })
			page.Inlined = append(page.Inlined, f.Path)
		}
	}
	if len(orphanJS) > 0 {
		doc = insertBefore(doc, bodyClose, strings.Join(orphanJS, "\n"))
	}

	if !opts.NoConsole {
		doc = insertInterceptor(doc, interceptor(opts.RelayURL))
	}
	page.HTML = doc
	return page
}

// insertBefore places snippet before the first match of tag, or appends it
// when the tag is missing.
func insertBefore(doc string, tag *regexp.Regexp, snippet string) string {
	loc := tag.FindStringIndex(doc)
	if loc == nil {
		return doc + snippet
	}
	return doc[:loc[0]] + snippet + doc[loc[0]:]
}

// insertInterceptor places the script as early as possible so output from
// inlined scripts is captured.
func insertInterceptor(doc, script string) string {
	for _, tag := range []*regexp.Regexp{headOpen, htmlOpen} {
		if loc := tag.FindStringIndex(doc); loc != nil {
			return doc[:loc[1]] + script + doc[loc[1]:]
		}
	}
	return script + doc
}

const interceptorJS = `<script>
(function() {
  var relayURL = {{relay}};
  var relay = null;
  var queue = [];
  if (relayURL) {
    try {
      relay = new WebSocket(relayURL);
      relay.onopen = function() {
        while (queue.length) relay.send(queue.shift());
      };
      relay.onmessage = function(e) {
        if (e.data === 'reload') window.location.reload();
      };
    } catch (e) { relay = null; }
  }
  function format(args) {
    return Array.prototype.map.call(args, function(arg) {
      if (typeof arg === 'object') {
        try { return JSON.stringify(arg); } catch (e) { return String(arg); }
      }
      return String(arg);
    }).join(' ');
  }
  function send(message, type) {
    try {
      window.parent.postMessage({type: 'console', message: message, messageType: type}, '*');
    } catch (e) {}
    if (!relay) return;
    var frame = JSON.stringify({type: type, message: message});
    if (relay.readyState === 1) relay.send(frame); else queue.push(frame);
  }
  var levels = {log: 'log', error: 'error', warn: 'warning', info: 'info'};
  Object.keys(levels).forEach(function(name) {
    var original = console[name];
    console[name] = function() {
      send(format(arguments), levels[name]);
      if (original) original.apply(console, arguments);
    };
  });
  window.addEventListener('error', function(e) {
    send(e.message + ' at ' + e.filename + ':' + e.lineno + ':' + e.colno, 'error');
  });
})();
</script>`

func interceptor(relayURL string) string {
	// json.Marshal escapes < and >, so the literal cannot close the script tag.
	lit, _ := json.Marshal(relayURL)
	if relayURL == "" {
		lit = []byte("null")
	}
	return strings.Replace(interceptorJS, "{{relay}}", string(lit), 1)
}
