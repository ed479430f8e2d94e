// Package index keeps an in-memory index of a project's files: tokens,
// summaries and symbols used for search, related-file detection and the
// context handed to the assistant.
package index

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"codex/internal/logging"
	"codex/internal/project"
	"codex/internal/workspace"
)

// Entry is the indexed view of one file.
type Entry struct {
	FileID    string    `json:"fileId"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	FileType  string    `json:"fileType"`
	Tokens    []string  `json:"tokens"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`
	Symbols   []Symbol  `json:"symbols,omitempty"`
	IndexedAt time.Time `json:"indexedAt"`

	seq uint64
}

// HasToken reports whether tok is one of the entry's tokens.
func (e *Entry) HasToken(tok string) bool {
	for _, t := range e.Tokens {
		if t == tok {
			return true
		}
	}
	return false
}

// Options tune indexing and related-file detection.
type Options struct {
	Workers      int // concurrent files during IndexAll
	RelatedLimit int // max related files in a context
	MinOverlap   int // related files need strictly more shared tokens than this
	Clock        func() time.Time
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{Workers: 4, RelatedLimit: 5, MinOverlap: 5, Clock: time.Now}
}

// Index maps file IDs to entries. It is safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	seq       uint64
	updatedAt time.Time
	opts      Options
}

// New creates an empty index.
func New(opts Options) *Index {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.RelatedLimit <= 0 {
		opts.RelatedLimit = def.RelatedLimit
	}
	if opts.MinOverlap <= 0 {
		opts.MinOverlap = def.MinOverlap
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	return &Index{entries: make(map[string]*Entry), opts: opts}
}

// =============================================================================
// TEXT HELPERS
// =============================================================================

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Tokenize lowercases content into unique word tokens longer than two
// characters, in first-occurrence order.
func Tokenize(content string) []string {
	fields := strings.Fields(nonWord.ReplaceAllString(content, " "))
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		tok := strings.ToLower(f)
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

var fileTypes = map[string]string{
	"js":   "javascript",
	"jsx":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"html": "html",
	"css":  "css",
	"json": "json",
	"md":   "markdown",
	"txt":  "text",
	"py":   "python",
	"java": "java",
	"c":    "c",
	"cpp":  "cpp",
	"h":    "cpp",
	"cs":   "csharp",
	"php":  "php",
}

// FileType maps a file name's extension to a language name, or "unknown".
func FileType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		// A name without a dot is its own extension, as in "Makefile".
		ext = strings.ToLower(name)
	}
	if t, ok := fileTypes[ext]; ok {
		return t
	}
	return "unknown"
}

const summaryPreview = 100

// Summary returns the first 100 characters of content (newlines as spaces)
// followed by the content size.
func Summary(content string) string {
	preview := content
	if r := []rune(content); len(r) > summaryPreview {
		preview = string(r[:summaryPreview])
	}
	preview = strings.ReplaceAll(preview, "\n", " ")
	return fmt.Sprintf("%s... (%d bytes)", preview, len(content))
}

// =============================================================================
// BUILDING
// =============================================================================

func (ix *Index) build(f project.File) *Entry {
	ft := FileType(f.Name)
	return &Entry{
		FileID:    f.ID,
		Path:      f.Path,
		Name:      f.Name,
		FileType:  ft,
		Tokens:    Tokenize(f.Content),
		Content:   f.Content,
		Summary:   Summary(f.Content),
		Symbols:   ExtractSymbols(f.Name, ft, f.Content),
		IndexedAt: ix.opts.Clock(),
	}
}

func (ix *Index) put(e *Entry) {
	ix.seq++
	e.seq = ix.seq
	ix.entries[e.FileID] = e
	ix.updatedAt = e.IndexedAt
}

// IndexAll clears the index and rebuilds it from files, using up to
// Options.Workers goroutines.
func (ix *Index) IndexAll(ctx context.Context, files []project.File) error {
	timer := logging.StartTimer(logging.CategoryIndex, "IndexAll")
	defer timer.Stop()

	built := make([]*Entry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			built[i] = ix.build(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to index files: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = make(map[string]*Entry, len(built))
	for _, e := range built {
		ix.put(e)
	}
	ix.updatedAt = ix.opts.Clock()
	logging.Index("Indexed %d files", len(built))
	return nil
}

// IndexFile adds or refreshes a single file.
func (ix *Index) IndexFile(f project.File) {
	e := ix.build(f)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.put(e)
	logging.IndexDebug("Indexed %s (%s, %d tokens)", f.Path, e.FileType, len(e.Tokens))
}

// Remove drops a file from the index.
func (ix *Index) Remove(fileID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.entries, fileID)
}

// RemoveUnder drops every file whose path lies under folderPath.
func (ix *Index) RemoveUnder(folderPath string) int {
	prefix := workspace.NormalizeFolderPath(folderPath)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	n := 0
	for id, e := range ix.entries {
		if strings.HasPrefix(e.Path, prefix) {
			delete(ix.entries, id)
			n++
		}
	}
	return n
}

// Apply brings the index in line with committed workspace changes.
func (ix *Index) Apply(changes []workspace.Change) {
	for _, c := range changes {
		switch c.Kind {
		case workspace.ChangeDeleted:
			ix.Remove(c.File.ID)
		case workspace.ChangeMoved:
			ix.mu.Lock()
			e, ok := ix.entries[c.File.ID]
			if ok {
				// Entries handed out to readers are never mutated.
				moved := *e
				moved.Path = c.File.Path
				moved.Name = c.File.Name
				ix.entries[c.File.ID] = &moved
				e = &moved
			}
			ix.mu.Unlock()
			if !ok || FileType(c.File.Name) != e.FileType {
				ix.IndexFile(c.File)
			}
		default:
			ix.IndexFile(c.File)
		}
	}
}

// Get returns a copy of the entry for fileID.
func (ix *Index) Get(fileID string) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[fileID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of indexed files.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// UpdatedAt returns when the index last changed.
func (ix *Index) UpdatedAt() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.updatedAt
}
