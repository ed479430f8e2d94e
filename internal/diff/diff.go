// Package diff computes line diffs between two versions of a file, used for
// update previews, diff tabs and the CLI's change summaries.
package diff

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType is the kind of a diff line.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Prefix returns the unified-diff marker for the line type.
func (t LineType) Prefix() string {
	switch t {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	}
	return " "
}

// Line is one line of a hunk. OldNum/NewNum are 1-based; zero means the line
// does not exist on that side.
type Line struct {
	Type    LineType `json:"type"`
	OldNum  int      `json:"oldNum,omitempty"`
	NewNum  int      `json:"newNum,omitempty"`
	Content string   `json:"content"`
}

// Hunk is a run of changes with surrounding context.
type Hunk struct {
	OldStart int    `json:"oldStart"`
	OldCount int    `json:"oldCount"`
	NewStart int    `json:"newStart"`
	NewCount int    `json:"newCount"`
	Lines    []Line `json:"lines"`
}

// Header renders the hunk's "@@ -a,b +c,d @@" line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// FileDiff is the diff of one file.
type FileDiff struct {
	Path    string `json:"path"`
	Hunks   []Hunk `json:"hunks"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	IsNew   bool   `json:"isNew,omitempty"`
}

// Empty reports whether the versions are identical.
func (d *FileDiff) Empty() bool { return len(d.Hunks) == 0 }

// Stat renders "+N -M".
func (d *FileDiff) Stat() string { return fmt.Sprintf("+%d -%d", d.Added, d.Removed) }

// Unified renders the diff in unified format.
func (d *FileDiff) Unified() string {
	if d.Empty() {
		return ""
	}
	var sb strings.Builder
	old := "a" + d.Path
	if d.IsNew {
		old = "/dev/null"
	}
	fmt.Fprintf(&sb, "--- %s\n+++ b%s\n", old, d.Path)
	for _, h := range d.Hunks {
		sb.WriteString(h.Header())
		sb.WriteByte('\n')
		for _, l := range h.Lines {
			sb.WriteString(l.Type.Prefix())
			sb.WriteString(l.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// =============================================================================
// ENGINE
// =============================================================================

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

const defaultCacheSize = 128

// Engine computes diffs and remembers recent results.
type Engine struct {
	dmp     *diffmatchpatch.DiffMatchPatch
	context int

	mu    sync.Mutex
	cache map[uint64]*list.Element
	order *list.List
	limit int
}

type cacheEntry struct {
	key  uint64
	diff FileDiff
}

// NewEngine creates an engine keeping contextLines of context per hunk.
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = DefaultContext
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{
		dmp:     dmp,
		context: contextLines,
		cache:   make(map[uint64]*list.Element),
		order:   list.New(),
		limit:   defaultCacheSize,
	}
}

var defaultEngine = NewEngine(DefaultContext)

// Compute diffs oldContent against newContent with the default engine.
func Compute(path, oldContent, newContent string) *FileDiff {
	return defaultEngine.Compute(path, oldContent, newContent)
}

// Compute returns the line diff from oldContent to newContent.
func (e *Engine) Compute(path, oldContent, newContent string) *FileDiff {
	key := cacheKey(oldContent, newContent)
	if d, ok := e.lookup(key); ok {
		d.Path = path
		return d
	}

	a, b, lines := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lines)

	ops := toOps(diffs)
	d := &FileDiff{Path: path, IsNew: oldContent == "" && newContent != ""}
	for _, op := range ops {
		switch op.Type {
		case LineAdded:
			d.Added++
		case LineRemoved:
			d.Removed++
		}
	}
	d.Hunks = group(ops, e.context)
	e.store(key, d)
	return d
}

func cacheKey(a, b string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	return h.Sum64()
}

func (e *Engine) lookup(key uint64) (*FileDiff, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	el, ok := e.cache[key]
	if !ok {
		return nil, false
	}
	e.order.MoveToFront(el)
	d := el.Value.(*cacheEntry).diff
	return &d, true
}

func (e *Engine) store(key uint64, d *FileDiff) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if el, ok := e.cache[key]; ok {
		e.order.MoveToFront(el)
		return
	}
	e.cache[key] = e.order.PushFront(&cacheEntry{key: key, diff: *d})
	for e.order.Len() > e.limit {
		last := e.order.Back()
		e.order.Remove(last)
		delete(e.cache, last.Value.(*cacheEntry).key)
	}
}

// ClearCache forgets every cached diff.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[uint64]*list.Element)
	e.order.Init()
}

// toOps flattens line-level diffs into numbered lines.
func toOps(diffs []diffmatchpatch.Diff) []Line {
	var ops []Line
	oldNum, newNum := 0, 0
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if d.Text == "" {
			continue
		}
		for _, content := range strings.Split(text, "\n") {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldNum++
				newNum++
				ops = append(ops, Line{Type: LineContext, OldNum: oldNum, NewNum: newNum, Content: content})
			case diffmatchpatch.DiffDelete:
				oldNum++
				ops = append(ops, Line{Type: LineRemoved, OldNum: oldNum, Content: content})
			case diffmatchpatch.DiffInsert:
				newNum++
				ops = append(ops, Line{Type: LineAdded, NewNum: newNum, Content: content})
			}
		}
	}
	return ops
}

// group cuts the numbered lines into hunks. Changes closer than 2*ctx
// unchanged lines share a hunk.
func group(ops []Line, ctx int) []Hunk {
	var hunks []Hunk
	i := 0
	for i < len(ops) {
		for i < len(ops) && ops[i].Type == LineContext {
			i++
		}
		if i == len(ops) {
			break
		}
		start := max(i-ctx, 0)
		end := i
		for end < len(ops) {
			if ops[end].Type != LineContext {
				end++
				continue
			}
			run := end
			for run < len(ops) && ops[run].Type == LineContext {
				run++
			}
			if run == len(ops) || run-end > 2*ctx {
				end = min(end+ctx, len(ops))
				break
			}
			end = run
		}
		hunks = append(hunks, newHunk(ops, start, end))
		i = end
	}
	return hunks
}

// newHunk builds the hunk for ops[start:end] and computes its ranges.
func newHunk(ops []Line, start, end int) Hunk {
	h := Hunk{Lines: append([]Line(nil), ops[start:end]...)}
	for _, l := range h.Lines {
		if l.Type != LineAdded {
			h.OldCount++
			if h.OldStart == 0 {
				h.OldStart = l.OldNum
			}
		}
		if l.Type != LineRemoved {
			h.NewCount++
			if h.NewStart == 0 {
				h.NewStart = l.NewNum
			}
		}
	}
	// An empty side starts at the line before, as in unified diffs.
	if h.OldCount == 0 {
		h.OldStart = precedingNum(ops, start, func(l Line) int { return l.OldNum })
	}
	if h.NewCount == 0 {
		h.NewStart = precedingNum(ops, start, func(l Line) int { return l.NewNum })
	}
	return h
}

func precedingNum(ops []Line, start int, num func(Line) int) int {
	for j := start - 1; j >= 0; j-- {
		if n := num(ops[j]); n > 0 {
			return n
		}
	}
	return 0
}

// =============================================================================
// INLINE
// =============================================================================

// Segment is a piece of an inline (character-level) diff.
type Segment struct {
	Type LineType `json:"type"`
	Text string   `json:"text"`
}

// Inline computes a character-level diff between two lines, merged into
// human-readable segments.
func (e *Engine) Inline(oldLine, newLine string) []Segment {
	diffs := e.dmp.DiffMain(oldLine, newLine, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	out := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		t := LineContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			t = LineAdded
		case diffmatchpatch.DiffDelete:
			t = LineRemoved
		}
		out = append(out, Segment{Type: t, Text: d.Text})
	}
	return out
}
