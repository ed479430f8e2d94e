package diff

import (
	"fmt"
	"strings"
	"testing"
)

func numbered(n int, change map[int]string) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line%d", i+1)
		if c, ok := change[i+1]; ok {
			lines[i] = c
		}
	}
	return strings.Join(lines, "\n")
}

func TestCompute_Addition(t *testing.T) {
	d := NewEngine(3).Compute("/a.txt", "line1\nline2\nline3", "line1\nline2\nline2.5\nline3")

	if len(d.Hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(d.Hunks))
	}
	if d.Added != 1 || d.Removed != 0 {
		t.Errorf("expected +1 -0, got %s", d.Stat())
	}
	found := false
	for _, l := range d.Hunks[0].Lines {
		if l.Type == LineAdded && l.Content == "line2.5" {
			found = true
			if l.NewNum != 3 || l.OldNum != 0 {
				t.Errorf("added line numbered old=%d new=%d, want 0/3", l.OldNum, l.NewNum)
			}
		}
	}
	if !found {
		t.Error("expected added line 'line2.5'")
	}
}

func TestCompute_Deletion(t *testing.T) {
	d := NewEngine(3).Compute("/a.txt", "line1\nline2\nline3\nline4", "line1\nline2\nline4")
	if d.Removed != 1 || d.Added != 0 {
		t.Errorf("expected +0 -1, got %s", d.Stat())
	}
	h := d.Hunks[0]
	if h.OldCount != 4 || h.NewCount != 3 {
		t.Errorf("unexpected ranges %s", h.Header())
	}
}

func TestCompute_NoChanges(t *testing.T) {
	content := numbered(5, nil)
	d := NewEngine(3).Compute("/a.txt", content, content)
	if !d.Empty() {
		t.Errorf("expected no hunks, got %d", len(d.Hunks))
	}
	if d.Unified() != "" {
		t.Errorf("expected empty unified diff, got %q", d.Unified())
	}
}

func TestCompute_NewFile(t *testing.T) {
	d := NewEngine(3).Compute("/new.txt", "", "a\nb")
	if !d.IsNew {
		t.Error("expected IsNew")
	}
	if d.Added != 2 {
		t.Errorf("expected 2 added, got %d", d.Added)
	}
	if got := d.Hunks[0].Header(); got != "@@ -0,0 +1,2 @@" {
		t.Errorf("header = %q", got)
	}
}

func TestCompute_SeparateHunks(t *testing.T) {
	oldContent := numbered(20, nil)
	newContent := numbered(20, map[int]string{3: "CHANGED3", 17: "CHANGED17"})

	d := NewEngine(3).Compute("/a.txt", oldContent, newContent)
	if len(d.Hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(d.Hunks))
	}
	if got := d.Hunks[0].Header(); got != "@@ -1,6 +1,6 @@" {
		t.Errorf("first header = %q", got)
	}
	if got := d.Hunks[1].Header(); got != "@@ -14,7 +14,7 @@" {
		t.Errorf("second header = %q", got)
	}
}

func TestCompute_NearbyChangesMerge(t *testing.T) {
	oldContent := numbered(12, nil)
	newContent := numbered(12, map[int]string{3: "X", 8: "Y"})

	d := NewEngine(3).Compute("/a.txt", oldContent, newContent)
	if len(d.Hunks) != 1 {
		t.Fatalf("expected changes 5 lines apart to share a hunk, got %d hunks", len(d.Hunks))
	}
}

func TestCompute_HunkCountsMatchLines(t *testing.T) {
	d := NewEngine(1).Compute("/a.txt", "line1\nline2\nline3", "line1\nNEW\nline3")
	h := d.Hunks[0]

	oldCount, newCount := 0, 0
	for _, l := range h.Lines {
		if l.Type != LineAdded {
			oldCount++
		}
		if l.Type != LineRemoved {
			newCount++
		}
	}
	if h.OldCount != oldCount || h.NewCount != newCount {
		t.Errorf("counts %d/%d, lines say %d/%d", h.OldCount, h.NewCount, oldCount, newCount)
	}
}

func TestUnified(t *testing.T) {
	d := NewEngine(1).Compute("/a.txt", "a\nb\nc", "a\nB\nc")
	want := "--- a/a.txt\n+++ b/a.txt\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n"
	if got := d.Unified(); got != want {
		t.Errorf("Unified() =\n%s\nwant\n%s", got, want)
	}
}

func TestCompute_CacheKeepsPaths(t *testing.T) {
	e := NewEngine(3)
	first := e.Compute("/one.txt", "a", "b")
	second := e.Compute("/two.txt", "a", "b")

	if first.Path != "/one.txt" || second.Path != "/two.txt" {
		t.Errorf("paths %q %q", first.Path, second.Path)
	}
	if len(first.Hunks) != len(second.Hunks) {
		t.Error("cached diff differs")
	}

	e.ClearCache()
	third := e.Compute("/one.txt", "a", "b")
	if third.Added != first.Added {
		t.Error("clearing the cache changed the result")
	}
}

func TestCompute_CacheEvicts(t *testing.T) {
	e := NewEngine(3)
	e.limit = 2
	e.Compute("/a", "1", "2")
	e.Compute("/a", "3", "4")
	e.Compute("/a", "5", "6")
	if e.order.Len() != 2 || len(e.cache) != 2 {
		t.Errorf("cache holds %d/%d entries, want 2", e.order.Len(), len(e.cache))
	}
}

func TestInline(t *testing.T) {
	segs := NewEngine(3).Inline("The quick brown fox", "The quick red fox")
	var removed, added string
	for _, s := range segs {
		switch s.Type {
		case LineRemoved:
			removed += s.Text
		case LineAdded:
			added += s.Text
		}
	}
	if !strings.Contains(removed, "brown") && !strings.Contains(removed, "b") {
		t.Errorf("removed = %q", removed)
	}
	if !strings.Contains(added, "red") && !strings.Contains(added, "r") {
		t.Errorf("added = %q", added)
	}
}

func TestLargeFile(t *testing.T) {
	var oldLines []string
	for i := 0; i < 1000; i++ {
		oldLines = append(oldLines, fmt.Sprintf("line %d", i))
	}
	newLines := append([]string(nil), oldLines...)
	newLines[500] = "CHANGED LINE"

	d := Compute("/big.txt", strings.Join(oldLines, "\n"), strings.Join(newLines, "\n"))
	if len(d.Hunks) != 1 || d.Added != 1 || d.Removed != 1 {
		t.Errorf("expected one 1/1 hunk, got %d hunks %s", len(d.Hunks), d.Stat())
	}
}
