// Package editor tracks the editing surface: which files are open in tabs,
// which tab is active, and the diff tabs opened to review agent edits.
package editor

import (
	"errors"
	"path"
	"sync"

	"codex/internal/diff"
	"codex/internal/project"
)

// DiffPrefix is the default title prefix of diff tabs.
const DiffPrefix = "Diff: "

// ErrTabNotFound is returned when activating a tab that is not open.
var ErrTabNotFound = errors.New("tab not found")

// TabKind distinguishes file tabs from diff tabs.
type TabKind string

const (
	TabFile TabKind = "file"
	TabDiff TabKind = "diff"
)

// Tab is one open tab. Diff tabs carry both sides of the change.
type Tab struct {
	ID       string         `json:"id"`
	Kind     TabKind        `json:"kind"`
	FileID   string         `json:"fileId"`
	Path     string         `json:"path"`
	Title    string         `json:"title"`
	Language string         `json:"language"`
	Icon     string         `json:"icon,omitempty"`
	Original string         `json:"original,omitempty"`
	Modified string         `json:"modified,omitempty"`
	Diff     *diff.FileDiff `json:"diff,omitempty"`
}

// DiffTabID returns the ID of the diff tab for a file.
func DiffTabID(fileID string) string { return "diff-" + fileID }

// Tabs is the ordered set of open tabs. It is safe for concurrent use.
type Tabs struct {
	mu     sync.RWMutex
	tabs   []Tab
	active string
}

// NewTabs returns an empty tab set.
func NewTabs() *Tabs { return &Tabs{} }

func (t *Tabs) find(id string) int {
	for i := range t.tabs {
		if t.tabs[i].ID == id {
			return i
		}
	}
	return -1
}

// Open shows f in a tab and activates it. An existing tab is reused.
func (t *Tabs) Open(f project.File) Tab {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.find(f.ID); i >= 0 {
		t.tabs[i].Path = f.Path
		t.tabs[i].Title = f.Name
		t.active = f.ID
		return t.tabs[i]
	}
	tab := Tab{
		ID:       f.ID,
		Kind:     TabFile,
		FileID:   f.ID,
		Path:     f.Path,
		Title:    f.Name,
		Language: Language(f.Name),
		Icon:     IconType(f.Name),
	}
	t.tabs = append(t.tabs, tab)
	t.active = tab.ID
	return tab
}

// OpenDiff shows original against modified for a file and activates the diff
// tab. An empty prefix selects DiffPrefix. Reopening replaces both sides.
func (t *Tabs) OpenDiff(fileID, filePath, original, modified, prefix string) Tab {
	if prefix == "" {
		prefix = DiffPrefix
	}
	name := path.Base(filePath)
	tab := Tab{
		ID:       DiffTabID(fileID),
		Kind:     TabDiff,
		FileID:   fileID,
		Path:     filePath,
		Title:    prefix + name,
		Language: Language(name),
		Original: original,
		Modified: modified,
		Diff:     diff.Compute(filePath, original, modified),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.find(tab.ID); i >= 0 {
		t.tabs[i] = tab
	} else {
		t.tabs = append(t.tabs, tab)
	}
	t.active = tab.ID
	return tab
}

// Activate makes the tab with id active.
func (t *Tabs) Activate(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.find(id) < 0 {
		return ErrTabNotFound
	}
	t.active = id
	return nil
}

// Close removes a tab. When it was active the first remaining tab becomes
// active. It reports whether a tab was removed.
func (t *Tabs) Close(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked(id)
}

func (t *Tabs) closeLocked(id string) bool {
	i := t.find(id)
	if i < 0 {
		return false
	}
	t.tabs = append(t.tabs[:i], t.tabs[i+1:]...)
	if t.active == id {
		t.active = ""
		if len(t.tabs) > 0 {
			t.active = t.tabs[0].ID
		}
	}
	return true
}

// CloseFile closes both the file tab and the diff tab of a file.
func (t *Tabs) CloseFile(fileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked(fileID)
	t.closeLocked(DiffTabID(fileID))
}

// Rename updates the path and title of a file's tabs after a rename or move.
func (t *Tabs) Rename(fileID, newPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	name := path.Base(newPath)
	for i := range t.tabs {
		tab := &t.tabs[i]
		if tab.FileID != fileID {
			continue
		}
		tab.Path = newPath
		tab.Language = Language(name)
		if tab.Kind == TabFile {
			tab.Title = name
			tab.Icon = IconType(name)
		}
	}
}

// Active returns the active tab.
func (t *Tabs) Active() (Tab, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.find(t.active); i >= 0 {
		return t.tabs[i], true
	}
	return Tab{}, false
}

// CurrentFileID returns the file shown in the active tab. A diff tab has no
// current file.
func (t *Tabs) CurrentFileID() string {
	tab, ok := t.Active()
	if !ok || tab.Kind != TabFile {
		return ""
	}
	return tab.FileID
}

// OpenFileIDs returns the files open in file tabs, in tab order.
func (t *Tabs) OpenFileIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []string
	for _, tab := range t.tabs {
		if tab.Kind == TabFile {
			ids = append(ids, tab.FileID)
		}
	}
	return ids
}

// List returns the open tabs in order.
func (t *Tabs) List() []Tab {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Tab(nil), t.tabs...)
}
