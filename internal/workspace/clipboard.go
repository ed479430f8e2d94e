package workspace

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"codex/internal/logging"
)

// ErrClipboardEmpty is returned by Paste when nothing was copied or cut.
var ErrClipboardEmpty = errors.New("clipboard is empty")

// ClipOp is the clipboard operation.
type ClipOp string

const (
	ClipCopy ClipOp = "copy"
	ClipCut  ClipOp = "cut"
)

// ClipItem is what the clipboard holds: a file (by ID) or a folder (by path).
type ClipItem struct {
	Op         ClipOp `json:"op"`
	FileID     string `json:"fileId,omitempty"`
	FolderPath string `json:"folderPath,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (c ClipItem) IsFolder() bool { return c.FolderPath != "" }

// Clipboard holds at most one pending copy or cut.
type Clipboard struct {
	mu   sync.Mutex
	item *ClipItem
}

// CopyFile puts a file on the clipboard for copying.
func (c *Clipboard) CopyFile(id string) { c.set(ClipItem{Op: ClipCopy, FileID: id}) }

// CutFile puts a file on the clipboard for moving.
func (c *Clipboard) CutFile(id string) { c.set(ClipItem{Op: ClipCut, FileID: id}) }

// CopyFolder puts a folder on the clipboard for copying.
func (c *Clipboard) CopyFolder(p string) { c.set(ClipItem{Op: ClipCopy, FolderPath: CleanPath(p)}) }

// CutFolder puts a folder on the clipboard for moving.
func (c *Clipboard) CutFolder(p string) { c.set(ClipItem{Op: ClipCut, FolderPath: CleanPath(p)}) }

func (c *Clipboard) set(item ClipItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.item = &item
}

// Peek returns the clipboard content, if any.
func (c *Clipboard) Peek() (ClipItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.item == nil {
		return ClipItem{}, false
	}
	return *c.item, true
}

// Clear empties the clipboard.
func (c *Clipboard) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.item = nil
}

// Paste applies the clipboard into targetFolder as one batch. A copy whose
// name is already taken in the target gets a " copy" suffix; a cut moves the
// item and empties the clipboard.
func (c *Clipboard) Paste(ctx context.Context, w *Workspace, targetFolder string) ([]Change, error) {
	item, ok := c.Peek()
	if !ok {
		return nil, ErrClipboardEmpty
	}
	target := CleanPath(targetFolder)

	changes, err := w.Batch(ctx, func(tx *Tx) error {
		if tx.p.FolderIndex(target) < 0 {
			return fmt.Errorf("%w: %s", ErrFolderNotFound, target)
		}
		if item.IsFolder() {
			return pasteFolder(tx, item, target)
		}
		return pasteFile(tx, item, target)
	})
	if err != nil {
		return nil, err
	}
	if item.Op == ClipCut {
		c.Clear()
	}
	logging.Workspace("Pasted %s (%s) into %s", describe(item), item.Op, target)
	return changes, nil
}

func pasteFile(tx *Tx, item ClipItem, target string) error {
	f, err := tx.File(item.FileID)
	if err != nil {
		return err
	}
	if item.Op == ClipCut {
		_, err := tx.MoveFile(f.ID, NormalizeFolderPath(target)+f.Name)
		return err
	}
	name := tx.freeName(target, f.Name)
	_, err = tx.CopyFile(f.ID, NormalizeFolderPath(target)+name)
	return err
}

func pasteFolder(tx *Tx, item ClipItem, target string) error {
	if item.Op == ClipCut {
		_, err := tx.MoveFolder(item.FolderPath, target)
		return err
	}
	i := tx.p.FolderIndex(item.FolderPath)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, item.FolderPath)
	}
	_, err := tx.CopyFolderAs(item.FolderPath, target, tx.freeName(target, tx.p.Folders[i].Name))
	return err
}

// freeName returns name, or "base copy.ext", "base copy 2.ext" ... when
// name is already used inside dir.
func (tx *Tx) freeName(dir, name string) string {
	norm := NormalizeFolderPath(dir)
	if tx.pathTaken(norm+name) == nil {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base, ext = name, ""
	}
	for n := 1; ; n++ {
		candidate := base + " copy" + ext
		if n > 1 {
			candidate = fmt.Sprintf("%s copy %d%s", base, n, ext)
		}
		if tx.pathTaken(norm+candidate) == nil {
			return candidate
		}
	}
}

func describe(item ClipItem) string {
	if item.IsFolder() {
		return "folder " + item.FolderPath
	}
	return "file " + item.FileID
}
