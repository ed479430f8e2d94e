package workspace

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"codex/internal/project"
)

var (
	ErrFileNotFound   = errors.New("file not found")
	ErrFolderNotFound = errors.New("folder not found")
	ErrParentNotFound = errors.New("parent folder not found")
	ErrFileExists     = errors.New("file already exists")
	ErrFolderExists   = errors.New("folder already exists")
	ErrRootFolder     = errors.New("the root folder cannot be changed")
	ErrInvalidTarget  = errors.New("cannot move or copy a folder into itself")
)

// ChangeKind classifies a file change recorded by a Tx.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
	ChangeMoved   ChangeKind = "moved"
)

// Change describes what happened to one file. File is the state after the
// change (before it, for deletions).
type Change struct {
	Kind    ChangeKind
	File    project.File
	OldPath string
}

// Tx applies mutations to one project copy. It is only valid inside Batch.
type Tx struct {
	p       *project.Project
	now     time.Time
	newID   func() string
	changes []Change
}

func newTx(p *project.Project, now time.Time, newID func() string) *Tx {
	p.EnsureRoot(now)
	return &Tx{p: p, now: now, newID: newID}
}

// Changes returns the file changes recorded so far.
func (tx *Tx) Changes() []Change {
	return append([]Change(nil), tx.changes...)
}

// Project exposes the project being edited.
func (tx *Tx) Project() *project.Project { return tx.p }

func (tx *Tx) record(kind ChangeKind, f project.File, oldPath string) {
	tx.changes = append(tx.changes, Change{Kind: kind, File: f, OldPath: oldPath})
}

func (tx *Tx) pathTaken(p string) error {
	if tx.p.FileByPath(p) != nil {
		return fmt.Errorf("%w: %s", ErrFileExists, p)
	}
	if tx.p.FolderIndex(p) >= 0 {
		return fmt.Errorf("%w: %s", ErrFolderExists, p)
	}
	return nil
}

func (tx *Tx) touchFolder(p string) {
	if i := tx.p.FolderIndex(CleanPath(p)); i >= 0 {
		tx.p.Folders[i].LastModified = tx.now
	}
}

// File returns the file with id.
func (tx *Tx) File(id string) (*project.File, error) {
	i := tx.p.FileIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("%w with ID: %s", ErrFileNotFound, id)
	}
	return &tx.p.Files[i], nil
}

// FileByPath returns the file at p.
func (tx *Tx) FileByPath(p string) (*project.File, error) {
	f := tx.p.FileByPath(CleanPath(p))
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, CleanPath(p))
	}
	return f, nil
}

// CreateFile adds a file to an existing folder. A nil content selects the
// default template for the file's extension.
func (tx *Tx) CreateFile(name, folderPath string, content *string) (project.File, error) {
	if err := project.ValidateName(name); err != nil {
		return project.File{}, fmt.Errorf("%w: %q", err, name)
	}
	dir := CleanPath(folderPath)
	if tx.p.FolderIndex(dir) < 0 {
		return project.File{}, fmt.Errorf("%w: %s", ErrFolderNotFound, dir)
	}
	norm := NormalizeFolderPath(dir)
	full := norm + name
	if err := tx.pathTaken(full); err != nil {
		return project.File{}, err
	}

	body := DefaultContent(name)
	if content != nil {
		body = *content
	}
	f := project.File{
		ID:           tx.newID(),
		Name:         name,
		Path:         full,
		FolderPath:   norm,
		Content:      body,
		CreatedAt:    tx.now,
		LastModified: tx.now,
	}
	tx.p.Files = append(tx.p.Files, f)
	tx.touchFolder(dir)
	tx.record(ChangeCreated, f, "")
	return f, nil
}

// CreateFolder adds a folder under an existing parent.
func (tx *Tx) CreateFolder(name, parentPath string) (project.Folder, error) {
	if err := project.ValidateName(name); err != nil {
		return project.Folder{}, fmt.Errorf("%w: %q", err, name)
	}
	parent := CleanPath(parentPath)
	if tx.p.FolderIndex(parent) < 0 {
		return project.Folder{}, fmt.Errorf("%w: %s", ErrParentNotFound, parent)
	}
	norm := NormalizeFolderPath(parent)
	full := norm + name
	if err := tx.pathTaken(full); err != nil {
		return project.Folder{}, err
	}

	f := project.Folder{
		ID:           tx.newID(),
		Name:         name,
		Path:         full,
		ParentPath:   norm,
		CreatedAt:    tx.now,
		LastModified: tx.now,
	}
	tx.p.Folders = append(tx.p.Folders, f)
	tx.touchFolder(parent)
	return f, nil
}

// MkdirAll creates p and any missing ancestors.
func (tx *Tx) MkdirAll(p string) error {
	clean := CleanPath(p)
	if clean == "/" || tx.p.FolderIndex(clean) >= 0 {
		return nil
	}
	parent := path.Dir(clean)
	if err := tx.MkdirAll(parent); err != nil {
		return err
	}
	_, err := tx.CreateFolder(path.Base(clean), parent)
	return err
}

// UpdateFileContent replaces a file's content and returns the previous content.
func (tx *Tx) UpdateFileContent(id, content string) (string, error) {
	f, err := tx.File(id)
	if err != nil {
		return "", err
	}
	old := f.Content
	f.Content = content
	f.LastModified = tx.now
	tx.record(ChangeUpdated, *f, "")
	return old, nil
}

// RenameFile renames a file in place.
func (tx *Tx) RenameFile(id, newName string) (project.File, error) {
	if err := project.ValidateName(newName); err != nil {
		return project.File{}, fmt.Errorf("%w: %q", err, newName)
	}
	f, err := tx.File(id)
	if err != nil {
		return project.File{}, err
	}
	if f.Name == newName {
		return *f, nil
	}
	full := f.FolderPath + newName
	if err := tx.pathTaken(full); err != nil {
		return project.File{}, err
	}
	old := f.Path
	f.Name = newName
	f.Path = full
	f.LastModified = tx.now
	tx.record(ChangeMoved, *f, old)
	return *f, nil
}

// RenameFolder renames a folder; every descendant folder and file follows.
func (tx *Tx) RenameFolder(folderPath, newName string) (project.Folder, error) {
	if err := project.ValidateName(newName); err != nil {
		return project.Folder{}, fmt.Errorf("%w: %q", err, newName)
	}
	src := CleanPath(folderPath)
	if src == "/" {
		return project.Folder{}, ErrRootFolder
	}
	i := tx.p.FolderIndex(src)
	if i < 0 {
		return project.Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, src)
	}
	dst := NormalizeFolderPath(path.Dir(src)) + newName
	if dst == src {
		return tx.p.Folders[i], nil
	}
	if err := tx.pathTaken(dst); err != nil {
		return project.Folder{}, err
	}
	tx.relocate(src, dst)
	return tx.p.Folders[tx.p.FolderIndex(dst)], nil
}

// MoveFolder moves a folder (and its subtree) under targetParent.
func (tx *Tx) MoveFolder(folderPath, targetParent string) (project.Folder, error) {
	src := CleanPath(folderPath)
	parent := CleanPath(targetParent)
	if src == "/" {
		return project.Folder{}, ErrRootFolder
	}
	i := tx.p.FolderIndex(src)
	if i < 0 {
		return project.Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, src)
	}
	if tx.p.FolderIndex(parent) < 0 {
		return project.Folder{}, fmt.Errorf("%w: %s", ErrParentNotFound, parent)
	}
	if isWithin(parent, src) {
		return project.Folder{}, fmt.Errorf("%w: %s into %s", ErrInvalidTarget, src, parent)
	}
	dst := NormalizeFolderPath(parent) + tx.p.Folders[i].Name
	if dst == src {
		return tx.p.Folders[i], nil
	}
	if err := tx.pathTaken(dst); err != nil {
		return project.Folder{}, err
	}
	tx.relocate(src, dst)
	tx.touchFolder(parent)
	return tx.p.Folders[tx.p.FolderIndex(dst)], nil
}

// relocate rewrites every folder and file path under src to live under dst.
func (tx *Tx) relocate(src, dst string) {
	for i := range tx.p.Folders {
		f := &tx.p.Folders[i]
		switch {
		case f.Path == src:
			f.Path = dst
			f.Name = path.Base(dst)
			f.ParentPath = NormalizeFolderPath(path.Dir(dst))
			f.LastModified = tx.now
		case strings.HasPrefix(f.Path, src+"/"):
			f.Path = dst + strings.TrimPrefix(f.Path, src)
			f.ParentPath = NormalizeFolderPath(path.Dir(f.Path))
		}
	}
	for i := range tx.p.Files {
		f := &tx.p.Files[i]
		if !strings.HasPrefix(f.FolderPath, src+"/") {
			continue
		}
		old := f.Path
		f.FolderPath = dst + strings.TrimPrefix(f.FolderPath, src)
		f.Path = f.FolderPath + f.Name
		tx.record(ChangeMoved, *f, old)
	}
}

// DeleteFile removes a file.
func (tx *Tx) DeleteFile(id string) (project.File, error) {
	i := tx.p.FileIndex(id)
	if i < 0 {
		return project.File{}, fmt.Errorf("%w with ID: %s", ErrFileNotFound, id)
	}
	f := tx.p.Files[i]
	tx.p.Files = append(tx.p.Files[:i], tx.p.Files[i+1:]...)
	tx.record(ChangeDeleted, f, "")
	return f, nil
}

// DeleteFolder removes a folder, its subfolders and every file beneath it.
func (tx *Tx) DeleteFolder(folderPath string) ([]project.File, error) {
	target := CleanPath(folderPath)
	if target == "/" {
		return nil, ErrRootFolder
	}
	if tx.p.FolderIndex(target) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, target)
	}

	folders := tx.p.Folders[:0]
	for _, f := range tx.p.Folders {
		if !isWithin(f.Path, target) {
			folders = append(folders, f)
		}
	}
	tx.p.Folders = folders

	var removed []project.File
	files := tx.p.Files[:0]
	for _, f := range tx.p.Files {
		if strings.HasPrefix(f.FolderPath, target+"/") {
			removed = append(removed, f)
			tx.record(ChangeDeleted, f, "")
			continue
		}
		files = append(files, f)
	}
	tx.p.Files = files
	return removed, nil
}

// CopyFile duplicates a file to destPath. The destination folder must exist.
func (tx *Tx) CopyFile(id, destPath string) (project.File, error) {
	src, err := tx.File(id)
	if err != nil {
		return project.File{}, err
	}
	dir, name := SplitPath(destPath)
	content := src.Content
	return tx.CreateFile(name, dir, &content)
}

// MoveFile moves a file to destPath, keeping its ID. The destination folder must exist.
func (tx *Tx) MoveFile(id, destPath string) (project.File, error) {
	f, err := tx.File(id)
	if err != nil {
		return project.File{}, err
	}
	dir, name := SplitPath(destPath)
	if err := project.ValidateName(name); err != nil {
		return project.File{}, fmt.Errorf("%w: %q", err, name)
	}
	if tx.p.FolderIndex(dir) < 0 {
		return project.File{}, fmt.Errorf("%w: %s", ErrFolderNotFound, dir)
	}
	norm := NormalizeFolderPath(dir)
	if norm+name == f.Path {
		return *f, nil
	}
	if err := tx.pathTaken(norm + name); err != nil {
		return project.File{}, err
	}
	old := f.Path
	f.Name = name
	f.FolderPath = norm
	f.Path = norm + name
	f.LastModified = tx.now
	tx.touchFolder(dir)
	tx.record(ChangeMoved, *f, old)
	return *f, nil
}

// CopyFolder duplicates src (with its subtree and file contents) under targetParent.
func (tx *Tx) CopyFolder(src, targetParent string) (project.Folder, error) {
	return tx.CopyFolderAs(src, targetParent, "")
}

// CopyFolderAs is CopyFolder with the clone named name; empty keeps the source name.
func (tx *Tx) CopyFolderAs(src, targetParent, name string) (project.Folder, error) {
	source := CleanPath(src)
	parent := CleanPath(targetParent)
	if source == "/" {
		return project.Folder{}, ErrRootFolder
	}
	si := tx.p.FolderIndex(source)
	if si < 0 {
		return project.Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, source)
	}
	if isWithin(parent, source) {
		return project.Folder{}, fmt.Errorf("%w: %s into %s", ErrInvalidTarget, source, parent)
	}

	// Snapshot the subtree before creating anything.
	var subfolders []project.Folder
	for _, f := range tx.p.Folders {
		if strings.HasPrefix(f.Path, source+"/") {
			subfolders = append(subfolders, f)
		}
	}
	sort.Slice(subfolders, func(i, j int) bool { return len(subfolders[i].Path) < len(subfolders[j].Path) })
	var files []project.File
	for _, f := range tx.p.Files {
		if strings.HasPrefix(f.FolderPath, source+"/") {
			files = append(files, f)
		}
	}

	if name == "" {
		name = tx.p.Folders[si].Name
	}
	root, err := tx.CreateFolder(name, parent)
	if err != nil {
		return project.Folder{}, err
	}
	mapping := map[string]string{source: root.Path}
	for _, sub := range subfolders {
		newParent, ok := mapping[CleanPath(sub.ParentPath)]
		if !ok {
			continue
		}
		created, err := tx.CreateFolder(sub.Name, newParent)
		if err != nil {
			return project.Folder{}, err
		}
		mapping[sub.Path] = created.Path
	}
	for _, f := range files {
		newDir, ok := mapping[CleanPath(f.FolderPath)]
		if !ok {
			continue
		}
		content := f.Content
		if _, err := tx.CreateFile(f.Name, newDir, &content); err != nil {
			return project.Folder{}, err
		}
	}
	return root, nil
}
