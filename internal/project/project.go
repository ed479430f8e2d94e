// Package project holds the project records and the manager that persists them
// as one JSON value in the key/value store.
package project

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidProjectFile = errors.New("invalid project file")
)

// RootID is the ID of every project's root folder.
const RootID = "root"

// Project is a named collection of files and folders.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	Files        []File    `json:"files"`
	Folders      []Folder  `json:"folders,omitempty"`
}

// File is a text file. FolderPath always ends with "/" and Path = FolderPath + Name.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	FolderPath   string    `json:"folderPath"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// Folder is a directory node. The root folder has Path "/" and no parent.
// ParentPath is normalized like File.FolderPath.
type Folder struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	ParentPath   string    `json:"parentPath,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// Clone returns a deep copy.
func (p *Project) Clone() *Project {
	c := *p
	c.Files = append([]File(nil), p.Files...)
	c.Folders = append([]Folder(nil), p.Folders...)
	return &c
}

// EnsureRoot adds the root folder when missing.
func (p *Project) EnsureRoot(now time.Time) {
	for i := range p.Folders {
		if p.Folders[i].Path == "/" {
			return
		}
	}
	root := Folder{
		ID:           RootID,
		Name:         p.Name,
		Path:         "/",
		CreatedAt:    now,
		LastModified: now,
	}
	p.Folders = append([]Folder{root}, p.Folders...)
}

// FileIndex returns the slice index of the file with id, or -1.
func (p *Project) FileIndex(id string) int {
	for i := range p.Files {
		if p.Files[i].ID == id {
			return i
		}
	}
	return -1
}

// FileByPath returns the file at path, or nil.
func (p *Project) FileByPath(path string) *File {
	for i := range p.Files {
		if p.Files[i].Path == path {
			return &p.Files[i]
		}
	}
	return nil
}

// FolderIndex returns the slice index of the folder at path, or -1.
func (p *Project) FolderIndex(path string) int {
	for i := range p.Folders {
		if p.Folders[i].Path == path {
			return i
		}
	}
	return -1
}

// ValidateName rejects empty names, names containing a path separator, and
// the relative path elements "." and "..".
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == "." || trimmed == ".." || strings.Contains(name, "/") {
		return ErrInvalidName
	}
	return nil
}
