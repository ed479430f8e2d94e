// Package workspace implements the file tree of one project: the explorer's
// read side and every file/folder mutation, applied atomically through the
// project manager.
package workspace

import (
	"context"
	"sort"

	"codex/internal/logging"
	"codex/internal/project"
)

// Workspace is a view over one project held by a project.Manager.
type Workspace struct {
	projects  *project.Manager
	projectID string
}

// Open binds a workspace to an existing project.
func Open(m *project.Manager, projectID string) (*Workspace, error) {
	if _, err := m.Get(projectID); err != nil {
		return nil, err
	}
	return &Workspace{projects: m, projectID: projectID}, nil
}

// ProjectID returns the bound project's ID.
func (w *Workspace) ProjectID() string { return w.projectID }

// Snapshot returns a copy of the project.
func (w *Workspace) Snapshot() (*project.Project, error) {
	p, err := w.projects.Get(w.projectID)
	if err != nil {
		return nil, err
	}
	p.EnsureRoot(w.projects.Now())
	return p, nil
}

// Batch runs fn inside one project update. Either every mutation fn makes is
// kept, or none is. The recorded file changes are returned on success.
func (w *Workspace) Batch(ctx context.Context, fn func(tx *Tx) error) ([]Change, error) {
	var changes []Change
	err := w.projects.Update(ctx, w.projectID, func(p *project.Project) error {
		tx := newTx(p, w.projects.Now(), w.projects.NewID)
		if err := fn(tx); err != nil {
			return err
		}
		changes = tx.Changes()
		return nil
	})
	if err != nil {
		logging.WorkspaceDebug("Batch on %s rolled back: %v", w.projectID, err)
		return nil, err
	}
	logging.WorkspaceDebug("Batch on %s committed %d file changes", w.projectID, len(changes))
	return changes, nil
}

// View runs fn against a private copy of the project. Mutations fn makes are
// discarded and nothing is persisted.
func (w *Workspace) View(fn func(tx *Tx) error) error {
	p, err := w.Snapshot()
	if err != nil {
		return err
	}
	return fn(newTx(p, w.projects.Now(), w.projects.NewID))
}

// =============================================================================
// READS
// =============================================================================

// Files returns every file in the project.
func (w *Workspace) Files() ([]project.File, error) {
	p, err := w.Snapshot()
	if err != nil {
		return nil, err
	}
	return p.Files, nil
}

// File returns one file by ID.
func (w *Workspace) File(id string) (project.File, error) {
	p, err := w.Snapshot()
	if err != nil {
		return project.File{}, err
	}
	f, err := newTx(p, w.projects.Now(), nil).File(id)
	if err != nil {
		return project.File{}, err
	}
	return *f, nil
}

// FileByPath returns one file by path.
func (w *Workspace) FileByPath(path string) (project.File, error) {
	p, err := w.Snapshot()
	if err != nil {
		return project.File{}, err
	}
	f, err := newTx(p, w.projects.Now(), nil).FileByPath(path)
	if err != nil {
		return project.File{}, err
	}
	return *f, nil
}

// FileContent returns a file's content.
func (w *Workspace) FileContent(id string) (string, error) {
	f, err := w.File(id)
	if err != nil {
		return "", err
	}
	return f.Content, nil
}

// Folders returns every folder, root included.
func (w *Workspace) Folders() ([]project.Folder, error) {
	p, err := w.Snapshot()
	if err != nil {
		return nil, err
	}
	return p.Folders, nil
}

// Folder returns the folder at path.
func (w *Workspace) Folder(path string) (project.Folder, error) {
	p, err := w.Snapshot()
	if err != nil {
		return project.Folder{}, err
	}
	i := p.FolderIndex(CleanPath(path))
	if i < 0 {
		return project.Folder{}, ErrFolderNotFound
	}
	return p.Folders[i], nil
}

// FilesInFolder returns the files directly inside folderPath.
func (w *Workspace) FilesInFolder(folderPath string) ([]project.File, error) {
	p, err := w.Snapshot()
	if err != nil {
		return nil, err
	}
	norm := NormalizeFolderPath(folderPath)
	var out []project.File
	for _, f := range p.Files {
		if f.FolderPath == norm {
			out = append(out, f)
		}
	}
	return out, nil
}

// Subfolders returns the folders directly inside folderPath.
func (w *Workspace) Subfolders(folderPath string) ([]project.Folder, error) {
	p, err := w.Snapshot()
	if err != nil {
		return nil, err
	}
	norm := NormalizeFolderPath(folderPath)
	var out []project.Folder
	for _, f := range p.Folders {
		if f.Path != "/" && f.ParentPath == norm {
			out = append(out, f)
		}
	}
	return out, nil
}

// Node is one entry of the explorer tree.
type Node struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	IsDir    bool    `json:"isDir"`
	FileID   string  `json:"fileId,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Tree returns the explorer tree rooted at "/": folders first, then files,
// each sorted by name.
func (w *Workspace) Tree() (*Node, error) {
	p, err := w.Snapshot()
	if err != nil {
		return nil, err
	}

	nodes := map[string]*Node{"/": {Name: p.Name, Path: "/", IsDir: true}}
	folders := append([]project.Folder(nil), p.Folders...)
	sort.Slice(folders, func(i, j int) bool { return len(folders[i].Path) < len(folders[j].Path) })
	for _, f := range folders {
		if f.Path == "/" {
			continue
		}
		n := &Node{Name: f.Name, Path: f.Path, IsDir: true}
		nodes[f.Path] = n
		if parent, ok := nodes[CleanPath(f.ParentPath)]; ok {
			parent.Children = append(parent.Children, n)
		}
	}
	for _, f := range p.Files {
		parent, ok := nodes[CleanPath(f.FolderPath)]
		if !ok {
			parent = nodes["/"]
		}
		parent.Children = append(parent.Children, &Node{Name: f.Name, Path: f.Path, FileID: f.ID})
	}

	var sortNode func(n *Node)
	sortNode = func(n *Node) {
		sort.SliceStable(n.Children, func(i, j int) bool {
			a, b := n.Children[i], n.Children[j]
			if a.IsDir != b.IsDir {
				return a.IsDir
			}
			return a.Name < b.Name
		})
		for _, c := range n.Children {
			sortNode(c)
		}
	}
	root := nodes["/"]
	sortNode(root)
	return root, nil
}

// =============================================================================
// MUTATIONS - each is one atomic Batch
// =============================================================================

// CreateFile creates a file; nil content selects the default template.
func (w *Workspace) CreateFile(ctx context.Context, name, folderPath string, content *string) (project.File, error) {
	var f project.File
	_, err := w.Batch(ctx, func(tx *Tx) (err error) {
		f, err = tx.CreateFile(name, folderPath, content)
		return err
	})
	if err == nil {
		logging.Workspace("Created file %s", f.Path)
	}
	return f, err
}

// CreateFolder creates a folder under parentPath.
func (w *Workspace) CreateFolder(ctx context.Context, name, parentPath string) (project.Folder, error) {
	var f project.Folder
	_, err := w.Batch(ctx, func(tx *Tx) (err error) {
		f, err = tx.CreateFolder(name, parentPath)
		return err
	})
	if err == nil {
		logging.Workspace("Created folder %s", f.Path)
	}
	return f, err
}

// MkdirAll creates a folder path and its missing ancestors.
func (w *Workspace) MkdirAll(ctx context.Context, path string) error {
	_, err := w.Batch(ctx, func(tx *Tx) error { return tx.MkdirAll(path) })
	return err
}

// UpdateFileContent replaces a file's content.
func (w *Workspace) UpdateFileContent(ctx context.Context, id, content string) error {
	_, err := w.Batch(ctx, func(tx *Tx) error {
		_, err := tx.UpdateFileContent(id, content)
		return err
	})
	return err
}

// RenameFile renames a file.
func (w *Workspace) RenameFile(ctx context.Context, id, newName string) ([]Change, error) {
	return w.Batch(ctx, func(tx *Tx) error {
		_, err := tx.RenameFile(id, newName)
		return err
	})
}

// RenameFolder renames a folder and rewrites its subtree.
func (w *Workspace) RenameFolder(ctx context.Context, path, newName string) ([]Change, error) {
	return w.Batch(ctx, func(tx *Tx) error {
		_, err := tx.RenameFolder(path, newName)
		return err
	})
}

// DeleteFile removes a file.
func (w *Workspace) DeleteFile(ctx context.Context, id string) ([]Change, error) {
	return w.Batch(ctx, func(tx *Tx) error {
		_, err := tx.DeleteFile(id)
		return err
	})
}

// DeleteFolder removes a folder and everything beneath it.
func (w *Workspace) DeleteFolder(ctx context.Context, path string) ([]Change, error) {
	return w.Batch(ctx, func(tx *Tx) error {
		_, err := tx.DeleteFolder(path)
		return err
	})
}

// CopyFolder duplicates a folder subtree under targetParent.
func (w *Workspace) CopyFolder(ctx context.Context, src, targetParent string) (project.Folder, []Change, error) {
	var f project.Folder
	changes, err := w.Batch(ctx, func(tx *Tx) (err error) {
		f, err = tx.CopyFolder(src, targetParent)
		return err
	})
	return f, changes, err
}

// CopyFile duplicates a file to destPath.
func (w *Workspace) CopyFile(ctx context.Context, id, destPath string) (project.File, error) {
	var f project.File
	_, err := w.Batch(ctx, func(tx *Tx) (err error) {
		f, err = tx.CopyFile(id, destPath)
		return err
	})
	return f, err
}

// MoveFile moves a file to destPath.
func (w *Workspace) MoveFile(ctx context.Context, id, destPath string) (project.File, error) {
	var f project.File
	_, err := w.Batch(ctx, func(tx *Tx) (err error) {
		f, err = tx.MoveFile(id, destPath)
		return err
	})
	return f, err
}

// MoveFolder moves a folder under targetParent.
func (w *Workspace) MoveFolder(ctx context.Context, src, targetParent string) ([]Change, error) {
	return w.Batch(ctx, func(tx *Tx) error {
		_, err := tx.MoveFolder(src, targetParent)
		return err
	})
}
