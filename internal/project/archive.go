package project

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"codex/internal/logging"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatZip  Format = "zip"
)

// metaEntry holds project metadata inside zip exports.
const metaEntry = ".codex/project.json"

// Export is a serialized project ready to be written to disk.
type Export struct {
	ProjectName string
	FileName    string
	ContentType string
	Data        []byte
}

type archiveMeta struct {
	Name    string   `json:"name"`
	Folders []string `json:"folders"`
}

// Export serializes a project as its JSON record or as a zip of its files.
func (m *Manager) Export(id string, format Format) (*Export, error) {
	p, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal project: %w", err)
		}
		return &Export{ProjectName: p.Name, FileName: p.Name + ".json", ContentType: "application/json", Data: data}, nil
	case FormatZip:
		data, err := zipProject(p)
		if err != nil {
			return nil, err
		}
		return &Export{ProjectName: p.Name, FileName: p.Name + ".zip", ContentType: "application/zip", Data: data}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

func zipProject(p *Project) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	meta := archiveMeta{Name: p.Name}
	for _, f := range p.Folders {
		if f.Path != "/" {
			meta.Folders = append(meta.Folders, f.Path)
		}
	}
	sort.Strings(meta.Folders)
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	w, err := zw.Create(metaEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to write zip metadata: %w", err)
	}
	if _, err := w.Write(metaRaw); err != nil {
		return nil, err
	}

	for _, f := range p.Files {
		hdr := &zip.FileHeader{Name: strings.TrimPrefix(f.Path, "/"), Method: zip.Deflate}
		hdr.Modified = f.LastModified
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.Path, err)
		}
		if _, err := io.WriteString(w, f.Content); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish zip: %w", err)
	}
	return buf.Bytes(), nil
}

// Import creates a new project from a JSON or zip export. fileName supplies the
// project name when the payload has none.
func (m *Manager) Import(ctx context.Context, fileName string, data []byte) (*Project, error) {
	var (
		p   *Project
		err error
	)
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		p, err = m.fromZip(data)
	} else {
		p, err = m.fromJSON(data)
	}
	if err != nil {
		logging.ProjectError("Import of %s failed: %v", fileName, err)
		return nil, err
	}

	if strings.TrimSpace(p.Name) == "" {
		base := path.Base(fileName)
		base = strings.TrimSuffix(base, ".zip")
		base = strings.TrimSuffix(base, ".json")
		p.Name = base
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = "Imported project"
	}

	now := m.now()
	p.ID = m.newID()
	p.CreatedAt = now
	p.LastModified = now
	p.EnsureRoot(now)
	if i := p.FolderIndex("/"); i >= 0 {
		p.Folders[i].Name = p.Name
	}

	if err := m.add(ctx, p); err != nil {
		return nil, err
	}
	logging.Audit(p.ID).Log(logging.AuditEvent{
		EventType: logging.AuditProjectImport,
		Target:    fileName,
		Success:   true,
		Fields:    map[string]interface{}{"files": len(p.Files)},
	})
	logging.Project("Imported project %s with %d files", p.Name, len(p.Files))
	return p.Clone(), nil
}

// importFile is the lenient shape accepted from JSON exports.
type importFile struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	FolderPath string `json:"folderPath"`
	Content    string `json:"content"`
}

type importProject struct {
	Name    string       `json:"name"`
	Files   []importFile `json:"files"`
	Folders []struct {
		Path string `json:"path"`
	} `json:"folders"`
}

func (m *Manager) fromJSON(data []byte) (*Project, error) {
	// Unmarshal accepts null into a struct; an export is always an object.
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return nil, ErrInvalidProjectFile
	}
	var in importProject
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, ErrInvalidProjectFile
	}

	b := newTreeBuilder(m)
	for _, f := range in.Folders {
		b.folder(f.Path)
	}
	for _, f := range in.Files {
		p := f.Path
		if p == "" {
			dir := f.FolderPath
			if dir == "" {
				dir = "/"
			}
			p = path.Join(dir, f.Name)
		}
		if err := b.file(p, f.Content); err != nil {
			return nil, err
		}
	}
	return &Project{Name: in.Name, Files: b.files, Folders: b.folders}, nil
}

func (m *Manager) fromZip(data []byte) (*Project, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ErrInvalidProjectFile
	}

	b := newTreeBuilder(m)
	var meta archiveMeta
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProjectFile, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProjectFile, err)
		}

		switch {
		case zf.Name == metaEntry:
			if err := json.Unmarshal(content, &meta); err != nil {
				return nil, ErrInvalidProjectFile
			}
		case zf.FileInfo().IsDir():
			b.folder("/" + zf.Name)
		default:
			if err := b.file("/"+zf.Name, string(content)); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range meta.Folders {
		b.folder(f)
	}
	return &Project{Name: meta.Name, Files: b.files, Folders: b.folders}, nil
}

// treeBuilder assembles files and their ancestor folders with fresh IDs.
type treeBuilder struct {
	m       *Manager
	files   []File
	folders []Folder
	seen    map[string]bool
	paths   map[string]bool
}

func newTreeBuilder(m *Manager) *treeBuilder {
	return &treeBuilder{m: m, files: []File{}, seen: map[string]bool{"/": true}, paths: map[string]bool{}}
}

func (b *treeBuilder) folder(p string) {
	p = path.Clean("/" + p)
	if b.seen[p] {
		return
	}
	b.folder(path.Dir(p))
	b.seen[p] = true
	now := b.m.now()
	parent := path.Dir(p)
	if parent != "/" {
		parent += "/"
	}
	b.folders = append(b.folders, Folder{
		ID:           b.m.newID(),
		Name:         path.Base(p),
		Path:         p,
		ParentPath:   parent,
		CreatedAt:    now,
		LastModified: now,
	})
}

func (b *treeBuilder) file(p, content string) error {
	p = path.Clean("/" + p)
	name := path.Base(p)
	if p == "/" || ValidateName(name) != nil {
		return fmt.Errorf("%w: bad file path %q", ErrInvalidProjectFile, p)
	}
	if b.paths[p] {
		return fmt.Errorf("%w: duplicate file %s", ErrInvalidProjectFile, p)
	}
	b.paths[p] = true

	dir := path.Dir(p)
	b.folder(dir)
	folderPath := dir
	if folderPath != "/" {
		folderPath += "/"
	}
	now := b.m.now()
	b.files = append(b.files, File{
		ID:           b.m.newID(),
		Name:         name,
		Path:         p,
		FolderPath:   folderPath,
		Content:      content,
		CreatedAt:    now,
		LastModified: now,
	})
	return nil
}
