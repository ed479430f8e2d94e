package index

import (
	"sort"
	"strings"
)

// StructureNode is a directory or file in the indexed project structure.
type StructureNode struct {
	Name     string           `json:"name"`
	Type     string           `json:"type"` // "directory" or "file"
	FileType string           `json:"fileType,omitempty"`
	Summary  string           `json:"summary,omitempty"`
	Children []*StructureNode `json:"children,omitempty"`
}

func (n *StructureNode) child(name string) *StructureNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Structure nests indexed files by path. Children are sorted by name.
func (ix *Index) Structure() *StructureNode {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	root := &StructureNode{Name: "/", Type: "directory"}
	for _, e := range ix.entries {
		parts := strings.FieldsFunc(e.Path, func(r rune) bool { return r == '/' })
		if len(parts) == 0 {
			continue
		}
		cur := root
		for i, part := range parts {
			if i == len(parts)-1 {
				cur.Children = append(cur.Children, &StructureNode{
					Name: part, Type: "file", FileType: e.FileType, Summary: e.Summary,
				})
				break
			}
			next := cur.child(part)
			if next == nil {
				next = &StructureNode{Name: part, Type: "directory"}
				cur.Children = append(cur.Children, next)
			}
			cur = next
		}
	}
	sortStructure(root)
	return root
}

func sortStructure(n *StructureNode) {
	sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].Name < n.Children[j].Name })
	for _, c := range n.Children {
		sortStructure(c)
	}
}

// Render draws the structure as an indented listing.
func (n *StructureNode) Render() string {
	var sb strings.Builder
	var walk func(node *StructureNode, depth int)
	walk = func(node *StructureNode, depth int) {
		for _, c := range node.Children {
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString(c.Name)
			if c.Type == "directory" {
				sb.WriteString("/")
			}
			sb.WriteString("\n")
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return sb.String()
}

// ContextFile is a file handed to the assistant as context.
type ContextFile struct {
	FileID   string `json:"fileId"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	FileType string `json:"fileType"`
}

// Context is what the assistant knows about the code around the focus.
type Context struct {
	MainFile         *ContextFile   `json:"mainFile,omitempty"`
	RelatedFiles     []ContextFile  `json:"relatedFiles"`
	ProjectStructure *StructureNode `json:"projectStructure"`
}

// RelatedPaths returns the related files' paths.
func (c *Context) RelatedPaths() []string {
	out := make([]string, len(c.RelatedFiles))
	for i, f := range c.RelatedFiles {
		out[i] = f.Path
	}
	return out
}

func contextFile(e *Entry) ContextFile {
	return ContextFile{FileID: e.FileID, Path: e.Path, Content: e.Content, FileType: e.FileType}
}

// ContextForFile builds the assistant context for fileID: the file itself,
// the explicitly open files, then files sharing more than MinOverlap tokens
// with it until RelatedLimit related files are collected.
func (ix *Index) ContextForFile(fileID string, openFileIDs []string) *Context {
	structure := ix.Structure()

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ctx := &Context{RelatedFiles: []ContextFile{}, ProjectStructure: structure}
	main, ok := ix.entries[fileID]
	if ok {
		mf := contextFile(main)
		ctx.MainFile = &mf
	}

	skip := map[string]bool{fileID: true}
	for _, id := range openFileIDs {
		if skip[id] {
			continue
		}
		skip[id] = true
		if e, ok := ix.entries[id]; ok {
			ctx.RelatedFiles = append(ctx.RelatedFiles, contextFile(e))
		}
	}
	if !ok || len(ctx.RelatedFiles) >= ix.opts.RelatedLimit {
		return ctx
	}

	mainTokens := make(map[string]struct{}, len(main.Tokens))
	for _, t := range main.Tokens {
		mainTokens[t] = struct{}{}
	}
	candidates := make([]*Entry, 0, len(ix.entries))
	for id, e := range ix.entries {
		if !skip[id] {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Path < candidates[j].Path })

	for _, e := range candidates {
		overlap := 0
		for _, t := range e.Tokens {
			if _, ok := mainTokens[t]; ok {
				overlap++
			}
		}
		if overlap <= ix.opts.MinOverlap {
			continue
		}
		ctx.RelatedFiles = append(ctx.RelatedFiles, contextFile(e))
		if len(ctx.RelatedFiles) >= ix.opts.RelatedLimit {
			break
		}
	}
	return ctx
}
