package index

import (
	"context"
	"path"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"golang.org/x/net/html"

	"codex/internal/logging"
)

// SymbolKind classifies a declaration found in a file.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolClass     SymbolKind = "class"
	SymbolMethod    SymbolKind = "method"
	SymbolInterface SymbolKind = "interface"
	SymbolType      SymbolKind = "type"
	SymbolVariable  SymbolKind = "variable"
	SymbolID        SymbolKind = "id"
	SymbolCSSClass  SymbolKind = "class-selector"
)

// Symbol is a named declaration with its 1-based line.
type Symbol struct {
	Name     string     `json:"name"`
	Kind     SymbolKind `json:"kind"`
	Line     int        `json:"line"`
	Parent   string     `json:"parent,omitempty"`
	Exported bool       `json:"exported,omitempty"`
}

// SymbolRef locates a symbol in the index.
type SymbolRef struct {
	Symbol
	FileID string `json:"fileId"`
	Path   string `json:"path"`
}

// ExtractSymbols returns the declarations of a JS/TS, HTML or CSS file.
// Other file types have none.
func ExtractSymbols(name, fileType, content string) []Symbol {
	switch fileType {
	case "javascript", "typescript":
		return scriptSymbols(name, content)
	case "html":
		return htmlSymbols(content)
	case "css":
		return cssSymbols(content)
	}
	return nil
}

// =============================================================================
// JS / TS (tree-sitter)
// =============================================================================

func scriptLanguage(name string) *sitter.Language {
	switch strings.ToLower(path.Ext(name)) {
	case ".ts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	}
	return javascript.GetLanguage()
}

func scriptSymbols(name, content string) []Symbol {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(scriptLanguage(name))

	src := []byte(content)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		logging.IndexWarn("symbol parse failed for %s: %v", name, err)
		return nil
	}
	defer tree.Close()

	var out []Symbol
	walkScript(tree.RootNode(), src, "", &out)
	return out
}

func walkScript(node *sitter.Node, src []byte, parent string, out *[]Symbol) {
	text := func(n *sitter.Node) string { return string(src[n.StartByte():n.EndByte()]) }
	exported := func(n *sitter.Node) bool {
		p := n.Parent()
		return p != nil && p.Type() == "export_statement"
	}
	named := func(n *sitter.Node, kind SymbolKind) (Symbol, bool) {
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return Symbol{}, false
		}
		return Symbol{
			Name:     text(nameNode),
			Kind:     kind,
			Line:     int(n.StartPoint().Row) + 1,
			Parent:   parent,
			Exported: exported(n),
		}, true
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_declaration":
			if s, ok := named(child, SymbolClass); ok {
				*out = append(*out, s)
				if body := child.ChildByFieldName("body"); body != nil {
					walkScript(body, src, s.Name, out)
				}
			}
		case "function_declaration", "generator_function_declaration":
			if s, ok := named(child, SymbolFunction); ok {
				*out = append(*out, s)
			}
		case "method_definition":
			if s, ok := named(child, SymbolMethod); ok {
				*out = append(*out, s)
			}
		case "interface_declaration":
			if s, ok := named(child, SymbolInterface); ok {
				*out = append(*out, s)
			}
		case "type_alias_declaration":
			if s, ok := named(child, SymbolType); ok {
				*out = append(*out, s)
			}
		case "lexical_declaration", "variable_declaration":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				decl := child.NamedChild(j)
				if decl.Type() != "variable_declarator" {
					continue
				}
				nameNode := decl.ChildByFieldName("name")
				if nameNode == nil || nameNode.Type() != "identifier" {
					continue
				}
				kind := SymbolVariable
				if v := decl.ChildByFieldName("value"); v != nil {
					switch v.Type() {
					case "arrow_function", "function", "function_expression":
						kind = SymbolFunction
					case "class":
						kind = SymbolClass
					}
				}
				*out = append(*out, Symbol{
					Name:     text(nameNode),
					Kind:     kind,
					Line:     int(decl.StartPoint().Row) + 1,
					Parent:   parent,
					Exported: exported(child),
				})
			}
		case "statement_block", "function_body":
			// Locals are not symbols.
		default:
			walkScript(child, src, parent, out)
		}
	}
}

// =============================================================================
// HTML (x/net/html tokenizer)
// =============================================================================

func htmlSymbols(content string) []Symbol {
	z := html.NewTokenizer(strings.NewReader(content))
	seen := map[string]bool{}
	var out []Symbol
	line := 1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			tok := z.Token()
			for _, a := range tok.Attr {
				switch a.Key {
				case "id":
					if id := strings.TrimSpace(a.Val); id != "" && !seen["#"+id] {
						seen["#"+id] = true
						out = append(out, Symbol{Name: id, Kind: SymbolID, Line: line})
					}
				case "class":
					for _, c := range strings.Fields(a.Val) {
						if !seen["."+c] {
							seen["."+c] = true
							out = append(out, Symbol{Name: c, Kind: SymbolCSSClass, Line: line})
						}
					}
				}
			}
		}
		line += strings.Count(string(raw), "\n")
	}
	return out
}

// =============================================================================
// CSS (selectors)
// =============================================================================

var (
	cssComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	cssBlock    = regexp.MustCompile(`(?s)\{[^{}]*\}`)
	cssSelector = regexp.MustCompile(`([.#])(-?[_a-zA-Z][_a-zA-Z0-9-]*)`)
)

func cssSymbols(content string) []Symbol {
	// Blank out comments and innermost declaration blocks, keeping newlines,
	// so selectors stay at their original offsets.
	blank := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == '\n' {
				return r
			}
			return ' '
		}, s)
	}
	stripped := cssComment.ReplaceAllStringFunc(content, blank)
	stripped = cssBlock.ReplaceAllStringFunc(stripped, func(s string) string {
		return "{" + blank(s[1:len(s)-1]) + "}"
	})

	seen := map[string]bool{}
	var out []Symbol
	for _, m := range cssSelector.FindAllStringSubmatchIndex(stripped, -1) {
		sigil := stripped[m[2]:m[3]]
		name := stripped[m[4]:m[5]]
		if seen[sigil+name] {
			continue
		}
		seen[sigil+name] = true
		kind := SymbolCSSClass
		if sigil == "#" {
			kind = SymbolID
		}
		out = append(out, Symbol{Name: name, Kind: kind, Line: strings.Count(stripped[:m[0]], "\n") + 1})
	}
	return out
}

// =============================================================================
// LOOKUP
// =============================================================================

// FindSymbol returns every indexed symbol named name, ordered by path then line.
func (ix *Index) FindSymbol(name string) []SymbolRef {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []SymbolRef
	for _, e := range ix.entries {
		for _, s := range e.Symbols {
			if s.Name == name {
				out = append(out, SymbolRef{Symbol: s, FileID: e.FileID, Path: e.Path})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Line < out[j].Line
	})
	return out
}
