package editor

import (
	"path"
	"strings"
)

// extension returns the lower-cased text after the last dot, or the whole
// lower-cased name when there is none.
func extension(name string) string {
	base := path.Base(name)
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return strings.ToLower(base[i+1:])
	}
	return strings.ToLower(base)
}

// Language returns the editor language for a file name.
func Language(name string) string {
	switch extension(name) {
	case "html":
		return "html"
	case "css":
		return "css"
	case "js":
		return "javascript"
	case "json":
		return "json"
	case "md":
		return "markdown"
	default:
		return "plaintext"
	}
}

// IconType returns the icon class for a file name, or "" when there is none.
func IconType(name string) string {
	switch extension(name) {
	case "html":
		return "html"
	case "css":
		return "css"
	case "js", "jsx", "ts", "tsx":
		return "js"
	case "json":
		return "json"
	case "md":
		return "md"
	case "jpg", "jpeg", "png", "gif", "svg":
		return "image"
	default:
		return ""
	}
}
