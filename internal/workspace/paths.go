package workspace

import (
	"path"
	"strings"
)

// NormalizeFolderPath returns "/" for the root and "/a/b/" otherwise, with
// repeated slashes collapsed. This is the form stored in File.FolderPath and
// Folder.ParentPath.
func NormalizeFolderPath(p string) string {
	clean := CleanPath(p)
	if clean == "/" {
		return "/"
	}
	return clean + "/"
}

// CleanPath returns an absolute slash path without a trailing slash.
func CleanPath(p string) string {
	return path.Clean("/" + strings.TrimSpace(p))
}

// SplitPath splits a file path into its folder path (no trailing slash) and name.
func SplitPath(p string) (dir, name string) {
	clean := CleanPath(p)
	return path.Dir(clean), path.Base(clean)
}

// isWithin reports whether p is dir or lies beneath it.
func isWithin(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, strings.TrimSuffix(dir, "/")+"/")
}
