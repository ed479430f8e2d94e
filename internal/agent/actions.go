package agent

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"codex/internal/diff"
	"codex/internal/index"
	"codex/internal/project"
	"codex/internal/workspace"
)

// Action names understood by the executor.
const (
	ActionCreateFile   = "createFile"
	ActionUpdateFile   = "updateFile"
	ActionDeleteFile   = "deleteFile"
	ActionCopyFile     = "copyFile"
	ActionMoveFile     = "moveFile"
	ActionCreateFolder = "createFolder"
	ActionDeleteFolder = "deleteFolder"
	ActionExplainCode  = "explainCode"
)

var (
	errPathRequired    = errors.New("file path is required")
	errFileRequired    = errors.New("file ID or path is required")
	errContentRequired = errors.New("file ID and content (string) are required")
	errCopyArgs        = errors.New("source file and destination path are required")
	errFolderRequired  = errors.New("folder path is required")
)

// Result is the outcome of one action.
type Result struct {
	Action          string         `json:"action"`
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	Reasoning       string         `json:"reasoning,omitempty"`
	FileID          string         `json:"fileId,omitempty"`
	FilePath        string         `json:"filePath,omitempty"`
	FileType        string         `json:"fileType,omitempty"`
	Content         string         `json:"content,omitempty"`
	OriginalContent string         `json:"originalContent,omitempty"`
	ModifiedContent string         `json:"modifiedContent,omitempty"`
	Diff            *diff.FileDiff `json:"diff,omitempty"`
}

// handler applies one action inside a transaction.
type handler struct {
	verb     string // used in failure messages: "Failed to <verb>: ..."
	readOnly bool
	run      func(tx *workspace.Tx, p Params) (Result, error)
}

var handlers = map[string]handler{
	ActionCreateFile:   {verb: "create file", run: createFile},
	ActionUpdateFile:   {verb: "update file", run: updateFile},
	ActionDeleteFile:   {verb: "delete file", run: deleteFile},
	ActionCopyFile:     {verb: "copy file", run: copyFile},
	ActionMoveFile:     {verb: "move file", run: moveFile},
	ActionCreateFolder: {verb: "create folder", run: createFolder},
	ActionDeleteFolder: {verb: "delete folder", run: deleteFolder},
	ActionExplainCode:  {verb: "explain code", readOnly: true, run: explainCode},
}

// canonicalName maps a case-insensitive action name to its registered form.
func canonicalName(name string) (string, bool) {
	for k := range handlers {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// Names returns the supported action names.
func Names() []string {
	return []string{
		ActionCreateFile, ActionUpdateFile, ActionDeleteFile, ActionCopyFile,
		ActionMoveFile, ActionCreateFolder, ActionDeleteFolder, ActionExplainCode,
	}
}

// =============================================================================
// FILE RESOLUTION
// =============================================================================

// resolveFile finds a file by ID, falling back to treating the ID as a path
// (models often put a path in fileId), then by path.
func resolveFile(tx *workspace.Tx, id, p string) (*project.File, error) {
	if id != "" {
		f, err := tx.File(id)
		if err == nil {
			return f, nil
		}
		if strings.ContainsAny(id, "/.") {
			if f, perr := tx.FileByPath(id); perr == nil {
				return f, nil
			}
		}
		return nil, fmt.Errorf("%w with ID %s", workspace.ErrFileNotFound, id)
	}
	if p != "" {
		return tx.FileByPath(p)
	}
	return nil, errFileRequired
}

// =============================================================================
// HANDLERS
// =============================================================================

func createFile(tx *workspace.Tx, p Params) (Result, error) {
	if strings.TrimSpace(p.Path) == "" {
		return Result{}, errPathRequired
	}
	dir, name := workspace.SplitPath(p.Path)
	if err := tx.MkdirAll(dir); err != nil {
		return Result{}, err
	}
	content := ""
	if p.Content != nil {
		content = *p.Content
	}
	f, err := tx.CreateFile(name, dir, &content)
	if err != nil {
		return Result{}, err
	}
	return Result{
		FileID:   f.ID,
		FilePath: f.Path,
		Content:  content,
		Message:  fmt.Sprintf("File %q has been created successfully.", f.Path),
	}, nil
}

func updateFile(tx *workspace.Tx, p Params) (Result, error) {
	if p.Content == nil || (p.FileID == "" && p.Path == "") {
		return Result{}, errContentRequired
	}
	f, err := resolveFile(tx, p.FileID, p.Path)
	if err != nil {
		return Result{}, err
	}
	original, err := tx.UpdateFileContent(f.ID, *p.Content)
	if err != nil {
		return Result{}, err
	}
	return Result{
		FileID:          f.ID,
		FilePath:        f.Path,
		OriginalContent: original,
		ModifiedContent: *p.Content,
		Diff:            diff.Compute(f.Path, original, *p.Content),
		Message:         fmt.Sprintf("File %q has been updated successfully.", f.Path),
	}, nil
}

func deleteFile(tx *workspace.Tx, p Params) (Result, error) {
	f, err := resolveFile(tx, p.FileID, p.Path)
	if err != nil {
		return Result{}, err
	}
	removed, err := tx.DeleteFile(f.ID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		FileID:   removed.ID,
		FilePath: removed.Path,
		Message:  fmt.Sprintf("File %q has been deleted successfully.", removed.Path),
	}, nil
}

// transfer copies or moves the source file to destinationPath, creating
// missing destination folders.
func transfer(tx *workspace.Tx, p Params, move bool) (Result, error) {
	if (p.SourceID == "" && p.SourcePath == "") || strings.TrimSpace(p.DestinationPath) == "" {
		return Result{}, errCopyArgs
	}
	src, err := resolveFile(tx, p.SourceID, p.SourcePath)
	if err != nil {
		return Result{}, fmt.Errorf("source %w", err)
	}
	srcPath := src.Path
	dir, _ := workspace.SplitPath(p.DestinationPath)
	if err := tx.MkdirAll(dir); err != nil {
		return Result{}, err
	}

	var f project.File
	verb := "copied"
	if move {
		verb = "moved"
		f, err = tx.MoveFile(src.ID, p.DestinationPath)
	} else {
		f, err = tx.CopyFile(src.ID, p.DestinationPath)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{
		FileID:   f.ID,
		FilePath: f.Path,
		Message:  fmt.Sprintf("File %q has been %s to %q successfully.", srcPath, verb, f.Path),
	}, nil
}

func copyFile(tx *workspace.Tx, p Params) (Result, error) { return transfer(tx, p, false) }

func moveFile(tx *workspace.Tx, p Params) (Result, error) { return transfer(tx, p, true) }

func createFolder(tx *workspace.Tx, p Params) (Result, error) {
	if strings.Trim(strings.TrimSpace(p.Path), "/") == "" {
		return Result{}, errFolderRequired
	}
	full := workspace.CleanPath(p.Path)
	parent := path.Dir(full)
	if err := tx.MkdirAll(parent); err != nil {
		return Result{}, err
	}
	if _, err := tx.CreateFolder(path.Base(full), parent); err != nil {
		return Result{}, err
	}
	return Result{
		FilePath: full,
		Message:  fmt.Sprintf("Folder %q has been created successfully.", full),
	}, nil
}

func deleteFolder(tx *workspace.Tx, p Params) (Result, error) {
	if strings.TrimSpace(p.Path) == "" {
		return Result{}, errFolderRequired
	}
	full := workspace.CleanPath(p.Path)
	if _, err := tx.DeleteFolder(full); err != nil {
		return Result{}, err
	}
	return Result{
		FilePath: full,
		Message:  fmt.Sprintf("Folder %q has been deleted successfully.", full),
	}, nil
}

func explainCode(tx *workspace.Tx, p Params) (Result, error) {
	f, err := resolveFile(tx, p.FileID, p.Path)
	if err != nil {
		return Result{}, err
	}
	return Result{
		FileID:   f.ID,
		FilePath: f.Path,
		FileType: index.FileType(f.Name),
		Content:  lineRange(f.Content, int(p.StartLine), int(p.EndLine)),
		Message: fmt.Sprintf("Here's the explanation for the code in %q:\n\n"+
			"I need to analyze this code further. Let me examine it for you.", f.Path),
	}, nil
}

// lineRange returns lines start..end (1-based, inclusive) when
// 1 <= start <= end <= line count, and the whole content otherwise.
func lineRange(content string, start, end int) string {
	lines := strings.Split(content, "\n")
	if start < 1 || start > end || end > len(lines) {
		return content
	}
	return strings.Join(lines[start-1:end], "\n")
}
