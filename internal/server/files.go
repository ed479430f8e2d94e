package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"codex/internal/workspace"
)

// =============================================================================
// TREE AND INDEX QUERIES
// =============================================================================

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	tree, err := st.ws.Tree()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	results := st.index.Search(r.URL.Query().Get("q"))
	if results == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func queryLimit(r *http.Request, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		return n
	}
	return def
}

func (s *Server) handleQuickOpen(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.index.QuickOpen(r.URL.Query().Get("q"), queryLimit(r, 20)))
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeErr(w, badRequest("name is required"))
		return
	}
	writeJSON(w, http.StatusOK, st.index.FindSymbol(name))
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.index.RecentChanges(queryLimit(r, 10)))
}

// =============================================================================
// FILES
// =============================================================================

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var files any
	if folder := r.URL.Query().Get("folder"); folder != "" {
		files, err = st.ws.FilesInFolder(folder)
	} else {
		files, err = st.ws.Files()
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

type createFileRequest struct {
	Name       string  `json:"name"`
	FolderPath string  `json:"folderPath"`
	Content    *string `json:"content"`
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req createFileRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.FolderPath == "" {
		req.FolderPath = "/"
	}
	f, err := st.ws.CreateFile(r.Context(), req.Name, req.FolderPath, req.Content)
	if err != nil {
		writeErr(w, err)
		return
	}
	st.index.IndexFile(f)
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	f, err := st.ws.File(chi.URLParam(r, "fileID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type contentRequest struct {
	Content *string `json:"content"`
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req contentRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Content == nil {
		writeErr(w, badRequest("content is required"))
		return
	}
	id := chi.URLParam(r, "fileID")
	if err := st.ws.UpdateFileContent(r.Context(), id, *req.Content); err != nil {
		writeErr(w, err)
		return
	}
	f, err := st.ws.File(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	st.index.IndexFile(f)
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req nameRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	changes, err := st.ws.RenameFile(r.Context(), chi.URLParam(r, "fileID"), req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.applyChanges(st, changes)
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	changes, err := st.ws.DeleteFile(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	s.applyChanges(st, changes)
	w.WriteHeader(http.StatusNoContent)
}

type destinationRequest struct {
	DestinationPath string `json:"destinationPath"`
}

func (s *Server) handleCopyFile(w http.ResponseWriter, r *http.Request) {
	s.transferFile(w, r, false)
}

func (s *Server) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	s.transferFile(w, r, true)
}

func (s *Server) transferFile(w http.ResponseWriter, r *http.Request, move bool) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req destinationRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.DestinationPath == "" {
		writeErr(w, badRequest("destinationPath is required"))
		return
	}
	id := chi.URLParam(r, "fileID")
	if move {
		f, err := st.ws.MoveFile(r.Context(), id, req.DestinationPath)
		if err != nil {
			writeErr(w, err)
			return
		}
		st.index.IndexFile(f)
		st.tabs.Rename(f.ID, f.Path)
		writeJSON(w, http.StatusOK, f)
		return
	}
	f, err := st.ws.CopyFile(r.Context(), id, req.DestinationPath)
	if err != nil {
		writeErr(w, err)
		return
	}
	st.index.IndexFile(f)
	writeJSON(w, http.StatusCreated, f)
}

// applyChanges keeps the index and open tabs in step with a batch of changes.
func (s *Server) applyChanges(st *projectState, changes []workspace.Change) {
	st.index.Apply(changes)
	for _, c := range changes {
		switch c.Kind {
		case workspace.ChangeDeleted:
			st.tabs.CloseFile(c.File.ID)
		case workspace.ChangeMoved:
			st.tabs.Rename(c.File.ID, c.File.Path)
		}
	}
}

// =============================================================================
// FOLDERS
// =============================================================================

type folderRequest struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	ParentPath   string `json:"parentPath"`
	TargetParent string `json:"targetParent"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req folderRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.ParentPath == "" {
		req.ParentPath = "/"
	}
	folder, err := st.ws.CreateFolder(r.Context(), req.Name, req.ParentPath)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) handleRenameFolder(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req folderRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	changes, err := st.ws.RenameFolder(r.Context(), req.Path, req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.applyChanges(st, changes)
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeErr(w, badRequest("path is required"))
		return
	}
	changes, err := st.ws.DeleteFolder(r.Context(), path)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.applyChanges(st, changes)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCopyFolder(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req folderRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	folder, changes, err := st.ws.CopyFolder(r.Context(), req.Path, req.TargetParent)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.applyChanges(st, changes)
	writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) handleMoveFolder(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req folderRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	changes, err := st.ws.MoveFolder(r.Context(), req.Path, req.TargetParent)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.applyChanges(st, changes)
	writeJSON(w, http.StatusOK, changes)
}

// =============================================================================
// CLIPBOARD
// =============================================================================

type clipboardRequest struct {
	Op         workspace.ClipOp `json:"op"`
	FileID     string           `json:"fileId"`
	FolderPath string           `json:"folderPath"`
}

func (s *Server) handleClipboard(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req clipboardRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if (req.FileID == "") == (req.FolderPath == "") {
		writeErr(w, badRequest("exactly one of fileId and folderPath is required"))
		return
	}
	cb := st.clipboard
	switch {
	case req.Op == workspace.ClipCopy && req.FileID != "":
		cb.CopyFile(req.FileID)
	case req.Op == workspace.ClipCut && req.FileID != "":
		cb.CutFile(req.FileID)
	case req.Op == workspace.ClipCopy:
		cb.CopyFolder(req.FolderPath)
	case req.Op == workspace.ClipCut:
		cb.CutFolder(req.FolderPath)
	default:
		writeErr(w, badRequest("op must be copy or cut"))
		return
	}
	item, _ := cb.Peek()
	writeJSON(w, http.StatusOK, item)
}

type pasteRequest struct {
	TargetFolder string `json:"targetFolder"`
}

func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req pasteRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.TargetFolder == "" {
		req.TargetFolder = "/"
	}
	changes, err := st.clipboard.Paste(r.Context(), st.ws, req.TargetFolder)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.applyChanges(st, changes)
	writeJSON(w, http.StatusOK, changes)
}
