package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"codex/internal/project"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"projects": len(s.projects.List()),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Models())
}

// projectSummary is the list view of a project.
type projectSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Files        int       `json:"files"`
	Size         string    `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	Modified     string    `json:"modified"`
}

func summarize(p *project.Project, now time.Time) projectSummary {
	var size uint64
	for _, f := range p.Files {
		size += uint64(len(f.Content))
	}
	return projectSummary{
		ID:           p.ID,
		Name:         p.Name,
		Files:        len(p.Files),
		Size:         humanize.Bytes(size),
		CreatedAt:    p.CreatedAt,
		LastModified: p.LastModified,
		Modified:     project.FormatRelativeTime(p.LastModified, now),
	}
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	now := s.projects.Now()
	list := s.projects.List()
	out := make([]projectSummary, 0, len(list))
	for _, p := range list {
		out = append(out, summarize(p, now))
	}
	writeJSON(w, http.StatusOK, out)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	p, err := s.projects.Create(r.Context(), req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleImportProject takes a raw JSON or zip export as the body. The
// filename query parameter names the project when the export does not.
func (s *Server) handleImportProject(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeErr(w, fmt.Errorf("failed to read import: %w", err))
		return
	}
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "imported.json"
	}
	p, err := s.projects.Import(r.Context(), name, data)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.Get(chi.URLParam(r, "projectID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	id := chi.URLParam(r, "projectID")
	if err := s.projects.Rename(r.Context(), id, req.Name); err != nil {
		writeErr(w, err)
		return
	}
	p, err := s.projects.Get(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if err := s.projects.Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportProject(w http.ResponseWriter, r *http.Request) {
	format := project.Format(r.URL.Query().Get("format"))
	switch format {
	case "", project.FormatJSON, project.FormatZip:
	default:
		writeErr(w, badRequest("unsupported export format: %s", format))
		return
	}
	exp, err := s.projects.Export(chi.URLParam(r, "projectID"), format)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Data)
}
