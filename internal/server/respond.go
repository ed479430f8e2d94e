package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"codex/internal/assistant"
	"codex/internal/editor"
	"codex/internal/llm"
	"codex/internal/logging"
	"codex/internal/project"
	"codex/internal/settings"
	"codex/internal/workspace"
)

const maxBodyBytes = 32 << 20

// apiError is the JSON error body.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, err error) {
	code, tag := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.ServerWarn("Request failed: %v", err)
	}
	writeJSON(w, code, apiError{Error: err.Error(), Code: tag})
}

// statusFor maps package sentinels onto HTTP statuses.
func statusFor(err error) (int, string) {
	var parseErr *json.SyntaxError
	switch {
	case errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, workspace.ErrFileNotFound),
		errors.Is(err, workspace.ErrFolderNotFound),
		errors.Is(err, workspace.ErrParentNotFound),
		errors.Is(err, editor.ErrTabNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, workspace.ErrFileExists),
		errors.Is(err, workspace.ErrFolderExists),
		errors.Is(err, assistant.ErrBusy):
		return http.StatusConflict, "conflict"
	case errors.Is(err, assistant.ErrAPIKeyRequired),
		errors.Is(err, llm.ErrInvalidAPIKey):
		return http.StatusUnauthorized, "api_key_required"
	case errors.Is(err, ErrAssistantUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, project.ErrInvalidName),
		errors.Is(err, project.ErrInvalidProjectFile),
		errors.Is(err, workspace.ErrRootFolder),
		errors.Is(err, workspace.ErrInvalidTarget),
		errors.Is(err, workspace.ErrClipboardEmpty),
		errors.Is(err, assistant.ErrInvalidMode),
		errors.Is(err, llm.ErrUnknownModel),
		errors.Is(err, settings.ErrEmptyAPIKey),
		errors.Is(err, settings.ErrInvalid),
		errors.Is(err, errBadRequest),
		errors.As(err, &parseErr):
		return http.StatusBadRequest, "bad_request"
	}
	return http.StatusInternalServerError, "internal"
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func (s *Server) stateFor(r *http.Request) (*projectState, error) {
	return s.project(r.Context(), chi.URLParam(r, "projectID"))
}

func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Host
}
