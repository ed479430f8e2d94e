package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"codex/internal/assistant"
	"codex/internal/llm"
	"codex/internal/settings"
)

// chatState is the chat view returned by the chat routes.
type chatState struct {
	Mode     assistant.Mode      `json:"mode"`
	Model    llm.Model           `json:"model"`
	Messages []assistant.Message `json:"messages"`
	Pending  string              `json:"pending,omitempty"`
	// KeyRequired is set when a message is waiting for an API key.
	KeyRequired bool `json:"keyRequired,omitempty"`
}

func viewOf(sess *assistant.Session) chatState {
	pending := sess.PendingMessage()
	return chatState{
		Mode:        sess.Mode(),
		Model:       sess.CurrentModel(),
		Messages:    sess.Messages(),
		Pending:     pending,
		KeyRequired: pending != "",
	}
}

func (s *Server) sessionFor(r *http.Request) (*projectState, *assistant.Session, error) {
	st, err := s.stateFor(r)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.chat(r.Context(), st)
	if err != nil {
		return nil, nil, err
	}
	return st, sess, nil
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	_, sess, err := s.sessionFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// staticFocus is an editor focus supplied by the client.
type staticFocus struct {
	current string
	open    []string
}

func (f staticFocus) CurrentFileID() string { return f.current }
func (f staticFocus) OpenFileIDs() []string { return f.open }

type messageRequest struct {
	Message       string   `json:"message"`
	CurrentFileID *string  `json:"currentFileId"`
	OpenFileIDs   []string `json:"openFileIds"`
}

// handleSendMessage runs one chat turn. Without an explicit focus the
// server-side tabs decide the current and open files.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	st, sess, err := s.sessionFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req messageRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	var focus assistant.Focus = st.tabs
	if req.CurrentFileID != nil || req.OpenFileIDs != nil {
		f := staticFocus{open: req.OpenFileIDs}
		if req.CurrentFileID != nil {
			f.current = *req.CurrentFileID
		}
		focus = f
	}

	err = sess.ProcessMessage(r.Context(), req.Message, focus)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, viewOf(sess))
	case errors.Is(err, assistant.ErrAPIKeyRequired):
		writeJSON(w, http.StatusUnauthorized, viewOf(sess))
	default:
		// The session already recorded the error as a chat message.
		code, _ := statusFor(err)
		if code == http.StatusInternalServerError {
			code = http.StatusBadGateway
		}
		writeJSON(w, code, viewOf(sess))
	}
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	_, sess, err := s.sessionFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := sess.ClearHistory(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type modeRequest struct {
	Mode assistant.Mode `json:"mode"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	_, sess, err := s.sessionFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req modeRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := sess.SetMode(req.Mode); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

type modelRequest struct {
	Model string `json:"model"`
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	_, sess, err := s.sessionFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req modelRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := sess.SetModel(req.Model); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// =============================================================================
// API KEY
// =============================================================================

type keyStatus struct {
	Configured bool   `json:"configured"`
	Masked     string `json:"masked,omitempty"`
	Usable     bool   `json:"usable"`
	Pending    string `json:"pending,omitempty"`
}

func (s *Server) handleKeyStatus(w http.ResponseWriter, r *http.Request) {
	_, sess, err := s.sessionFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	key, err := s.keys.Get(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keyStatus{
		Configured: key != "",
		Masked:     settings.Mask(key),
		Usable:     sess.HasUsableKey(r.Context()),
		Pending:    sess.PendingMessage(),
	})
}

type keyRequest struct {
	Key string `json:"key"`
}

// handleSaveKey stores the key and replays the message that was waiting for it.
func (s *Server) handleSaveKey(w http.ResponseWriter, r *http.Request) {
	_, sess, err := s.sessionFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req keyRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := sess.SaveAPIKey(r.Context(), req.Key); err != nil {
		if errors.Is(err, settings.ErrEmptyAPIKey) {
			writeErr(w, err)
			return
		}
		code, _ := statusFor(err)
		if code == http.StatusInternalServerError {
			code = http.StatusBadGateway
		}
		writeJSON(w, code, viewOf(sess))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// handleCancelKey dismisses the key prompt and returns the message still
// waiting for a key.
func (s *Server) handleCancelKey(w http.ResponseWriter, r *http.Request) {
	_, sess, err := s.sessionFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": sess.CancelAPIKeyPrompt()})
}

// =============================================================================
// TABS
// =============================================================================

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tabsView(st))
}

type tabsState struct {
	Active string `json:"active"`
	Tabs   any    `json:"tabs"`
}

func tabsView(st *projectState) tabsState {
	v := tabsState{Tabs: st.tabs.List()}
	if t, ok := st.tabs.Active(); ok {
		v.Active = t.ID
	}
	return v
}

type openTabRequest struct {
	FileID string `json:"fileId"`
}

func (s *Server) handleOpenTab(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req openTabRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	f, err := st.ws.File(req.FileID)
	if err != nil {
		writeErr(w, err)
		return
	}
	st.tabs.Open(f)
	writeJSON(w, http.StatusOK, tabsView(st))
}

func (s *Server) handleActivateTab(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := st.tabs.Activate(chi.URLParam(r, "tabID")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tabsView(st))
}

func (s *Server) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	st.tabs.Close(chi.URLParam(r, "tabID"))
	writeJSON(w, http.StatusOK, tabsView(st))
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cur, err := s.settings.Load(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	patch, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeErr(w, fmt.Errorf("failed to read settings: %w", err))
		return
	}
	cur, err := s.settings.Update(r.Context(), patch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	cur, err := s.settings.Reset(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}
