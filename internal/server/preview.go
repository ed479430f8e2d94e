package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"codex/internal/logging"
	"codex/internal/preview"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 64 << 10
)

// reloadFrame is the text frame the page interceptor reloads on.
const reloadFrame = "reload"

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	st, err := s.stateFor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	files, err := st.ws.Files()
	if err != nil {
		writeErr(w, err)
		return
	}
	page := preview.Build(files, preview.Options{RelayURL: relayURL(r, st.ws.ProjectID())})
	logging.PreviewDebug("Built preview of %s from %s (%d inlined, %d injected)",
		st.ws.ProjectID(), page.Main, len(page.Inlined), len(page.Injected))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page.HTML))
}

func relayURL(r *http.Request, projectID string) string {
	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}
	return scheme + "://" + r.Host + "/ws/preview/" + projectID
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if _, err := s.projects.Get(id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.hub.Console(id).Entries())
}

func (s *Server) handleClearConsole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if _, err := s.projects.Get(id); err != nil {
		writeErr(w, err)
		return
	}
	s.hub.Console(id).Clear()
	w.WriteHeader(http.StatusNoContent)
}

// consoleFrame is what the page sends for each console call.
type consoleFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handlePreviewSocket relays console output from preview pages into the hub
// and pushes console lines and reload requests back out.
func (s *Server) handlePreviewSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if _, err := s.projects.Get(id); err != nil {
		writeErr(w, err)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.allowOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.ServerWarn("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe(id)
	defer cancel()
	logging.ServerDebug("Preview socket opened for %s", id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump(conn, events)
	}()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.ServerDebug("Preview socket for %s closed: %v", id, err)
			}
			break
		}
		var frame consoleFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Message == "" {
			continue
		}
		s.hub.Log(id, frame.Type, frame.Message)
	}

	cancel()
	<-done
	logging.ServerDebug("Preview socket closed for %s", id)
}

// writePump forwards hub events until the subscription closes or a write fails.
func (s *Server) writePump(conn *websocket.Conn, events <-chan preview.Event) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			}
			var err error
			if ev.Type == preview.EventReload {
				err = conn.WriteMessage(websocket.TextMessage, []byte(reloadFrame))
			} else {
				err = conn.WriteJSON(ev)
			}
			if err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
