package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/api/models", s.handleModels)

	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", s.handleGetSettings)
		r.Put("/", s.handleUpdateSettings)
		r.Delete("/", s.handleResetSettings)
	})

	r.Route("/api/projects", func(r chi.Router) {
		r.Get("/", s.handleListProjects)
		r.Post("/", s.handleCreateProject)
		r.Post("/import", s.handleImportProject)

		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", s.handleGetProject)
			r.Patch("/", s.handleRenameProject)
			r.Delete("/", s.handleDeleteProject)
			r.Get("/export", s.handleExportProject)

			r.Get("/tree", s.handleTree)
			r.Get("/search", s.handleSearch)
			r.Get("/quickopen", s.handleQuickOpen)
			r.Get("/symbols", s.handleSymbols)
			r.Get("/recent", s.handleRecent)

			r.Route("/files", func(r chi.Router) {
				r.Get("/", s.handleListFiles)
				r.Post("/", s.handleCreateFile)
				r.Get("/{fileID}", s.handleGetFile)
				r.Put("/{fileID}", s.handleUpdateFile)
				r.Patch("/{fileID}", s.handleRenameFile)
				r.Delete("/{fileID}", s.handleDeleteFile)
				r.Post("/{fileID}/copy", s.handleCopyFile)
				r.Post("/{fileID}/move", s.handleMoveFile)
			})

			r.Route("/folders", func(r chi.Router) {
				r.Post("/", s.handleCreateFolder)
				r.Patch("/", s.handleRenameFolder)
				r.Delete("/", s.handleDeleteFolder)
				r.Post("/copy", s.handleCopyFolder)
				r.Post("/move", s.handleMoveFolder)
			})

			r.Post("/clipboard", s.handleClipboard)
			r.Post("/paste", s.handlePaste)

			r.Route("/tabs", func(r chi.Router) {
				r.Get("/", s.handleListTabs)
				r.Post("/", s.handleOpenTab)
				r.Post("/{tabID}/activate", s.handleActivateTab)
				r.Delete("/{tabID}", s.handleCloseTab)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Get("/", s.handleGetChat)
				r.Post("/", s.handleSendMessage)
				r.Delete("/", s.handleClearChat)
				r.Put("/mode", s.handleSetMode)
				r.Put("/model", s.handleSetModel)
				r.Get("/key", s.handleKeyStatus)
				r.Post("/key", s.handleSaveKey)
				r.Delete("/key", s.handleCancelKey)
			})
		})
	})

	r.Get("/preview/{projectID}", s.handlePreview)
	r.Get("/preview/{projectID}/console", s.handleConsole)
	r.Delete("/preview/{projectID}/console", s.handleClearConsole)
	r.Get("/ws/preview/{projectID}", s.handlePreviewSocket)

	return r
}

// requestLogger writes one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// cors allows the configured origins. With none configured only same-origin
// requests are served.
func (s *Server) cors(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.Server.AllowedOrigins))
	for _, o := range s.cfg.Server.AllowedOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,X-Request-Id")
			w.Header().Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.Server.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	// Same host is always allowed.
	return originHost(origin) == r.Host
}
