// Package server exposes projects, the workspace, the assistant and the live
// preview over HTTP. Preview pages talk back over a websocket relay.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"codex/internal/agent"
	"codex/internal/assistant"
	"codex/internal/config"
	"codex/internal/editor"
	"codex/internal/index"
	"codex/internal/llm"
	"codex/internal/logging"
	"codex/internal/preview"
	"codex/internal/project"
	"codex/internal/settings"
	"codex/internal/store"
	"codex/internal/workspace"
)

// ErrAssistantUnavailable is returned by chat routes when no model client is
// configured.
var ErrAssistantUnavailable = errors.New("assistant is not configured")

// Options wires the server to the rest of the application.
type Options struct {
	Config   *config.Config
	Store    store.Store
	Projects *project.Manager
	Settings *settings.Manager
	Keys     *settings.KeyStore
	Hub      *preview.Hub
	// Client and Registry back the chat routes. A nil Client disables them.
	Client   llm.Client
	Registry *llm.Registry
	Logger   *zap.Logger
}

// Server serves the codex HTTP API.
type Server struct {
	cfg      *config.Config
	store    store.Store
	projects *project.Manager
	settings *settings.Manager
	keys     *settings.KeyStore
	hub      *preview.Hub
	client   llm.Client
	registry *llm.Registry
	log      *zap.Logger

	mu    sync.Mutex
	state map[string]*projectState

	unsubscribe func()
	handler     http.Handler
}

// projectState is the editing context of one project: its workspace, index,
// tabs, clipboard and (lazily) its chat session.
type projectState struct {
	ws        *workspace.Workspace
	index     *index.Index
	tabs      *editor.Tabs
	clipboard *workspace.Clipboard

	once    sync.Once
	session *assistant.Session
	err     error
}

// New creates a server. Store and Projects are required.
func New(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Projects == nil {
		return nil, errors.New("server: store and project manager are required")
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Settings == nil {
		opts.Settings = settings.NewManager(opts.Store)
	}
	if opts.Keys == nil {
		opts.Keys = settings.NewKeyStore(opts.Store)
	}
	if opts.Hub == nil {
		opts.Hub = preview.NewHub(opts.Config.Preview.ConsoleBuffer)
	}
	if opts.Registry == nil {
		opts.Registry = llm.NewRegistry(opts.Config.LLM.OpenAIModels...)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		cfg:      opts.Config,
		store:    opts.Store,
		projects: opts.Projects,
		settings: opts.Settings,
		keys:     opts.Keys,
		hub:      opts.Hub,
		client:   opts.Client,
		registry: opts.Registry,
		log:      opts.Logger,
		state:    make(map[string]*projectState),
	}
	s.unsubscribe = s.projects.Subscribe(s.onProjectEvent)
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Hub returns the preview hub.
func (s *Server) Hub() *preview.Hub { return s.hub }

// Close detaches the server from the project manager.
func (s *Server) Close() {
	s.unsubscribe()
}

// ListenAndServe serves on the configured address until ctx is canceled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Server("Listening on %s", ln.Addr())
		s.log.Info("server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logging.Server("Shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	<-errCh
	return nil
}

// =============================================================================
// PROJECT STATE
// =============================================================================

// project returns the editing state of id, building its index on first use.
func (s *Server) project(ctx context.Context, id string) (*projectState, error) {
	s.mu.Lock()
	st, ok := s.state[id]
	s.mu.Unlock()
	if ok {
		return st, nil
	}

	ws, err := workspace.Open(s.projects, id)
	if err != nil {
		return nil, err
	}
	ix := index.New(s.indexOptions())
	files, err := ws.Files()
	if err != nil {
		return nil, err
	}
	if err := ix.IndexAll(ctx, files); err != nil {
		return nil, err
	}
	st = &projectState{
		ws:        ws,
		index:     ix,
		tabs:      editor.NewTabs(),
		clipboard: &workspace.Clipboard{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.state[id]; ok {
		return existing, nil
	}
	s.state[id] = st
	return st, nil
}

func (s *Server) indexOptions() index.Options {
	opts := index.DefaultOptions()
	if c := s.cfg.Index; c.Workers > 0 {
		opts.Workers = c.Workers
	}
	if c := s.cfg.Index; c.RelatedLimit > 0 {
		opts.RelatedLimit = c.RelatedLimit
	}
	if c := s.cfg.Index; c.MinOverlap > 0 {
		opts.MinOverlap = c.MinOverlap
	}
	return opts
}

// chat returns the project's chat session, creating it on first use.
func (s *Server) chat(ctx context.Context, st *projectState) (*assistant.Session, error) {
	if s.client == nil {
		return nil, ErrAssistantUnavailable
	}
	st.once.Do(func() {
		ac := s.cfg.Assistant
		exec := agent.NewExecutor(st.ws, agent.WithIndex(st.index), agent.WithTabs(st.tabs))
		st.session, st.err = assistant.New(ctx, assistant.Options{
			Workspace:     st.ws,
			Index:         st.index,
			Client:        s.client,
			Registry:      s.registry,
			Keys:          s.keys,
			Store:         s.store,
			Executor:      exec,
			FallbackKey:   s.cfg.LLM.APIKey,
			Model:         s.cfg.LLM.Model,
			Mode:          assistant.Mode(ac.Mode),
			HistoryWindow: ac.HistoryWindow,
			MaxStored:     ac.MaxStored,
			AtomicActions: ac.AtomicActions,
		})
		if st.err != nil {
			return
		}
		// Created and updated files open a review tab.
		st.session.OnMessage(func(m assistant.Message) {
			assistant.Review(st.tabs, m.Result)
		})
	})
	return st.session, st.err
}

// onProjectEvent keeps cached state and open previews in step with the
// project manager.
func (s *Server) onProjectEvent(e project.Event) {
	switch e.Type {
	case project.EventDeleted:
		s.mu.Lock()
		delete(s.state, e.ProjectID)
		s.mu.Unlock()
		s.hub.Forget(e.ProjectID)
	case project.EventReloaded:
		// Another process changed the store: rebuild every cached index.
		s.mu.Lock()
		ids := make([]string, 0, len(s.state))
		for id, st := range s.state {
			if _, err := s.projects.Get(id); err != nil {
				delete(s.state, id)
				continue
			}
			ids = append(ids, id)
			files, err := st.ws.Files()
			if err == nil {
				err = st.index.IndexAll(context.Background(), files)
			}
			if err != nil {
				logging.ServerWarn("Failed to reindex %s: %v", id, err)
			}
		}
		s.mu.Unlock()
		if s.cfg.Preview.LiveReload {
			for _, id := range ids {
				s.hub.Reload(id)
			}
		}
	case project.EventUpdated:
		if s.cfg.Preview.LiveReload {
			s.hub.Reload(e.ProjectID)
		}
	}
}
