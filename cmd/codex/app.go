package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"codex/internal/config"
	"codex/internal/index"
	"codex/internal/llm"
	"codex/internal/project"
	"codex/internal/settings"
	"codex/internal/store"
	"codex/internal/workspace"
)

// app holds the services every command shares.
type app struct {
	cfg      *config.Config
	store    store.Store
	projects *project.Manager
	settings *settings.Manager
	keys     *settings.KeyStore
	registry *llm.Registry
	router   *llm.Router
}

// openApp opens the configured store and project manager.
func openApp(ctx context.Context, c *config.Config) (*app, error) {
	st, err := store.Open(c.Storage.Backend, c.StoragePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	pm, err := project.NewManager(ctx, st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	registry := llm.NewRegistry(c.LLM.OpenAIModels...)
	return &app{
		cfg:      c,
		store:    st,
		projects: pm,
		settings: settings.NewManager(st),
		keys:     settings.NewKeyStore(st),
		registry: registry,
		router:   newRouter(c, registry),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// newRouter registers a client per provider. Gemini models use the REST
// client unless the provider is "genai"; OpenAI-compatible models are served
// when a key or model list is configured.
func newRouter(c *config.Config, registry *llm.Registry) *llm.Router {
	r := llm.NewRouter(registry)
	timeout := c.GetLLMTimeout()
	if c.LLM.Provider == "genai" {
		r.Register(llm.ProviderGemini, llm.NewGenAIClient(c.LLM.APIKey, "", timeout))
	} else {
		r.Register(llm.ProviderGemini, llm.NewGeminiClient(llm.GeminiConfig{
			APIKey:  c.LLM.APIKey,
			BaseURL: c.LLM.BaseURL,
			Timeout: timeout,
		}))
	}
	if c.LLM.OpenAIKey != "" || len(c.LLM.OpenAIModels) > 0 || c.LLM.Provider == "openai" {
		r.Register(llm.ProviderOpenAI, llm.NewOpenAIClient(c.LLM.OpenAIKey, c.LLM.ResolvedOpenAIBaseURL(), timeout))
	}
	return r
}

// findProject resolves a project by ID, exact name, or unique name prefix.
func (a *app) findProject(ref string) (*project.Project, error) {
	if p, err := a.projects.Get(ref); err == nil {
		return p, nil
	}
	var matches []*project.Project
	for _, p := range a.projects.List() {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
		if strings.HasPrefix(strings.ToLower(p.Name), strings.ToLower(ref)) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fmt.Errorf("%w: %s", project.ErrProjectNotFound, ref)
	default:
		return nil, fmt.Errorf("project %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// openWorkspace opens a project's workspace and builds its index.
func (a *app) openWorkspace(ctx context.Context, ref string) (*workspace.Workspace, *index.Index, error) {
	p, err := a.findProject(ref)
	if err != nil {
		return nil, nil, err
	}
	ws, err := workspace.Open(a.projects, p.ID)
	if err != nil {
		return nil, nil, err
	}
	opts := index.DefaultOptions()
	if a.cfg.Index.Workers > 0 {
		opts.Workers = a.cfg.Index.Workers
	}
	if a.cfg.Index.RelatedLimit > 0 {
		opts.RelatedLimit = a.cfg.Index.RelatedLimit
	}
	if a.cfg.Index.MinOverlap > 0 {
		opts.MinOverlap = a.cfg.Index.MinOverlap
	}
	ix := index.New(opts)
	files, err := ws.Files()
	if err != nil {
		return nil, nil, err
	}
	if err := ix.IndexAll(ctx, files); err != nil {
		return nil, nil, err
	}
	logger.Debug("Workspace opened", zap.String("project", p.Name), zap.Int("files", len(files)))
	return ws, ix, nil
}

// watchStore reloads projects when another process rewrites a file store.
// It returns immediately for other backends.
func (a *app) watchStore(ctx context.Context) {
	fs, ok := a.store.(*store.FileStore)
	if !ok {
		return
	}
	go func() {
		err := fs.Watch(ctx, func() {
			if err := a.projects.Reload(ctx); err != nil {
				logger.Warn("Project reload failed", zap.Error(err))
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Store watch stopped", zap.Error(err))
		}
	}()
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
