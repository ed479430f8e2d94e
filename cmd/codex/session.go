package main

import (
	"context"

	"codex/internal/agent"
	"codex/internal/assistant"
	"codex/internal/editor"
	"codex/internal/index"
	"codex/internal/workspace"
)

// newSession creates a project's chat session. Created and updated files
// open a review tab in tabs.
func (a *app) newSession(ctx context.Context, ws *workspace.Workspace, ix *index.Index, tabs *editor.Tabs) (*assistant.Session, error) {
	ac := a.cfg.Assistant
	exec := agent.NewExecutor(ws, agent.WithIndex(ix), agent.WithTabs(tabs))
	s, err := assistant.New(ctx, assistant.Options{
		Workspace:     ws,
		Index:         ix,
		Client:        a.router,
		Registry:      a.registry,
		Keys:          a.keys,
		Store:         a.store,
		Executor:      exec,
		FallbackKey:   a.cfg.LLM.APIKey,
		Model:         a.cfg.LLM.Model,
		Mode:          assistant.Mode(ac.Mode),
		HistoryWindow: ac.HistoryWindow,
		MaxStored:     ac.MaxStored,
		AtomicActions: ac.AtomicActions,
	})
	if err != nil {
		return nil, err
	}
	s.OnMessage(func(m assistant.Message) {
		assistant.Review(tabs, m.Result)
	})
	return s, nil
}
