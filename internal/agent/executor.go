package agent

import (
	"context"
	"fmt"

	"codex/internal/index"
	"codex/internal/logging"
	"codex/internal/workspace"
)

// TabCloser closes editor tabs showing a file.
type TabCloser interface {
	CloseFile(fileID string)
}

// Executor applies plans to one workspace and keeps the index and open tabs
// in step with what changed.
type Executor struct {
	ws    *workspace.Workspace
	index *index.Index
	tabs  TabCloser
	audit *logging.AuditLogger
}

// Option configures an Executor.
type Option func(*Executor)

// WithIndex keeps ix updated after each committed action.
func WithIndex(ix *index.Index) Option {
	return func(e *Executor) { e.index = ix }
}

// WithTabs closes tabs of files that were deleted or moved.
func WithTabs(t TabCloser) Option {
	return func(e *Executor) { e.tabs = t }
}

// NewExecutor creates an executor for ws.
func NewExecutor(ws *workspace.Workspace, opts ...Option) *Executor {
	e := &Executor{ws: ws, audit: logging.Audit(ws.ProjectID())}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UnknownActionError stops execution of a plan.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string { return "unknown action: " + e.Name }

// Execute runs the plan's actions in order, each in its own batch. A failing
// action yields an unsuccessful Result and execution continues. An unknown
// action stops execution; the results gathered so far are returned with the
// error.
func (e *Executor) Execute(ctx context.Context, plan *Plan) ([]Result, error) {
	timer := logging.StartTimer(logging.CategoryAgent, "Execute")
	defer timer.Stop()

	var results []Result
	for _, a := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		name, ok := canonicalName(a.Name)
		if !ok {
			logging.AgentWarn("Unknown action %q, stopping plan", a.Name)
			e.audit.ActionComplete(a.Name, "", false, "unknown action")
			return results, &UnknownActionError{Name: a.Name}
		}
		h := handlers[name]

		var res Result
		run := func(tx *workspace.Tx) error {
			r, err := h.run(tx, a.Params)
			res = r
			return err
		}
		var (
			changes []workspace.Change
			err     error
		)
		if h.readOnly {
			err = e.ws.View(run)
		} else {
			changes, err = e.ws.Batch(ctx, run)
		}

		res.Action = name
		res.Reasoning = a.Reasoning
		if err != nil {
			logging.AgentWarn("Action %s failed: %v", name, err)
			e.audit.ActionComplete(name, target(a.Params), false, err.Error())
			results = append(results, Result{
				Action:    name,
				Reasoning: a.Reasoning,
				Message:   fmt.Sprintf("Failed to %s: %v", h.verb, err),
			})
			continue
		}
		res.Success = true
		e.commit(changes)
		e.audit.ActionComplete(name, res.FilePath, true, "")
		logging.Agent("Action %s on %s succeeded", name, res.FilePath)
		results = append(results, res)
	}
	return results, nil
}

// ExecuteAtomic runs the whole plan in one batch: either every action takes
// effect or none does. An unknown action aborts the plan before anything runs.
func (e *Executor) ExecuteAtomic(ctx context.Context, plan *Plan) ([]Result, error) {
	timer := logging.StartTimer(logging.CategoryAgent, "ExecuteAtomic")
	defer timer.Stop()

	names := make([]string, len(plan.Actions))
	for i, a := range plan.Actions {
		name, ok := canonicalName(a.Name)
		if !ok {
			e.audit.ActionRollback(len(plan.Actions), "unknown action: "+a.Name)
			return nil, &UnknownActionError{Name: a.Name}
		}
		names[i] = name
	}

	var results []Result
	changes, err := e.ws.Batch(ctx, func(tx *workspace.Tx) error {
		results = results[:0]
		for i, a := range plan.Actions {
			h := handlers[names[i]]
			res, err := h.run(tx, a.Params)
			if err != nil {
				return fmt.Errorf("action %d (%s) failed to %s: %w", i+1, names[i], h.verb, err)
			}
			res.Action = names[i]
			res.Reasoning = a.Reasoning
			res.Success = true
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		logging.AgentWarn("Atomic plan of %d actions rolled back: %v", len(plan.Actions), err)
		e.audit.ActionRollback(len(plan.Actions), err.Error())
		return nil, err
	}
	e.commit(changes)
	for _, r := range results {
		e.audit.ActionComplete(r.Action, r.FilePath, true, "")
	}
	logging.Agent("Atomic plan of %d actions committed (%d file changes)", len(results), len(changes))
	return results, nil
}

// commit propagates committed changes to the index, tabs and audit log.
func (e *Executor) commit(changes []workspace.Change) {
	if len(changes) == 0 {
		return
	}
	if e.index != nil {
		e.index.Apply(changes)
	}
	for _, c := range changes {
		switch c.Kind {
		case workspace.ChangeDeleted:
			e.audit.FileOp(logging.AuditFileDelete, c.File.Path, len(c.File.Content))
			if e.tabs != nil {
				e.tabs.CloseFile(c.File.ID)
			}
		case workspace.ChangeMoved:
			e.audit.FileOp(logging.AuditFileWrite, c.File.Path, len(c.File.Content))
			if e.tabs != nil {
				e.tabs.CloseFile(c.File.ID)
			}
		default:
			e.audit.FileOp(logging.AuditFileWrite, c.File.Path, len(c.File.Content))
		}
	}
}

func target(p Params) string {
	for _, s := range []string{p.Path, p.FileID, p.SourceID, p.SourcePath} {
		if s != "" {
			return s
		}
	}
	return ""
}
