package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codex/internal/logging"
	"codex/internal/store"
)

// EventType describes a change to the project set.
type EventType string

const (
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
	EventReloaded EventType = "reloaded"
)

// Event is delivered to subscribers after a change has been persisted.
type Event struct {
	Type      EventType
	ProjectID string
}

// Manager owns the project list and persists it under store.KeyProjects after
// every mutation. All access is serialized; readers receive copies.
type Manager struct {
	mu       sync.RWMutex
	store    store.Store
	projects []*Project

	subMu sync.RWMutex
	subs  map[int]func(Event)
	subID int

	now   func() time.Time
	newID func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// NewManager loads the project list from st.
func NewManager(ctx context.Context, st store.Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store: st,
		subs:  make(map[int]func(Event)),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time { return m.now() }

// NewID returns a fresh identifier.
func (m *Manager) NewID() string { return m.newID() }

func (m *Manager) load(ctx context.Context) error {
	raw, err := m.store.Get(ctx, store.KeyProjects)
	if errors.Is(err, store.ErrNotFound) {
		m.mu.Lock()
		m.projects = nil
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load projects: %w", err)
	}

	var projects []*Project
	if err := json.Unmarshal(raw, &projects); err != nil {
		return fmt.Errorf("failed to parse projects: %w", err)
	}
	now := m.now()
	for _, p := range projects {
		if p.Files == nil {
			p.Files = []File{}
		}
		p.EnsureRoot(now)
	}

	m.mu.Lock()
	m.projects = projects
	m.mu.Unlock()
	logging.Project("Loaded %d projects", len(projects))
	return nil
}

// Reload re-reads the store, e.g. after another process changed it.
func (m *Manager) Reload(ctx context.Context) error {
	if err := m.load(ctx); err != nil {
		return err
	}
	m.publish(Event{Type: EventReloaded})
	return nil
}

// persist writes the project list. Caller holds mu.
func (m *Manager) persist(ctx context.Context) error {
	list := m.projects
	if list == nil {
		list = []*Project{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal projects: %w", err)
	}
	if err := m.store.Set(ctx, store.KeyProjects, raw); err != nil {
		logging.ProjectError("Persist failed: %v", err)
		return fmt.Errorf("failed to save projects: %w", err)
	}
	return nil
}

func (m *Manager) indexOf(id string) int {
	for i, p := range m.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// List returns copies of all projects in creation order.
func (m *Manager) List() []*Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Project, len(m.projects))
	for i, p := range m.projects {
		out[i] = p.Clone()
	}
	return out
}

// Get returns a copy of the project.
func (m *Manager) Get(id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(id)
	if i < 0 {
		return nil, ErrProjectNotFound
	}
	return m.projects[i].Clone(), nil
}

// Create adds an empty project with a root folder.
func (m *Manager) Create(ctx context.Context, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	now := m.now()
	p := &Project{
		ID:           m.newID(),
		Name:         name,
		CreatedAt:    now,
		LastModified: now,
		Files:        []File{},
	}
	p.EnsureRoot(now)
	if err := m.add(ctx, p); err != nil {
		return nil, err
	}
	logging.Project("Created project %s (%s)", p.Name, p.ID)
	return p.Clone(), nil
}

func (m *Manager) add(ctx context.Context, p *Project) error {
	m.mu.Lock()
	m.projects = append(m.projects, p)
	if err := m.persist(ctx); err != nil {
		m.projects = m.projects[:len(m.projects)-1]
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	m.publish(Event{Type: EventCreated, ProjectID: p.ID})
	return nil
}

// Delete removes a project.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return ErrProjectNotFound
	}
	prev := m.projects
	m.projects = append(append([]*Project(nil), prev[:i]...), prev[i+1:]...)
	if err := m.persist(ctx); err != nil {
		m.projects = prev
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if err := m.store.Delete(ctx, store.ChatKey(id)); err != nil {
		logging.ProjectError("Failed to drop chat history for %s: %v", id, err)
	}
	logging.Audit(id).Log(logging.AuditEvent{EventType: logging.AuditProjectDelete, Success: true})
	logging.Project("Deleted project %s", id)
	m.publish(Event{Type: EventDeleted, ProjectID: id})
	return nil
}

// Rename changes a project's display name and its root folder name.
func (m *Manager) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	return m.Update(ctx, id, func(p *Project) error {
		p.Name = name
		if i := p.FolderIndex("/"); i >= 0 {
			p.Folders[i].Name = name
		}
		return nil
	})
}

// Update applies fn to a private copy of the project. When fn succeeds the copy
// replaces the stored project, LastModified is bumped and the set is persisted;
// when fn fails nothing changes.
func (m *Manager) Update(ctx context.Context, id string, fn func(*Project) error) error {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return ErrProjectNotFound
	}
	prev := m.projects[i]
	next := prev.Clone()
	if err := fn(next); err != nil {
		m.mu.Unlock()
		return err
	}
	next.LastModified = m.now()
	m.projects[i] = next
	if err := m.persist(ctx); err != nil {
		m.projects[i] = prev
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.publish(Event{Type: EventUpdated, ProjectID: id})
	return nil
}

// Subscribe registers fn for change events and returns a cancel function.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.subID
	m.subID++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) publish(e Event) {
	m.subMu.RLock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}
