package preview

import (
	"sync"

	"codex/internal/logging"
)

// EventType distinguishes hub events.
type EventType string

const (
	EventConsole EventType = "console"
	EventReload  EventType = "reload"
)

// Event is delivered to preview subscribers of one project.
type Event struct {
	Type      EventType `json:"type"`
	ProjectID string    `json:"projectId"`
	Entry     *Entry    `json:"entry,omitempty"`
}

const subscriberBuffer = 64

// Hub fans console output and reload requests out to every open preview of a
// project. Each project also gets its own Console. Slow subscribers lose
// events rather than block publishers.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[chan Event]struct{}
	consoles map[string]*Console
	size     int
}

// NewHub returns a hub whose consoles hold consoleSize entries.
func NewHub(consoleSize int) *Hub {
	return &Hub{
		subs:     make(map[string]map[chan Event]struct{}),
		consoles: make(map[string]*Console),
		size:     consoleSize,
	}
}

// Console returns the console for projectID, creating it on first use.
func (h *Hub) Console(projectID string) *Console {
	h.mu.RLock()
	c, ok := h.consoles[projectID]
	h.mu.RUnlock()
	if ok {
		return c
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok = h.consoles[projectID]; !ok {
		c = NewConsole(h.size)
		h.consoles[projectID] = c
	}
	return c
}

// Subscribe returns a channel of events for projectID and a cancel function
// that closes it. Cancel is safe to call more than once and after Forget.
func (h *Hub) Subscribe(projectID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.subs[projectID] == nil {
		h.subs[projectID] = make(map[chan Event]struct{})
	}
	h.subs[projectID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[projectID][ch]; !ok {
				return
			}
			delete(h.subs[projectID], ch)
			if len(h.subs[projectID]) == 0 {
				delete(h.subs, projectID)
			}
			close(ch)
		})
	}
}

// Subscribers reports the number of open subscriptions for projectID.
func (h *Hub) Subscribers(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[projectID])
}

// Log records a console message and forwards it to subscribers.
func (h *Hub) Log(projectID, typ, message string) Entry {
	e := h.Console(projectID).Add(typ, message)
	logging.PreviewDebug("console[%s] %s: %s", projectID, e.Type, e.Message)
	h.publish(Event{Type: EventConsole, ProjectID: projectID, Entry: &e})
	return e
}

// Reload asks every open preview of projectID to refresh.
func (h *Hub) Reload(projectID string) {
	h.publish(Event{Type: EventReload, ProjectID: projectID})
}

// Forget drops the console and subscriptions of a deleted project.
func (h *Hub) Forget(projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[projectID] {
		close(ch)
	}
	delete(h.subs, projectID)
	delete(h.consoles, projectID)
}

func (h *Hub) publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[e.ProjectID] {
		select {
		case ch <- e:
		default:
			logging.PreviewDebug("dropping %s event for slow subscriber of %s", e.Type, e.ProjectID)
		}
	}
}
