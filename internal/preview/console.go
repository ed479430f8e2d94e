package preview

import (
	"strings"
	"sync"
	"time"
)

// Console message types, matching what the page interceptor reports.
const (
	TypeLog     = "log"
	TypeError   = "error"
	TypeWarning = "warning"
	TypeInfo    = "info"
)

// DefaultConsoleSize is used when NewConsole is given a non-positive size.
const DefaultConsoleSize = 500

// Entry is one line of preview console output.
type Entry struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// NormalizeType maps interceptor and browser level names onto the four
// console types. Unknown names become "log".
func NormalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "error":
		return TypeError
	case "warn", "warning":
		return TypeWarning
	case "info":
		return TypeInfo
	default:
		return TypeLog
	}
}

// Console keeps the most recent entries up to a fixed size.
type Console struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	now     func() time.Time
}

// NewConsole returns an empty console holding at most size entries.
func NewConsole(size int) *Console {
	if size <= 0 {
		size = DefaultConsoleSize
	}
	return &Console{size: size, now: time.Now}
}

// Add appends a message and returns the stored entry.
func (c *Console) Add(typ, message string) Entry {
	e := Entry{Type: NormalizeType(typ), Message: message, Time: c.now()}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	if over := len(c.entries) - c.size; over > 0 {
		c.entries = append(c.entries[:0:0], c.entries[over:]...)
	}
	return e
}

// Entries returns a copy of the stored entries, oldest first.
func (c *Console) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len reports the number of stored entries.
func (c *Console) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all entries.
func (c *Console) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}
