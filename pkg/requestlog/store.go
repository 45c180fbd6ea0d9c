package requestlog

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Logger is the minimal interface for recording entries.
type Logger interface {
	Log(entry *Entry)
}

// Store records entries and answers queries over them.
type Store interface {
	Logger

	// Get retrieves an entry by ID.
	Get(id string) *Entry

	// List returns entries oldest first, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all entries.
	Clear()

	// Count returns the number of entries.
	Count() int
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	Method string
	// Path matches the exact path, or a prefix when it ends in "/".
	Path    string
	Route   string
	Outcome Outcome
	Status  int
	// Limit keeps only the newest Limit matches.
	Limit int
}

// Matches reports whether e satisfies every field of f.
func (f *Filter) Matches(e *Entry) bool {
	if f == nil {
		return true
	}
	if f.Method != "" && !strings.EqualFold(e.Method, f.Method) {
		return false
	}
	if f.Path != "" && !matchesPath(e.Path, f.Path) {
		return false
	}
	if f.Route != "" && e.Route != f.Route {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.Status != 0 && e.Status != f.Status {
		return false
	}
	return true
}

func matchesPath(path, want string) bool {
	if strings.HasSuffix(want, "/") && len(want) > 1 {
		return strings.HasPrefix(path, want) || path == strings.TrimSuffix(want, "/")
	}
	return path == want
}

// MemoryStore keeps entries in a bounded FIFO buffer.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []*Entry
	maxEntries int
	nextID     int64
}

// NewMemoryStore creates a store holding at most maxEntries entries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryStore{maxEntries: maxEntries}
}

// Log records an entry, assigning an ID and timestamp when missing.
func (s *MemoryStore) Log(entry *Entry) {
	if entry == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	if entry.ID == "" {
		entry.ID = "call-" + strconv.FormatInt(s.nextID, 10)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if len(s.entries) >= s.maxEntries {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
}

// Get retrieves an entry by ID.
func (s *MemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// List returns matching entries oldest first.
func (s *MemoryStore) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	if filter != nil && filter.Limit > 0 && filter.Limit < len(out) {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Count returns the number of entries.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
