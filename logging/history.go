package logging

import (
	"sync"

	"tt-commander/types"
)

// History keeps the most recent device log entries, evicting the oldest first.
type History struct {
	mu      sync.Mutex
	entries []types.LogEntry
	start   int
	size    int
}

// NewHistory returns a History holding at most max entries.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 1
	}
	return &History{entries: make([]types.LogEntry, max)}
}

// Append adds entry, evicting the oldest entry when full.
func (h *History) Append(entry types.LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size < len(h.entries) {
		h.entries[(h.start+h.size)%len(h.entries)] = entry
		h.size++
		return
	}
	h.entries[h.start] = entry
	h.start = (h.start + 1) % len(h.entries)
}

// Entries returns the retained entries, oldest first.
func (h *History) Entries() []types.LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.LogEntry, h.size)
	for i := range out {
		out[i] = h.entries[(h.start+i)%len(h.entries)]
	}
	return out
}

// Len reports the number of retained entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// Cap reports the maximum number of retained entries.
func (h *History) Cap() int {
	return len(h.entries)
}
