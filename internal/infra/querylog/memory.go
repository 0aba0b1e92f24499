package querylog

import (
	"context"
	"sync"

	"github.com/yanqian/weather-copilot/internal/domain/query"
)

const memoryCapacity = 256

// MemoryLog keeps the most recent routing decisions in process memory for
// tests and single-instance deployments.
type MemoryLog struct {
	mu      sync.Mutex
	entries []query.RouteEntry
}

// NewMemoryLog constructs a bounded in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Record implements query.RouteLog.
func (l *MemoryLog) Record(_ context.Context, entry query.RouteEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > memoryCapacity {
		l.entries = l.entries[len(l.entries)-memoryCapacity:]
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *MemoryLog) Recent(limit int) []query.RouteEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]query.RouteEntry, 0, limit)
	for i := len(l.entries) - 1; i >= len(l.entries)-limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

var _ query.RouteLog = (*MemoryLog)(nil)
