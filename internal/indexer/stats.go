package indexer

import (
	"sync"

	"github.com/dshills/vecindex/pkg/types"
)

// Kind is a sync outcome counted by Stats.
type Kind int

const (
	KindAdded Kind = iota
	KindUpdated
	KindRemoved
)

func (k Kind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindUpdated:
		return "updated"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Stats accumulates run counters from concurrent workers.
type Stats struct {
	mu sync.Mutex
	s  types.SyncStats
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{}
}

// Increment adds one to kind.
func (s *Stats) Increment(kind Kind) {
	s.Add(kind, 1)
}

// Add adds n to kind.
func (s *Stats) Add(kind Kind, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case KindAdded:
		s.s.Added += n
	case KindUpdated:
		s.s.Updated += n
	case KindRemoved:
		s.s.Removed += n
	}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() types.SyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}
