// ABOUTME: TTL-based seen-set guarding against redelivered platform updates
// ABOUTME: Long polling can replay updates after reconnects; processed IDs are remembered briefly

package dedupe

import (
	"sync"
	"time"
)

// sweepEvery bounds how often expired entries are collected.
const sweepEvery = time.Minute

// Seen remembers keys for a TTL. Update IDs are monotonically assigned by
// the platform, so memory is bounded by the TTL alone; expired entries are
// swept inline on writes instead of by a background goroutine.
type Seen struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	ttl       time.Duration
	lastSweep time.Time
}

// New creates a seen-set with the given TTL.
func New(ttl time.Duration) *Seen {
	return &Seen{
		entries: make(map[string]time.Time),
		ttl:     ttl,
	}
}

// CheckAndMark atomically reports whether the key was already seen within
// the TTL, marking it either way.
func (s *Seen) CheckAndMark(key string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > sweepEvery {
		for k, at := range s.entries {
			if now.Sub(at) > s.ttl {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}

	at, ok := s.entries[key]
	s.entries[key] = now
	return ok && now.Sub(at) <= s.ttl
}

// Len reports the number of remembered keys. Used by tests.
func (s *Seen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
