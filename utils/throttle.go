package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum interval between requests to one provider.
// It is safe for concurrent use, so callers sharing one Throttle share one
// aggregate request-rate ceiling.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a Throttle allowing one request per interval. The first
// request never waits. A non-positive interval disables throttling.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// CodeSet is a thread-safe set of strings, used to track reference codes
// already handled within one crawl.
type CodeSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewCodeSet creates an empty CodeSet.
func NewCodeSet() *CodeSet {
	return &CodeSet{seen: make(map[string]struct{})}
}

// Add returns true if the code was newly added, false if already present.
func (s *CodeSet) Add(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[code]; exists {
		return false
	}
	s.seen[code] = struct{}{}
	return true
}

// Size returns the number of unique codes tracked.
func (s *CodeSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
