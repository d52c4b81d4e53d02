package location

import (
	"context"
	"sync"
)

// Session scopes "resolve the device location at most once" to an explicit
// object instead of a process-global flag. The first successful resolution
// is remembered and returned for the rest of the session; a failed attempt
// does not latch, so the user can re-trigger it manually.
type Session struct {
	mu       sync.Mutex
	resolved *Resolved
}

func NewSession() *Session {
	return &Session{}
}

// Current returns the session's resolution, performing it on first use.
func (s *Session) Current(ctx context.Context, r *Resolver, dev DeviceLocator) (*Resolved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved != nil {
		return s.resolved, nil
	}
	res, err := r.Current(ctx, dev)
	if err != nil {
		return nil, err
	}
	s.resolved = res
	return res, nil
}

// Invalidate forgets the session's resolution, forcing the next Current
// call to fetch a fresh fix.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = nil
}
