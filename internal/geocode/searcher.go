package geocode

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/courier-booking/internal/models"
	"github.com/example/courier-booking/internal/observability"
)

// SearchFunc is the lookup a Searcher debounces. *Client.Search satisfies it.
type SearchFunc func(ctx context.Context, query string) []models.LocationCandidate

// Searcher coalesces rapid query updates into a single search call and
// guards against out-of-order responses. Each Query bumps a generation
// counter; a response is delivered only if no newer query was issued while
// it was in flight, so a slow response for an old query can never
// overwrite the results of a newer one.
type Searcher struct {
	search  SearchFunc
	delay   time.Duration
	deliver func(query string, results []models.LocationCandidate)

	gen atomic.Uint64

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

func NewSearcher(search SearchFunc, delay time.Duration, deliver func(string, []models.LocationCandidate)) *Searcher {
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	return &Searcher{search: search, delay: delay, deliver: deliver}
}

// Query schedules a debounced search for q, superseding any pending or
// in-flight query.
func (s *Searcher) Query(ctx context.Context, q string) {
	gen := s.gen.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() { s.run(ctx, gen, q) })
}

func (s *Searcher) run(ctx context.Context, gen uint64, q string) {
	results := s.search(ctx, q)
	if s.gen.Load() != gen {
		observability.SearchResponsesStale.Inc()
		return
	}
	s.deliver(q, results)
}

// Close stops any pending search. In-flight responses are still discarded
// through the generation check.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen.Add(1)
}
