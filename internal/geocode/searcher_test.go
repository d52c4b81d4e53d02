package geocode

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courier-booking/internal/models"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []string
	done      chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{}, 16)}
}

func (s *recordingSink) deliver(query string, _ []models.LocationCandidate) {
	s.mu.Lock()
	s.delivered = append(s.delivered, query)
	s.mu.Unlock()
	s.done <- struct{}{}
}

func (s *recordingSink) queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.delivered...)
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestSearcherCoalescesRapidQueries(t *testing.T) {
	var mu sync.Mutex
	var searched []string
	search := func(_ context.Context, q string) []models.LocationCandidate {
		mu.Lock()
		searched = append(searched, q)
		mu.Unlock()
		return nil
	}

	sink := newRecordingSink()
	s := NewSearcher(search, 30*time.Millisecond, sink.deliver)
	defer s.Close()

	ctx := context.Background()
	s.Query(ctx, "L")
	s.Query(ctx, "La")
	s.Query(ctx, "Lag")
	s.Query(ctx, "Lagos")

	waitFor(t, sink.done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, searched, 1)
	assert.Equal(t, "Lagos", searched[0])
	assert.Equal(t, []string{"Lagos"}, sink.queries())
}

func TestSearcherDiscardsStaleResponses(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)
	search := func(_ context.Context, q string) []models.LocationCandidate {
		started <- q
		if q == "slow" {
			<-release
		}
		return nil
	}

	sink := newRecordingSink()
	s := NewSearcher(search, time.Millisecond, sink.deliver)
	defer s.Close()

	ctx := context.Background()
	s.Query(ctx, "slow")
	require.Equal(t, "slow", <-started)

	// A newer query supersedes the one still blocked in flight.
	s.Query(ctx, "fast")
	require.Equal(t, "fast", <-started)
	waitFor(t, sink.done)
	close(release)

	// Give the stale response a chance to (incorrectly) deliver.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"fast"}, sink.queries())
}

func TestSearcherCloseStopsPending(t *testing.T) {
	search := func(_ context.Context, q string) []models.LocationCandidate {
		t.Errorf("search ran after close: %q", q)
		return nil
	}
	sink := newRecordingSink()
	s := NewSearcher(search, 20*time.Millisecond, sink.deliver)

	s.Query(context.Background(), "Lagos")
	s.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, sink.queries())
}

func TestStaticFallbackFiltersAndRanks(t *testing.T) {
	all := StaticFallback("", nil)
	assert.Len(t, all, len(fallbackAreas))

	got := StaticFallback("lekki", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "Lekki", got[0].Title)

	// Near Yaba, Yaba should rank first among the full list.
	near := &models.Coord{Lat: 6.5095, Lon: 3.3711}
	ranked := StaticFallback("", near)
	require.NotEmpty(t, ranked)
	assert.Equal(t, "Yaba", ranked[0].Title)
}

func TestHaversine(t *testing.T) {
	// Ikeja to Victoria Island is roughly 21km.
	d := Haversine(6.6018, 3.3515, 6.4281, 3.4219)
	assert.InDelta(t, 21000, d, 2000)
	assert.Zero(t, Haversine(6.5, 3.37, 6.5, 3.37))
}
