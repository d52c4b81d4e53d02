// Package location resolves the device's current position into a
// coordinate plus a human-readable address, caching the last resolution so
// repeated fixes from the same spot do not re-hit the reverse geocoder.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/example/courier-booking/internal/logging"
	"github.com/example/courier-booking/internal/models"
	"github.com/example/courier-booking/internal/observability"
)

var (
	// ErrPermissionDenied is reported when the device refused the location
	// permission request.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrUnavailable is reported when the device could not produce a fix.
	ErrUnavailable = errors.New("location unavailable")
)

// DefaultEpsilonDeg is the coordinate tolerance, in degrees on each axis,
// under which two fixes count as the same place (roughly 10-15m).
const DefaultEpsilonDeg = 1e-4

// DeviceLocator produces the device's current fix. Implementations report
// ErrPermissionDenied or ErrUnavailable as appropriate.
type DeviceLocator interface {
	Fix(ctx context.Context) (models.Coord, error)
}

// ReverseGeocoder turns a coordinate into an address. *geocode.Client
// satisfies it.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// CachedFix is the persisted last resolution.
type CachedFix struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

// CacheStore persists the last resolved fix. Load returns (nil, nil) when
// nothing is cached.
type CacheStore interface {
	Load(ctx context.Context) (*CachedFix, error)
	Save(ctx context.Context, fix CachedFix) error
}

// Resolved is the outcome of a current-location resolution.
type Resolved struct {
	Coord   models.Coord
	Address string
}

// Resolver resolves device fixes against the cache and reverse geocoder.
type Resolver struct {
	Reverse    ReverseGeocoder
	Cache      CacheStore
	EpsilonDeg float64
	Log        *slog.Logger
}

func NewResolver(rev ReverseGeocoder, cache CacheStore, epsilonDeg float64, log *slog.Logger) *Resolver {
	if epsilonDeg <= 0 {
		epsilonDeg = DefaultEpsilonDeg
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Resolver{Reverse: rev, Cache: cache, EpsilonDeg: epsilonDeg, Log: log}
}

// Current fetches a fix from the locator and resolves it to an address.
// A fix within EpsilonDeg of the cached one reuses the cached address
// without a reverse-geocode round trip.
func (r *Resolver) Current(ctx context.Context, dev DeviceLocator) (*Resolved, error) {
	fix, err := dev.Fix(ctx)
	if err != nil {
		return nil, err
	}
	return r.Locate(ctx, fix)
}

// Locate resolves an already obtained fix.
func (r *Resolver) Locate(ctx context.Context, fix models.Coord) (*Resolved, error) {
	if cached, err := r.Cache.Load(ctx); err != nil {
		r.Log.Warn("location cache load failed", "error", err)
	} else if cached != nil && r.withinEpsilon(fix, *cached) {
		observability.GeocodeCacheHits.Inc()
		return &Resolved{Coord: fix, Address: cached.Address}, nil
	}
	observability.GeocodeCacheMisses.Inc()

	addr, err := r.Reverse.Reverse(ctx, fix.Lat, fix.Lon)
	if err != nil {
		return nil, fmt.Errorf("resolve current location: %w", err)
	}
	entry := CachedFix{Lat: fix.Lat, Lon: fix.Lon, Address: addr, Timestamp: time.Now().UTC()}
	if err := r.Cache.Save(ctx, entry); err != nil {
		r.Log.Warn("location cache save failed", "error", err)
	}
	return &Resolved{Coord: fix, Address: addr}, nil
}

// LastKnown returns the coordinate of the cached fix, or nil when nothing
// has been resolved yet. Used to bias fallback search ranking.
func (r *Resolver) LastKnown(ctx context.Context) *models.Coord {
	cached, err := r.Cache.Load(ctx)
	if err != nil || cached == nil {
		return nil
	}
	return &models.Coord{Lat: cached.Lat, Lon: cached.Lon}
}

func (r *Resolver) withinEpsilon(fix models.Coord, cached CachedFix) bool {
	return math.Abs(fix.Lat-cached.Lat) <= r.EpsilonDeg &&
		math.Abs(fix.Lon-cached.Lon) <= r.EpsilonDeg
}

// ReportedFix adapts a fix reported by the mobile shell (which owns the
// platform permission prompt) into a DeviceLocator. Status carries the
// shell's outcome: "ok", "denied" or "unavailable".
type ReportedFix struct {
	Status string
	Coord  models.Coord
}

func (f ReportedFix) Fix(ctx context.Context) (models.Coord, error) {
	switch f.Status {
	case "", "ok":
		return f.Coord, nil
	case "denied":
		return models.Coord{}, ErrPermissionDenied
	default:
		return models.Coord{}, ErrUnavailable
	}
}
