// Package geocode resolves free-text queries, coordinates and place
// references against the geocoding service. Search degrades to an empty
// result on any failure so callers never have to branch on geocoder
// outages.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/courier-booking/internal/logging"
	"github.com/example/courier-booking/internal/models"
	"github.com/example/courier-booking/internal/observability"
)

// MinQueryLength is the default shortest query that triggers a network
// call.
const MinQueryLength = 2

// Client performs lookups against the geocoding HTTP service.
type Client struct {
	Endpoint  string
	MinLength int
	HTTP      *http.Client
	Log       *slog.Logger
}

func NewClient(endpoint string, minLength int, timeout time.Duration, log *slog.Logger) *Client {
	if minLength <= 0 {
		minLength = MinQueryLength
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{Endpoint: endpoint, MinLength: minLength, HTTP: &http.Client{Timeout: timeout}, Log: log}
}

type addressParts struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Postcode string `json:"postcode"`
}

func (a addressParts) joined() string {
	return joinParts(a.Street, a.City, a.State, a.Country, a.Postcode)
}

type searchResult struct {
	ID      string       `json:"id"`
	PlaceID string       `json:"place_id"`
	Name    string       `json:"name"`
	Lat     *float64     `json:"lat"`
	Lon     *float64     `json:"lon"`
	Address addressParts `json:"address"`
}

// Search resolves a free-text query into ranked candidates. Queries below
// MinLength short-circuit to an empty result without a network call,
// and any network or decode failure also yields an empty result: the
// picker degrades to its static fallback list instead of surfacing an
// error mid-keystroke.
func (c *Client) Search(ctx context.Context, query string) []models.LocationCandidate {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < c.MinLength {
		observability.SearchesShortCircuited.Inc()
		return nil
	}
	observability.SearchesTotal.Inc()

	var results []searchResult
	if err := c.get(ctx, "/location/search?q="+url.QueryEscape(query), &results); err != nil {
		c.Log.Warn("location search failed", "query", query, "error", err)
		return nil
	}

	out := make([]models.LocationCandidate, 0, len(results))
	for _, r := range results {
		out = append(out, r.toCandidate())
	}
	return out
}

func (r searchResult) toCandidate() models.LocationCandidate {
	cand := models.LocationCandidate{
		ID:       r.ID,
		PlaceID:  r.PlaceID,
		Subtitle: r.Address.joined(),
	}
	if cand.ID == "" {
		cand.ID = r.PlaceID
	}
	if cand.ID == "" {
		cand.ID = uuid.NewString()
	}
	// Title fallback order: explicit name, assembled address, generic label.
	switch {
	case r.Name != "":
		cand.Title = r.Name
	case cand.Subtitle != "":
		cand.Title = cand.Subtitle
	default:
		cand.Title = "Location"
	}
	if r.Lat != nil && r.Lon != nil {
		cand.Coord = &models.Coord{Lat: *r.Lat, Lon: *r.Lon}
	}
	return cand
}

type reverseResult struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	State       string `json:"state"`
	Country     string `json:"country"`
}

// Reverse turns a coordinate into a human-readable address.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	var r reverseResult
	path := fmt.Sprintf("/location/reverse?lat=%f&lon=%f", lat, lon)
	if err := c.get(ctx, path, &r); err != nil {
		return "", err
	}
	if r.DisplayName != "" {
		return r.DisplayName, nil
	}
	addr := joinParts(r.Name, r.State, r.Country)
	if addr == "" {
		return "", fmt.Errorf("geocode: reverse lookup returned no address for %f,%f", lat, lon)
	}
	return addr, nil
}

// PlaceDetails holds the full resolution of a place reference.
type PlaceDetails struct {
	Coord       models.Coord `json:"coord"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
}

type detailsResult struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

// Details resolves a candidate that only carries a place reference into
// coordinates plus a display name.
func (c *Client) Details(ctx context.Context, placeID string) (*PlaceDetails, error) {
	if placeID == "" {
		return nil, fmt.Errorf("geocode: place id is required")
	}
	var r detailsResult
	if err := c.get(ctx, "/location/details?place_id="+url.QueryEscape(placeID), &r); err != nil {
		return nil, err
	}
	return &PlaceDetails{
		Coord:       models.Coord{Lat: r.Lat, Lon: r.Lon},
		Name:        r.Name,
		Description: r.Description,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocode: HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// joinParts comma-joins the non-empty parts.
func joinParts(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
