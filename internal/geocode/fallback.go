package geocode

import (
	"math"
	"sort"
	"strings"

	"github.com/example/courier-booking/internal/models"
)

// fallbackAreas is a small static list of well-known pickup areas served
// when the live search yields nothing. Coordinates are area centroids.
var fallbackAreas = []models.LocationCandidate{
	{ID: "fallback-ikeja", Title: "Ikeja", Subtitle: "Ikeja, Lagos, Nigeria", Coord: &models.Coord{Lat: 6.6018, Lon: 3.3515}},
	{ID: "fallback-lekki", Title: "Lekki", Subtitle: "Lekki, Lagos, Nigeria", Coord: &models.Coord{Lat: 6.4698, Lon: 3.5852}},
	{ID: "fallback-yaba", Title: "Yaba", Subtitle: "Yaba, Lagos, Nigeria", Coord: &models.Coord{Lat: 6.5095, Lon: 3.3711}},
	{ID: "fallback-surulere", Title: "Surulere", Subtitle: "Surulere, Lagos, Nigeria", Coord: &models.Coord{Lat: 6.4969, Lon: 3.3481}},
	{ID: "fallback-vi", Title: "Victoria Island", Subtitle: "Victoria Island, Lagos, Nigeria", Coord: &models.Coord{Lat: 6.4281, Lon: 3.4219}},
	{ID: "fallback-ikorodu", Title: "Ikorodu", Subtitle: "Ikorodu, Lagos, Nigeria", Coord: &models.Coord{Lat: 6.6194, Lon: 3.5105}},
}

// StaticFallback returns candidates from the static area list matching the
// query. When near is non-nil, matches are ordered by distance to it so
// the closest areas rank first.
func StaticFallback(query string, near *models.Coord) []models.LocationCandidate {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]models.LocationCandidate, 0, len(fallbackAreas))
	for _, a := range fallbackAreas {
		if query == "" || strings.Contains(strings.ToLower(a.Title), query) || strings.Contains(strings.ToLower(a.Subtitle), query) {
			out = append(out, a)
		}
	}
	if near != nil {
		sort.SliceStable(out, func(i, j int) bool {
			return Haversine(near.Lat, near.Lon, out[i].Coord.Lat, out[i].Coord.Lon) <
				Haversine(near.Lat, near.Lon, out[j].Coord.Lat, out[j].Coord.Lon)
		})
	}
	return out
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
