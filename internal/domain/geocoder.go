package domain

import "context"

// GeocodingResult contains a coordinate returned by a geocoding provider.
// Found distinguishes "provider answered with no match" from a real hit,
// since (0, 0) is a valid coordinate.
type GeocodingResult struct {
	Lat        float64
	Lon        float64
	Address    string
	Confidence float64 // 0.0–1.0 provider confidence score
	Found      bool
}

// Geocoder resolves a specific free-text address to a coordinate, scoped to
// Peru. Implementations own their rate limiting, caching, and retries; a
// nil result with nil error means the provider had no match.
type Geocoder interface {
	// GeocodeAddress resolves a sub-district address. regionHint narrows the
	// search when the incident's region is known; pass "" when it is not.
	GeocodeAddress(ctx context.Context, address, regionHint string) (GeocodingResult, error)
}
