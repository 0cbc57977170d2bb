package domain

import (
	"context"
	"time"
)

// IncidentRecord is the flat JSON structure published by the upstream
// extraction service. Hierarchy names and the raw coordinate are LLM
// guesses; the location label comes from the news API and is the most
// trusted text field.
type IncidentRecord struct {
	RunID      string `json:"run_id"`
	IncidentID string `json:"incident_id"`

	Title        string `json:"title"`
	Body         string `json:"body,omitempty"`
	LocationText string `json:"location_text,omitempty"`

	// Guessed administrative hierarchy (ADM1–ADM3) plus an optional
	// sub-district place name (ADM4).
	Region        string `json:"region,omitempty"`
	Province      string `json:"province,omitempty"`
	District      string `json:"district,omitempty"`
	SpecificPlace string `json:"specific_place,omitempty"`

	// Raw upstream coordinate, when the LLM or the source API supplied one.
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

// HasUpstreamCoordinate reports whether the record carries a raw coordinate.
func (r IncidentRecord) HasUpstreamCoordinate() bool {
	return r.Lat != nil && r.Lon != nil
}

// HasSpecificPlace reports whether the record names a genuine ADM4 place:
// non-empty and normalized-different from every guessed hierarchy name.
// A "specific" place equal to the district (or province, or region) is
// redundant with the hierarchy and treated as absent.
func (r IncidentRecord) HasSpecificPlace() bool {
	s := Normalize(r.SpecificPlace)
	if s == "" {
		return false
	}
	return s != Normalize(r.District) &&
		s != Normalize(r.Province) &&
		s != Normalize(r.Region)
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized resolved incident destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
