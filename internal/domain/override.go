package domain

import "time"

// Override review statuses. Free-form values are rejected at write time.
const (
	OverrideStatusPending  = "pending"
	OverrideStatusReviewed = "reviewed"
	OverrideStatusRejected = "rejected"
)

// CurationOverride is an analyst correction for one incident. Overrides are
// keyed by incident_id alone and persist across runs, unlike candidates and
// resolutions which are recomputed per run_id. Only human action creates or
// updates an override; the resolver never writes one.
//
// Every overridable field is a pointer: nil means "keep the resolver's
// value", so a partial correction (say, just the latitude) leaves the rest
// of the resolution intact.
type CurationOverride struct {
	IncidentID string `json:"incident_id"`

	PlaceID           *string  `json:"place_id,omitempty"`
	Lat               *float64 `json:"lat,omitempty"`
	Lon               *float64 `json:"lon,omitempty"`
	Region            *string  `json:"region,omitempty"`
	Province          *string  `json:"province,omitempty"`
	District          *string  `json:"district,omitempty"`
	SpecificPlaceName *string  `json:"specific_place_name,omitempty"`

	Status      string    `json:"status"`
	ReviewNotes string    `json:"review_notes,omitempty"`
	UpdatedBy   string    `json:"updated_by"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ApplyOverride merges an analyst override on top of a resolved location,
// field by field: override value when set, resolver value otherwise. The
// inputs are never mutated; candidates and the stored resolution keep the
// machine output for audit.
func ApplyOverride(resolved ResolvedLocation, o *CurationOverride) ResolvedLocation {
	if o == nil {
		return resolved
	}
	out := resolved
	if o.Lat != nil {
		out.Lat = o.Lat
	}
	if o.Lon != nil {
		out.Lon = o.Lon
	}
	if o.PlaceID != nil {
		out.PlaceID = *o.PlaceID
	}
	if o.Region != nil {
		out.Region = *o.Region
	}
	if o.Province != nil {
		out.Province = *o.Province
	}
	if o.District != nil {
		out.District = *o.District
	}
	if o.SpecificPlaceName != nil {
		out.SpecificPlaceName = *o.SpecificPlaceName
	}
	return out
}
