package domain

import "time"

// PrecisionLevel tags a resolved coordinate with the fallback tier that
// produced it. The set is closed; anything else is a bug.
type PrecisionLevel string

const (
	PrecisionSpecific    PrecisionLevel = "specific"
	PrecisionExternalAPI PrecisionLevel = "external_api"
	PrecisionDistrict    PrecisionLevel = "district"
	PrecisionProvince    PrecisionLevel = "province"
	PrecisionRegion      PrecisionLevel = "region"
	PrecisionEstimated   PrecisionLevel = "estimated"
	PrecisionNone        PrecisionLevel = "none"
)

// Valid reports whether l is one of the seven defined levels.
func (l PrecisionLevel) Valid() bool {
	switch l {
	case PrecisionSpecific, PrecisionExternalAPI, PrecisionDistrict,
		PrecisionProvince, PrecisionRegion, PrecisionEstimated, PrecisionNone:
		return true
	}
	return false
}

// ResolvedLocation is an incident's final geocoding result for one run.
// Exactly one exists per (run_id, incident_id); re-runs overwrite it.
type ResolvedLocation struct {
	RunID      string `json:"run_id"`
	IncidentID string `json:"incident_id"`

	Lat       *float64       `json:"lat"`
	Lon       *float64       `json:"lon"`
	Precision PrecisionLevel `json:"precision_level"`

	// SpecificPlaceName is set only when Precision is specific or
	// external_api: the ADM4 name the coordinate belongs to.
	SpecificPlaceName string `json:"specific_place_name,omitempty"`

	// Gazetteer provenance for the district/province/region tiers.
	PlaceID  string `json:"place_id,omitempty"`
	Region   string `json:"region,omitempty"`
	Province string `json:"province,omitempty"`
	District string `json:"district,omitempty"`

	ResolvedAt time.Time `json:"resolved_at"`
}

// HasCoordinate reports whether the resolution carries a coordinate.
func (r ResolvedLocation) HasCoordinate() bool {
	return r.Lat != nil && r.Lon != nil
}
