package domain

// GazetteerPlace is one immutable row of the reference place list. Rows are
// loaded wholesale at startup and never mutated at request time.
type GazetteerPlace struct {
	PlaceID      string
	RegionName   string
	ProvinceName string
	DistrictName string
	DisplayName  string
	SearchName   string

	// Centroid coordinate. Nil on higher-level-only rows that carry names
	// but no geometry.
	Lat *float64
	Lon *float64
}

// AdminLevel derives the granularity of the row: 3 when a district name is
// present, 2 for province-level rows, 1 for region-level rows.
func (p GazetteerPlace) AdminLevel() int {
	switch {
	case p.DistrictName != "":
		return 3
	case p.ProvinceName != "":
		return 2
	default:
		return 1
	}
}

// Name returns the best matchable name for the place: search_name when the
// reference file precomputed one, display_name otherwise.
func (p GazetteerPlace) Name() string {
	if p.SearchName != "" {
		return p.SearchName
	}
	return p.DisplayName
}

// HasCoordinate reports whether the row carries a usable centroid.
func (p GazetteerPlace) HasCoordinate() bool {
	return p.Lat != nil && p.Lon != nil
}
