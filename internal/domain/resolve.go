package domain

import (
	"context"
	"log/slog"
)

// HierarchyIndex is the gazetteer view the resolver needs: exact hierarchy
// matches and the capital conventions used by the fallback tiers. Lookups
// are in-memory and never fail.
type HierarchyIndex interface {
	// DistrictMatch finds the place whose (district, province, region) names
	// all match the given normalized-compared triple.
	DistrictMatch(district, province, region string) (GazetteerPlace, bool)

	// ProvinceCapital finds the place whose district name equals the
	// province name within the given region.
	ProvinceCapital(province, region string) (GazetteerPlace, bool)

	// RegionCapital finds the place whose district name equals the region
	// name.
	RegionCapital(region string) (GazetteerPlace, bool)
}

// Resolver walks the fixed priority chain for one incident and returns a
// single authoritative coordinate plus its precision level. The chain
// short-circuits: once a tier's precondition holds the resolver returns
// without evaluating lower tiers.
type Resolver struct {
	index    HierarchyIndex
	geocoder Geocoder // nil disables the external_api tier
	logger   *slog.Logger
}

// NewResolver creates a Resolver. Pass a nil geocoder to disable the
// external API tier (the chain then degrades straight to the gazetteer).
func NewResolver(index HierarchyIndex, geocoder Geocoder, logger *slog.Logger) *Resolver {
	return &Resolver{index: index, geocoder: geocoder, logger: logger}
}

// Resolve never returns an error: the worst outcome for an incident is
// PrecisionNone with nil coordinates. External geocoder failures degrade to
// the gazetteer tiers.
func (r *Resolver) Resolve(ctx context.Context, inc IncidentRecord) ResolvedLocation {
	res := ResolvedLocation{
		RunID:      inc.RunID,
		IncidentID: inc.IncidentID,
		Region:     inc.Region,
		Province:   inc.Province,
		District:   inc.District,
		ResolvedAt: Now(),
	}

	hasADM4 := inc.HasSpecificPlace()

	// Tier 1: upstream coordinate anchored to a genuine ADM4 place name.
	if inc.HasUpstreamCoordinate() && hasADM4 {
		res.Lat, res.Lon = inc.Lat, inc.Lon
		res.Precision = PrecisionSpecific
		res.SpecificPlaceName = inc.SpecificPlace
		return res
	}

	// Tier 2: external geocoder on the ADM4 name. More precise than a
	// district centroid when it hits; errors fall through to the gazetteer.
	if hasADM4 && r.geocoder != nil {
		result, err := r.geocoder.GeocodeAddress(ctx, inc.SpecificPlace, inc.Region)
		switch {
		case err != nil:
			r.logger.Debug("external geocode failed, falling back to gazetteer",
				"incident_id", inc.IncidentID,
				"address", inc.SpecificPlace,
				"error", err,
			)
		case result.Found:
			lat, lon := result.Lat, result.Lon
			res.Lat, res.Lon = &lat, &lon
			res.Precision = PrecisionExternalAPI
			res.SpecificPlaceName = inc.SpecificPlace
			return res
		}
	}

	// Tier 3: exact district triple.
	if inc.District != "" && inc.Province != "" && inc.Region != "" {
		if p, ok := r.index.DistrictMatch(inc.District, inc.Province, inc.Region); ok && p.HasCoordinate() {
			return r.fromGazetteer(res, p, PrecisionDistrict)
		}
	}

	// Tier 4: province capital.
	if inc.Province != "" && inc.Region != "" {
		if p, ok := r.index.ProvinceCapital(inc.Province, inc.Region); ok && p.HasCoordinate() {
			return r.fromGazetteer(res, p, PrecisionProvince)
		}
	}

	// Tier 5: region capital.
	if inc.Region != "" {
		if p, ok := r.index.RegionCapital(inc.Region); ok && p.HasCoordinate() {
			return r.fromGazetteer(res, p, PrecisionRegion)
		}
	}

	// Tier 6: raw upstream coordinate with no gazetteer anchor.
	if inc.HasUpstreamCoordinate() {
		res.Lat, res.Lon = inc.Lat, inc.Lon
		res.Precision = PrecisionEstimated
		return res
	}

	res.Precision = PrecisionNone
	return res
}

func (r *Resolver) fromGazetteer(res ResolvedLocation, p GazetteerPlace, level PrecisionLevel) ResolvedLocation {
	res.Lat, res.Lon = p.Lat, p.Lon
	res.Precision = level
	res.PlaceID = p.PlaceID
	res.Region = p.RegionName
	res.Province = p.ProvinceName
	res.District = p.DistrictName
	return res
}
