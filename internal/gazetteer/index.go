package gazetteer

import (
	"log/slog"
	"strings"

	"github.com/andeanwatch/incident-geo/internal/domain"
)

// aliasSeparators are the separator conventions seen in display names
// ("Huancayo - Junín", "Callao / Lima"). The segment before the separator
// is registered as an additional alias.
var aliasSeparators = []string{" - ", " / ", " | "}

// Index is the in-memory lookup over the gazetteer: exact normalized-name →
// places, plus the hierarchy lookups the resolver's fallback tiers use.
// Immutable after Build and safe for concurrent readers. No fuzzy matching
// lives here; fuzziness is handled upstream by scoring several n-gram
// lengths against exact keys.
type Index struct {
	places []domain.GazetteerPlace
	ids    map[string]bool
	byName map[string][]domain.GazetteerPlace

	byDistrictTriple map[string]domain.GazetteerPlace // district|province|region
	byProvince       map[string]domain.GazetteerPlace // provinceCapital: province|region
	byRegion         map[string]domain.GazetteerPlace // regionCapital: region
}

// Build constructs the index. For each place it registers (1) the full
// search/display name, (2) a short alias cut at the first comma (the
// "City, Province, Region" convention), and (3) aliases split on common
// separators. Aliases can collide across places; the index keeps all of
// them and leaves disambiguation to the scorer.
func Build(places []domain.GazetteerPlace, logger *slog.Logger) *Index {
	idx := &Index{
		places:           places,
		ids:              make(map[string]bool, len(places)),
		byName:           make(map[string][]domain.GazetteerPlace),
		byDistrictTriple: make(map[string]domain.GazetteerPlace),
		byProvince:       make(map[string]domain.GazetteerPlace),
		byRegion:         make(map[string]domain.GazetteerPlace),
	}

	for _, p := range places {
		idx.ids[p.PlaceID] = true
		idx.registerHierarchy(p)

		full := p.Name()
		if full == "" {
			continue
		}

		idx.addAlias(full, p)

		if short, _, found := strings.Cut(full, ","); found {
			idx.addAlias(short, p)
		}
		for _, sep := range aliasSeparators {
			if head, _, found := strings.Cut(full, sep); found {
				idx.addAlias(head, p)
			}
		}
	}

	logger.Info("gazetteer index built",
		"places", len(places),
		"keys", len(idx.byName),
	)
	return idx
}

func (idx *Index) addAlias(name string, p domain.GazetteerPlace) {
	key := domain.Normalize(name)
	if key == "" {
		return
	}
	for _, existing := range idx.byName[key] {
		if existing.PlaceID == p.PlaceID {
			return
		}
	}
	idx.byName[key] = append(idx.byName[key], p)
}

func (idx *Index) registerHierarchy(p domain.GazetteerPlace) {
	region := domain.Normalize(p.RegionName)
	province := domain.Normalize(p.ProvinceName)
	district := domain.Normalize(p.DistrictName)

	if district != "" && province != "" && region != "" {
		key := district + "|" + province + "|" + region
		if _, taken := idx.byDistrictTriple[key]; !taken {
			idx.byDistrictTriple[key] = p
		}
		// Province capital convention: the capital district carries the
		// province's own name.
		if district == province {
			capKey := province + "|" + region
			if _, taken := idx.byProvince[capKey]; !taken {
				idx.byProvince[capKey] = p
			}
		}
		// Region capital convention: district named after the region.
		if district == region {
			if _, taken := idx.byRegion[region]; !taken {
				idx.byRegion[region] = p
			}
		}
	}
}

// Lookup returns every place registered under the normalized form of text.
// Zero results is common; multiple results mean an alias collision.
func (idx *Index) Lookup(normalizedText string) []domain.GazetteerPlace {
	return idx.byName[normalizedText]
}

// Contains reports whether place_id exists in the loaded gazetteer. Used
// for referential-integrity checks on curation overrides.
func (idx *Index) Contains(placeID string) bool {
	return idx.ids[placeID]
}

// Len returns the number of loaded places.
func (idx *Index) Len() int { return len(idx.places) }

// DistrictMatch implements domain.HierarchyIndex.
func (idx *Index) DistrictMatch(district, province, region string) (domain.GazetteerPlace, bool) {
	d, pr, rg := domain.Normalize(district), domain.Normalize(province), domain.Normalize(region)
	if d == "" || pr == "" || rg == "" {
		return domain.GazetteerPlace{}, false
	}
	p, ok := idx.byDistrictTriple[d+"|"+pr+"|"+rg]
	return p, ok
}

// ProvinceCapital implements domain.HierarchyIndex.
func (idx *Index) ProvinceCapital(province, region string) (domain.GazetteerPlace, bool) {
	pr, rg := domain.Normalize(province), domain.Normalize(region)
	if pr == "" || rg == "" {
		return domain.GazetteerPlace{}, false
	}
	p, ok := idx.byProvince[pr+"|"+rg]
	return p, ok
}

// RegionCapital implements domain.HierarchyIndex.
func (idx *Index) RegionCapital(region string) (domain.GazetteerPlace, bool) {
	rg := domain.Normalize(region)
	if rg == "" {
		return domain.GazetteerPlace{}, false
	}
	p, ok := idx.byRegion[rg]
	return p, ok
}
