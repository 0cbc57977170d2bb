// Package match generates and scores gazetteer candidates for incident text
// and flags incidents whose top matches are too close to trust.
package match

import (
	"fmt"
	"math"

	"github.com/andeanwatch/incident-geo/internal/domain"
	"github.com/andeanwatch/incident-geo/internal/gazetteer"
)

// DefaultTopK is the number of candidates kept per incident.
const DefaultTopK = 10

// Source fields an n-gram can come from, in trust order. The location label
// comes straight from the news API and earns a score boost; the body is
// opt-in because it adds recall along with noise.
const (
	fieldLocation = "loc"
	fieldTitle    = "title"
	fieldBody     = "body"
)

// Scorer matches incident text n-grams against the gazetteer index and
// produces a ranked, deduplicated top-K candidate set. Scoring is pure and
// deterministic given the same gazetteer snapshot: re-running an incident
// yields an identical candidate list.
type Scorer struct {
	index    *gazetteer.Index
	topK     int
	scanBody bool
}

// NewScorer creates a Scorer. topK <= 0 selects DefaultTopK.
func NewScorer(index *gazetteer.Index, topK int, scanBody bool) *Scorer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Scorer{index: index, topK: topK, scanBody: scanBody}
}

// Score produces the candidate set for one incident. A nil result is
// legitimate when the location label is empty and body scanning is off;
// callers must treat "no candidates" as coverage information, not an error.
func (s *Scorer) Score(inc domain.IncidentRecord) []domain.LocationCandidate {
	type source struct {
		field  string
		tokens []string
	}
	sources := []source{
		{fieldLocation, domain.Tokenize(inc.LocationText)},
		{fieldTitle, domain.Tokenize(inc.Title)},
	}
	if s.scanBody {
		sources = append(sources, source{fieldBody, domain.Tokenize(inc.Body)})
	}

	// Longest n-grams first so "san juan de lurigancho" is generated before
	// "san juan"; dedup keeps the better score regardless of order, but the
	// generation order keeps first-seen ties deterministic.
	var raw []domain.LocationCandidate
	for _, n := range []int{3, 2, 1} {
		for _, src := range sources {
			for _, gram := range domain.NGrams(src.tokens, n) {
				for _, p := range s.index.Lookup(gram) {
					raw = append(raw, domain.LocationCandidate{
						RunID:         inc.RunID,
						IncidentID:    inc.IncidentID,
						PlaceID:       p.PlaceID,
						Region:        p.RegionName,
						Province:      p.ProvinceName,
						District:      p.DistrictName,
						Lat:           p.Lat,
						Lon:           p.Lon,
						MatchedText:   gram,
						MatchedTokens: n,
						Method:        fmt.Sprintf("ngram_%d_%s", n, src.field),
						Score:         scoreCandidate(p.AdminLevel(), n, src.field == fieldLocation),
					})
				}
			}
		}
	}

	// Dedupe by place: the same district is often hit by several n-grams
	// and fields; only the best-scoring occurrence survives.
	bestByPlace := make(map[string]int, len(raw))
	var deduped []domain.LocationCandidate
	for _, c := range raw {
		if i, seen := bestByPlace[c.PlaceID]; seen {
			if c.Score > deduped[i].Score {
				deduped[i] = c
			}
			continue
		}
		bestByPlace[c.PlaceID] = len(deduped)
		deduped = append(deduped, c)
	}

	domain.RankCandidates(deduped)
	if len(deduped) > s.topK {
		deduped = deduped[:s.topK]
	}
	return deduped
}

// scoreCandidate implements the scoring table from the package docs:
// admin-level base + token-length bonus + location-label boost, capped at
// 1.0 and rounded to 4 decimals so stored scores compare exactly.
func scoreCandidate(adminLevel, nTokens int, fromLocationText bool) float64 {
	base := map[int]float64{1: 0.20, 2: 0.35, 3: 0.50}[adminLevel]
	if base == 0 {
		base = 0.20
	}
	bonus := map[int]float64{1: 0.10, 2: 0.20, 3: 0.30}[nTokens]
	if bonus == 0 {
		bonus = 0.10
	}
	score := base + bonus
	if fromLocationText {
		score += 0.15
	}
	return math.Round(math.Min(1.0, score)*10000) / 10000
}
