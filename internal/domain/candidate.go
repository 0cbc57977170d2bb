package domain

import "sort"

// LocationCandidate is one scored gazetteer match for an incident. The
// candidate set is recomputed wholesale on every re-run of the same run_id.
type LocationCandidate struct {
	RunID      string `json:"run_id"`
	IncidentID string `json:"incident_id"`

	PlaceID  string   `json:"place_id"`
	Region   string   `json:"region,omitempty"`
	Province string   `json:"province,omitempty"`
	District string   `json:"district,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`

	MatchedText   string  `json:"matched_text"`
	MatchedTokens int     `json:"matched_tokens"`
	Method        string  `json:"method"` // e.g. "ngram_2_title"
	Score         float64 `json:"score"`

	// IsPrimary marks rank 1 under RankCandidates' order. At most one per
	// incident; exactly one whenever the candidate set is non-empty.
	IsPrimary bool `json:"is_primary"`
}

// RankCandidates sorts candidates by (score desc, matched tokens desc,
// place_id asc) and marks the first as primary. The tie-break must be
// reproduced bit-for-bit across runs: it decides which candidate backfills
// the incident's hierarchy, and insertion order must never leak into it.
func RankCandidates(cands []LocationCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.MatchedTokens != b.MatchedTokens {
			return a.MatchedTokens > b.MatchedTokens
		}
		return a.PlaceID < b.PlaceID
	})
	for i := range cands {
		cands[i].IsPrimary = i == 0
	}
}

// PrimaryCandidate returns the ranked-first candidate, or false when the
// set is empty. Assumes RankCandidates has run.
func PrimaryCandidate(cands []LocationCandidate) (LocationCandidate, bool) {
	for _, c := range cands {
		if c.IsPrimary {
			return c, true
		}
	}
	return LocationCandidate{}, false
}

// AmbiguityGap returns the score gap between the two best candidates.
// The second return is false for zero or one candidate: with no real
// alternative to weigh, an incident is never ambiguous.
func AmbiguityGap(cands []LocationCandidate) (float64, bool) {
	if len(cands) < 2 {
		return 0, false
	}
	sorted := make([]float64, 0, len(cands))
	for _, c := range cands {
		sorted = append(sorted, c.Score)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	return sorted[0] - sorted[1], true
}
