package match

import (
	"sort"

	"github.com/andeanwatch/incident-geo/internal/domain"
)

// DefaultAmbiguityThreshold is the score gap at or below which an incident
// is flagged for human review.
const DefaultAmbiguityThreshold = 0.05

// IncidentAmbiguity is the per-incident verdict: best and second-best
// candidate scores and whether the gap between them is too small for
// automatic selection.
type IncidentAmbiguity struct {
	IncidentID string   `json:"incident_id"`
	TopScore   float64  `json:"top_score"`
	RunnerUp   *float64 `json:"runner_up_score,omitempty"`
	Gap        float64  `json:"gap"`
	Ambiguous  bool     `json:"ambiguous"`
}

// Analyzer computes top1/top2 score gaps over a run's candidate rows.
// Ambiguity is a review signal, never an error: resolution proceeds with
// the primary candidate regardless.
type Analyzer struct {
	threshold float64
}

// NewAnalyzer creates an Analyzer. threshold <= 0 selects the default.
func NewAnalyzer(threshold float64) *Analyzer {
	if threshold <= 0 {
		threshold = DefaultAmbiguityThreshold
	}
	return &Analyzer{threshold: threshold}
}

// Threshold returns the configured gap threshold.
func (a *Analyzer) Threshold() float64 { return a.threshold }

// Analyze groups a run's candidates by incident and returns one verdict per
// incident with at least one candidate, sorted by incident id. Incidents
// with zero or one candidate are never ambiguous: there is no real
// alternative to weigh.
func (a *Analyzer) Analyze(cands []domain.LocationCandidate) []IncidentAmbiguity {
	byIncident := groupByIncident(cands)

	out := make([]IncidentAmbiguity, 0, len(byIncident))
	for id, ic := range byIncident {
		scores := make([]float64, 0, len(ic))
		for _, c := range ic {
			scores = append(scores, c.Score)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

		v := IncidentAmbiguity{IncidentID: id, TopScore: scores[0], Gap: scores[0]}
		if len(scores) > 1 {
			s2 := scores[1]
			v.RunnerUp = &s2
			v.Gap = scores[0] - s2
			v.Ambiguous = v.Gap <= a.threshold
		}
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].IncidentID < out[j].IncidentID })
	return out
}

// ReviewExport returns the ranked candidate rows of every ambiguous
// incident, capped at topK rows per incident, for the human-review CSV.
func (a *Analyzer) ReviewExport(cands []domain.LocationCandidate, topK int) []domain.LocationCandidate {
	if topK <= 0 {
		topK = DefaultTopK
	}

	ambiguous := make(map[string]bool)
	for _, v := range a.Analyze(cands) {
		if v.Ambiguous {
			ambiguous[v.IncidentID] = true
		}
	}

	byIncident := groupByIncident(cands)
	ids := make([]string, 0, len(ambiguous))
	for id := range ambiguous {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []domain.LocationCandidate
	for _, id := range ids {
		ranked := make([]domain.LocationCandidate, len(byIncident[id]))
		copy(ranked, byIncident[id])
		domain.RankCandidates(ranked)
		if len(ranked) > topK {
			ranked = ranked[:topK]
		}
		out = append(out, ranked...)
	}
	return out
}

func groupByIncident(cands []domain.LocationCandidate) map[string][]domain.LocationCandidate {
	byIncident := make(map[string][]domain.LocationCandidate)
	for _, c := range cands {
		byIncident[c.IncidentID] = append(byIncident[c.IncidentID], c)
	}
	return byIncident
}
