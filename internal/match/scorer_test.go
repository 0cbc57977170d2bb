package match

import (
	"io"
	"log/slog"
	"testing"

	"github.com/andeanwatch/incident-geo/internal/domain"
	"github.com/andeanwatch/incident-geo/internal/gazetteer"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fptr(v float64) *float64 { return &v }

func testIndex(t *testing.T) *gazetteer.Index {
	t.Helper()
	places := []domain.GazetteerPlace{
		{
			PlaceID: "PE-150110", RegionName: "Lima", ProvinceName: "Lima",
			DistrictName: "Comas", SearchName: "Comas, Lima, Perú",
			Lat: fptr(-11.9333), Lon: fptr(-77.0500),
		},
		{
			PlaceID: "PE-150132", RegionName: "Lima", ProvinceName: "Lima",
			DistrictName: "San Juan de Lurigancho", SearchName: "San Juan de Lurigancho, Lima, Perú",
			Lat: fptr(-11.9775), Lon: fptr(-77.0094),
		},
		{
			PlaceID: "PE-120408", RegionName: "Junín", ProvinceName: "Concepción",
			DistrictName: "Comas", SearchName: "Comas, Concepción, Perú",
			Lat: fptr(-11.7458), Lon: fptr(-75.0897),
		},
		{
			// Region-level row, no district/province.
			PlaceID: "PE-040000", RegionName: "Arequipa",
			DisplayName: "Arequipa",
			Lat:         fptr(-16.3989), Lon: fptr(-71.5350),
		},
	}
	return gazetteer.Build(places, discardLogger())
}

func TestScorer_TitleMatchDistrict(t *testing.T) {
	s := NewScorer(testIndex(t), 10, false)

	inc := domain.IncidentRecord{
		RunID: "run-1", IncidentID: "inc-1",
		Title: "Balacera en Comas deja dos heridos",
	}

	cands := s.Score(inc)
	require.NotEmpty(t, cands)

	// Both Comas districts match the 1-token title n-gram with equal score;
	// the lower place_id ranks first.
	primary, ok := domain.PrimaryCandidate(cands)
	require.True(t, ok)
	assert.Equal(t, "PE-120408", primary.PlaceID)
	assert.Equal(t, "comas", primary.MatchedText)
	assert.Equal(t, "ngram_1_title", primary.Method)
	// ADM3 base 0.50 + 1-token bonus 0.10, no location boost.
	assert.InDelta(t, 0.60, primary.Score, 1e-9)
}

func TestScorer_LocationTextBoost(t *testing.T) {
	s := NewScorer(testIndex(t), 10, false)

	inc := domain.IncidentRecord{
		RunID: "run-1", IncidentID: "inc-1",
		Title:        "Explosión en mercado",
		LocationText: "Comas, Lima, Perú",
	}

	cands := s.Score(inc)
	require.NotEmpty(t, cands)

	primary, _ := domain.PrimaryCandidate(cands)
	assert.Equal(t, "PE-150110", primary.PlaceID)
	// Full 3-token alias from the location label: 0.50 + 0.30 + 0.15.
	assert.InDelta(t, 0.95, primary.Score, 1e-9)
	assert.Equal(t, "ngram_3_loc", primary.Method)
}

func TestScorer_ScoreTable(t *testing.T) {
	assert.InDelta(t, 0.30, scoreCandidate(1, 1, false), 1e-9)
	assert.InDelta(t, 0.55, scoreCandidate(2, 2, false), 1e-9)
	assert.InDelta(t, 0.80, scoreCandidate(3, 3, false), 1e-9)
	assert.InDelta(t, 0.95, scoreCandidate(3, 3, true), 1e-9)
	// Out-of-range inputs fall back to the lowest base and bonus.
	assert.InDelta(t, 0.30, scoreCandidate(7, 0, false), 1e-9)
}

func TestScorer_MonotonicInTokenLength(t *testing.T) {
	for _, level := range []int{1, 2, 3} {
		for _, boosted := range []bool{false, true} {
			s1 := scoreCandidate(level, 1, boosted)
			s2 := scoreCandidate(level, 2, boosted)
			s3 := scoreCandidate(level, 3, boosted)
			assert.LessOrEqual(t, s1, s2)
			assert.LessOrEqual(t, s2, s3, "3-token match must never score below 2-token at level %d", level)
		}
	}
}

func TestScorer_DedupeKeepsBestScore(t *testing.T) {
	s := NewScorer(testIndex(t), 10, false)

	// "Comas" appears in both the location label (boosted) and the title:
	// one candidate per place survives, carrying the boosted score.
	inc := domain.IncidentRecord{
		RunID: "run-1", IncidentID: "inc-1",
		Title:        "Protesta en Comas",
		LocationText: "Comas",
	}

	cands := s.Score(inc)

	seen := make(map[string]int)
	for _, c := range cands {
		seen[c.PlaceID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "place %s duplicated", id)
	}

	primary, _ := domain.PrimaryCandidate(cands)
	assert.Equal(t, "ngram_1_loc", primary.Method)
	assert.InDelta(t, 0.75, primary.Score, 1e-9) // 0.50 + 0.10 + 0.15
}

func TestScorer_FourTokenNameBeyondWindow(t *testing.T) {
	s := NewScorer(testIndex(t), 10, false)

	inc := domain.IncidentRecord{
		RunID: "run-1", IncidentID: "inc-1",
		Title: "Asalto en San Juan de Lurigancho esta madrugada",
	}

	// The shortest alias for this district is the 4-token name itself,
	// beyond the 3-gram window: a known recall limit, not a false positive.
	assert.Empty(t, s.Score(inc))
}

func TestScorer_BodyOnlyWhenEnabled(t *testing.T) {
	inc := domain.IncidentRecord{
		RunID: "run-1", IncidentID: "inc-1",
		Title: "Sin lugar en el título",
		Body:  "Los hechos ocurrieron en Comas anoche.",
	}

	noBody := NewScorer(testIndex(t), 10, false).Score(inc)
	assert.Empty(t, noBody, "body match requires scanBody")

	withBody := NewScorer(testIndex(t), 10, true).Score(inc)
	require.NotEmpty(t, withBody)
	primary, _ := domain.PrimaryCandidate(withBody)
	assert.Equal(t, "ngram_1_body", primary.Method)
}

func TestScorer_ZeroCandidatesIsLegitimate(t *testing.T) {
	s := NewScorer(testIndex(t), 10, false)

	inc := domain.IncidentRecord{
		RunID: "run-1", IncidentID: "inc-1",
		Title: "Capturan a tres sospechosos tras persecución",
	}

	assert.Empty(t, s.Score(inc))
}

func TestScorer_TopKTruncation(t *testing.T) {
	s := NewScorer(testIndex(t), 1, false)

	inc := domain.IncidentRecord{
		RunID: "run-1", IncidentID: "inc-1",
		Title: "Comas y Arequipa en alerta",
	}

	cands := s.Score(inc)
	assert.Len(t, cands, 1)
	assert.True(t, cands[0].IsPrimary)
}

func TestScorer_Deterministic(t *testing.T) {
	s := NewScorer(testIndex(t), 10, true)

	inc := domain.IncidentRecord{
		RunID: "run-1", IncidentID: "inc-1",
		Title:        "Enfrentamiento en Comas",
		LocationText: "Comas, Lima, Perú",
		Body:         "Vecinos de Comas y Arequipa reportaron disparos.",
	}

	first := s.Score(inc)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, s.Score(inc)); diff != "" {
			t.Fatalf("scoring not deterministic (-first +rerun):\n%s", diff)
		}
	}
}

func TestScorer_ExactlyOnePrimary(t *testing.T) {
	s := NewScorer(testIndex(t), 10, false)

	inc := domain.IncidentRecord{
		RunID: "run-1", IncidentID: "inc-1",
		Title:        "Comas",
		LocationText: "Arequipa",
	}

	cands := s.Score(inc)
	require.NotEmpty(t, cands)

	primaries := 0
	for _, c := range cands {
		if c.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
}
