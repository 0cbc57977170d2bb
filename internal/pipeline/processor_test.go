package pipeline_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andeanwatch/incident-geo/internal/domain"
	"github.com/andeanwatch/incident-geo/internal/gazetteer"
	"github.com/andeanwatch/incident-geo/internal/match"
	"github.com/andeanwatch/incident-geo/internal/pipeline"
)

type memStore struct {
	mu          sync.Mutex
	candidates  map[string][]domain.LocationCandidate
	resolutions map[string]domain.ResolvedLocation
	overrides   map[string]domain.CurationOverride
}

func newMemStore() *memStore {
	return &memStore{
		candidates:  make(map[string][]domain.LocationCandidate),
		resolutions: make(map[string]domain.ResolvedLocation),
		overrides:   make(map[string]domain.CurationOverride),
	}
}

func (m *memStore) ReplaceCandidates(_ context.Context, runID, incidentID string, cands []domain.LocationCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[runID+"/"+incidentID] = cands
	return nil
}

func (m *memStore) SaveResolution(_ context.Context, r domain.ResolvedLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions[r.RunID+"/"+r.IncidentID] = r
	return nil
}

func (m *memStore) GetOverride(_ context.Context, incidentID string) (*domain.CurationOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.overrides[incidentID]; ok {
		return &o, nil
	}
	return nil, nil
}

func fptr(f float64) *float64 { return &f }

func testGazetteer(t *testing.T) *gazetteer.Index {
	t.Helper()
	return gazetteer.Build([]domain.GazetteerPlace{
		{
			PlaceID: "PE-150110", RegionName: "Lima", ProvinceName: "Lima",
			DistrictName: "Comas", SearchName: "Comas",
			Lat: fptr(-11.9333), Lon: fptr(-77.05),
		},
		{
			PlaceID: "PE-150101", RegionName: "Lima", ProvinceName: "Lima",
			DistrictName: "Lima", SearchName: "Lima",
			Lat: fptr(-12.0464), Lon: fptr(-77.0428),
		},
	}, discardLogger())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(store pipeline.Store, idx *gazetteer.Index) *pipeline.IncidentProcessor {
	logger := discardLogger()
	scorer := match.NewScorer(idx, 10, false)
	resolver := domain.NewResolver(idx, nil, logger)
	return pipeline.NewProcessor(scorer, resolver, store, 0.05, newTestMetrics(), logger)
}

func rawRecord(t *testing.T, inc domain.IncidentRecord) domain.RawEvent {
	t.Helper()
	value, err := json.Marshal(inc)
	require.NoError(t, err)
	return domain.RawEvent{Key: []byte(inc.IncidentID), Value: value}
}

func TestProcessor_DistrictResolution(t *testing.T) {
	store := newMemStore()
	proc := newTestProcessor(store, testGazetteer(t))

	raw := rawRecord(t, domain.IncidentRecord{
		RunID:      "run-1",
		IncidentID: "inc-1",
		Title:      "Balacera en mercado",
		Region:     "Lima", Province: "Lima", District: "Comas",
	})

	out, err := proc.Process(context.Background(), raw)
	require.NoError(t, err)

	var published domain.ResolvedLocation
	require.NoError(t, json.Unmarshal(out.Value, &published))
	assert.Equal(t, domain.PrecisionDistrict, published.Precision)
	assert.Equal(t, "PE-150110", published.PlaceID)
	require.NotNil(t, published.Lat)
	assert.Equal(t, -11.9333, *published.Lat)

	assert.Equal(t, []byte("inc-1"), out.Key)
	assert.Equal(t, "run-1", out.Headers["run_id"])
	assert.Equal(t, "district", out.Headers["precision_level"])

	stored, ok := store.resolutions["run-1/inc-1"]
	require.True(t, ok)
	assert.Equal(t, domain.PrecisionDistrict, stored.Precision)
}

func TestProcessor_PrimaryCandidateBackfillsHierarchy(t *testing.T) {
	store := newMemStore()
	proc := newTestProcessor(store, testGazetteer(t))

	// No hierarchy guesses at all; only the location label names Comas.
	raw := rawRecord(t, domain.IncidentRecord{
		RunID:        "run-1",
		IncidentID:   "inc-2",
		Title:        "Extorsión a comerciantes",
		LocationText: "Comas",
	})

	out, err := proc.Process(context.Background(), raw)
	require.NoError(t, err)

	var published domain.ResolvedLocation
	require.NoError(t, json.Unmarshal(out.Value, &published))
	assert.Equal(t, domain.PrecisionDistrict, published.Precision)
	assert.Equal(t, "Comas", published.District)
	assert.Equal(t, "Lima", published.Region)

	cands := store.candidates["run-1/inc-2"]
	require.NotEmpty(t, cands)
	assert.True(t, cands[0].IsPrimary)
}

func TestProcessor_NoMatchResolvesToNone(t *testing.T) {
	store := newMemStore()
	proc := newTestProcessor(store, testGazetteer(t))

	raw := rawRecord(t, domain.IncidentRecord{
		RunID:      "run-1",
		IncidentID: "inc-3",
		Title:      "Sin referencias utilizables",
	})

	out, err := proc.Process(context.Background(), raw)
	require.NoError(t, err)

	var published domain.ResolvedLocation
	require.NoError(t, json.Unmarshal(out.Value, &published))
	assert.Equal(t, domain.PrecisionNone, published.Precision)
	assert.Nil(t, published.Lat)
	assert.Empty(t, store.candidates["run-1/inc-3"])
}

func TestProcessor_ReviewedOverrideChangesPublishedOnly(t *testing.T) {
	store := newMemStore()
	store.overrides["inc-4"] = domain.CurationOverride{
		IncidentID: "inc-4",
		Lat:        fptr(-12.0),
		Lon:        fptr(-76.9),
		Status:     domain.OverrideStatusReviewed,
		UpdatedBy:  "analyst",
	}
	proc := newTestProcessor(store, testGazetteer(t))

	raw := rawRecord(t, domain.IncidentRecord{
		RunID:      "run-1",
		IncidentID: "inc-4",
		Region:     "Lima", Province: "Lima", District: "Comas",
	})

	out, err := proc.Process(context.Background(), raw)
	require.NoError(t, err)

	var published domain.ResolvedLocation
	require.NoError(t, json.Unmarshal(out.Value, &published))
	assert.Equal(t, -12.0, *published.Lat, "published event carries the analyst coordinate")

	stored := store.resolutions["run-1/inc-4"]
	assert.Equal(t, -11.9333, *stored.Lat, "stored resolution keeps the machine output")
}

func TestProcessor_PendingOverrideIgnored(t *testing.T) {
	store := newMemStore()
	store.overrides["inc-5"] = domain.CurationOverride{
		IncidentID: "inc-5",
		Lat:        fptr(-12.0),
		Status:     domain.OverrideStatusPending,
	}
	proc := newTestProcessor(store, testGazetteer(t))

	raw := rawRecord(t, domain.IncidentRecord{
		RunID:      "run-1",
		IncidentID: "inc-5",
		Region:     "Lima", Province: "Lima", District: "Comas",
	})

	out, err := proc.Process(context.Background(), raw)
	require.NoError(t, err)

	var published domain.ResolvedLocation
	require.NoError(t, json.Unmarshal(out.Value, &published))
	assert.Equal(t, -11.9333, *published.Lat, "pending overrides do not apply")
}

func TestProcessor_RejectsMalformedRecords(t *testing.T) {
	proc := newTestProcessor(newMemStore(), testGazetteer(t))

	_, err := proc.Process(context.Background(), domain.RawEvent{Value: []byte("{not json")})
	require.Error(t, err)

	_, err = proc.Process(context.Background(), domain.RawEvent{Value: []byte(`{"run_id":"run-1"}`)})
	require.Error(t, err, "records without incident_id are rejected")
}
