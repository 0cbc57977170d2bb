package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andeanwatch/incident-geo/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(filepath.Join(t.TempDir(), "incident-geo.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fptr(f float64) *float64 { return &f }
func sptr(s string) *string   { return &s }

type allowAll struct{}

func (allowAll) Contains(string) bool { return true }

type allowNone struct{}

func (allowNone) Contains(string) bool { return false }

func sampleCandidates(runID string) []domain.LocationCandidate {
	return []domain.LocationCandidate{
		{
			RunID: runID, IncidentID: "inc-1", PlaceID: "PE-150110",
			Region: "Lima", Province: "Lima", District: "Comas",
			Lat: fptr(-11.9333), Lon: fptr(-77.05),
			MatchedText: "comas", MatchedTokens: 1, Method: "ngram_1_loc",
			Score: 0.75, IsPrimary: true,
		},
		{
			RunID: runID, IncidentID: "inc-1", PlaceID: "PE-120408",
			Region: "Junín", Province: "Concepción", District: "Comas",
			MatchedText: "comas", MatchedTokens: 1, Method: "ngram_1_title",
			Score: 0.60,
		},
	}
}

func TestStore_ReplaceCandidatesIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceCandidates(ctx, "run-1", "inc-1", sampleCandidates("run-1")))
	// Second pass over the same incident must not duplicate or orphan rows.
	require.NoError(t, s.ReplaceCandidates(ctx, "run-1", "inc-1", sampleCandidates("run-1")[:1]))

	got, err := s.CandidatesByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PE-150110", got[0].PlaceID)
	assert.True(t, got[0].IsPrimary)
	require.NotNil(t, got[0].Lat)
	assert.Equal(t, -11.9333, *got[0].Lat)
}

func TestStore_CandidatesByRun_OrderAndNullCoords(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceCandidates(ctx, "run-1", "inc-1", sampleCandidates("run-1")))

	got, err := s.CandidatesByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "PE-150110", got[0].PlaceID, "highest score first")
	assert.Nil(t, got[1].Lat, "NULL coordinate survives the round trip as nil")

	other, err := s.CandidatesByRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, other, "runs are isolated")
}

func TestStore_SaveResolutionUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	r := domain.ResolvedLocation{
		RunID: "run-1", IncidentID: "inc-1",
		Lat: fptr(-11.9333), Lon: fptr(-77.05),
		Precision: domain.PrecisionDistrict,
		PlaceID:   "PE-150110", Region: "Lima", Province: "Lima", District: "Comas",
		ResolvedAt: at,
	}
	require.NoError(t, s.SaveResolution(ctx, r))

	r.Precision = domain.PrecisionSpecific
	r.SpecificPlaceName = "Mercado Unicachi"
	require.NoError(t, s.SaveResolution(ctx, r))

	got, err := s.ResolutionsByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1, "second save replaces, not appends")
	assert.Equal(t, domain.PrecisionSpecific, got[0].Precision)
	assert.Equal(t, "Mercado Unicachi", got[0].SpecificPlaceName)
	assert.True(t, got[0].ResolvedAt.Equal(at))
}

func TestStore_ResolutionWithoutCoordinate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveResolution(ctx, domain.ResolvedLocation{
		RunID: "run-1", IncidentID: "inc-none",
		Precision:  domain.PrecisionNone,
		ResolvedAt: domain.Now(),
	}))

	got, err := s.ResolutionsByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Lat)
	assert.Nil(t, got[0].Lon)
	assert.Equal(t, domain.PrecisionNone, got[0].Precision)
}

func TestStore_OverrideRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	missing, err := s.GetOverride(ctx, "inc-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	o := domain.CurationOverride{
		IncidentID: "inc-1",
		PlaceID:    sptr("PE-150110"),
		Lat:        fptr(-11.94),
		Lon:        fptr(-77.06),
		Status:     domain.OverrideStatusReviewed,
		UpdatedBy:  "analyst@andeanwatch.pe",
		UpdatedAt:  time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.PutOverride(ctx, o, allowAll{}))

	got, err := s.GetOverride(ctx, "inc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.PlaceID)
	assert.Equal(t, "PE-150110", *got.PlaceID)
	assert.Nil(t, got.Region, "unset fields stay nil")
	assert.Equal(t, domain.OverrideStatusReviewed, got.Status)

	// Re-put updates in place.
	o.Status = domain.OverrideStatusRejected
	require.NoError(t, s.PutOverride(ctx, o, allowAll{}))
	got, err = s.GetOverride(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OverrideStatusRejected, got.Status)
}

func TestStore_PutOverrideRejectsUnknownPlace(t *testing.T) {
	s := testStore(t)

	err := s.PutOverride(context.Background(), domain.CurationOverride{
		IncidentID: "inc-1",
		PlaceID:    sptr("PE-XXXXXX"),
		Status:     domain.OverrideStatusReviewed,
		UpdatedAt:  domain.Now(),
	}, allowNone{})

	require.ErrorIs(t, err, ErrUnknownPlace)
}

func TestStore_PutOverrideRejectsBadStatus(t *testing.T) {
	s := testStore(t)

	err := s.PutOverride(context.Background(), domain.CurationOverride{
		IncidentID: "inc-1",
		Status:     "approved",
		UpdatedAt:  domain.Now(),
	}, allowAll{})

	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStore_RunMetricsUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRunMetrics(ctx, "run-1", map[string]float64{
		"resolved_share":  0.92,
		"ambiguous_count": 3,
	}))
	require.NoError(t, s.UpsertRunMetrics(ctx, "run-1", map[string]float64{
		"resolved_share": 0.95,
	}))

	got, err := s.RunMetrics(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 0.95, got["resolved_share"])
	assert.Equal(t, float64(3), got["ambiguous_count"])
}
