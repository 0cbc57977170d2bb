// Package store persists candidates, resolutions, analyst overrides and
// run quality metrics in SQLite. Candidates and resolutions are keyed by
// (run_id, incident_id) and recomputed wholesale when a run is repeated;
// overrides are keyed by incident_id alone and survive re-runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/andeanwatch/incident-geo/internal/domain"
)

// ErrUnknownPlace is returned when an override names a place_id that does
// not exist in the loaded gazetteer.
var ErrUnknownPlace = errors.New("place_id not in gazetteer")

// ErrInvalidStatus is returned when an override carries a status outside
// the pending/reviewed/rejected set.
var ErrInvalidStatus = errors.New("invalid override status")

// PlaceChecker validates gazetteer membership of override place ids.
// *gazetteer.Index satisfies it.
type PlaceChecker interface {
	Contains(placeID string) bool
}

const schema = `
CREATE TABLE IF NOT EXISTS location_candidates (
	run_id         TEXT NOT NULL,
	incident_id    TEXT NOT NULL,
	place_id       TEXT NOT NULL,
	region         TEXT NOT NULL DEFAULT '',
	province       TEXT NOT NULL DEFAULT '',
	district       TEXT NOT NULL DEFAULT '',
	lat            REAL,
	lon            REAL,
	matched_text   TEXT NOT NULL,
	matched_tokens INTEGER NOT NULL,
	method         TEXT NOT NULL,
	score          REAL NOT NULL,
	is_primary     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, incident_id, place_id)
);

CREATE TABLE IF NOT EXISTS resolved_locations (
	run_id              TEXT NOT NULL,
	incident_id         TEXT NOT NULL,
	lat                 REAL,
	lon                 REAL,
	precision_level     TEXT NOT NULL,
	specific_place_name TEXT NOT NULL DEFAULT '',
	place_id            TEXT NOT NULL DEFAULT '',
	region              TEXT NOT NULL DEFAULT '',
	province            TEXT NOT NULL DEFAULT '',
	district            TEXT NOT NULL DEFAULT '',
	resolved_at         TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, incident_id)
);

CREATE TABLE IF NOT EXISTS curation_overrides (
	incident_id         TEXT PRIMARY KEY,
	place_id            TEXT,
	lat                 REAL,
	lon                 REAL,
	region              TEXT,
	province            TEXT,
	district            TEXT,
	specific_place_name TEXT,
	status              TEXT NOT NULL DEFAULT 'pending',
	review_notes        TEXT NOT NULL DEFAULT '',
	updated_by          TEXT NOT NULL DEFAULT '',
	updated_at          TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS dq_run_metrics (
	run_id       TEXT NOT NULL,
	metric_name  TEXT NOT NULL,
	metric_value REAL NOT NULL,
	computed_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, metric_name)
);

CREATE INDEX IF NOT EXISTS idx_candidates_incident
	ON location_candidates (run_id, incident_id, score DESC);
`

// Store is the SQLite-backed warehouse.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (creating if absent) the SQLite database at path and applies
// the schema. WAL mode lets the report CLI read while the service writes.
func New(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// modernc.org/sqlite serializes writes internally; a single
	// connection avoids SQLITE_BUSY races between the worker pool's
	// transactions.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("sqlite store ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceCandidates swaps out an incident's candidate rows for one run in a
// single transaction. Delete-then-insert keeps re-runs idempotent: a second
// pass over the same run_id never leaves stale candidates behind.
func (s *Store) ReplaceCandidates(ctx context.Context, runID, incidentID string, cands []domain.LocationCandidate) error {
	return s.transact(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM location_candidates WHERE run_id = ? AND incident_id = ?`,
			runID, incidentID); err != nil {
			return fmt.Errorf("delete candidates: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO location_candidates
				(run_id, incident_id, place_id, region, province, district,
				 lat, lon, matched_text, matched_tokens, method, score, is_primary)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range cands {
			if _, err := stmt.ExecContext(ctx,
				c.RunID, c.IncidentID, c.PlaceID, c.Region, c.Province, c.District,
				c.Lat, c.Lon, c.MatchedText, c.MatchedTokens, c.Method, c.Score,
				c.IsPrimary); err != nil {
				return fmt.Errorf("insert candidate %s/%s: %w", c.IncidentID, c.PlaceID, err)
			}
		}
		return nil
	})
}

// SaveResolution upserts the incident's resolution for one run.
func (s *Store) SaveResolution(ctx context.Context, r domain.ResolvedLocation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolved_locations
			(run_id, incident_id, lat, lon, precision_level,
			 specific_place_name, place_id, region, province, district, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, incident_id) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			precision_level = excluded.precision_level,
			specific_place_name = excluded.specific_place_name,
			place_id = excluded.place_id,
			region = excluded.region,
			province = excluded.province,
			district = excluded.district,
			resolved_at = excluded.resolved_at`,
		r.RunID, r.IncidentID, r.Lat, r.Lon, string(r.Precision),
		r.SpecificPlaceName, r.PlaceID, r.Region, r.Province, r.District, r.ResolvedAt)
	if err != nil {
		return fmt.Errorf("save resolution %s: %w", r.IncidentID, err)
	}
	return nil
}

// CandidatesByRun returns every candidate row of a run, ordered by
// incident then rank.
func (s *Store) CandidatesByRun(ctx context.Context, runID string) ([]domain.LocationCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, incident_id, place_id, region, province, district,
		       lat, lon, matched_text, matched_tokens, method, score, is_primary
		FROM location_candidates
		WHERE run_id = ?
		ORDER BY incident_id, score DESC, matched_tokens DESC, place_id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.LocationCandidate
	for rows.Next() {
		var c domain.LocationCandidate
		if err := rows.Scan(&c.RunID, &c.IncidentID, &c.PlaceID, &c.Region,
			&c.Province, &c.District, &c.Lat, &c.Lon, &c.MatchedText,
			&c.MatchedTokens, &c.Method, &c.Score, &c.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResolutionsByRun returns every resolution of a run, ordered by incident.
func (s *Store) ResolutionsByRun(ctx context.Context, runID string) ([]domain.ResolvedLocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, incident_id, lat, lon, precision_level,
		       specific_place_name, place_id, region, province, district, resolved_at
		FROM resolved_locations
		WHERE run_id = ?
		ORDER BY incident_id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	var out []domain.ResolvedLocation
	for rows.Next() {
		var r domain.ResolvedLocation
		var precision string
		if err := rows.Scan(&r.RunID, &r.IncidentID, &r.Lat, &r.Lon, &precision,
			&r.SpecificPlaceName, &r.PlaceID, &r.Region, &r.Province,
			&r.District, &r.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		r.Precision = domain.PrecisionLevel(precision)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetOverride returns the incident's override row, or nil when none exists.
// Callers decide whether the status makes it applicable.
func (s *Store) GetOverride(ctx context.Context, incidentID string) (*domain.CurationOverride, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT incident_id, place_id, lat, lon, region, province, district,
		       specific_place_name, status, review_notes, updated_by, updated_at
		FROM curation_overrides
		WHERE incident_id = ?`,
		incidentID)

	var o domain.CurationOverride
	err := row.Scan(&o.IncidentID, &o.PlaceID, &o.Lat, &o.Lon, &o.Region,
		&o.Province, &o.District, &o.SpecificPlaceName, &o.Status,
		&o.ReviewNotes, &o.UpdatedBy, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query override %s: %w", incidentID, err)
	}
	return &o, nil
}

// PutOverride upserts an analyst override. The status must be one of the
// defined review states and any place_id must exist in the gazetteer, so a
// typo cannot silently detach an incident from the hierarchy.
func (s *Store) PutOverride(ctx context.Context, o domain.CurationOverride, places PlaceChecker) error {
	switch o.Status {
	case domain.OverrideStatusPending, domain.OverrideStatusReviewed, domain.OverrideStatusRejected:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, o.Status)
	}
	if o.PlaceID != nil && !places.Contains(*o.PlaceID) {
		return fmt.Errorf("%w: %q", ErrUnknownPlace, *o.PlaceID)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO curation_overrides
			(incident_id, place_id, lat, lon, region, province, district,
			 specific_place_name, status, review_notes, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (incident_id) DO UPDATE SET
			place_id = excluded.place_id,
			lat = excluded.lat,
			lon = excluded.lon,
			region = excluded.region,
			province = excluded.province,
			district = excluded.district,
			specific_place_name = excluded.specific_place_name,
			status = excluded.status,
			review_notes = excluded.review_notes,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		o.IncidentID, o.PlaceID, o.Lat, o.Lon, o.Region, o.Province, o.District,
		o.SpecificPlaceName, o.Status, o.ReviewNotes, o.UpdatedBy, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put override %s: %w", o.IncidentID, err)
	}
	return nil
}

// UpsertRunMetrics writes a run's data quality metrics, one row per metric.
func (s *Store) UpsertRunMetrics(ctx context.Context, runID string, metrics map[string]float64) error {
	return s.transact(ctx, func(tx *sql.Tx) error {
		now := domain.Now()
		for name, value := range metrics {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO dq_run_metrics (run_id, metric_name, metric_value, computed_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (run_id, metric_name) DO UPDATE SET
					metric_value = excluded.metric_value,
					computed_at = excluded.computed_at`,
				runID, name, value, now); err != nil {
				return fmt.Errorf("upsert metric %s: %w", name, err)
			}
		}
		return nil
	})
}

// RunMetrics returns a run's stored data quality metrics.
func (s *Store) RunMetrics(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric_name, metric_value FROM dq_run_metrics WHERE run_id = ?`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("query run metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan run metric: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (s *Store) transact(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
