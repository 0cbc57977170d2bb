// Command runreport summarizes the resolution quality of one pipeline run:
// precision level distribution, coordinate coverage, and ambiguous incidents
// whose candidate sets need human review. It writes the computed metrics
// back to the warehouse and can export the review queue as CSV.
//
// Usage:
//
//	go run ./cmd/runreport \
//	  -db incident-geo.db \
//	  -run-id 2026-08-30 \
//	  -review-csv review/2026-08-30.csv
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andeanwatch/incident-geo/internal/domain"
	"github.com/andeanwatch/incident-geo/internal/match"
	"github.com/andeanwatch/incident-geo/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dbPath := flag.String("db", "incident-geo.db", "path to the SQLite warehouse")
	runID := flag.String("run-id", "", "run to report on")
	gap := flag.Float64("gap", match.DefaultAmbiguityThreshold, "score gap at or below which an incident is ambiguous")
	topK := flag.Int("top-k", match.DefaultTopK, "candidate rows per ambiguous incident in the review export")
	reviewCSV := flag.String("review-csv", "", "optional path for the ambiguous-incident review CSV")
	flag.Parse()

	if *runID == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -run-id")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	warehouse, err := store.New(*dbPath, logger)
	if err != nil {
		return err
	}
	defer warehouse.Close()

	ctx := context.Background()

	resolutions, err := warehouse.ResolutionsByRun(ctx, *runID)
	if err != nil {
		return err
	}
	if len(resolutions) == 0 {
		return fmt.Errorf("run %q has no resolutions", *runID)
	}
	candidates, err := warehouse.CandidatesByRun(ctx, *runID)
	if err != nil {
		return err
	}

	analyzer := match.NewAnalyzer(*gap)
	verdicts := analyzer.Analyze(candidates)

	metrics := computeMetrics(resolutions, candidates, verdicts)
	if err := warehouse.UpsertRunMetrics(ctx, *runID, metrics); err != nil {
		return err
	}

	printReport(*runID, resolutions, verdicts, metrics)

	if *reviewCSV != "" {
		rows := analyzer.ReviewExport(candidates, *topK)
		if err := writeReviewCSV(*reviewCSV, rows); err != nil {
			return err
		}
		log.Printf("wrote review export: %s (%d rows)", *reviewCSV, len(rows))
	}

	return nil
}

func computeMetrics(resolutions []domain.ResolvedLocation, candidates []domain.LocationCandidate, verdicts []match.IncidentAmbiguity) map[string]float64 {
	total := float64(len(resolutions))

	var withCoordinate, ambiguous, primaries float64
	byPrecision := make(map[domain.PrecisionLevel]float64)
	for _, r := range resolutions {
		byPrecision[r.Precision]++
		if r.HasCoordinate() {
			withCoordinate++
		}
	}
	withCandidates := make(map[string]struct{})
	for _, c := range candidates {
		withCandidates[c.IncidentID] = struct{}{}
		if c.IsPrimary {
			primaries++
		}
	}
	for _, v := range verdicts {
		if v.Ambiguous {
			ambiguous++
		}
	}

	m := map[string]float64{
		"total_incidents":           total,
		"coordinate_share":          withCoordinate / total,
		"incidents_with_candidates": float64(len(withCandidates)),
		"primary_count":             primaries,
		"ambiguous_count":           ambiguous,
	}
	for level, n := range byPrecision {
		m["precision_"+string(level)] = n
	}
	return m
}

func printReport(runID string, resolutions []domain.ResolvedLocation, verdicts []match.IncidentAmbiguity, metrics map[string]float64) {
	fmt.Printf("Run %s: %d incidents\n\n", runID, len(resolutions))

	fmt.Println("Precision levels:")
	for _, level := range []domain.PrecisionLevel{
		domain.PrecisionSpecific, domain.PrecisionExternalAPI,
		domain.PrecisionDistrict, domain.PrecisionProvince,
		domain.PrecisionRegion, domain.PrecisionEstimated, domain.PrecisionNone,
	} {
		n := metrics["precision_"+string(level)]
		if n == 0 {
			continue
		}
		fmt.Printf("  %-13s %5.0f  (%.1f%%)\n", level, n, 100*n/metrics["total_incidents"])
	}

	fmt.Printf("\nWith coordinate: %.1f%%\n", 100*metrics["coordinate_share"])
	fmt.Printf("Ambiguous incidents: %.0f of %d scored\n", metrics["ambiguous_count"], len(verdicts))
}

func writeReviewCSV(path string, rows []domain.LocationCandidate) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"incident_id", "place_id", "district", "province", "region",
		"matched_text", "method", "score", "is_primary",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, c := range rows {
		record := []string{
			c.IncidentID, c.PlaceID, c.District, c.Province, c.Region,
			c.MatchedText, c.Method,
			strconv.FormatFloat(c.Score, 'f', 4, 64),
			strconv.FormatBool(c.IsPrimary),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
