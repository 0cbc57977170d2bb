// Command genmock synthesizes incident record fixtures from a gazetteer CSV
// and runs them through the actual scoring and resolution code, so test
// fixtures always match real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -gazetteer data/gazetteer_pe.csv \
//	  -raw-out data/mock/incidents_raw.json \
//	  -resolved-out data/mock/incidents_resolved.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/andeanwatch/incident-geo/internal/domain"
	"github.com/andeanwatch/incident-geo/internal/gazetteer"
	"github.com/andeanwatch/incident-geo/internal/match"
)

const mockRunID = "mock-run"

// Title templates rotate across generated incidents so the n-gram scanner
// sees place names in different positions.
var titleTemplates = []string{
	"Balacera en %s deja dos heridos",
	"Capturan a banda de extorsionadores en %s",
	"Protesta bloquea carretera cerca de %s",
	"Incautan armamento en operativo en %s",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	gazetteerPath := flag.String("gazetteer", "", "path to the gazetteer CSV")
	rawOut := flag.String("raw-out", "", "output path for raw incident fixture")
	resolvedOut := flag.String("resolved-out", "", "output path for resolved fixture")
	count := flag.Int("count", 50, "number of incidents to synthesize")
	flag.Parse()

	if *gazetteerPath == "" || *rawOut == "" || *resolvedOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -gazetteer, -raw-out, -resolved-out")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	places, err := gazetteer.Load(*gazetteerPath, logger)
	if err != nil {
		return fmt.Errorf("loading gazetteer: %w", err)
	}
	index := gazetteer.Build(places, logger)

	// Fix the clock for reproducible resolved_at timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.August, 30, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	scorer := match.NewScorer(index, match.DefaultTopK, false)
	resolver := domain.NewResolver(index, nil, logger)

	records := synthesize(places, *count)

	resolved := make([]domain.ResolvedLocation, 0, len(records))
	for _, inc := range records {
		cands := scorer.Score(inc)
		if primary, ok := domain.PrimaryCandidate(cands); ok {
			if inc.District == "" {
				inc.District = primary.District
			}
			if inc.Province == "" {
				inc.Province = primary.Province
			}
			if inc.Region == "" {
				inc.Region = primary.Region
			}
		}
		resolved = append(resolved, resolver.Resolve(context.Background(), inc))
	}

	if err := writeJSON(*rawOut, records); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s (%d records)", *rawOut, len(records))

	if err := writeJSON(*resolvedOut, resolved); err != nil {
		return fmt.Errorf("writing resolved fixture: %w", err)
	}
	log.Printf("wrote resolved fixture: %s", *resolvedOut)

	printStats(resolved)
	return nil
}

// synthesize builds count incident records over the gazetteer's places.
// Generation is deterministic: the same gazetteer and count always produce
// identical fixtures. A third of the records carry only a location label, a
// third only a title mention, and a third a full hierarchy guess.
func synthesize(places []domain.GazetteerPlace, count int) []domain.IncidentRecord {
	var records []domain.IncidentRecord
	for i := 0; len(records) < count && i < len(places); i++ {
		p := places[i]
		if p.DistrictName == "" {
			continue
		}

		inc := domain.IncidentRecord{
			RunID:      mockRunID,
			IncidentID: fmt.Sprintf("mock-%04d", len(records)+1),
		}

		name := p.Name()
		switch len(records) % 3 {
		case 0:
			inc.Title = "Reportan nuevo incidente de seguridad"
			inc.LocationText = fmt.Sprintf("%s, %s", name, p.RegionName)
		case 1:
			inc.Title = fmt.Sprintf(titleTemplates[len(records)%len(titleTemplates)], name)
		case 2:
			inc.Title = fmt.Sprintf(titleTemplates[len(records)%len(titleTemplates)], name)
			inc.Region = p.RegionName
			inc.Province = p.ProvinceName
			inc.District = p.DistrictName
		}

		records = append(records, inc)
	}
	return records
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(resolved []domain.ResolvedLocation) {
	byPrecision := map[domain.PrecisionLevel]int{}
	withCoordinate := 0
	for _, r := range resolved {
		byPrecision[r.Precision]++
		if r.HasCoordinate() {
			withCoordinate++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(resolved))
	for _, level := range []domain.PrecisionLevel{
		domain.PrecisionSpecific, domain.PrecisionExternalAPI,
		domain.PrecisionDistrict, domain.PrecisionProvince,
		domain.PrecisionRegion, domain.PrecisionEstimated, domain.PrecisionNone,
	} {
		if n := byPrecision[level]; n > 0 {
			fmt.Printf("  %s: %d\n", level, n)
		}
	}
	fmt.Printf("With coordinate: %d\n", withCoordinate)
}
