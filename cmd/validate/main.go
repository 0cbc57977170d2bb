// Command validate performs integrity checks on a gazetteer CSV before it
// is shipped to the resolver: coordinate presence and range, hierarchy
// completeness, and alias collisions that would make distinct districts
// indistinguishable to the scorer.
//
// Usage:
//
//	go run ./cmd/validate -gazetteer data/gazetteer_pe.csv
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sort"

	"github.com/andeanwatch/incident-geo/internal/domain"
	"github.com/andeanwatch/incident-geo/internal/gazetteer"
)

// Peru's bounding box, with a margin for border districts.
const (
	minLat, maxLat = -19.0, 0.5
	minLon, maxLon = -82.0, -68.0
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	gazetteerPath := flag.String("gazetteer", "", "path to the gazetteer CSV")
	strict := flag.Bool("strict", false, "exit non-zero on warnings, not just errors")
	flag.Parse()

	if *gazetteerPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -gazetteer")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	places, err := gazetteer.Load(*gazetteerPath, logger)
	if err != nil {
		return fmt.Errorf("loading gazetteer: %w", err)
	}

	warnings := checkCoordinates(places)
	warnings = append(warnings, checkHierarchy(places)...)
	warnings = append(warnings, checkAliasCollisions(places)...)

	fmt.Printf("%s: %d places\n", *gazetteerPath, len(places))
	if len(warnings) == 0 {
		fmt.Println("OK")
		return nil
	}

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	fmt.Printf("%d warnings\n", len(warnings))

	if *strict {
		return fmt.Errorf("strict mode: %d warnings", len(warnings))
	}
	return nil
}

func checkCoordinates(places []domain.GazetteerPlace) []string {
	var warnings []string
	missing := 0
	for _, p := range places {
		if !p.HasCoordinate() {
			missing++
			continue
		}
		if *p.Lat < minLat || *p.Lat > maxLat || *p.Lon < minLon || *p.Lon > maxLon {
			warnings = append(warnings, fmt.Sprintf(
				"%s (%s): coordinate (%.4f, %.4f) outside Peru", p.PlaceID, p.Name(), *p.Lat, *p.Lon))
		}
	}
	if missing > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d places without coordinates; they can never anchor a resolution", missing))
	}
	return warnings
}

func checkHierarchy(places []domain.GazetteerPlace) []string {
	var warnings []string
	for _, p := range places {
		// A district row needs its full ancestry for exact triple matches.
		if p.DistrictName != "" && (p.ProvinceName == "" || p.RegionName == "") {
			warnings = append(warnings, fmt.Sprintf(
				"%s (%s): district without full province/region ancestry", p.PlaceID, p.Name()))
		}
		if p.RegionName == "" {
			warnings = append(warnings, fmt.Sprintf("%s: no region name", p.PlaceID))
		}
	}
	return warnings
}

// checkAliasCollisions reports normalized names shared by many places.
// Collisions are legal (the scorer breaks ties deterministically) but a
// heavily shared name means those incidents will lean on hierarchy guesses.
func checkAliasCollisions(places []domain.GazetteerPlace) []string {
	byName := map[string][]string{}
	for _, p := range places {
		if n := domain.Normalize(p.Name()); n != "" {
			byName[n] = append(byName[n], p.PlaceID)
		}
	}

	var collided []string
	for name, ids := range byName {
		if len(ids) >= 3 {
			collided = append(collided, fmt.Sprintf(
				"name %q shared by %d places: %v", name, len(ids), ids))
		}
	}
	sort.Strings(collided)
	return collided
}
