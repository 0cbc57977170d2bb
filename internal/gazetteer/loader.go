// Package gazetteer loads the Peru reference place list and builds the
// normalized-name index the scorer and resolver query.
package gazetteer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/andeanwatch/incident-geo/internal/domain"
)

// Columns the loader consumes. The reference file carries additional
// administrative metadata (ubigeo codes, macroregions, surface area) that
// the resolver does not use; unknown columns are ignored.
var requiredColumns = []string{"place_id", "adm1_name"}

// Load reads the gazetteer CSV at path. Rows missing every name field are
// skipped with a warning; duplicate place_ids fail fast, since a gazetteer
// with colliding ids would silently corrupt candidate joins downstream.
func Load(path string, logger *slog.Logger) ([]domain.GazetteerPlace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gazetteer: %w", err)
	}
	defer f.Close()

	places, err := Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parse gazetteer %s: %w", path, err)
	}
	logger.Info("gazetteer loaded", "path", path, "places", len(places))
	return places, nil
}

// Parse reads gazetteer rows from r. Split from Load so tests can feed
// in-memory CSV.
func Parse(r io.Reader, logger *slog.Logger) ([]domain.GazetteerPlace, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // the reference file schema has grown over time

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("gazetteer missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	coord := func(row []string, name string) *float64 {
		s := field(row, name)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &v
	}

	var places []domain.GazetteerPlace
	seen := make(map[string]bool)
	line := 1

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++

		p := domain.GazetteerPlace{
			PlaceID:      field(row, "place_id"),
			RegionName:   field(row, "adm1_name"),
			ProvinceName: field(row, "adm2_name"),
			DistrictName: field(row, "adm3_name"),
			DisplayName:  field(row, "display_name"),
			SearchName:   field(row, "search_name"),
			Lat:          coord(row, "lat"),
			Lon:          coord(row, "lon"),
		}

		if p.RegionName == "" && p.ProvinceName == "" && p.DistrictName == "" &&
			p.DisplayName == "" && p.SearchName == "" {
			logger.Warn("skipping gazetteer row with no name fields",
				"line", line, "place_id", p.PlaceID)
			continue
		}
		if p.PlaceID == "" {
			logger.Warn("skipping gazetteer row with empty place_id", "line", line)
			continue
		}
		if seen[p.PlaceID] {
			return nil, fmt.Errorf("duplicate place_id %q at line %d", p.PlaceID, line)
		}
		seen[p.PlaceID] = true

		places = append(places, p)
	}

	return places, nil
}
