// Package domain models security-incident geolocation for Peru.
//
// # Data Source
//
// Incident records originate from an upstream ingestion and classification
// service that scans Peruvian news sources, flags articles describing
// security incidents, and extracts structured fields: title, body, an
// API-supplied location label, an LLM-guessed administrative hierarchy, and
// an optional raw coordinate. The upstream service publishes each record as
// flat JSON to the Kafka source topic, grouped by run_id.
//
// # Administrative Hierarchy
//
// Peru's administrative levels, as used throughout this package:
//
//	ADM1  region    (departamento), e.g. "Junín"
//	ADM2  province  (provincia),    e.g. "Huancayo"
//	ADM3  district  (distrito),     e.g. "El Tambo"
//	ADM4  sub-district place (neighborhood, avenue, poblado), never in the
//	      gazetteer; only reachable via LLM extraction or the external
//	      geocoding API.
//
// The gazetteer is a versioned reference CSV of ~1,900 places with stable
// place_id codes and centroid coordinates. Display names follow the
// "District, Province, Region" convention ("Huancayo, Junín, Perú"), which
// is why the gazetteer index registers a short alias cut at the first comma.
//
// # Precision Levels
//
// Every resolved coordinate carries a provenance tag naming the fallback
// tier that produced it. The chain is strict priority, not a blend:
//
//	specific      upstream coordinate plus a sub-district place name that
//	              differs from all guessed hierarchy names
//	external_api  external geocoder hit on the sub-district place name
//	district      exact gazetteer match on (district, province, region)
//	province      province capital (gazetteer row whose district name
//	              equals the province name)
//	region        region capital (district name equals the region name)
//	estimated     raw upstream coordinate, nothing else matched
//	none          no coordinate available
//
// # Candidate Scoring
//
// Text-match candidates are n-grams (1–3 tokens) of the normalized location
// label, title, and optionally body, looked up in the gazetteer index.
// Raw score:
//
//	base:   ADM1 0.20 | ADM2 0.35 | ADM3 0.50
//	bonus:  1 token +0.10 | 2 tokens +0.20 | 3 tokens +0.30
//	boost:  +0.15 when the match came from the location label
//	score = min(1.0, base + bonus + boost)
//
// Duplicate hits on the same place keep the best score. The primary
// candidate is rank 1 under (score desc, matched tokens desc, place_id
// asc); that exact order must be stable across runs, since it decides which
// place backfills the incident's hierarchy before the resolver runs.
package domain
