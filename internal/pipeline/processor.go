package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/andeanwatch/incident-geo/internal/domain"
	"github.com/andeanwatch/incident-geo/internal/match"
	"github.com/andeanwatch/incident-geo/internal/observability"
)

// Store is the slice of the warehouse the processor needs.
type Store interface {
	ReplaceCandidates(ctx context.Context, runID, incidentID string, cands []domain.LocationCandidate) error
	SaveResolution(ctx context.Context, r domain.ResolvedLocation) error
	GetOverride(ctx context.Context, incidentID string) (*domain.CurationOverride, error)
}

// IncidentProcessor turns one raw source message into a resolved output
// event: score gazetteer candidates, persist them, walk the resolution
// chain, apply any reviewed analyst override, and persist the result.
// It implements Processor.
type IncidentProcessor struct {
	scorer       *match.Scorer
	resolver     *domain.Resolver
	store        Store
	ambiguityGap float64
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewProcessor creates an IncidentProcessor. ambiguityGap <= 0 selects the
// default review threshold.
func NewProcessor(scorer *match.Scorer, resolver *domain.Resolver, store Store, ambiguityGap float64, metrics *observability.Metrics, logger *slog.Logger) *IncidentProcessor {
	if ambiguityGap <= 0 {
		ambiguityGap = match.DefaultAmbiguityThreshold
	}
	return &IncidentProcessor{
		scorer:       scorer,
		resolver:     resolver,
		store:        store,
		ambiguityGap: ambiguityGap,
		metrics:      metrics,
		logger:       logger,
	}
}

// Process resolves one incident. The stored resolution is always the
// machine output; a reviewed override only changes what is published.
func (p *IncidentProcessor) Process(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	var inc domain.IncidentRecord
	if err := json.Unmarshal(raw.Value, &inc); err != nil {
		return domain.OutputEvent{}, fmt.Errorf("parse incident record: %w", err)
	}
	if inc.IncidentID == "" {
		return domain.OutputEvent{}, fmt.Errorf("incident record without incident_id")
	}

	cands := p.scorer.Score(inc)
	p.metrics.CandidatesPerIncident.Observe(float64(len(cands)))

	if err := p.store.ReplaceCandidates(ctx, inc.RunID, inc.IncidentID, cands); err != nil {
		return domain.OutputEvent{}, fmt.Errorf("persist candidates: %w", err)
	}

	if gap, ok := domain.AmbiguityGap(cands); ok && gap <= p.ambiguityGap {
		p.metrics.AmbiguousIncidents.Inc()
		p.logger.Debug("ambiguous candidate set",
			"incident_id", inc.IncidentID,
			"gap", gap)
	}

	// When the upstream hierarchy guesses are missing, the primary
	// candidate's place fills them in before the chain runs.
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

	resolved := p.resolver.Resolve(ctx, inc)
	p.metrics.ResolvedByPrecision.WithLabelValues(string(resolved.Precision)).Inc()

	if err := p.store.SaveResolution(ctx, resolved); err != nil {
		return domain.OutputEvent{}, fmt.Errorf("persist resolution: %w", err)
	}

	published := resolved
	override, err := p.store.GetOverride(ctx, inc.IncidentID)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("look up override: %w", err)
	}
	if override != nil && override.Status == domain.OverrideStatusReviewed {
		published = domain.ApplyOverride(resolved, override)
		p.metrics.OverridesApplied.Inc()
		p.logger.Info("override applied",
			"incident_id", inc.IncidentID,
			"updated_by", override.UpdatedBy)
	}

	return serializeResolution(published)
}

func serializeResolution(r domain.ResolvedLocation) (domain.OutputEvent, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("serialize resolution: %w", err)
	}
	return domain.OutputEvent{
		Key:   []byte(r.IncidentID),
		Value: data,
		Headers: map[string]string{
			"run_id":          r.RunID,
			"precision_level": string(r.Precision),
		},
	}, nil
}
