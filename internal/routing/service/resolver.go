package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"routecard/internal/log"
	"routecard/internal/routing/domain"
	"routecard/internal/routing/graph"
	"routecard/internal/tracing"
)

// resolveQuery is the loader input for the resolve cache.
type resolveQuery struct {
	partID string
	siteID string
	at     time.Time
}

func resolveKey(partID, siteID string) string {
	return partID + "/" + siteID
}

// ResolveProductionRouting answers the work-order question: which routing
// governs manufacturing of this part at this site at this instant. Exactly
// one production routing may cover the instant; none fails with
// domain.ErrNoProductionRouting. The answer is served through a short-TTL
// cache whose hits are re-checked against the state and effective window, so
// a promotion or expiry is never masked by a stale entry.
func (s *Service) ResolveProductionRouting(ctx context.Context, partID, siteID string, at time.Time) (*domain.Routing, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanPrefixResolve+"production_routing",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String(tracing.AttrPartID, partID),
		attribute.String(tracing.AttrSiteID, siteID),
	)

	routing, err := s.resolveProductionRouting(ctx, partID, siteID, at)
	if routing != nil {
		span.SetAttributes(
			attribute.String(tracing.AttrRoutingID, routing.ID()),
			attribute.String(tracing.AttrRoutingVersion, routing.Version()),
		)
	}
	endSpan(span, err)
	return routing, err
}

func (s *Service) resolveProductionRouting(ctx context.Context, partID, siteID string, at time.Time) (*domain.Routing, error) {
	key := resolveKey(partID, siteID)
	query := resolveQuery{partID: partID, siteID: siteID, at: at}

	routing, err := s.resolve.Get(ctx, key, query, s.resolveTTL)
	if err != nil {
		return nil, err
	}

	// A cached answer may predate a lifecycle change or fall outside the
	// window for this instant. Drop it and resolve fresh.
	if routing.State() != domain.StateProduction || !routing.CoversAt(at) {
		s.invalidateResolved(ctx, partID, siteID)
		return s.resolve.Get(ctx, key, query, s.resolveTTL)
	}
	return routing, nil
}

// loadProductionRouting is the cache loader: it reads the production
// routings for the pair and narrows by effective window.
func (s *Service) loadProductionRouting(ctx context.Context, q resolveQuery) (*domain.Routing, error) {
	candidates, err := s.routings.FindProduction(q.partID, q.siteID)
	if err != nil {
		return nil, fmt.Errorf("find production routings: %w", err)
	}

	var matched []*domain.Routing
	for _, r := range candidates {
		if r.CoversAt(q.at) {
			matched = append(matched, r)
		}
	}

	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("part %s at site %s: %w", q.partID, q.siteID, domain.ErrNoProductionRouting)
	case 1:
		return matched[0], nil
	default:
		// The promotion guard keeps this unreachable; reaching it means the
		// database was modified outside the lifecycle.
		log.Error(log.CatRouting, "multiple production routings matched",
			"part_id", q.partID, "site_id", q.siteID, "count", len(matched))
		return nil, fmt.Errorf("part %s at site %s: %w", q.partID, q.siteID, domain.ErrAmbiguousProductionRouting)
	}
}

// invalidateResolved drops the cached resolution for a (part, site) pair.
func (s *Service) invalidateResolved(ctx context.Context, partID, siteID string) {
	if s.resolveCache == nil {
		return
	}
	if err := s.resolveCache.Delete(ctx, resolveKey(partID, siteID)); err != nil {
		log.ErrorErr(log.CatCache, "invalidate resolved routing", err,
			"part_id", partID, "site_id", siteID)
	}
}

// FlushResolveCache clears every cached resolution. The file watcher calls
// this when the database changes underneath the process.
func (s *Service) FlushResolveCache(ctx context.Context) {
	if s.resolveCache == nil {
		return
	}
	if err := s.resolveCache.Flush(ctx); err != nil {
		log.ErrorErr(log.CatCache, "flush resolve cache", err)
		return
	}
	log.Debug(log.CatCache, "resolve cache flushed")
}

// PlannedStep is one entry of the execution-order artifact handed to the
// scheduling consumer: the canonical position plus the resolved timing.
type PlannedStep struct {
	Position    int
	StepID      string
	StepNumber  int
	SegmentID   string
	SegmentCode string
	WorkCenter  string
	Flags       domain.StepFlags

	// Timing is the step's effective timing: the override when present,
	// the segment nominal otherwise.
	Timing domain.Timing
}

// ExecutionOrder validates the routing and returns its steps in canonical
// execution order with resolved timing. Advisories from the validation
// report are returned alongside; fatal findings fail the call.
func (s *Service) ExecutionOrder(ctx context.Context, routingID string) ([]PlannedStep, []graph.Advisory, error) {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixResolve+"execution_order",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String(tracing.AttrRoutingID, routingID))

	planned, advisories, err := s.executionOrder(routingID)
	endSpan(span, err)
	return planned, advisories, err
}

func (s *Service) executionOrder(routingID string) ([]PlannedStep, []graph.Advisory, error) {
	routing, err := s.routings.FindByID(routingID)
	if err != nil {
		return nil, nil, err
	}

	report, err := graph.Validate(routing.Steps(), routing.Dependencies())
	if err != nil {
		return nil, nil, err
	}

	planned := make([]PlannedStep, 0, len(report.OrderedStepIDs))
	segmentsByID := make(map[string]*domain.ProcessSegment)
	for i, stepID := range report.OrderedStepIDs {
		step := routing.StepByID(stepID)
		if step == nil {
			return nil, nil, &domain.StepNotFoundError{RoutingID: routingID, StepID: stepID}
		}

		segment, ok := segmentsByID[step.SegmentID()]
		if !ok {
			segment, err = s.segments.FindByID(step.SegmentID())
			if err != nil {
				return nil, nil, fmt.Errorf("resolve segment for step %d: %w", step.Number(), err)
			}
			segmentsByID[step.SegmentID()] = segment
		}

		planned = append(planned, PlannedStep{
			Position:    i + 1,
			StepID:      step.ID(),
			StepNumber:  step.Number(),
			SegmentID:   segment.ID(),
			SegmentCode: segment.Code(),
			WorkCenter:  step.WorkCenter(),
			Flags:       step.Flags(),
			Timing:      step.EffectiveTiming(segment),
		})
	}
	return planned, report.Advisories, nil
}
