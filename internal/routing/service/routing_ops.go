package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"routecard/internal/log"
	"routecard/internal/pubsub"
	"routecard/internal/routing/domain"
	"routecard/internal/routing/graph"
	"routecard/internal/tracing"
)

// CreateRouting creates a draft routing for a (part, site, version) triple.
// The site must hold an active availability record for the part, otherwise
// domain.ErrSiteNotAuthorized. An empty version falls back to the configured
// default. When basedOnID names an existing routing for the same part and
// site, its steps and edges are deep-copied with fresh identities.
func (s *Service) CreateRouting(ctx context.Context, partID, siteID, version, basedOnID string) (*domain.Routing, error) {
	if version == "" {
		version = s.defaultVersion
	}

	_, span := s.tracer.Start(ctx, tracing.SpanPrefixRouting+"create",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String(tracing.AttrPartID, partID),
		attribute.String(tracing.AttrSiteID, siteID),
		attribute.String(tracing.AttrRoutingVersion, version),
	)

	routing, err := s.createRouting(ctx, partID, siteID, version, basedOnID)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	s.publish(pubsub.CreatedEvent, routing)
	log.Info(log.CatRouting, "routing created",
		"routing_id", routing.ID(), "part_id", partID, "site_id", siteID,
		"version", version, "based_on", basedOnID)
	return routing, nil
}

func (s *Service) createRouting(ctx context.Context, partID, siteID, version, basedOnID string) (*domain.Routing, error) {
	available, err := s.IsAvailable(ctx, partID, siteID, time.Now())
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, fmt.Errorf("part %s at site %s: %w", partID, siteID, domain.ErrSiteNotAuthorized)
	}

	var routing *domain.Routing
	if basedOnID != "" {
		basedOn, err := s.routings.FindByID(basedOnID)
		if err != nil {
			return nil, fmt.Errorf("find base routing: %w", err)
		}
		if basedOn.PartID() != partID || basedOn.SiteID() != siteID {
			return nil, fmt.Errorf("base routing %s belongs to %s/%s, not %s/%s",
				basedOnID, basedOn.PartID(), basedOn.SiteID(), partID, siteID)
		}
		routing = basedOn.CloneAsDraft(version)
	} else {
		routing = domain.NewRouting(partID, siteID, version)
	}

	if err := s.routings.Create(routing); err != nil {
		return nil, fmt.Errorf("create routing %s/%s %s: %w", partID, siteID, version, err)
	}
	return routing, nil
}

// GetRouting retrieves a routing aggregate by identity.
func (s *Service) GetRouting(ctx context.Context, id string) (*domain.Routing, error) {
	return s.routings.FindByID(id)
}

// GetRoutingVersion retrieves the routing for a (part, site, version) triple.
func (s *Service) GetRoutingVersion(ctx context.Context, partID, siteID, version string) (*domain.Routing, error) {
	return s.routings.FindByVersion(partID, siteID, version)
}

// ListRoutings retrieves routings matching the filter, ordered by part,
// site, then version.
func (s *Service) ListRoutings(ctx context.Context, filter domain.RoutingFilter) ([]*domain.Routing, error) {
	return s.routings.List(filter)
}

// DeleteRouting removes a draft routing with its steps and edges. Routings
// past draft are part of the audit trail and fail with
// domain.ErrRoutingNotMutable; obsolete them instead.
func (s *Service) DeleteRouting(ctx context.Context, id string) error {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixRouting+"delete",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String(tracing.AttrRoutingID, id))

	routing, err := s.routings.FindByID(id)
	if err == nil && routing.State() != domain.StateDraft {
		err = fmt.Errorf("delete routing %s in state %s: %w",
			id, routing.State(), domain.ErrRoutingNotMutable)
	}
	if err == nil {
		err = s.routings.Delete(id)
	}
	endSpan(span, err)
	if err != nil {
		return err
	}

	s.publish(pubsub.DeletedEvent, routing)
	log.Info(log.CatRouting, "routing deleted", "routing_id", id)
	return nil
}

// StepAttributes carries the optional fields of a step.
type StepAttributes struct {
	// Override replaces the segment's nominal timing for this step.
	Override *domain.Timing

	// WorkCenter is the optional work-center code the step runs at.
	WorkCenter string

	Flags domain.StepFlags
}

// AddStep appends a step to a draft or in-review routing. The segment must
// exist; the step number must be free within the routing.
func (s *Service) AddStep(ctx context.Context, routingID string, number int, segmentID string, attrs StepAttributes) (*domain.RoutingStep, error) {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixRouting+"add_step",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String(tracing.AttrRoutingID, routingID),
		attribute.Int(tracing.AttrStepNumber, number),
		attribute.String(tracing.AttrSegmentID, segmentID),
	)

	step, err := s.addStep(routingID, number, segmentID, attrs)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	log.Info(log.CatRouting, "step added",
		"routing_id", routingID, "step_number", number, "segment_id", segmentID)
	return step, nil
}

func (s *Service) addStep(routingID string, number int, segmentID string, attrs StepAttributes) (*domain.RoutingStep, error) {
	if _, err := s.segments.FindByID(segmentID); err != nil {
		return nil, err
	}

	routing, err := s.routings.FindByID(routingID)
	if err != nil {
		return nil, err
	}

	step, err := routing.AddStep(number, segmentID)
	if err != nil {
		return nil, err
	}
	if attrs.Override != nil {
		step.SetOverride(attrs.Override)
	}
	if attrs.WorkCenter != "" {
		step.SetWorkCenter(attrs.WorkCenter)
	}
	step.SetFlags(attrs.Flags)

	if err := s.saveAndPublish(routing); err != nil {
		return nil, err
	}
	return step, nil
}

// RemoveStep removes a step from a draft or in-review routing. A step still
// referenced by dependency edges fails with domain.ErrStepHasDependents;
// remove the touching edges first.
func (s *Service) RemoveStep(ctx context.Context, routingID, stepID string) error {
	routing, err := s.routings.FindByID(routingID)
	if err != nil {
		return err
	}
	if err := routing.RemoveStep(stepID); err != nil {
		return err
	}
	if err := s.saveAndPublish(routing); err != nil {
		return err
	}
	log.Info(log.CatRouting, "step removed", "routing_id", routingID, "step_id", stepID)
	return nil
}

// RenumberStep changes a step's display number. Step identity is stable:
// edges reference identity, never number, so renumbering touches no edge.
func (s *Service) RenumberStep(ctx context.Context, routingID, stepID string, newNumber int) error {
	routing, err := s.routings.FindByID(routingID)
	if err != nil {
		return err
	}
	if err := routing.RenumberStep(stepID, newNumber); err != nil {
		return err
	}
	if err := s.saveAndPublish(routing); err != nil {
		return err
	}
	log.Info(log.CatRouting, "step renumbered",
		"routing_id", routingID, "step_id", stepID, "new_number", newNumber)
	return nil
}

// DependencyAttributes carries the optional timing bounds of an edge.
type DependencyAttributes struct {
	// Lag is the minimum wait after the prerequisite's reference point.
	Lag *time.Duration

	// Lead is the maximum wait; below Lag it fails validation.
	Lead *time.Duration
}

// AddDependency declares an edge between two steps of a draft or in-review
// routing. Both steps must belong to the routing; a second edge for the same
// (dependent, prerequisite) pair fails with domain.ErrDuplicateDependency.
func (s *Service) AddDependency(ctx context.Context, routingID, dependentStepID, prerequisiteStepID string, depType domain.DependencyType, timingType domain.TimingType, attrs DependencyAttributes) (*domain.StepDependency, error) {
	routing, err := s.routings.FindByID(routingID)
	if err != nil {
		return nil, err
	}

	dep, err := routing.AddDependency(dependentStepID, prerequisiteStepID, depType, timingType)
	if err != nil {
		return nil, err
	}
	if attrs.Lag != nil || attrs.Lead != nil {
		dep.SetBounds(attrs.Lag, attrs.Lead)
	}

	if err := s.saveAndPublish(routing); err != nil {
		return nil, err
	}

	log.Info(log.CatRouting, "dependency added",
		"routing_id", routingID, "dependent", dependentStepID,
		"prerequisite", prerequisiteStepID, "type", string(depType))
	return dep, nil
}

// RemoveDependency removes an edge from a draft or in-review routing.
func (s *Service) RemoveDependency(ctx context.Context, routingID, depID string) error {
	routing, err := s.routings.FindByID(routingID)
	if err != nil {
		return err
	}
	if err := routing.RemoveDependency(depID); err != nil {
		return err
	}
	if err := s.saveAndPublish(routing); err != nil {
		return err
	}
	log.Info(log.CatRouting, "dependency removed", "routing_id", routingID, "dependency_id", depID)
	return nil
}

// ValidateRouting runs the dependency validator over the routing's current
// steps and edges and returns the report without changing any state.
func (s *Service) ValidateRouting(ctx context.Context, routingID string) (*graph.Report, error) {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixRouting+"validate",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String(tracing.AttrRoutingID, routingID))

	report, err := s.validateRouting(routingID)
	if report != nil {
		span.SetAttributes(attribute.Int(tracing.AttrAdvisoryCount, len(report.Advisories)))
	}
	endSpan(span, err)
	return report, err
}

func (s *Service) validateRouting(routingID string) (*graph.Report, error) {
	routing, err := s.routings.FindByID(routingID)
	if err != nil {
		return nil, err
	}
	report, err := graph.Validate(routing.Steps(), routing.Dependencies())
	if err != nil {
		log.Warn(log.CatGraph, "validation failed", "routing_id", routingID, "error", err.Error())
		return nil, err
	}
	log.Debug(log.CatGraph, "validation passed",
		"routing_id", routingID, "steps", len(report.Order), "advisories", len(report.Advisories))
	return report, nil
}

// SubmitForReview moves a draft routing into review.
func (s *Service) SubmitForReview(ctx context.Context, routingID string) error {
	return s.transition(ctx, routingID, "submit_for_review", func(r *domain.Routing) error {
		return r.SubmitForReview()
	})
}

// SendBackToDraft returns an in-review routing to draft, clearing any
// approval metadata.
func (s *Service) SendBackToDraft(ctx context.Context, routingID string) error {
	return s.transition(ctx, routingID, "send_back_to_draft", func(r *domain.Routing) error {
		return r.SendBackToDraft()
	})
}

// Release approves an in-review routing. The dependency validator must pass
// first; approval metadata is recorded with the transition in one write.
func (s *Service) Release(ctx context.Context, routingID, approvedBy string) error {
	return s.transition(ctx, routingID, "release", func(r *domain.Routing) error {
		if _, err := graph.Validate(r.Steps(), r.Dependencies()); err != nil {
			return err
		}
		return r.Release(approvedBy)
	})
}

// MakeObsolete retires a production routing, closing its effective window.
func (s *Service) MakeObsolete(ctx context.Context, routingID string) error {
	return s.transition(ctx, routingID, "make_obsolete", func(r *domain.Routing) error {
		return r.MakeObsolete()
	})
}

// transition loads the routing, applies the lifecycle change, and persists
// it under the revision guard.
func (s *Service) transition(ctx context.Context, routingID, name string, apply func(*domain.Routing) error) error {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixRouting+name,
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String(tracing.AttrRoutingID, routingID))

	routing, err := s.applyTransition(routingID, apply)
	if routing != nil {
		span.SetAttributes(attribute.String(tracing.AttrRoutingState, string(routing.State())))
	}
	endSpan(span, err)
	if err != nil {
		return err
	}

	s.invalidateResolved(ctx, routing.PartID(), routing.SiteID())
	s.publish(pubsub.UpdatedEvent, routing)
	log.Info(log.CatRouting, "lifecycle transition",
		"routing_id", routingID, "transition", name, "state", string(routing.State()))
	return nil
}

func (s *Service) applyTransition(routingID string, apply func(*domain.Routing) error) (*domain.Routing, error) {
	routing, err := s.routings.FindByID(routingID)
	if err != nil {
		return nil, err
	}
	if err := apply(routing); err != nil {
		return routing, err
	}
	if err := s.routings.Save(routing); err != nil {
		return routing, fmt.Errorf("save routing %s: %w", routingID, err)
	}
	return routing, nil
}

// PromoteToProduction moves a released routing into production. At most one
// production routing exists per (part, site): when a sibling with an
// overlapping effective window is already in production, the promotion fails
// with domain.ErrProductionConflict unless demoteSibling is set, in which
// case the sibling is made obsolete in the same atomic write.
func (s *Service) PromoteToProduction(ctx context.Context, routingID string, demoteSibling bool) error {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixRouting+"promote",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String(tracing.AttrRoutingID, routingID))

	routing, err := s.promoteToProduction(routingID, demoteSibling)
	endSpan(span, err)
	if err != nil {
		return err
	}

	s.invalidateResolved(ctx, routing.PartID(), routing.SiteID())
	s.publish(pubsub.UpdatedEvent, routing)
	log.Info(log.CatRouting, "routing promoted to production",
		"routing_id", routingID, "part_id", routing.PartID(), "site_id", routing.SiteID(),
		"version", routing.Version(), "demoted_sibling", demoteSibling)
	return nil
}

func (s *Service) promoteToProduction(routingID string, demoteSibling bool) (*domain.Routing, error) {
	routing, err := s.routings.FindByID(routingID)
	if err != nil {
		return nil, err
	}

	siblings, err := s.routings.FindProduction(routing.PartID(), routing.SiteID())
	if err != nil {
		return nil, fmt.Errorf("find production routings: %w", err)
	}

	var demoted *domain.Routing
	for _, sibling := range siblings {
		if sibling.ID() == routing.ID() {
			continue
		}
		if !windowsOverlap(routing, sibling) {
			continue
		}
		if !demoteSibling {
			return nil, fmt.Errorf("routing %s version %s: %w",
				sibling.ID(), sibling.Version(), domain.ErrProductionConflict)
		}
		if err := sibling.MakeObsolete(); err != nil {
			return nil, fmt.Errorf("demote sibling %s: %w", sibling.ID(), err)
		}
		demoted = sibling
		break
	}

	if err := routing.Promote(); err != nil {
		return nil, err
	}
	if err := s.routings.SavePromotion(routing, demoted); err != nil {
		return nil, fmt.Errorf("save promotion: %w", err)
	}
	return routing, nil
}

// windowsOverlap reports whether two routings' effective windows intersect.
// Open-ended windows extend to infinity on the expiry side.
func windowsOverlap(a, b *domain.Routing) bool {
	if a.ExpiresAt() != nil && !a.ExpiresAt().After(b.EffectiveFrom()) {
		return false
	}
	if b.ExpiresAt() != nil && !b.ExpiresAt().After(a.EffectiveFrom()) {
		return false
	}
	return true
}

// SetEffectiveWindow changes a routing's effective window. Guarded by the
// same mutability rule as step edits.
func (s *Service) SetEffectiveWindow(ctx context.Context, routingID string, from time.Time, until *time.Time) error {
	routing, err := s.routings.FindByID(routingID)
	if err != nil {
		return err
	}
	if routing.State() != domain.StateDraft && routing.State() != domain.StateReview {
		return fmt.Errorf("routing %s in state %s: %w",
			routingID, routing.State(), domain.ErrRoutingNotMutable)
	}
	routing.SetEffectiveWindow(from, until)
	return s.saveAndPublish(routing)
}

// saveAndPublish persists a mutated aggregate and announces the change.
func (s *Service) saveAndPublish(routing *domain.Routing) error {
	if err := s.routings.Save(routing); err != nil {
		return fmt.Errorf("save routing %s: %w", routing.ID(), err)
	}
	s.publish(pubsub.UpdatedEvent, routing)
	return nil
}
