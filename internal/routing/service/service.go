// Package service wires the routing domain together: repositories, the
// dependency validator, the resolve cache, and tracing. Every mutation goes
// through here so the lifecycle and in-use guards always apply.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"routecard/internal/cachemanager"
	"routecard/internal/log"
	"routecard/internal/pubsub"
	"routecard/internal/routing/domain"
	"routecard/internal/tracing"
)

// DefaultResolveTTL bounds how long a resolved production routing is served
// from cache before the database is consulted again.
const DefaultResolveTTL = 5 * time.Minute

// Service is the application service for the routing engine.
type Service struct {
	segments     domain.SegmentRepository
	availability domain.AvailabilityRepository
	routings     domain.RoutingRepository

	resolveCache cachemanager.CacheManager[string, *domain.Routing]
	resolve      *cachemanager.ReadThroughCache[string, *domain.Routing, resolveQuery]
	resolveTTL   time.Duration

	tracer         trace.Tracer
	broker         *pubsub.Broker[pubsub.RoutingChange]
	defaultVersion string
}

// Option configures a Service.
type Option func(*Service)

// WithTracer sets the tracer for span instrumentation.
// If tracer is nil, the service keeps its default noop tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithBroker sets the broker routing-change events are published on.
func WithBroker(broker *pubsub.Broker[pubsub.RoutingChange]) Option {
	return func(s *Service) {
		s.broker = broker
	}
}

// WithResolveTTL overrides the resolve cache TTL.
func WithResolveTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resolveTTL = ttl
		}
	}
}

// WithResolveCacheDisabled bypasses the resolve cache entirely. Every
// resolution then reads the database.
func WithResolveCacheDisabled() Option {
	return func(s *Service) {
		s.resolveCache = nil
	}
}

// WithDefaultVersion sets the version assigned when CreateRouting is called
// with an empty version string.
func WithDefaultVersion(version string) Option {
	return func(s *Service) {
		if version != "" {
			s.defaultVersion = version
		}
	}
}

// New creates a routing service backed by the given repositories.
func New(
	segments domain.SegmentRepository,
	availability domain.AvailabilityRepository,
	routings domain.RoutingRepository,
	opts ...Option,
) *Service {
	s := &Service{
		segments:     segments,
		availability: availability,
		routings:     routings,
		resolveCache: cachemanager.NewInMemoryCacheManager[string, *domain.Routing](
			"routing_resolve", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		resolveTTL:     DefaultResolveTTL,
		tracer:         noop.NewTracerProvider().Tracer("noop"),
		defaultVersion: "1.0",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolve = cachemanager.NewReadThroughCache(
		s.resolveCache, s.loadProductionRouting, s.resolveCache == nil)
	return s
}

// endSpan records the operation outcome on the span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// publish fans a routing-change event out to subscribers, if any.
func (s *Service) publish(eventType pubsub.EventType, r *domain.Routing) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(eventType, pubsub.RoutingChange{
		RoutingID: r.ID(),
		PartID:    r.PartID(),
		SiteID:    r.SiteID(),
	})
}

// ---------------------------------------------------------------------------
// Process segment registry
// ---------------------------------------------------------------------------

// SegmentAttributes carries the optional fields of a segment registration.
type SegmentAttributes struct {
	// SiteID is the owning site; empty means global standard.
	SiteID string

	// Standard marks the segment as reusable across routings.
	Standard bool
}

// RegisterSegment registers a new process segment. The code must be unique;
// a taken code fails with domain.ErrDuplicateCode.
func (s *Service) RegisterSegment(ctx context.Context, code, name string, nominal domain.Timing, attrs SegmentAttributes) (*domain.ProcessSegment, error) {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixSegment+"register",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String(tracing.AttrSegmentCode, code))

	segment := domain.NewProcessSegment(code, name, nominal)
	segment.SetSiteID(attrs.SiteID)
	segment.SetStandard(attrs.Standard)

	err := s.segments.Save(segment)
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("register segment %q: %w", code, err)
	}

	log.Info(log.CatRouting, "segment registered",
		"segment_id", segment.ID(), "code", code, "site_id", attrs.SiteID)
	return segment, nil
}

// GetSegment retrieves a segment by identity.
func (s *Service) GetSegment(ctx context.Context, id string) (*domain.ProcessSegment, error) {
	return s.segments.FindByID(id)
}

// GetSegmentByCode retrieves a segment by its unique code.
func (s *Service) GetSegmentByCode(ctx context.Context, code string) (*domain.ProcessSegment, error) {
	return s.segments.FindByCode(code)
}

// ListSegments retrieves segments matching the filter, ordered by code.
func (s *Service) ListSegments(ctx context.Context, filter domain.SegmentFilter) ([]*domain.ProcessSegment, error) {
	return s.segments.List(filter)
}

// SegmentUpdate carries the fields UpdateSegment may change. Nil fields are
// left as they are.
type SegmentUpdate struct {
	Name     *string
	Nominal  *domain.Timing
	SiteID   *string
	Standard *bool
}

// UpdateSegment edits a segment's mutable fields. A segment referenced by a
// step of any non-draft routing fails with domain.ErrSegmentInUse: released
// process definitions do not change under running work orders.
func (s *Service) UpdateSegment(ctx context.Context, id string, update SegmentUpdate) (*domain.ProcessSegment, error) {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixSegment+"update",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String(tracing.AttrSegmentID, id))

	segment, err := s.updateSegment(id, update)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	log.Info(log.CatRouting, "segment updated", "segment_id", id, "code", segment.Code())
	return segment, nil
}

func (s *Service) updateSegment(id string, update SegmentUpdate) (*domain.ProcessSegment, error) {
	segment, err := s.segments.FindByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.guardSegmentNotInUse(id); err != nil {
		return nil, err
	}

	if update.Name != nil {
		segment.SetName(*update.Name)
	}
	if update.Nominal != nil {
		segment.SetNominal(*update.Nominal)
	}
	if update.SiteID != nil {
		segment.SetSiteID(*update.SiteID)
	}
	if update.Standard != nil {
		segment.SetStandard(*update.Standard)
	}

	if err := s.segments.Save(segment); err != nil {
		return nil, fmt.Errorf("save segment %s: %w", id, err)
	}
	return segment, nil
}

// DeleteSegment removes a segment. Fails with domain.ErrSegmentInUse when
// any non-draft routing still references it.
func (s *Service) DeleteSegment(ctx context.Context, id string) error {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixSegment+"delete",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String(tracing.AttrSegmentID, id))

	err := s.deleteSegment(id)
	endSpan(span, err)
	if err != nil {
		return err
	}

	log.Info(log.CatRouting, "segment deleted", "segment_id", id)
	return nil
}

func (s *Service) deleteSegment(id string) error {
	if err := s.guardSegmentNotInUse(id); err != nil {
		return err
	}
	return s.segments.Delete(id)
}

func (s *Service) guardSegmentNotInUse(id string) error {
	inUse, err := s.routings.SegmentInUse(id)
	if err != nil {
		return fmt.Errorf("check segment usage: %w", err)
	}
	if inUse {
		return fmt.Errorf("segment %s: %w", id, domain.ErrSegmentInUse)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Site-availability ledger
// ---------------------------------------------------------------------------

// GrantAvailability certifies a site for a part. At most one record exists
// per (part, site) pair; granting again replaces the constraints in place
// and restores capability after a revocation.
func (s *Service) GrantAvailability(ctx context.Context, partID, siteID string, c domain.AvailabilityConstraints) (*domain.PartSiteAvailability, error) {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixAvailability+"grant",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String(tracing.AttrPartID, partID),
		attribute.String(tracing.AttrSiteID, siteID),
	)

	record, err := s.grantAvailability(partID, siteID, c)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	log.Info(log.CatRouting, "availability granted",
		"part_id", partID, "site_id", siteID, "preferred", c.IsPreferred)
	return record, nil
}

func (s *Service) grantAvailability(partID, siteID string, c domain.AvailabilityConstraints) (*domain.PartSiteAvailability, error) {
	record, err := s.availability.Find(partID, siteID)
	var notFound *domain.AvailabilityNotFoundError
	switch {
	case err == nil:
		record.Regrant(c)
	case errors.As(err, &notFound):
		record = domain.NewPartSiteAvailability(partID, siteID, c)
	default:
		return nil, fmt.Errorf("find availability: %w", err)
	}

	if err := s.availability.Save(record); err != nil {
		return nil, fmt.Errorf("save availability: %w", err)
	}
	return record, nil
}

// RevokeAvailability withdraws a site's certification for a part. The record
// is kept with its capability flag cleared and its window closed, preserving
// the certification history.
func (s *Service) RevokeAvailability(ctx context.Context, partID, siteID string) error {
	_, span := s.tracer.Start(ctx, tracing.SpanPrefixAvailability+"revoke",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String(tracing.AttrPartID, partID),
		attribute.String(tracing.AttrSiteID, siteID),
	)

	err := s.revokeAvailability(partID, siteID)
	endSpan(span, err)
	if err != nil {
		return err
	}

	log.Info(log.CatRouting, "availability revoked", "part_id", partID, "site_id", siteID)
	return nil
}

func (s *Service) revokeAvailability(partID, siteID string) error {
	record, err := s.availability.Find(partID, siteID)
	if err != nil {
		return err
	}
	record.Revoke()
	if err := s.availability.Save(record); err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	return nil
}

// GetAvailability retrieves the record for a (part, site) pair.
func (s *Service) GetAvailability(ctx context.Context, partID, siteID string) (*domain.PartSiteAvailability, error) {
	return s.availability.Find(partID, siteID)
}

// IsAvailable reports whether the site is authorized to manufacture the part
// at the given instant. A missing record means not available, not an error.
func (s *Service) IsAvailable(ctx context.Context, partID, siteID string, at time.Time) (bool, error) {
	record, err := s.availability.Find(partID, siteID)
	var notFound *domain.AvailabilityNotFoundError
	switch {
	case err == nil:
		return record.ActiveAt(at), nil
	case errors.As(err, &notFound):
		return false, nil
	default:
		return false, fmt.Errorf("find availability: %w", err)
	}
}

// ListAvailableSites returns the sites authorized for the part at the given
// instant, in site order.
func (s *Service) ListAvailableSites(ctx context.Context, partID string, at time.Time) ([]*domain.PartSiteAvailability, error) {
	records, err := s.availability.ListForPart(partID)
	if err != nil {
		return nil, fmt.Errorf("list availability for part %s: %w", partID, err)
	}
	active := make([]*domain.PartSiteAvailability, 0, len(records))
	for _, r := range records {
		if r.ActiveAt(at) {
			active = append(active, r)
		}
	}
	return active, nil
}
