package testutil

import (
	"time"

	"routecard/internal/routing/domain"
)

// segmentData holds all data for a segment to be registered.
type segmentData struct {
	code     string
	name     string
	timing   domain.Timing
	siteID   string
	standard bool
}

// defaultSegment returns a segmentData with sensible defaults.
func defaultSegment(code string) segmentData {
	return segmentData{
		code: code,
		name: code, // Default name is the code
		timing: domain.Timing{
			Setup:    10 * time.Minute,
			Run:      30 * time.Minute,
			Teardown: 5 * time.Minute,
		},
		standard: true,
	}
}

// SegmentOption configures a segment during builder setup.
type SegmentOption func(*segmentData)

// SegmentName sets the segment display name.
func SegmentName(name string) SegmentOption {
	return func(s *segmentData) { s.name = name }
}

// Nominal sets the segment's nominal timing.
func Nominal(timing domain.Timing) SegmentOption {
	return func(s *segmentData) { s.timing = timing }
}

// OwnedBy scopes the segment to a site.
func OwnedBy(siteID string) SegmentOption {
	return func(s *segmentData) { s.siteID = siteID }
}

// Standard sets the reuse flag.
func Standard(standard bool) SegmentOption {
	return func(s *segmentData) { s.standard = standard }
}

// grantData holds all data for an availability grant.
type grantData struct {
	partID      string
	siteID      string
	constraints domain.AvailabilityConstraints
}

// GrantOption configures an availability grant during builder setup.
type GrantOption func(*grantData)

// Preferred marks the site as preferred for the part.
func Preferred() GrantOption {
	return func(g *grantData) { g.constraints.IsPreferred = true }
}

// LeadTime sets the site lead time.
func LeadTime(d time.Duration) GrantOption {
	return func(g *grantData) { g.constraints.LeadTime = d }
}

// LotSizes sets the minimum and maximum lot size.
func LotSizes(minSize, maxSize int) GrantOption {
	return func(g *grantData) {
		g.constraints.MinLotSize = minSize
		g.constraints.MaxLotSize = maxSize
	}
}

// UnitCost sets the per-unit cost in cents.
func UnitCost(cents int64) GrantOption {
	return func(g *grantData) { g.constraints.UnitCostCents = cents }
}

// EffectiveFrom sets the start of the grant's effective window.
func EffectiveFrom(t time.Time) GrantOption {
	return func(g *grantData) { g.constraints.EffectiveFrom = t }
}

// ExpiresAt sets the end of the grant's effective window.
func ExpiresAt(t time.Time) GrantOption {
	return func(g *grantData) { g.constraints.ExpiresAt = &t }
}

// stepData holds a step to be added to a routing under construction.
type stepData struct {
	number      int
	segmentCode string
}

// depData holds a dependency edge between two steps, identified by number.
type depData struct {
	dependentNumber    int
	prerequisiteNumber int
	depType            domain.DependencyType
	timingType         domain.TimingType
}

// routingData holds all data for a routing to be created.
type routingData struct {
	partID  string
	siteID  string
	version string
	steps   []stepData
	deps    []depData
}

// RoutingOption configures a routing during builder setup.
type RoutingOption func(*routingData)

// Step adds a step referencing a segment by code.
func Step(number int, segmentCode string) RoutingOption {
	return func(r *routingData) {
		r.steps = append(r.steps, stepData{number: number, segmentCode: segmentCode})
	}
}

// Dependency adds an edge between two steps identified by number.
func Dependency(dependentNumber, prerequisiteNumber int, depType domain.DependencyType, timingType domain.TimingType) RoutingOption {
	return func(r *routingData) {
		r.deps = append(r.deps, depData{
			dependentNumber:    dependentNumber,
			prerequisiteNumber: prerequisiteNumber,
			depType:            depType,
			timingType:         timingType,
		})
	}
}

// MustComplete adds a finish-to-start must_complete edge, the common case.
func MustComplete(dependentNumber, prerequisiteNumber int) RoutingOption {
	return Dependency(dependentNumber, prerequisiteNumber, domain.DependencyMustComplete, domain.TimingFinishToStart)
}
