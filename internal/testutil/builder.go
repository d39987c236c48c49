package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"routecard/internal/infrastructure/sqlite"
	"routecard/internal/routing/domain"
)

// Fixture exposes the entities a Builder created, keyed for easy lookup.
type Fixture struct {
	// Segments by code.
	Segments map[string]*domain.ProcessSegment

	// Grants by "part/site".
	Grants map[string]*domain.PartSiteAvailability

	// Routings by "part/site/version".
	Routings map[string]*domain.Routing
}

// RoutingKey builds the lookup key for Fixture.Routings.
func RoutingKey(partID, siteID, version string) string {
	return fmt.Sprintf("%s/%s/%s", partID, siteID, version)
}

// GrantKey builds the lookup key for Fixture.Grants.
func GrantKey(partID, siteID string) string {
	return fmt.Sprintf("%s/%s", partID, siteID)
}

// Builder accumulates test data and persists it in dependency order:
// segments, then grants, then routings referencing segments by code.
type Builder struct {
	t        *testing.T
	db       *sqlite.DB
	segments []segmentData
	grants   []grantData
	routings []routingData
}

// NewBuilder creates a builder for the given test database.
func NewBuilder(t *testing.T, db *sqlite.DB) *Builder {
	t.Helper()
	return &Builder{t: t, db: db}
}

// WithSegment adds a segment with optional configuration.
func (b *Builder) WithSegment(code string, opts ...SegmentOption) *Builder {
	segment := defaultSegment(code)
	for _, opt := range opts {
		opt(&segment)
	}
	b.segments = append(b.segments, segment)
	return b
}

// WithGrant authorizes a site for a part.
func (b *Builder) WithGrant(partID, siteID string, opts ...GrantOption) *Builder {
	grant := grantData{partID: partID, siteID: siteID}
	for _, opt := range opts {
		opt(&grant)
	}
	b.grants = append(b.grants, grant)
	return b
}

// WithRouting adds a draft routing with steps and dependency edges.
func (b *Builder) WithRouting(partID, siteID, version string, opts ...RoutingOption) *Builder {
	routing := routingData{partID: partID, siteID: siteID, version: version}
	for _, opt := range opts {
		opt(&routing)
	}
	b.routings = append(b.routings, routing)
	return b
}

// Build persists everything and returns the created entities.
func (b *Builder) Build() *Fixture {
	b.t.Helper()

	fixture := &Fixture{
		Segments: make(map[string]*domain.ProcessSegment),
		Grants:   make(map[string]*domain.PartSiteAvailability),
		Routings: make(map[string]*domain.Routing),
	}

	segmentRepo := b.db.SegmentRepository()
	for _, data := range b.segments {
		segment := domain.NewProcessSegment(data.code, data.name, data.timing)
		if data.siteID != "" {
			segment.SetSiteID(data.siteID)
		}
		segment.SetStandard(data.standard)
		require.NoError(b.t, segmentRepo.Save(segment), "save segment %s", data.code)
		fixture.Segments[data.code] = segment
	}

	availabilityRepo := b.db.AvailabilityRepository()
	for _, data := range b.grants {
		grant := domain.NewPartSiteAvailability(data.partID, data.siteID, data.constraints)
		require.NoError(b.t, availabilityRepo.Save(grant), "save grant %s/%s", data.partID, data.siteID)
		fixture.Grants[GrantKey(data.partID, data.siteID)] = grant
	}

	routingRepo := b.db.RoutingRepository()
	for _, data := range b.routings {
		routing := domain.NewRouting(data.partID, data.siteID, data.version)

		stepIDs := make(map[int]string, len(data.steps))
		for _, stepSpec := range data.steps {
			segment, ok := fixture.Segments[stepSpec.segmentCode]
			require.True(b.t, ok, "routing %s/%s references unknown segment %s",
				data.partID, data.siteID, stepSpec.segmentCode)

			step, err := routing.AddStep(stepSpec.number, segment.ID())
			require.NoError(b.t, err, "add step %d", stepSpec.number)
			stepIDs[stepSpec.number] = step.ID()
		}

		for _, depSpec := range data.deps {
			dependentID, ok := stepIDs[depSpec.dependentNumber]
			require.True(b.t, ok, "dependency references unknown step %d", depSpec.dependentNumber)
			prerequisiteID, ok := stepIDs[depSpec.prerequisiteNumber]
			require.True(b.t, ok, "dependency references unknown step %d", depSpec.prerequisiteNumber)

			_, err := routing.AddDependency(dependentID, prerequisiteID, depSpec.depType, depSpec.timingType)
			require.NoError(b.t, err, "add dependency %d -> %d",
				depSpec.dependentNumber, depSpec.prerequisiteNumber)
		}

		require.NoError(b.t, routingRepo.Create(routing), "create routing %s/%s/%s",
			data.partID, data.siteID, data.version)
		fixture.Routings[RoutingKey(data.partID, data.siteID, data.version)] = routing
	}

	return fixture
}
