package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routecard/internal/pubsub"
	"routecard/internal/routing/domain"
	"routecard/internal/routing/service"
	"routecard/internal/testutil"
)

func TestCreateRouting(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.GrantAvailability(ctx, "widget-a", "dallas", domain.AvailabilityConstraints{})
	require.NoError(t, err)

	routing, err := svc.CreateRouting(ctx, "widget-a", "dallas", "2.0", "")
	require.NoError(t, err)
	require.Equal(t, domain.StateDraft, routing.State())
	require.Equal(t, "2.0", routing.Version())
	require.Equal(t, int64(1), routing.Revision())

	found, err := svc.GetRoutingVersion(ctx, "widget-a", "dallas", "2.0")
	require.NoError(t, err)
	require.Equal(t, routing.ID(), found.ID())
}

func TestCreateRoutingUnauthorizedSite(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateRouting(context.Background(), "widget-a", "nowhere", "1.0", "")
	require.ErrorIs(t, err, domain.ErrSiteNotAuthorized)
}

func TestCreateRoutingRevokedSite(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.GrantAvailability(ctx, "widget-a", "dallas", domain.AvailabilityConstraints{})
	require.NoError(t, err)
	require.NoError(t, svc.RevokeAvailability(ctx, "widget-a", "dallas"))

	_, err = svc.CreateRouting(ctx, "widget-a", "dallas", "1.0", "")
	require.ErrorIs(t, err, domain.ErrSiteNotAuthorized)
}

func TestCreateRoutingDuplicateVersion(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	testutil.NewBuilder(t, db).WithStandardCatalog().Build()

	_, err := svc.CreateRouting(ctx, "widget-a", "dallas", "1.0", "")
	require.ErrorIs(t, err, domain.ErrDuplicateVersion)
}

func TestCreateRoutingDefaultVersion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.GrantAvailability(ctx, "widget-a", "dallas", domain.AvailabilityConstraints{})
	require.NoError(t, err)

	routing, err := svc.CreateRouting(ctx, "widget-a", "dallas", "", "")
	require.NoError(t, err)
	require.Equal(t, "1.0", routing.Version())
}

func TestCreateRoutingBasedOn(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	base := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	clone, err := svc.CreateRouting(ctx, "widget-a", "dallas", "2.0", base.ID())
	require.NoError(t, err)
	require.Equal(t, domain.StateDraft, clone.State())
	require.Len(t, clone.Steps(), len(base.Steps()))
	require.Len(t, clone.Dependencies(), len(base.Dependencies()))

	// Fresh identities throughout.
	baseSteps := make(map[string]bool, len(base.Steps()))
	for _, s := range base.Steps() {
		baseSteps[s.ID()] = true
	}
	for _, s := range clone.Steps() {
		require.False(t, baseSteps[s.ID()])
	}
}

func TestCreateRoutingBasedOnWrongPair(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	base := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	_, err := svc.CreateRouting(ctx, "widget-a", "austin", "1.0", base.ID())
	require.Error(t, err)
}

func TestAddStep(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).
		WithSegment("CUT-100").
		WithSegment("DRILL-200").
		WithGrant("widget-a", "dallas").
		Build()

	routing, err := svc.CreateRouting(ctx, "widget-a", "dallas", "1.0", "")
	require.NoError(t, err)

	override := domain.Timing{Setup: time.Minute, Run: 10 * time.Minute}
	step, err := svc.AddStep(ctx, routing.ID(), 10, fixture.Segments["CUT-100"].ID(), service.StepAttributes{
		Override:   &override,
		WorkCenter: "WC-12",
		Flags:      domain.StepFlags{QualityCheckpoint: true},
	})
	require.NoError(t, err)
	require.Equal(t, 10, step.Number())

	reloaded, err := svc.GetRouting(ctx, routing.ID())
	require.NoError(t, err)
	require.Len(t, reloaded.Steps(), 1)
	persisted := reloaded.StepByNumber(10)
	require.NotNil(t, persisted)
	require.Equal(t, &override, persisted.Override())
	require.Equal(t, "WC-12", persisted.WorkCenter())
	require.True(t, persisted.Flags().QualityCheckpoint)

	_, err = svc.AddStep(ctx, routing.ID(), 10, fixture.Segments["DRILL-200"].ID(), service.StepAttributes{})
	require.ErrorIs(t, err, domain.ErrDuplicateStepNumber)
}

func TestAddStepUnknownSegment(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	testutil.NewBuilder(t, db).WithGrant("widget-a", "dallas").Build()
	routing, err := svc.CreateRouting(ctx, "widget-a", "dallas", "1.0", "")
	require.NoError(t, err)

	_, err = svc.AddStep(ctx, routing.ID(), 10, "missing-segment", service.StepAttributes{})
	var notFound *domain.SegmentNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStepMutationsBlockedPastReview(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]
	segment := fixture.Segments["CUT-100"]

	require.NoError(t, svc.SubmitForReview(ctx, routing.ID()))
	require.NoError(t, svc.Release(ctx, routing.ID(), "quality.lead"))

	_, err := svc.AddStep(ctx, routing.ID(), 40, segment.ID(), service.StepAttributes{})
	require.ErrorIs(t, err, domain.ErrRoutingNotMutable)
}

func TestRemoveStepWithDependents(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	step10 := routing.StepByNumber(10)
	require.NotNil(t, step10)

	err := svc.RemoveStep(ctx, routing.ID(), step10.ID())
	require.ErrorIs(t, err, domain.ErrStepHasDependents)

	// Removing the touching edge unblocks the step.
	reloaded, err := svc.GetRouting(ctx, routing.ID())
	require.NoError(t, err)
	for _, dep := range reloaded.Dependencies() {
		if dep.PrerequisiteID() == step10.ID() || dep.DependentID() == step10.ID() {
			require.NoError(t, svc.RemoveDependency(ctx, reloaded.ID(), dep.ID()))
		}
	}
	require.NoError(t, svc.RemoveStep(ctx, routing.ID(), step10.ID()))

	reloaded, err = svc.GetRouting(ctx, routing.ID())
	require.NoError(t, err)
	require.Len(t, reloaded.Steps(), 2)
}

func TestRenumberStepKeepsEdges(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	step20 := routing.StepByNumber(20)
	require.NotNil(t, step20)

	require.NoError(t, svc.RenumberStep(ctx, routing.ID(), step20.ID(), 25))

	reloaded, err := svc.GetRouting(ctx, routing.ID())
	require.NoError(t, err)
	require.Nil(t, reloaded.StepByNumber(20))
	moved := reloaded.StepByNumber(25)
	require.NotNil(t, moved)
	require.Equal(t, step20.ID(), moved.ID())
	require.Len(t, reloaded.Dependencies(), 2)
}

func TestAddDependencyWithBounds(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).
		WithSegment("CUT-100").
		WithSegment("DRILL-200").
		WithGrant("widget-a", "dallas").
		WithRouting("widget-a", "dallas", "1.0",
			testutil.Step(10, "CUT-100"),
			testutil.Step(20, "DRILL-200"),
		).
		Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	lag := 30 * time.Minute
	lead := 2 * time.Hour
	dep, err := svc.AddDependency(ctx, routing.ID(),
		routing.StepByNumber(20).ID(), routing.StepByNumber(10).ID(),
		domain.DependencyMustComplete, domain.TimingFinishToStart,
		service.DependencyAttributes{Lag: &lag, Lead: &lead})
	require.NoError(t, err)
	require.Equal(t, lag, *dep.Lag())
	require.Equal(t, lead, *dep.Lead())

	_, err = svc.AddDependency(ctx, routing.ID(),
		routing.StepByNumber(20).ID(), routing.StepByNumber(10).ID(),
		domain.DependencyMustStart, domain.TimingStartToStart,
		service.DependencyAttributes{})
	require.ErrorIs(t, err, domain.ErrDuplicateDependency)
}

func TestLifecycleHappyPath(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	require.NoError(t, svc.SubmitForReview(ctx, routing.ID()))
	require.NoError(t, svc.Release(ctx, routing.ID(), "quality.lead"))
	require.NoError(t, svc.PromoteToProduction(ctx, routing.ID(), false))
	require.NoError(t, svc.MakeObsolete(ctx, routing.ID()))

	final, err := svc.GetRouting(ctx, routing.ID())
	require.NoError(t, err)
	require.Equal(t, domain.StateObsolete, final.State())
	require.Equal(t, "quality.lead", final.ApprovedBy())
	require.NotNil(t, final.ApprovedAt())
	require.NotNil(t, final.ExpiresAt())
	require.False(t, final.IsPrimary())
}

func TestReleaseRequiresApprover(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	require.NoError(t, svc.SubmitForReview(ctx, routing.ID()))
	require.ErrorIs(t, svc.Release(ctx, routing.ID(), ""), domain.ErrApprovalRequired)
}

func TestReleaseBlockedByCycle(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).
		WithSegment("CUT-100").
		WithSegment("DRILL-200").
		WithGrant("widget-a", "dallas").
		WithRouting("widget-a", "dallas", "1.0",
			testutil.Step(10, "CUT-100"),
			testutil.Step(20, "DRILL-200"),
			testutil.MustComplete(20, 10),
			testutil.MustComplete(10, 20),
		).
		Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	require.NoError(t, svc.SubmitForReview(ctx, routing.ID()))

	err := svc.Release(ctx, routing.ID(), "quality.lead")
	var cyclic *domain.CyclicDependencyError
	require.ErrorAs(t, err, &cyclic)
	require.Equal(t, []int{10, 20}, cyclic.StepNumbers)

	// The routing stays in review after the failed release.
	reloaded, err := svc.GetRouting(ctx, routing.ID())
	require.NoError(t, err)
	require.Equal(t, domain.StateReview, reloaded.State())
}

func TestSendBackToDraftClearsApproval(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	require.NoError(t, svc.SubmitForReview(ctx, routing.ID()))
	require.NoError(t, svc.SendBackToDraft(ctx, routing.ID()))

	reloaded, err := svc.GetRouting(ctx, routing.ID())
	require.NoError(t, err)
	require.Equal(t, domain.StateDraft, reloaded.State())
	require.Empty(t, reloaded.ApprovedBy())
	require.Nil(t, reloaded.ApprovedAt())
}

func TestInvalidTransition(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	err := svc.PromoteToProduction(ctx, routing.ID(), false)
	var invalid *domain.InvalidLifecycleTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, domain.StateDraft, invalid.From)
	require.Equal(t, domain.StateProduction, invalid.To)
}

func TestPromoteConflict(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	first := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	require.NoError(t, svc.SubmitForReview(ctx, first.ID()))
	require.NoError(t, svc.Release(ctx, first.ID(), "quality.lead"))
	require.NoError(t, svc.PromoteToProduction(ctx, first.ID(), false))

	second, err := svc.CreateRouting(ctx, "widget-a", "dallas", "2.0", first.ID())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitForReview(ctx, second.ID()))
	require.NoError(t, svc.Release(ctx, second.ID(), "quality.lead"))

	err = svc.PromoteToProduction(ctx, second.ID(), false)
	require.ErrorIs(t, err, domain.ErrProductionConflict)

	// Explicit consent demotes the sibling in the same write.
	require.NoError(t, svc.PromoteToProduction(ctx, second.ID(), true))

	demoted, err := svc.GetRouting(ctx, first.ID())
	require.NoError(t, err)
	require.Equal(t, domain.StateObsolete, demoted.State())

	promoted, err := svc.GetRouting(ctx, second.ID())
	require.NoError(t, err)
	require.Equal(t, domain.StateProduction, promoted.State())
	require.True(t, promoted.IsPrimary())
}

func TestDeleteRoutingDraftOnly(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).WithStandardCatalog().Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	require.NoError(t, svc.SubmitForReview(ctx, routing.ID()))
	require.ErrorIs(t, svc.DeleteRouting(ctx, routing.ID()), domain.ErrRoutingNotMutable)

	require.NoError(t, svc.SendBackToDraft(ctx, routing.ID()))
	require.NoError(t, svc.DeleteRouting(ctx, routing.ID()))

	_, err := svc.GetRouting(ctx, routing.ID())
	var notFound *domain.RoutingNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestValidateRoutingAdvisories(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	fixture := testutil.NewBuilder(t, db).
		WithSegment("CUT-100").
		WithSegment("DRILL-200").
		WithGrant("widget-a", "dallas").
		WithRouting("widget-a", "dallas", "1.0",
			testutil.Step(10, "CUT-100"),
			testutil.Step(20, "DRILL-200"),
		).
		Build()
	routing := fixture.Routings[testutil.RoutingKey("widget-a", "dallas", "1.0")]

	report, err := svc.ValidateRouting(ctx, routing.ID())
	require.NoError(t, err)
	require.Equal(t, []int{10, 20}, report.Order)
	require.Len(t, report.Advisories, 1)
}

func TestRoutingChangeEventsPublished(t *testing.T) {
	db := testutil.NewTestDB(t)
	broker := pubsub.NewBroker[pubsub.RoutingChange]()
	defer broker.Close()
	svc := service.New(db.SegmentRepository(), db.AvailabilityRepository(), db.RoutingRepository(),
		service.WithBroker(broker))
	ctx := context.Background()

	events := broker.Subscribe(ctx)

	_, err := svc.GrantAvailability(ctx, "widget-a", "dallas", domain.AvailabilityConstraints{})
	require.NoError(t, err)
	routing, err := svc.CreateRouting(ctx, "widget-a", "dallas", "1.0", "")
	require.NoError(t, err)

	created := <-events
	require.Equal(t, pubsub.CreatedEvent, created.Type)
	require.Equal(t, routing.ID(), created.Payload.RoutingID)
	require.Equal(t, "widget-a", created.Payload.PartID)
	require.Equal(t, "dallas", created.Payload.SiteID)

	require.NoError(t, svc.SubmitForReview(ctx, routing.ID()))
	updated := <-events
	require.Equal(t, pubsub.UpdatedEvent, updated.Type)
	require.Equal(t, routing.ID(), updated.Payload.RoutingID)

	require.NoError(t, svc.DeleteRouting(ctx, routing.ID()))
	deleted := <-events
	require.Equal(t, pubsub.DeletedEvent, deleted.Type)
	require.Equal(t, routing.ID(), deleted.Payload.RoutingID)
}
