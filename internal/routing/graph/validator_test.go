package graph

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"routecard/internal/routing/domain"
)

// buildSteps creates one step per number and returns them alongside a lookup
// by number, so tests can declare edges in terms of step numbers.
func buildSteps(numbers ...int) ([]*domain.RoutingStep, map[int]*domain.RoutingStep) {
	steps := make([]*domain.RoutingStep, 0, len(numbers))
	byNumber := make(map[int]*domain.RoutingStep, len(numbers))
	for _, n := range numbers {
		s := domain.NewRoutingStep(n, "segment-"+string(rune('a'+n%26)))
		steps = append(steps, s)
		byNumber[n] = s
	}
	return steps, byNumber
}

func edge(byNumber map[int]*domain.RoutingStep, dependent, prerequisite int, depType domain.DependencyType, timing domain.TimingType) *domain.StepDependency {
	return domain.NewStepDependency(byNumber[dependent].ID(), byNumber[prerequisite].ID(), depType, timing)
}

func TestValidateLinearChain(t *testing.T) {
	steps, byNumber := buildSteps(10, 20, 30)
	deps := []*domain.StepDependency{
		edge(byNumber, 20, 10, domain.DependencyMustComplete, domain.TimingFinishToStart),
		edge(byNumber, 30, 20, domain.DependencyMustComplete, domain.TimingFinishToStart),
	}

	report, err := Validate(steps, deps)
	require.NoError(t, err)
	require.Equal(t, []int{10, 20, 30}, report.Order)
	require.Empty(t, report.Advisories)
}

func TestValidateEmptyAndSingleStep(t *testing.T) {
	report, err := Validate(nil, nil)
	require.NoError(t, err)
	require.Empty(t, report.Order)
	require.Empty(t, report.Advisories)

	steps, _ := buildSteps(10)
	report, err = Validate(steps, nil)
	require.NoError(t, err)
	require.Equal(t, []int{10}, report.Order)
	require.Empty(t, report.Advisories)
}

func TestValidateTieBreaksByStepNumber(t *testing.T) {
	// Diamond: 10 precedes both 30 and 20, which both precede 40.
	steps, byNumber := buildSteps(10, 20, 30, 40)
	deps := []*domain.StepDependency{
		edge(byNumber, 30, 10, domain.DependencyMustComplete, domain.TimingFinishToStart),
		edge(byNumber, 20, 10, domain.DependencyMustComplete, domain.TimingFinishToStart),
		edge(byNumber, 40, 30, domain.DependencyMustComplete, domain.TimingFinishToStart),
		edge(byNumber, 40, 20, domain.DependencyMustComplete, domain.TimingFinishToStart),
	}

	report, err := Validate(steps, deps)
	require.NoError(t, err)
	require.Equal(t, []int{10, 20, 30, 40}, report.Order)
}

func TestValidateDetectsCycle(t *testing.T) {
	steps, byNumber := buildSteps(10, 20, 30)
	deps := []*domain.StepDependency{
		edge(byNumber, 20, 10, domain.DependencyMustComplete, domain.TimingFinishToStart),
		edge(byNumber, 30, 20, domain.DependencyMustComplete, domain.TimingFinishToStart),
		edge(byNumber, 10, 30, domain.DependencyMustComplete, domain.TimingFinishToStart),
	}

	_, err := Validate(steps, deps)
	var cyclic *domain.CyclicDependencyError
	require.ErrorAs(t, err, &cyclic)
	require.Equal(t, []int{10, 20, 30}, cyclic.StepNumbers)
}

func TestValidateCycleSetExcludesDownstreamSteps(t *testing.T) {
	// 10 and 20 form a cycle; 30 and 40 hang off it but are not on it.
	steps, byNumber := buildSteps(10, 20, 30, 40)
	deps := []*domain.StepDependency{
		edge(byNumber, 20, 10, domain.DependencyMustComplete, domain.TimingFinishToStart),
		edge(byNumber, 10, 20, domain.DependencyMustComplete, domain.TimingFinishToStart),
		edge(byNumber, 30, 20, domain.DependencyMustComplete, domain.TimingFinishToStart),
		edge(byNumber, 40, 30, domain.DependencyMustComplete, domain.TimingFinishToStart),
	}

	_, err := Validate(steps, deps)
	var cyclic *domain.CyclicDependencyError
	require.ErrorAs(t, err, &cyclic)
	require.Equal(t, []int{10, 20}, cyclic.StepNumbers)
}

func TestValidateParallelEdgesCountForCycles(t *testing.T) {
	steps, byNumber := buildSteps(10, 20)
	deps := []*domain.StepDependency{
		edge(byNumber, 20, 10, domain.DependencyMustComplete, domain.TimingFinishToStart),
		edge(byNumber, 10, 20, domain.DependencyParallel, domain.TimingStartToStart),
	}

	_, err := Validate(steps, deps)
	var cyclic *domain.CyclicDependencyError
	require.ErrorAs(t, err, &cyclic)
	require.Equal(t, []int{10, 20}, cyclic.StepNumbers)
}

func TestValidateAdvisoryEdgesDoNotConstrainOrder(t *testing.T) {
	// The overlap edge points 10 after 20, but only must-complete/must-start
	// edges order the plan, so numbers win.
	steps, byNumber := buildSteps(10, 20)
	deps := []*domain.StepDependency{
		edge(byNumber, 10, 20, domain.DependencyOverlapAllowed, domain.TimingStartToStart),
	}

	report, err := Validate(steps, deps)
	require.NoError(t, err)
	require.Equal(t, []int{10, 20}, report.Order)
}

func TestValidateTimingErrors(t *testing.T) {
	negative := -time.Minute
	lag := time.Hour
	lead := 30 * time.Minute

	tests := []struct {
		name   string
		bounds func(d *domain.StepDependency)
		reason string
	}{
		{
			name:   "negative lag",
			bounds: func(d *domain.StepDependency) { d.SetBounds(&negative, nil) },
			reason: "negative lag bound",
		},
		{
			name:   "negative lead",
			bounds: func(d *domain.StepDependency) { d.SetBounds(nil, &negative) },
			reason: "negative lead bound",
		},
		{
			name:   "lead below lag",
			bounds: func(d *domain.StepDependency) { d.SetBounds(&lag, &lead) },
			reason: "lead bound 30m0s below lag bound 1h0m0s",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, byNumber := buildSteps(10, 20)
			d := edge(byNumber, 20, 10, domain.DependencyMustComplete, domain.TimingFinishToStart)
			tt.bounds(d)

			_, err := Validate(steps, []*domain.StepDependency{d})
			var timing *domain.InvalidTimingConstraintError
			require.ErrorAs(t, err, &timing)
			require.Equal(t, 20, timing.DependentStep)
			require.Equal(t, 10, timing.PrerequisiteStep)
			require.Equal(t, tt.reason, timing.Reason)
		})
	}
}

func TestValidateOverlapAllowedKeepsTimingCheck(t *testing.T) {
	negative := -time.Minute
	steps, byNumber := buildSteps(10, 20)
	d := edge(byNumber, 20, 10, domain.DependencyOverlapAllowed, domain.TimingStartToStart)
	d.SetBounds(&negative, nil)

	_, err := Validate(steps, []*domain.StepDependency{d})
	var timing *domain.InvalidTimingConstraintError
	require.ErrorAs(t, err, &timing)
	require.Equal(t, "negative lag bound", timing.Reason)
}

func TestValidateTimingSkippedOnParallelEdges(t *testing.T) {
	negative := -time.Minute
	steps, byNumber := buildSteps(10, 20)
	d := edge(byNumber, 20, 10, domain.DependencyParallel, domain.TimingStartToStart)
	d.SetBounds(&negative, nil)

	_, err := Validate(steps, []*domain.StepDependency{d})
	require.NoError(t, err)
}

func TestValidateEdgeToMissingStep(t *testing.T) {
	steps, byNumber := buildSteps(10)
	ghost := domain.NewRoutingStep(99, "segment-x")
	d := domain.NewStepDependency(ghost.ID(), byNumber[10].ID(), domain.DependencyMustComplete, domain.TimingFinishToStart)

	_, err := Validate(steps, []*domain.StepDependency{d})
	var timing *domain.InvalidTimingConstraintError
	require.ErrorAs(t, err, &timing)
	require.Equal(t, "edge references a step that is not defined", timing.Reason)
}

func TestValidateNoExplicitOrderingAdvisory(t *testing.T) {
	steps, _ := buildSteps(10, 20, 30)

	report, err := Validate(steps, nil)
	require.NoError(t, err)
	require.Equal(t, []int{10, 20, 30}, report.Order)
	require.Len(t, report.Advisories, 1)
	require.Equal(t, AdvisoryNoExplicitOrdering, report.Advisories[0].Code)
	require.Zero(t, report.Advisories[0].StepNumber)
}

func TestValidateOrphanStepAdvisories(t *testing.T) {
	steps, byNumber := buildSteps(10, 20, 30, 40)
	deps := []*domain.StepDependency{
		edge(byNumber, 20, 10, domain.DependencyMustComplete, domain.TimingFinishToStart),
	}

	report, err := Validate(steps, deps)
	require.NoError(t, err)
	require.Len(t, report.Advisories, 2)
	require.Equal(t, AdvisoryOrphanStep, report.Advisories[0].Code)
	require.Equal(t, 30, report.Advisories[0].StepNumber)
	require.Equal(t, AdvisoryOrphanStep, report.Advisories[1].Code)
	require.Equal(t, 40, report.Advisories[1].StepNumber)
}

// randomDAG draws a random acyclic snapshot: distinct step numbers plus edges
// that always point from a later-drawn step back to an earlier one.
func randomDAG(t *rapid.T) ([]*domain.RoutingStep, []*domain.StepDependency) {
	numbers := rapid.SliceOfNDistinct(rapid.IntRange(1, 500), 1, 12, rapid.ID[int]).Draw(t, "numbers")
	steps, _ := buildSteps(numbers...)

	types := []domain.DependencyType{
		domain.DependencyMustComplete,
		domain.DependencyMustStart,
		domain.DependencyOverlapAllowed,
		domain.DependencyParallel,
	}
	timings := []domain.TimingType{
		domain.TimingFinishToStart,
		domain.TimingStartToStart,
		domain.TimingFinishToFinish,
		domain.TimingStartToFinish,
	}

	var deps []*domain.StepDependency
	seen := make(map[[2]int]bool)
	edgeCount := rapid.IntRange(0, len(steps)*2).Draw(t, "edgeCount")
	for i := 0; i < edgeCount; i++ {
		if len(steps) < 2 {
			break
		}
		pre := rapid.IntRange(0, len(steps)-2).Draw(t, "pre")
		dep := rapid.IntRange(pre+1, len(steps)-1).Draw(t, "dep")
		if seen[[2]int{dep, pre}] {
			continue
		}
		seen[[2]int{dep, pre}] = true
		d := domain.NewStepDependency(
			steps[dep].ID(),
			steps[pre].ID(),
			rapid.SampledFrom(types).Draw(t, "type"),
			rapid.SampledFrom(timings).Draw(t, "timing"),
		)
		if rapid.Bool().Draw(t, "bounded") {
			lag := time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(t, "lag"))
			lead := lag + time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(t, "leadExtra"))
			d.SetBounds(&lag, &lead)
		}
		deps = append(deps, d)
	}
	return steps, deps
}

func TestValidateRapidAcyclicSnapshots(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		steps, deps := randomDAG(t)

		report, err := Validate(steps, deps)
		require.NoError(t, err)
		require.Len(t, report.Order, len(steps))

		// The order is a permutation of the declared step numbers.
		got := make(map[int]bool, len(report.Order))
		for _, n := range report.Order {
			got[n] = true
		}
		for _, s := range steps {
			require.True(t, got[s.Number()])
		}

		// Every ordering edge is respected.
		position := make(map[string]int, len(report.OrderedStepIDs))
		for i, id := range report.OrderedStepIDs {
			position[id] = i
		}
		for _, d := range deps {
			if !d.Type().Ordering() {
				continue
			}
			require.Less(t, position[d.PrerequisiteID()], position[d.DependentID()])
		}
	})
}

func TestValidateRapidDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		steps, deps := randomDAG(t)

		first, err := Validate(steps, deps)
		require.NoError(t, err)
		second, err := Validate(steps, deps)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
}

func TestValidateRapidInputOrderIrrelevant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		steps, deps := randomDAG(t)

		first, err := Validate(steps, deps)
		require.NoError(t, err)

		seed := rapid.Int64().Draw(t, "seed")
		rng := rand.New(rand.NewSource(seed))
		shuffledSteps := append([]*domain.RoutingStep(nil), steps...)
		rng.Shuffle(len(shuffledSteps), func(i, j int) {
			shuffledSteps[i], shuffledSteps[j] = shuffledSteps[j], shuffledSteps[i]
		})
		shuffledDeps := append([]*domain.StepDependency(nil), deps...)
		rng.Shuffle(len(shuffledDeps), func(i, j int) {
			shuffledDeps[i], shuffledDeps[j] = shuffledDeps[j], shuffledDeps[i]
		})

		second, err := Validate(shuffledSteps, shuffledDeps)
		require.NoError(t, err)
		require.Equal(t, first.Order, second.Order)
		require.Equal(t, first.OrderedStepIDs, second.OrderedStepIDs)
	})
}
