// Package graph implements the dependency validator: given a snapshot of a
// routing's steps and edges, it decides whether the graph is acceptable for
// promotion out of draft/review and produces the canonical execution order
// consumed by downstream schedulers.
//
// Validation is pure and side-effect free; it only reads the snapshot passed
// to it and may run concurrently and repeatedly without coordination.
package graph

import (
	"container/heap"
	"fmt"
	"sort"

	"routecard/internal/routing/domain"
)

// AdvisoryCode identifies a non-fatal finding.
type AdvisoryCode string

const (
	// AdvisoryNoExplicitOrdering flags a multi-step routing with no declared
	// relationships at all. Accepted, but downstream schedulers will fall
	// back to step-number order.
	AdvisoryNoExplicitOrdering AdvisoryCode = "no_explicit_ordering"

	// AdvisoryOrphanStep flags a step with no incoming or outgoing edges in
	// a routing that otherwise declares relationships.
	AdvisoryOrphanStep AdvisoryCode = "orphan_step"
)

// Advisory is a non-fatal finding returned alongside a successful report.
type Advisory struct {
	Code       AdvisoryCode
	StepNumber int // 0 for routing-level advisories
	Message    string
}

// Report is the output of a successful validation: the canonical execution
// order plus any advisories. Running validation twice on an unchanged
// snapshot yields an identical report.
type Report struct {
	// Order is the canonical topological ordering of step numbers. Ties
	// among steps with no relative constraint break by ascending step
	// number, so the ordering is deterministic and reproducible.
	Order []int

	// OrderedStepIDs carries the same ordering by step identity.
	OrderedStepIDs []string

	Advisories []Advisory
}

// Validate checks a routing's step and edge snapshot.
//
// Fatal findings return an error: a *domain.CyclicDependencyError listing
// the step numbers on cycles, or a *domain.InvalidTimingConstraintError for
// incoherent lag/lead bounds or edges referencing missing steps. Parallel
// edges are documentation only: they skip timing checks and do not constrain
// the canonical order, but they still participate in cycle detection so the
// documented graph stays coherent.
func Validate(steps []*domain.RoutingStep, deps []*domain.StepDependency) (*Report, error) {
	byID := make(map[string]*domain.RoutingStep, len(steps))
	for _, s := range steps {
		byID[s.ID()] = s
	}

	if err := checkTiming(byID, deps); err != nil {
		return nil, err
	}
	if err := checkCycles(byID, steps, deps); err != nil {
		return nil, err
	}

	order := canonicalOrder(steps, deps)

	report := &Report{
		Order:          make([]int, 0, len(order)),
		OrderedStepIDs: make([]string, 0, len(order)),
	}
	for _, s := range order {
		report.Order = append(report.Order, s.Number())
		report.OrderedStepIDs = append(report.OrderedStepIDs, s.ID())
	}
	report.Advisories = advisories(steps, deps)
	return report, nil
}

// checkTiming validates timing-type consistency on every non-parallel edge:
// both endpoints must be defined steps, lag/lead bounds must be
// non-negative, and a lead bound below the lag bound is incoherent.
func checkTiming(byID map[string]*domain.RoutingStep, deps []*domain.StepDependency) error {
	for _, d := range deps {
		if d.Type() == domain.DependencyParallel {
			continue
		}
		dep, depOK := byID[d.DependentID()]
		pre, preOK := byID[d.PrerequisiteID()]
		if !preOK || !depOK {
			return &domain.InvalidTimingConstraintError{
				DependentStep:    stepNumberOrZero(dep),
				PrerequisiteStep: stepNumberOrZero(pre),
				Reason:           "edge references a step that is not defined",
			}
		}
		if d.Lag() != nil && *d.Lag() < 0 {
			return &domain.InvalidTimingConstraintError{
				DependentStep:    dep.Number(),
				PrerequisiteStep: pre.Number(),
				Reason:           "negative lag bound",
			}
		}
		if d.Lead() != nil && *d.Lead() < 0 {
			return &domain.InvalidTimingConstraintError{
				DependentStep:    dep.Number(),
				PrerequisiteStep: pre.Number(),
				Reason:           "negative lead bound",
			}
		}
		if d.Lag() != nil && d.Lead() != nil && *d.Lead() < *d.Lag() {
			return &domain.InvalidTimingConstraintError{
				DependentStep:    dep.Number(),
				PrerequisiteStep: pre.Number(),
				Reason:           fmt.Sprintf("lead bound %s below lag bound %s", *d.Lead(), *d.Lag()),
			}
		}
	}
	return nil
}

func stepNumberOrZero(s *domain.RoutingStep) int {
	if s == nil {
		return 0
	}
	return s.Number()
}

// checkCycles runs Kahn's algorithm over the FULL edge set, parallel edges
// included. When steps remain unvisited, the leftover subgraph is trimmed
// from both ends so the reported set contains exactly the steps that sit on
// a cycle, not everything downstream of one.
func checkCycles(byID map[string]*domain.RoutingStep, steps []*domain.RoutingStep, deps []*domain.StepDependency) error {
	indegree := make(map[string]int, len(steps))
	succ := make(map[string][]string, len(steps))
	for _, s := range steps {
		indegree[s.ID()] = 0
	}
	for _, d := range deps {
		// prerequisite -> dependent
		if _, ok := byID[d.PrerequisiteID()]; !ok {
			continue
		}
		if _, ok := byID[d.DependentID()]; !ok {
			continue
		}
		succ[d.PrerequisiteID()] = append(succ[d.PrerequisiteID()], d.DependentID())
		indegree[d.DependentID()]++
	}

	queue := make([]string, 0, len(steps))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range succ[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited == len(steps) {
		return nil
	}

	// Leftover nodes are on or downstream of a cycle. Trim nodes with no
	// successors inside the leftover set until a fixpoint; what remains is
	// the cycle set.
	leftover := make(map[string]bool)
	for id, deg := range indegree {
		if deg > 0 {
			leftover[id] = true
		}
	}
	for {
		trimmed := false
		for id := range leftover {
			hasSucc := false
			for _, next := range succ[id] {
				if leftover[next] {
					hasSucc = true
					break
				}
			}
			if !hasSucc {
				delete(leftover, id)
				trimmed = true
			}
		}
		if !trimmed {
			break
		}
	}

	numbers := make([]int, 0, len(leftover))
	for id := range leftover {
		numbers = append(numbers, byID[id].Number())
	}
	sort.Ints(numbers)
	return &domain.CyclicDependencyError{StepNumbers: numbers}
}

// canonicalOrder produces the deterministic topological ordering over the
// ordering edges only (must-complete and must-start). Overlap-allowed and
// parallel edges are advisory and never constrain the order. The frontier is
// a min-heap on step number, which fixes the tie-break.
func canonicalOrder(steps []*domain.RoutingStep, deps []*domain.StepDependency) []*domain.RoutingStep {
	byID := make(map[string]*domain.RoutingStep, len(steps))
	indegree := make(map[string]int, len(steps))
	succ := make(map[string][]string, len(steps))
	for _, s := range steps {
		byID[s.ID()] = s
		indegree[s.ID()] = 0
	}
	for _, d := range deps {
		if !d.Type().Ordering() {
			continue
		}
		if _, ok := byID[d.PrerequisiteID()]; !ok {
			continue
		}
		if _, ok := byID[d.DependentID()]; !ok {
			continue
		}
		succ[d.PrerequisiteID()] = append(succ[d.PrerequisiteID()], d.DependentID())
		indegree[d.DependentID()]++
	}

	frontier := &stepHeap{}
	heap.Init(frontier)
	for _, s := range steps {
		if indegree[s.ID()] == 0 {
			heap.Push(frontier, s)
		}
	}

	order := make([]*domain.RoutingStep, 0, len(steps))
	for frontier.Len() > 0 {
		s := heap.Pop(frontier).(*domain.RoutingStep)
		order = append(order, s)
		for _, nextID := range succ[s.ID()] {
			indegree[nextID]--
			if indegree[nextID] == 0 {
				heap.Push(frontier, byID[nextID])
			}
		}
	}
	return order
}

func advisories(steps []*domain.RoutingStep, deps []*domain.StepDependency) []Advisory {
	var out []Advisory
	if len(steps) > 1 && len(deps) == 0 {
		out = append(out, Advisory{
			Code:    AdvisoryNoExplicitOrdering,
			Message: "routing has multiple steps but no declared ordering relationships",
		})
		return out
	}
	if len(deps) == 0 {
		return out
	}

	touched := make(map[string]bool, len(steps))
	for _, d := range deps {
		touched[d.DependentID()] = true
		touched[d.PrerequisiteID()] = true
	}
	// Report orphans in step-number order for reproducibility.
	sorted := append([]*domain.RoutingStep(nil), steps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number() < sorted[j].Number() })
	for _, s := range sorted {
		if !touched[s.ID()] {
			out = append(out, Advisory{
				Code:       AdvisoryOrphanStep,
				StepNumber: s.Number(),
				Message:    fmt.Sprintf("step %d has no dependency relationships", s.Number()),
			})
		}
	}
	return out
}

// stepHeap is a min-heap of steps keyed by step number.
type stepHeap []*domain.RoutingStep

func (h stepHeap) Len() int           { return len(h) }
func (h stepHeap) Less(i, j int) bool { return h[i].Number() < h[j].Number() }
func (h stepHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *stepHeap) Push(x any) { *h = append(*h, x.(*domain.RoutingStep)) }
func (h *stepHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return s
}
