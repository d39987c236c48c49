package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validation errors (caller-correctable).
var (
	// ErrDuplicateCode is returned when registering a segment whose code is taken.
	ErrDuplicateCode = errors.New("segment code already registered")

	// ErrDuplicateVersion is returned when a routing for the same
	// (part, site, version) triple already exists.
	ErrDuplicateVersion = errors.New("routing version already exists for part and site")

	// ErrDuplicateStepNumber is returned when a step number is already taken
	// within the routing.
	ErrDuplicateStepNumber = errors.New("duplicate step number")

	// ErrDuplicateDependency is returned when an edge for the same
	// (dependent, prerequisite) pair already exists.
	ErrDuplicateDependency = errors.New("duplicate dependency edge")

	// ErrSiteNotAuthorized is returned when creating a routing for a site
	// with no active availability record for the part.
	ErrSiteNotAuthorized = errors.New("site is not authorized to manufacture part")

	// ErrSelfDependency is returned when an edge points a step at itself.
	ErrSelfDependency = errors.New("step cannot depend on itself")
)

// State errors (operation not valid given current lifecycle).
var (
	// ErrRoutingNotMutable is returned when mutating steps or edges of a
	// routing that is past review.
	ErrRoutingNotMutable = errors.New("routing is not mutable in its current state")

	// ErrStepHasDependents is returned when removing a step that is still
	// referenced by dependency edges.
	ErrStepHasDependents = errors.New("step is referenced by dependency edges")

	// ErrSegmentInUse is returned when deleting or editing a segment that is
	// referenced by a step of a non-draft routing.
	ErrSegmentInUse = errors.New("segment is referenced by a non-draft routing")

	// ErrApprovalRequired is returned when releasing a routing without an approver.
	ErrApprovalRequired = errors.New("release requires an approver")

	// ErrProductionConflict is returned when promoting a routing while another
	// routing for the same part and site is in production with an overlapping
	// effective window, and no demotion was requested.
	ErrProductionConflict = errors.New("another routing is in production for part and site")
)

// Concurrency errors (retryable by the caller after re-reading).
var (
	// ErrConcurrentModification is returned when a write carries a stale
	// revision. Retrying after a fresh read is expected and safe.
	ErrConcurrentModification = errors.New("routing was modified concurrently")
)

// Resolution errors.
var (
	// ErrNoProductionRouting is returned when no production routing covers
	// the requested instant.
	ErrNoProductionRouting = errors.New("no production routing for part and site")

	// ErrAmbiguousProductionRouting indicates more than one production routing
	// matched. The lifecycle guard makes this unreachable; seeing it is a bug.
	ErrAmbiguousProductionRouting = errors.New("multiple production routings matched")
)

// SegmentNotFoundError is returned when a process segment does not exist.
type SegmentNotFoundError struct {
	ID   string
	Code string
}

func (e *SegmentNotFoundError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("process segment %q not found", e.Code)
	}
	return fmt.Sprintf("process segment %s not found", e.ID)
}

// RoutingNotFoundError is returned when a routing does not exist.
type RoutingNotFoundError struct {
	ID      string
	PartID  string
	SiteID  string
	Version string
}

func (e *RoutingNotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("routing %s not found", e.ID)
	}
	return fmt.Sprintf("routing %s/%s version %q not found", e.PartID, e.SiteID, e.Version)
}

// StepNotFoundError is returned when a step does not exist within a routing.
type StepNotFoundError struct {
	RoutingID string
	StepID    string
}

func (e *StepNotFoundError) Error() string {
	return fmt.Sprintf("step %s not found in routing %s", e.StepID, e.RoutingID)
}

// AvailabilityNotFoundError is returned when no availability record exists
// for a (part, site) pair.
type AvailabilityNotFoundError struct {
	PartID string
	SiteID string
}

func (e *AvailabilityNotFoundError) Error() string {
	return fmt.Sprintf("no availability record for part %s at site %s", e.PartID, e.SiteID)
}

// InvalidLifecycleTransitionError is returned when a lifecycle transition is
// not in the transition table.
type InvalidLifecycleTransitionError struct {
	From LifecycleState
	To   LifecycleState
}

func (e *InvalidLifecycleTransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition from %s to %s", e.From, e.To)
}

// CyclicDependencyError is returned when a routing's edge set contains a cycle.
// StepNumbers lists the steps that participate in at least one cycle.
type CyclicDependencyError struct {
	StepNumbers []int
}

func (e *CyclicDependencyError) Error() string {
	nums := append([]int(nil), e.StepNumbers...)
	sort.Ints(nums)
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("cyclic dependency among steps {%s}", strings.Join(parts, ", "))
}

// InvalidTimingConstraintError is returned when an edge carries incoherent
// lag/lead bounds or references a missing prerequisite.
type InvalidTimingConstraintError struct {
	DependentStep    int
	PrerequisiteStep int
	Reason           string
}

func (e *InvalidTimingConstraintError) Error() string {
	return fmt.Sprintf("invalid timing constraint on edge %d -> %d: %s",
		e.DependentStep, e.PrerequisiteStep, e.Reason)
}
