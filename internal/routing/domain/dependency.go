package domain

import (
	"time"

	"github.com/google/uuid"
)

// DependencyType classifies how strictly a prerequisite constrains its
// dependent step.
type DependencyType string

const (
	// DependencyMustComplete requires the prerequisite to finish before the
	// dependent step proceeds.
	DependencyMustComplete DependencyType = "must_complete"

	// DependencyMustStart requires the prerequisite to have started.
	DependencyMustStart DependencyType = "must_start"

	// DependencyOverlapAllowed declares an ordering preference that permits
	// overlap; it is advisory for scheduling order.
	DependencyOverlapAllowed DependencyType = "overlap_allowed"

	// DependencyParallel documents that two steps run side by side. It is
	// informational only, but still participates in cycle detection so the
	// documented graph stays coherent.
	DependencyParallel DependencyType = "parallel"
)

// IsValid returns true if the dependency type is recognized.
func (d DependencyType) IsValid() bool {
	switch d {
	case DependencyMustComplete, DependencyMustStart, DependencyOverlapAllowed, DependencyParallel:
		return true
	default:
		return false
	}
}

// Ordering reports whether edges of this type constrain the canonical
// execution order. Overlap-allowed and parallel edges are advisory.
func (d DependencyType) Ordering() bool {
	return d == DependencyMustComplete || d == DependencyMustStart
}

// TimingType relates the anchor points of the two steps on an edge.
type TimingType string

const (
	TimingFinishToStart  TimingType = "finish_to_start"
	TimingStartToStart   TimingType = "start_to_start"
	TimingFinishToFinish TimingType = "finish_to_finish"
	TimingStartToFinish  TimingType = "start_to_finish"
)

// IsValid returns true if the timing type is recognized.
func (t TimingType) IsValid() bool {
	switch t {
	case TimingFinishToStart, TimingStartToStart, TimingFinishToFinish, TimingStartToFinish:
		return true
	default:
		return false
	}
}

// StepDependency is a directed edge between two steps of the same routing:
// the dependent step waits on the prerequisite step according to the
// dependency and timing types. Lag is the minimum wait after the
// prerequisite's anchor point; lead is the maximum allowed head start.
type StepDependency struct {
	id             string
	dependentID    string
	prerequisiteID string
	depType        DependencyType
	timingType     TimingType
	lag            *time.Duration
	lead           *time.Duration
	createdAt      time.Time
}

// NewStepDependency creates an edge with a fresh identity.
func NewStepDependency(dependentID, prerequisiteID string, depType DependencyType, timingType TimingType) *StepDependency {
	return &StepDependency{
		id:             uuid.NewString(),
		dependentID:    dependentID,
		prerequisiteID: prerequisiteID,
		depType:        depType,
		timingType:     timingType,
		createdAt:      time.Now(),
	}
}

// ReconstituteStepDependency creates an edge from existing data.
func ReconstituteStepDependency(
	id, dependentID, prerequisiteID string,
	depType DependencyType,
	timingType TimingType,
	lag, lead *time.Duration,
	createdAt time.Time,
) *StepDependency {
	return &StepDependency{
		id:             id,
		dependentID:    dependentID,
		prerequisiteID: prerequisiteID,
		depType:        depType,
		timingType:     timingType,
		lag:            lag,
		lead:           lead,
		createdAt:      createdAt,
	}
}

// ID returns the edge identity.
func (d *StepDependency) ID() string { return d.id }

// DependentID returns the step that waits.
func (d *StepDependency) DependentID() string { return d.dependentID }

// PrerequisiteID returns the step that must satisfy its timing relationship first.
func (d *StepDependency) PrerequisiteID() string { return d.prerequisiteID }

// Type returns the dependency type.
func (d *StepDependency) Type() DependencyType { return d.depType }

// TimingType returns the timing relationship between the two steps.
func (d *StepDependency) TimingType() TimingType { return d.timingType }

// Lag returns the minimum wait bound, or nil when unset.
func (d *StepDependency) Lag() *time.Duration { return d.lag }

// Lead returns the maximum head-start bound, or nil when unset.
func (d *StepDependency) Lead() *time.Duration { return d.lead }

// CreatedAt returns when the edge was added.
func (d *StepDependency) CreatedAt() time.Time { return d.createdAt }

// SetBounds sets the lag/lead bounds. Coherence of the bounds is checked by
// the dependency validator, not here, so a draft can hold work in progress.
func (d *StepDependency) SetBounds(lag, lead *time.Duration) {
	d.lag = lag
	d.lead = lead
}

// cloneWithNewID returns a copy of the edge under a fresh identity, rewiring
// the step references through the given old-ID -> new-ID mapping.
func (d *StepDependency) cloneWithNewID(stepIDs map[string]string) *StepDependency {
	var lag, lead *time.Duration
	if d.lag != nil {
		v := *d.lag
		lag = &v
	}
	if d.lead != nil {
		v := *d.lead
		lead = &v
	}
	return &StepDependency{
		id:             uuid.NewString(),
		dependentID:    stepIDs[d.dependentID],
		prerequisiteID: stepIDs[d.prerequisiteID],
		depType:        d.depType,
		timingType:     d.timingType,
		lag:            lag,
		lead:           lead,
		createdAt:      time.Now(),
	}
}
