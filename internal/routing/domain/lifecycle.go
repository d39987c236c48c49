package domain

import "slices"

// LifecycleState represents the lifecycle state of a routing.
type LifecycleState string

const (
	// StateDraft is the initial state; the routing is fully mutable.
	StateDraft LifecycleState = "draft"

	// StateReview indicates the routing is under engineering review.
	// Content is still mutable so reviewers can request small fixes in place.
	StateReview LifecycleState = "review"

	// StateReleased indicates the routing passed validation and approval.
	// The step graph is frozen from here on.
	StateReleased LifecycleState = "released"

	// StateProduction indicates the routing is the authoritative process
	// for its part and site.
	StateProduction LifecycleState = "production"

	// StateObsolete is terminal; the routing has been superseded.
	StateObsolete LifecycleState = "obsolete"
)

// String returns the string representation of the lifecycle state.
func (s LifecycleState) String() string {
	return string(s)
}

// IsValid returns true if the state is a recognized lifecycle state.
func (s LifecycleState) IsValid() bool {
	switch s {
	case StateDraft, StateReview, StateReleased, StateProduction, StateObsolete:
		return true
	default:
		return false
	}
}

// IsMutable returns true if a routing in this state may have its steps and
// dependencies changed. Once released, content changes require cloning into
// a new draft version.
func (s LifecycleState) IsMutable() bool {
	return s == StateDraft || s == StateReview
}

// IsTerminal returns true if no transition leaves this state.
func (s LifecycleState) IsTerminal() bool {
	return s == StateObsolete
}

// ValidTransitions defines the allowed lifecycle transitions.
// Map key is the "from" state, value is the set of valid "to" states.
var ValidTransitions = map[LifecycleState][]LifecycleState{
	StateDraft:      {StateReview},
	StateReview:     {StateReleased, StateDraft},
	StateReleased:   {StateProduction},
	StateProduction: {StateObsolete},
	StateObsolete:   {},
}

// IsValidTransition checks if transitioning from one state to another is allowed.
func IsValidTransition(from, to LifecycleState) bool {
	validTos, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(validTos, to)
}
