package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing is the versioned process definition for one (part, site) pair.
// It is the aggregate root owning its steps and dependency edges: all
// mutations go through it so lifecycle mutability is enforced in one place.
// The triple (partID, siteID, version) is globally unique.
type Routing struct {
	id            string
	partID        string
	siteID        string
	version       string
	state         LifecycleState
	isPrimary     bool
	effectiveFrom time.Time
	expiresAt     *time.Time
	approvedBy    string
	approvedAt    *time.Time
	revision      int64 // optimistic concurrency tag, managed by the repository
	createdAt     time.Time
	updatedAt     time.Time

	steps []*RoutingStep
	deps  []*StepDependency
}

// NewRouting creates a draft routing with a fresh identity.
func NewRouting(partID, siteID, version string) *Routing {
	now := time.Now()
	return &Routing{
		id:            uuid.NewString(),
		partID:        partID,
		siteID:        siteID,
		version:       version,
		state:         StateDraft,
		effectiveFrom: now,
		createdAt:     now,
		updatedAt:     now,
	}
}

// ReconstituteRouting creates a routing from existing data, typically when
// hydrating from the database.
func ReconstituteRouting(
	id, partID, siteID, version string,
	state LifecycleState,
	isPrimary bool,
	effectiveFrom time.Time,
	expiresAt *time.Time,
	approvedBy string,
	approvedAt *time.Time,
	revision int64,
	createdAt, updatedAt time.Time,
	steps []*RoutingStep,
	deps []*StepDependency,
) *Routing {
	return &Routing{
		id:            id,
		partID:        partID,
		siteID:        siteID,
		version:       version,
		state:         state,
		isPrimary:     isPrimary,
		effectiveFrom: effectiveFrom,
		expiresAt:     expiresAt,
		approvedBy:    approvedBy,
		approvedAt:    approvedAt,
		revision:      revision,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		steps:         steps,
		deps:          deps,
	}
}

// ID returns the routing identity.
func (r *Routing) ID() string { return r.id }

// PartID returns the part this routing produces.
func (r *Routing) PartID() string { return r.partID }

// SiteID returns the manufacturing site.
func (r *Routing) SiteID() string { return r.siteID }

// Version returns the version label.
func (r *Routing) Version() string { return r.version }

// State returns the lifecycle state.
func (r *Routing) State() LifecycleState { return r.state }

// IsPrimary returns whether this is the primary routing for its part and site.
func (r *Routing) IsPrimary() bool { return r.isPrimary }

// EffectiveFrom returns the start of the effective window.
func (r *Routing) EffectiveFrom() time.Time { return r.effectiveFrom }

// ExpiresAt returns the end of the effective window, or nil when open-ended.
func (r *Routing) ExpiresAt() *time.Time { return r.expiresAt }

// ApprovedBy returns who approved the release, or empty.
func (r *Routing) ApprovedBy() string { return r.approvedBy }

// ApprovedAt returns when the release was approved, or nil.
func (r *Routing) ApprovedAt() *time.Time { return r.approvedAt }

// Revision returns the optimistic-concurrency tag last observed at load time.
func (r *Routing) Revision() int64 { return r.revision }

// SetRevision is called by the persistence layer after a successful write.
func (r *Routing) SetRevision(rev int64) { r.revision = rev }

// CreatedAt returns when the routing was created.
func (r *Routing) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns when the routing was last changed.
func (r *Routing) UpdatedAt() time.Time { return r.updatedAt }

// Steps returns the owned steps.
func (r *Routing) Steps() []*RoutingStep { return r.steps }

// Dependencies returns the owned dependency edges.
func (r *Routing) Dependencies() []*StepDependency { return r.deps }

// StepByID returns the step with the given identity, or nil.
func (r *Routing) StepByID(stepID string) *RoutingStep {
	for _, s := range r.steps {
		if s.ID() == stepID {
			return s
		}
	}
	return nil
}

// StepByNumber returns the step with the given number, or nil.
func (r *Routing) StepByNumber(number int) *RoutingStep {
	for _, s := range r.steps {
		if s.Number() == number {
			return s
		}
	}
	return nil
}

// CoversAt reports whether the effective window contains the given instant.
func (r *Routing) CoversAt(at time.Time) bool {
	if at.Before(r.effectiveFrom) {
		return false
	}
	if r.expiresAt != nil && !at.Before(*r.expiresAt) {
		return false
	}
	return true
}

// SetEffectiveWindow replaces the effective window.
func (r *Routing) SetEffectiveWindow(from time.Time, until *time.Time) {
	r.effectiveFrom = from
	r.expiresAt = until
	r.updatedAt = time.Now()
}

// AddStep adds a step referencing the given segment. Fails with
// ErrRoutingNotMutable past review and ErrDuplicateStepNumber when the
// number is taken. Existence of the segment is the service's concern.
func (r *Routing) AddStep(number int, segmentID string) (*RoutingStep, error) {
	if !r.state.IsMutable() {
		return nil, ErrRoutingNotMutable
	}
	if r.StepByNumber(number) != nil {
		return nil, ErrDuplicateStepNumber
	}
	step := NewRoutingStep(number, segmentID)
	r.steps = append(r.steps, step)
	r.updatedAt = time.Now()
	return step, nil
}

// RemoveStep removes a step. Removal is blocked with ErrStepHasDependents
// while any dependency edge touches the step; callers remove edges first.
func (r *Routing) RemoveStep(stepID string) error {
	if !r.state.IsMutable() {
		return ErrRoutingNotMutable
	}
	step := r.StepByID(stepID)
	if step == nil {
		return &StepNotFoundError{RoutingID: r.id, StepID: stepID}
	}
	for _, d := range r.deps {
		if d.DependentID() == stepID || d.PrerequisiteID() == stepID {
			return ErrStepHasDependents
		}
	}
	for i, s := range r.steps {
		if s.ID() == stepID {
			r.steps = append(r.steps[:i], r.steps[i+1:]...)
			break
		}
	}
	r.updatedAt = time.Now()
	return nil
}

// RenumberStep reassigns a step's number. Edges reference step identity, so
// renumbering never touches the dependency set.
func (r *Routing) RenumberStep(stepID string, newNumber int) error {
	if !r.state.IsMutable() {
		return ErrRoutingNotMutable
	}
	step := r.StepByID(stepID)
	if step == nil {
		return &StepNotFoundError{RoutingID: r.id, StepID: stepID}
	}
	if existing := r.StepByNumber(newNumber); existing != nil && existing.ID() != stepID {
		return ErrDuplicateStepNumber
	}
	step.setNumber(newNumber)
	r.updatedAt = time.Now()
	return nil
}

// AddDependency adds a directed edge from dependent to prerequisite. Both
// steps must belong to this routing; duplicate (dependent, prerequisite)
// pairs and self-edges are rejected. Graph acceptability (cycles, timing
// bounds) is the validator's concern, so a draft can hold work in progress.
func (r *Routing) AddDependency(dependentID, prerequisiteID string, depType DependencyType, timingType TimingType) (*StepDependency, error) {
	if !r.state.IsMutable() {
		return nil, ErrRoutingNotMutable
	}
	if dependentID == prerequisiteID {
		return nil, ErrSelfDependency
	}
	if r.StepByID(dependentID) == nil {
		return nil, &StepNotFoundError{RoutingID: r.id, StepID: dependentID}
	}
	if r.StepByID(prerequisiteID) == nil {
		return nil, &StepNotFoundError{RoutingID: r.id, StepID: prerequisiteID}
	}
	for _, d := range r.deps {
		if d.DependentID() == dependentID && d.PrerequisiteID() == prerequisiteID {
			return nil, ErrDuplicateDependency
		}
	}
	dep := NewStepDependency(dependentID, prerequisiteID, depType, timingType)
	r.deps = append(r.deps, dep)
	r.updatedAt = time.Now()
	return dep, nil
}

// RemoveDependency removes the edge with the given identity.
func (r *Routing) RemoveDependency(depID string) error {
	if !r.state.IsMutable() {
		return ErrRoutingNotMutable
	}
	for i, d := range r.deps {
		if d.ID() == depID {
			r.deps = append(r.deps[:i], r.deps[i+1:]...)
			r.updatedAt = time.Now()
			return nil
		}
	}
	return &StepNotFoundError{RoutingID: r.id, StepID: depID}
}

// SubmitForReview transitions the routing from draft to review.
func (r *Routing) SubmitForReview() error {
	if err := r.transition(StateReview); err != nil {
		return err
	}
	return nil
}

// SendBackToDraft returns a routing under review to draft for rework and
// clears any approval metadata.
func (r *Routing) SendBackToDraft() error {
	if err := r.transition(StateDraft); err != nil {
		return err
	}
	r.approvedBy = ""
	r.approvedAt = nil
	return nil
}

// Release transitions the routing from review to released, recording the
// approver atomically with the transition. Graph validation is the caller's
// responsibility and must have passed before this is invoked.
func (r *Routing) Release(approvedBy string) error {
	if approvedBy == "" {
		return ErrApprovalRequired
	}
	if err := r.transition(StateReleased); err != nil {
		return err
	}
	now := time.Now()
	r.approvedBy = approvedBy
	r.approvedAt = &now
	return nil
}

// Promote transitions the routing from released to production and marks it
// primary. The single-production guard for the (part, site) pair is enforced
// by the service, which demotes a conflicting sibling in the same write.
func (r *Routing) Promote() error {
	if err := r.transition(StateProduction); err != nil {
		return err
	}
	r.isPrimary = true
	return nil
}

// MakeObsolete transitions the routing from production to obsolete and sets
// the effective window's end to the transition time.
func (r *Routing) MakeObsolete() error {
	if err := r.transition(StateObsolete); err != nil {
		return err
	}
	now := time.Now()
	r.expiresAt = &now
	r.isPrimary = false
	return nil
}

func (r *Routing) transition(to LifecycleState) error {
	if !IsValidTransition(r.state, to) {
		return &InvalidLifecycleTransitionError{From: r.state, To: to}
	}
	r.state = to
	r.updatedAt = time.Now()
	return nil
}

// CloneAsDraft deep-copies the routing's steps and edges into a new draft
// under the given version. Steps and edges get fresh identities; the source
// routing is untouched.
func (r *Routing) CloneAsDraft(version string) *Routing {
	clone := NewRouting(r.partID, r.siteID, version)

	stepIDs := make(map[string]string, len(r.steps))
	clone.steps = make([]*RoutingStep, 0, len(r.steps))
	for _, s := range r.steps {
		c := s.cloneWithNewID()
		stepIDs[s.ID()] = c.ID()
		clone.steps = append(clone.steps, c)
	}

	clone.deps = make([]*StepDependency, 0, len(r.deps))
	for _, d := range r.deps {
		clone.deps = append(clone.deps, d.cloneWithNewID(stepIDs))
	}
	return clone
}
