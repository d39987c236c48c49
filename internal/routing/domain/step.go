package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepFlags marks the role a step plays within its routing.
type StepFlags struct {
	Optional          bool // step may be skipped without a deviation
	QualityCheckpoint bool // inspection gate
	CriticalPath      bool // drives the routing's lead time
}

// RoutingStep is one occurrence of a process segment within a routing.
// Steps are owned exclusively by their routing; a step's identity is stable
// across renumbering, so dependency edges reference identity, not number.
type RoutingStep struct {
	id         string
	number     int
	segmentID  string
	override   *Timing // nil means use the segment's nominal timing
	workCenter string  // optional specific work-center assignment
	flags      StepFlags
	createdAt  time.Time
	updatedAt  time.Time
}

// NewRoutingStep creates a step with a fresh identity.
func NewRoutingStep(number int, segmentID string) *RoutingStep {
	now := time.Now()
	return &RoutingStep{
		id:        uuid.NewString(),
		number:    number,
		segmentID: segmentID,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstituteRoutingStep creates a step from existing data.
func ReconstituteRoutingStep(
	id string,
	number int,
	segmentID string,
	override *Timing,
	workCenter string,
	flags StepFlags,
	createdAt, updatedAt time.Time,
) *RoutingStep {
	return &RoutingStep{
		id:         id,
		number:     number,
		segmentID:  segmentID,
		override:   override,
		workCenter: workCenter,
		flags:      flags,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// ID returns the step identity.
func (s *RoutingStep) ID() string { return s.id }

// Number returns the step number. Numbers are sparse (multiples of 10 by
// convention) so steps can be inserted between existing ones.
func (s *RoutingStep) Number() int { return s.number }

// SegmentID returns the referenced process segment.
func (s *RoutingStep) SegmentID() string { return s.segmentID }

// Override returns the per-step timing override, or nil when the segment's
// nominal timing applies.
func (s *RoutingStep) Override() *Timing { return s.override }

// WorkCenter returns the specific work-center assignment, if any.
func (s *RoutingStep) WorkCenter() string { return s.workCenter }

// Flags returns the step flags.
func (s *RoutingStep) Flags() StepFlags { return s.flags }

// CreatedAt returns when the step was added.
func (s *RoutingStep) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns when the step was last changed.
func (s *RoutingStep) UpdatedAt() time.Time { return s.updatedAt }

// EffectiveTiming resolves the timing for this step: the override when
// present, else the referenced segment's nominal timing. This indirection
// lets a routing tune timing per site without forking the segment catalog.
func (s *RoutingStep) EffectiveTiming(segment *ProcessSegment) Timing {
	if s.override != nil {
		return *s.override
	}
	return segment.Nominal()
}

// SetOverride sets or clears (nil) the timing override.
func (s *RoutingStep) SetOverride(t *Timing) {
	s.override = t
	s.updatedAt = time.Now()
}

// SetWorkCenter assigns a specific work center, or clears it when empty.
func (s *RoutingStep) SetWorkCenter(wc string) {
	s.workCenter = wc
	s.updatedAt = time.Now()
}

// SetFlags replaces the step flags.
func (s *RoutingStep) SetFlags(f StepFlags) {
	s.flags = f
	s.updatedAt = time.Now()
}

// setNumber is used by the owning routing when renumbering.
func (s *RoutingStep) setNumber(n int) {
	s.number = n
	s.updatedAt = time.Now()
}

// cloneWithNewID returns a copy of the step under a fresh identity.
func (s *RoutingStep) cloneWithNewID() *RoutingStep {
	now := time.Now()
	var override *Timing
	if s.override != nil {
		t := *s.override
		override = &t
	}
	return &RoutingStep{
		id:         uuid.NewString(),
		number:     s.number,
		segmentID:  s.segmentID,
		override:   override,
		workCenter: s.workCenter,
		flags:      s.flags,
		createdAt:  now,
		updatedAt:  now,
	}
}
