// Package domain provides the pure domain layer for the routing engine with
// no infrastructure dependencies.
//
// It defines the ProcessSegment, PartSiteAvailability, and Routing entities
// (the Routing aggregate owns its steps and dependency edges), the lifecycle
// state machine, typed errors, and the repository interfaces persistence
// implementations must satisfy.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Timing holds the setup/run/teardown durations of an operation.
type Timing struct {
	Setup    time.Duration
	Run      time.Duration
	Teardown time.Duration
}

// Total returns the sum of setup, run, and teardown durations.
func (t Timing) Total() time.Duration {
	return t.Setup + t.Run + t.Teardown
}

// ProcessSegment is a reusable operation template with nominal timing.
// A segment is either global (empty site ID) or owned by one site.
type ProcessSegment struct {
	id         string
	code       string
	name       string
	nominal    Timing
	siteID     string // empty means global/standard catalog
	isStandard bool   // eligible for reuse across routings
	createdAt  time.Time
	updatedAt  time.Time
}

// NewProcessSegment creates a segment with a fresh identity.
func NewProcessSegment(code, name string, nominal Timing) *ProcessSegment {
	now := time.Now()
	return &ProcessSegment{
		id:        uuid.NewString(),
		code:      code,
		name:      name,
		nominal:   nominal,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstituteProcessSegment creates a segment from existing data, typically
// when hydrating from the database.
func ReconstituteProcessSegment(
	id, code, name string,
	nominal Timing,
	siteID string,
	isStandard bool,
	createdAt, updatedAt time.Time,
) *ProcessSegment {
	return &ProcessSegment{
		id:         id,
		code:       code,
		name:       name,
		nominal:    nominal,
		siteID:     siteID,
		isStandard: isStandard,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// ID returns the segment identity.
func (s *ProcessSegment) ID() string { return s.id }

// Code returns the unique segment code.
func (s *ProcessSegment) Code() string { return s.code }

// Name returns the display name.
func (s *ProcessSegment) Name() string { return s.name }

// Nominal returns the nominal setup/run/teardown timing.
func (s *ProcessSegment) Nominal() Timing { return s.nominal }

// SiteID returns the owning site, or empty for a global segment.
func (s *ProcessSegment) SiteID() string { return s.siteID }

// IsStandard returns whether the segment is eligible for reuse across routings.
func (s *ProcessSegment) IsStandard() bool { return s.isStandard }

// CreatedAt returns when the segment was registered.
func (s *ProcessSegment) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns when the segment was last changed.
func (s *ProcessSegment) UpdatedAt() time.Time { return s.updatedAt }

// SetName updates the display name.
func (s *ProcessSegment) SetName(name string) {
	s.name = name
	s.updatedAt = time.Now()
}

// SetNominal updates the nominal timing.
func (s *ProcessSegment) SetNominal(t Timing) {
	s.nominal = t
	s.updatedAt = time.Now()
}

// SetSiteID scopes the segment to a site, or clears the scope when empty.
func (s *ProcessSegment) SetSiteID(siteID string) {
	s.siteID = siteID
	s.updatedAt = time.Now()
}

// SetStandard marks the segment as reusable across routings.
func (s *ProcessSegment) SetStandard(standard bool) {
	s.isStandard = standard
	s.updatedAt = time.Now()
}
