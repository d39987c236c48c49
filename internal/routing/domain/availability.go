package domain

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilityConstraints holds the site-specific manufacturing constraints
// recorded when a site is certified for a part.
type AvailabilityConstraints struct {
	IsPreferred   bool
	LeadTime      time.Duration
	MinLotSize    int
	MaxLotSize    int
	UnitCostCents int64
	EffectiveFrom time.Time
	ExpiresAt     *time.Time // nil means open-ended
}

// PartSiteAvailability records that a site is authorized to manufacture a
// part. At most one record exists per (part, site) pair.
type PartSiteAvailability struct {
	id          string
	partID      string
	siteID      string
	isCapable   bool
	constraints AvailabilityConstraints
	createdAt   time.Time
	updatedAt   time.Time
}

// NewPartSiteAvailability creates an availability record with a fresh identity.
// A zero EffectiveFrom defaults to the creation time.
func NewPartSiteAvailability(partID, siteID string, c AvailabilityConstraints) *PartSiteAvailability {
	now := time.Now()
	if c.EffectiveFrom.IsZero() {
		c.EffectiveFrom = now
	}
	return &PartSiteAvailability{
		id:          uuid.NewString(),
		partID:      partID,
		siteID:      siteID,
		isCapable:   true,
		constraints: c,
		createdAt:   now,
		updatedAt:   now,
	}
}

// ReconstitutePartSiteAvailability creates a record from existing data.
func ReconstitutePartSiteAvailability(
	id, partID, siteID string,
	isCapable bool,
	c AvailabilityConstraints,
	createdAt, updatedAt time.Time,
) *PartSiteAvailability {
	return &PartSiteAvailability{
		id:          id,
		partID:      partID,
		siteID:      siteID,
		isCapable:   isCapable,
		constraints: c,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the record identity.
func (a *PartSiteAvailability) ID() string { return a.id }

// PartID returns the part this record certifies.
func (a *PartSiteAvailability) PartID() string { return a.partID }

// SiteID returns the certified site.
func (a *PartSiteAvailability) SiteID() string { return a.siteID }

// IsCapable returns whether the site is currently flagged capable.
func (a *PartSiteAvailability) IsCapable() bool { return a.isCapable }

// Constraints returns the site-specific constraints.
func (a *PartSiteAvailability) Constraints() AvailabilityConstraints { return a.constraints }

// CreatedAt returns when the record was created.
func (a *PartSiteAvailability) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt returns when the record was last changed.
func (a *PartSiteAvailability) UpdatedAt() time.Time { return a.updatedAt }

// ActiveAt reports whether the site is authorized for the part at the given
// instant: the capability flag is set and the instant falls inside the
// effective window.
func (a *PartSiteAvailability) ActiveAt(at time.Time) bool {
	if !a.isCapable {
		return false
	}
	if at.Before(a.constraints.EffectiveFrom) {
		return false
	}
	if a.constraints.ExpiresAt != nil && !at.Before(*a.constraints.ExpiresAt) {
		return false
	}
	return true
}

// SetConstraints replaces the site-specific constraints.
func (a *PartSiteAvailability) SetConstraints(c AvailabilityConstraints) {
	a.constraints = c
	a.updatedAt = time.Now()
}

// Regrant restores the capability flag and replaces the constraints. A zero
// EffectiveFrom defaults to the regrant time. Used when a site is certified
// again after a revocation, or when an existing grant is updated in place.
func (a *PartSiteAvailability) Regrant(c AvailabilityConstraints) {
	now := time.Now()
	if c.EffectiveFrom.IsZero() {
		c.EffectiveFrom = now
	}
	a.isCapable = true
	a.constraints = c
	a.updatedAt = now
}

// Revoke clears the capability flag and closes the effective window.
func (a *PartSiteAvailability) Revoke() {
	now := time.Now()
	a.isCapable = false
	a.constraints.ExpiresAt = &now
	a.updatedAt = now
}
