package domain

// SegmentFilter narrows segment listings.
type SegmentFilter struct {
	// SiteID limits results to segments owned by this site.
	// Empty means no site filter.
	SiteID string

	// Standard filters on the reuse flag. Nil means no filter.
	Standard *bool

	// IncludeGlobal additionally returns global segments when SiteID is set.
	IncludeGlobal bool
}

// SegmentRepository defines persistence for process segments.
type SegmentRepository interface {
	// Save persists a segment, inserting or updating by identity.
	// Inserting a second segment with an existing code fails with
	// ErrDuplicateCode.
	Save(segment *ProcessSegment) error

	// FindByID retrieves a segment by identity.
	// Returns SegmentNotFoundError if no matching segment exists.
	FindByID(id string) (*ProcessSegment, error)

	// FindByCode retrieves a segment by its unique code.
	// Returns SegmentNotFoundError if no matching segment exists.
	FindByCode(code string) (*ProcessSegment, error)

	// List retrieves segments matching the filter, ordered by code.
	List(filter SegmentFilter) ([]*ProcessSegment, error)

	// Delete removes a segment. The in-use guard is the service's concern.
	// Returns SegmentNotFoundError if no matching segment exists.
	Delete(id string) error
}

// AvailabilityRepository defines persistence for part-site availability.
type AvailabilityRepository interface {
	// Save persists an availability record, inserting or updating by
	// identity. The (part, site) pair is unique.
	Save(record *PartSiteAvailability) error

	// Find retrieves the record for a (part, site) pair.
	// Returns AvailabilityNotFoundError if none exists.
	Find(partID, siteID string) (*PartSiteAvailability, error)

	// ListForPart retrieves all records for a part, ordered by site.
	ListForPart(partID string) ([]*PartSiteAvailability, error)

	// Delete removes the record for a (part, site) pair.
	// Returns AvailabilityNotFoundError if none exists.
	Delete(partID, siteID string) error
}

// RoutingFilter narrows routing listings.
type RoutingFilter struct {
	PartID string
	SiteID string

	// State filters routings by lifecycle state. Empty means all states.
	State LifecycleState
}

// RoutingRepository defines persistence for routing aggregates. Writes
// persist the routing row together with its full step and edge set in one
// transaction.
type RoutingRepository interface {
	// Create inserts a new routing aggregate with revision 1.
	// Fails with ErrDuplicateVersion if the (part, site, version) triple
	// already exists.
	Create(routing *Routing) error

	// Save updates an existing aggregate. The write is guarded by the
	// revision last observed on the entity; a stale revision fails with
	// ErrConcurrentModification and the caller retries after re-reading.
	// On success the entity's revision is advanced.
	Save(routing *Routing) error

	// SavePromotion atomically persists a promoted routing and, when not
	// nil, its demoted sibling. Both writes are revision-guarded and commit
	// as a single all-or-nothing unit.
	SavePromotion(promoted, demoted *Routing) error

	// FindByID retrieves a routing aggregate by identity, steps and edges
	// included. Returns RoutingNotFoundError if none exists.
	FindByID(id string) (*Routing, error)

	// FindByVersion retrieves the routing for a (part, site, version) triple.
	// Returns RoutingNotFoundError if none exists.
	FindByVersion(partID, siteID, version string) (*Routing, error)

	// List retrieves routing aggregates matching the filter, ordered by
	// part, site, then version.
	List(filter RoutingFilter) ([]*Routing, error)

	// FindProduction retrieves all production-state routings for a
	// (part, site) pair. The resolver narrows by effective window.
	FindProduction(partID, siteID string) ([]*Routing, error)

	// SegmentInUse reports whether any step of a non-draft routing
	// references the segment.
	SegmentInUse(segmentID string) (bool, error)

	// Delete removes a routing and cascades to its steps and edges.
	// The mutability guard is the service's concern.
	// Returns RoutingNotFoundError if none exists.
	Delete(id string) error
}
