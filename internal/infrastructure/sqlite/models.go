package sqlite

import (
	"time"

	"routecard/internal/routing/domain"
)

// SegmentModel represents the database row for the process_segments table.
// Fields map directly to SQL columns with Unix timestamps for time values
// and integer seconds for durations.
type SegmentModel struct {
	ID              string
	Code            string
	Name            string
	SetupSeconds    int64
	RunSeconds      int64
	TeardownSeconds int64
	SiteID          *string // nullable, nil means global
	IsStandard      bool
	CreatedAt       int64
	UpdatedAt       int64
}

func toSegmentModel(s *domain.ProcessSegment) *SegmentModel {
	m := &SegmentModel{
		ID:              s.ID(),
		Code:            s.Code(),
		Name:            s.Name(),
		SetupSeconds:    int64(s.Nominal().Setup / time.Second),
		RunSeconds:      int64(s.Nominal().Run / time.Second),
		TeardownSeconds: int64(s.Nominal().Teardown / time.Second),
		IsStandard:      s.IsStandard(),
		CreatedAt:       s.CreatedAt().Unix(),
		UpdatedAt:       s.UpdatedAt().Unix(),
	}
	if s.SiteID() != "" {
		siteID := s.SiteID()
		m.SiteID = &siteID
	}
	return m
}

func (m *SegmentModel) toDomain() *domain.ProcessSegment {
	var siteID string
	if m.SiteID != nil {
		siteID = *m.SiteID
	}
	return domain.ReconstituteProcessSegment(
		m.ID, m.Code, m.Name,
		domain.Timing{
			Setup:    time.Duration(m.SetupSeconds) * time.Second,
			Run:      time.Duration(m.RunSeconds) * time.Second,
			Teardown: time.Duration(m.TeardownSeconds) * time.Second,
		},
		siteID,
		m.IsStandard,
		time.Unix(m.CreatedAt, 0),
		time.Unix(m.UpdatedAt, 0),
	)
}

// AvailabilityModel represents the database row for part_site_availability.
type AvailabilityModel struct {
	ID              string
	PartID          string
	SiteID          string
	IsCapable       bool
	IsPreferred     bool
	LeadTimeSeconds int64
	MinLotSize      int
	MaxLotSize      int
	UnitCostCents   int64
	EffectiveFrom   int64
	ExpiresAt       *int64 // nullable
	CreatedAt       int64
	UpdatedAt       int64
}

func toAvailabilityModel(a *domain.PartSiteAvailability) *AvailabilityModel {
	c := a.Constraints()
	m := &AvailabilityModel{
		ID:              a.ID(),
		PartID:          a.PartID(),
		SiteID:          a.SiteID(),
		IsCapable:       a.IsCapable(),
		IsPreferred:     c.IsPreferred,
		LeadTimeSeconds: int64(c.LeadTime / time.Second),
		MinLotSize:      c.MinLotSize,
		MaxLotSize:      c.MaxLotSize,
		UnitCostCents:   c.UnitCostCents,
		EffectiveFrom:   c.EffectiveFrom.Unix(),
		CreatedAt:       a.CreatedAt().Unix(),
		UpdatedAt:       a.UpdatedAt().Unix(),
	}
	if c.ExpiresAt != nil {
		expires := c.ExpiresAt.Unix()
		m.ExpiresAt = &expires
	}
	return m
}

func (m *AvailabilityModel) toDomain() *domain.PartSiteAvailability {
	var expiresAt *time.Time
	if m.ExpiresAt != nil {
		t := time.Unix(*m.ExpiresAt, 0)
		expiresAt = &t
	}
	return domain.ReconstitutePartSiteAvailability(
		m.ID, m.PartID, m.SiteID,
		m.IsCapable,
		domain.AvailabilityConstraints{
			IsPreferred:   m.IsPreferred,
			LeadTime:      time.Duration(m.LeadTimeSeconds) * time.Second,
			MinLotSize:    m.MinLotSize,
			MaxLotSize:    m.MaxLotSize,
			UnitCostCents: m.UnitCostCents,
			EffectiveFrom: time.Unix(m.EffectiveFrom, 0),
			ExpiresAt:     expiresAt,
		},
		time.Unix(m.CreatedAt, 0),
		time.Unix(m.UpdatedAt, 0),
	)
}

// RoutingModel represents the database row for the routings table.
type RoutingModel struct {
	ID            string
	PartID        string
	SiteID        string
	Version       string
	State         string
	IsPrimary     bool
	EffectiveFrom int64
	ExpiresAt     *int64  // nullable
	ApprovedBy    *string // nullable
	ApprovedAt    *int64  // nullable
	Revision      int64
	CreatedAt     int64
	UpdatedAt     int64
}

func toRoutingModel(r *domain.Routing) *RoutingModel {
	m := &RoutingModel{
		ID:            r.ID(),
		PartID:        r.PartID(),
		SiteID:        r.SiteID(),
		Version:       r.Version(),
		State:         string(r.State()),
		IsPrimary:     r.IsPrimary(),
		EffectiveFrom: r.EffectiveFrom().Unix(),
		Revision:      r.Revision(),
		CreatedAt:     r.CreatedAt().Unix(),
		UpdatedAt:     r.UpdatedAt().Unix(),
	}
	if r.ExpiresAt() != nil {
		expires := r.ExpiresAt().Unix()
		m.ExpiresAt = &expires
	}
	if r.ApprovedBy() != "" {
		approvedBy := r.ApprovedBy()
		m.ApprovedBy = &approvedBy
	}
	if r.ApprovedAt() != nil {
		approvedAt := r.ApprovedAt().Unix()
		m.ApprovedAt = &approvedAt
	}
	return m
}

func (m *RoutingModel) toDomain(steps []*domain.RoutingStep, deps []*domain.StepDependency) *domain.Routing {
	var expiresAt, approvedAt *time.Time
	if m.ExpiresAt != nil {
		t := time.Unix(*m.ExpiresAt, 0)
		expiresAt = &t
	}
	if m.ApprovedAt != nil {
		t := time.Unix(*m.ApprovedAt, 0)
		approvedAt = &t
	}
	var approvedBy string
	if m.ApprovedBy != nil {
		approvedBy = *m.ApprovedBy
	}
	return domain.ReconstituteRouting(
		m.ID, m.PartID, m.SiteID, m.Version,
		domain.LifecycleState(m.State),
		m.IsPrimary,
		time.Unix(m.EffectiveFrom, 0),
		expiresAt,
		approvedBy,
		approvedAt,
		m.Revision,
		time.Unix(m.CreatedAt, 0),
		time.Unix(m.UpdatedAt, 0),
		steps,
		deps,
	)
}

// StepModel represents the database row for the routing_steps table. The
// three override columns are either all set or all null.
type StepModel struct {
	ID                      string
	RoutingID               string
	StepNumber              int
	SegmentID               string
	SetupOverrideSeconds    *int64 // nullable
	RunOverrideSeconds      *int64 // nullable
	TeardownOverrideSeconds *int64 // nullable
	WorkCenter              *string
	IsOptional              bool
	IsQualityCheckpoint     bool
	IsCriticalPath          bool
	CreatedAt               int64
	UpdatedAt               int64
}

func toStepModel(routingID string, s *domain.RoutingStep) *StepModel {
	m := &StepModel{
		ID:                  s.ID(),
		RoutingID:           routingID,
		StepNumber:          s.Number(),
		SegmentID:           s.SegmentID(),
		IsOptional:          s.Flags().Optional,
		IsQualityCheckpoint: s.Flags().QualityCheckpoint,
		IsCriticalPath:      s.Flags().CriticalPath,
		CreatedAt:           s.CreatedAt().Unix(),
		UpdatedAt:           s.UpdatedAt().Unix(),
	}
	if o := s.Override(); o != nil {
		setup := int64(o.Setup / time.Second)
		run := int64(o.Run / time.Second)
		teardown := int64(o.Teardown / time.Second)
		m.SetupOverrideSeconds = &setup
		m.RunOverrideSeconds = &run
		m.TeardownOverrideSeconds = &teardown
	}
	if s.WorkCenter() != "" {
		wc := s.WorkCenter()
		m.WorkCenter = &wc
	}
	return m
}

func (m *StepModel) toDomain() *domain.RoutingStep {
	var override *domain.Timing
	if m.SetupOverrideSeconds != nil && m.RunOverrideSeconds != nil && m.TeardownOverrideSeconds != nil {
		override = &domain.Timing{
			Setup:    time.Duration(*m.SetupOverrideSeconds) * time.Second,
			Run:      time.Duration(*m.RunOverrideSeconds) * time.Second,
			Teardown: time.Duration(*m.TeardownOverrideSeconds) * time.Second,
		}
	}
	var workCenter string
	if m.WorkCenter != nil {
		workCenter = *m.WorkCenter
	}
	return domain.ReconstituteRoutingStep(
		m.ID,
		m.StepNumber,
		m.SegmentID,
		override,
		workCenter,
		domain.StepFlags{
			Optional:          m.IsOptional,
			QualityCheckpoint: m.IsQualityCheckpoint,
			CriticalPath:      m.IsCriticalPath,
		},
		time.Unix(m.CreatedAt, 0),
		time.Unix(m.UpdatedAt, 0),
	)
}

// DependencyModel represents the database row for routing_step_dependencies.
type DependencyModel struct {
	ID                 string
	RoutingID          string
	DependentStepID    string
	PrerequisiteStepID string
	DependencyType     string
	TimingType         string
	LagSeconds         *int64 // nullable
	LeadSeconds        *int64 // nullable
	CreatedAt          int64
}

func toDependencyModel(routingID string, d *domain.StepDependency) *DependencyModel {
	m := &DependencyModel{
		ID:                 d.ID(),
		RoutingID:          routingID,
		DependentStepID:    d.DependentID(),
		PrerequisiteStepID: d.PrerequisiteID(),
		DependencyType:     string(d.Type()),
		TimingType:         string(d.TimingType()),
		CreatedAt:          d.CreatedAt().Unix(),
	}
	if d.Lag() != nil {
		lag := int64(*d.Lag() / time.Second)
		m.LagSeconds = &lag
	}
	if d.Lead() != nil {
		lead := int64(*d.Lead() / time.Second)
		m.LeadSeconds = &lead
	}
	return m
}

func (m *DependencyModel) toDomain() *domain.StepDependency {
	var lag, lead *time.Duration
	if m.LagSeconds != nil {
		v := time.Duration(*m.LagSeconds) * time.Second
		lag = &v
	}
	if m.LeadSeconds != nil {
		v := time.Duration(*m.LeadSeconds) * time.Second
		lead = &v
	}
	return domain.ReconstituteStepDependency(
		m.ID,
		m.DependentStepID,
		m.PrerequisiteStepID,
		domain.DependencyType(m.DependencyType),
		domain.TimingType(m.TimingType),
		lag, lead,
		time.Unix(m.CreatedAt, 0),
	)
}
