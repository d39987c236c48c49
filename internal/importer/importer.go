// Package importer loads segment catalogs, site certifications, and draft
// routings from YAML files. Everything goes through the routing service, so
// every uniqueness, availability, and lifecycle guard applies to imported
// data the same as to interactive edits.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"

	"routecard/internal/log"
	"routecard/internal/routing/domain"
	"routecard/internal/routing/service"
	"routecard/internal/tracing"
)

// CatalogFile is the root structure of an import file.
type CatalogFile struct {
	Segments []SegmentDef `yaml:"segments"`
	Grants   []GrantDef   `yaml:"grants"`
	Routings []RoutingDef `yaml:"routings"`
}

// SegmentDef declares a process segment.
type SegmentDef struct {
	Code     string   `yaml:"code"`
	Name     string   `yaml:"name"`
	Site     string   `yaml:"site"`     // empty = global standard
	Standard bool     `yaml:"standard"` // reusable across routings
	Setup    duration `yaml:"setup"`
	Run      duration `yaml:"run"`
	Teardown duration `yaml:"teardown"`
}

// GrantDef certifies a site for a part.
type GrantDef struct {
	Part          string     `yaml:"part"`
	Site          string     `yaml:"site"`
	Preferred     bool       `yaml:"preferred"`
	LeadTime      duration   `yaml:"lead_time"`
	MinLot        int        `yaml:"min_lot"`
	MaxLot        int        `yaml:"max_lot"`
	UnitCostCents int64      `yaml:"unit_cost_cents"`
	EffectiveFrom *time.Time `yaml:"effective_from"`
	ExpiresAt     *time.Time `yaml:"expires_at"`
}

// RoutingDef declares a draft routing with its steps and dependency edges.
type RoutingDef struct {
	Part         string          `yaml:"part"`
	Site         string          `yaml:"site"`
	Version      string          `yaml:"version"`
	Steps        []StepDef       `yaml:"steps"`
	Dependencies []DependencyDef `yaml:"dependencies"`
}

// StepDef declares a routing step referencing a segment by code. Setting any
// of setup/run/teardown overrides the segment's nominal timing wholesale.
type StepDef struct {
	Number            int       `yaml:"number"`
	Segment           string    `yaml:"segment"`
	WorkCenter        string    `yaml:"work_center"`
	Optional          bool      `yaml:"optional"`
	QualityCheckpoint bool      `yaml:"quality_checkpoint"`
	CriticalPath      bool      `yaml:"critical_path"`
	Setup             *duration `yaml:"setup"`
	Run               *duration `yaml:"run"`
	Teardown          *duration `yaml:"teardown"`
}

// DependencyDef declares an edge between two steps by step number.
// Type defaults to must_complete, timing to finish_to_start.
type DependencyDef struct {
	Step   int       `yaml:"step"`  // dependent step number
	After  int       `yaml:"after"` // prerequisite step number
	Type   string    `yaml:"type"`
	Timing string    `yaml:"timing"`
	Lag    *duration `yaml:"lag"`
	Lead   *duration `yaml:"lead"`
}

// Result counts what an import created.
type Result struct {
	Segments        int
	SegmentsSkipped int
	Grants          int
	Routings        int
	Steps           int
	Dependencies    int
}

// Importer loads catalog files through the routing service.
type Importer struct {
	svc    *service.Service
	tracer trace.Tracer
}

// Option configures an Importer.
type Option func(*Importer)

// WithTracer sets the tracer for span instrumentation.
func WithTracer(tracer trace.Tracer) Option {
	return func(i *Importer) {
		if tracer != nil {
			i.tracer = tracer
		}
	}
}

// New creates an importer backed by the given service.
func New(svc *service.Service, opts ...Option) *Importer {
	i := &Importer{
		svc:    svc,
		tracer: noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import reads a catalog file and loads it in dependency order: segments,
// then grants, then routings. Segments whose code is already registered are
// skipped; grants update in place; a routing version that already exists
// fails the import.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	ctx, span := i.tracer.Start(ctx, tracing.SpanPrefixImport+"catalog",
		trace.WithSpanKind(trace.SpanKindInternal))

	result, err := i.importCatalog(ctx, r)
	if result != nil {
		span.SetAttributes(
			attribute.Int("import.segments", result.Segments),
			attribute.Int("import.grants", result.Grants),
			attribute.Int("import.routings", result.Routings),
		)
	}
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	return result, err
}

func (i *Importer) importCatalog(ctx context.Context, r io.Reader) (*Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file CatalogFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	result := &Result{}
	if err := i.importSegments(ctx, file.Segments, result); err != nil {
		return result, err
	}
	if err := i.importGrants(ctx, file.Grants, result); err != nil {
		return result, err
	}
	if err := i.importRoutings(ctx, file.Routings, result); err != nil {
		return result, err
	}

	log.Info(log.CatImport, "catalog imported",
		"segments", result.Segments, "segments_skipped", result.SegmentsSkipped,
		"grants", result.Grants, "routings", result.Routings,
		"steps", result.Steps, "dependencies", result.Dependencies)
	return result, nil
}

func (i *Importer) importSegments(ctx context.Context, defs []SegmentDef, result *Result) error {
	for _, def := range defs {
		if def.Code == "" {
			return fmt.Errorf("segment with empty code")
		}

		_, err := i.svc.GetSegmentByCode(ctx, def.Code)
		if err == nil {
			log.Warn(log.CatImport, "segment already registered, skipping", "code", def.Code)
			result.SegmentsSkipped++
			continue
		}
		var notFound *domain.SegmentNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("look up segment %q: %w", def.Code, err)
		}

		name := def.Name
		if name == "" {
			name = def.Code
		}
		nominal := domain.Timing{
			Setup:    time.Duration(def.Setup),
			Run:      time.Duration(def.Run),
			Teardown: time.Duration(def.Teardown),
		}
		if _, err := i.svc.RegisterSegment(ctx, def.Code, name, nominal, service.SegmentAttributes{
			SiteID:   def.Site,
			Standard: def.Standard,
		}); err != nil {
			return fmt.Errorf("register segment %q: %w", def.Code, err)
		}
		result.Segments++
	}
	return nil
}

func (i *Importer) importGrants(ctx context.Context, defs []GrantDef, result *Result) error {
	for _, def := range defs {
		if def.Part == "" || def.Site == "" {
			return fmt.Errorf("grant requires part and site")
		}

		constraints := domain.AvailabilityConstraints{
			IsPreferred:   def.Preferred,
			LeadTime:      time.Duration(def.LeadTime),
			MinLotSize:    def.MinLot,
			MaxLotSize:    def.MaxLot,
			UnitCostCents: def.UnitCostCents,
			ExpiresAt:     def.ExpiresAt,
		}
		if def.EffectiveFrom != nil {
			constraints.EffectiveFrom = *def.EffectiveFrom
		}

		if _, err := i.svc.GrantAvailability(ctx, def.Part, def.Site, constraints); err != nil {
			return fmt.Errorf("grant %s at %s: %w", def.Part, def.Site, err)
		}
		result.Grants++
	}
	return nil
}

func (i *Importer) importRoutings(ctx context.Context, defs []RoutingDef, result *Result) error {
	for _, def := range defs {
		if err := i.importRouting(ctx, def, result); err != nil {
			return fmt.Errorf("routing %s/%s %s: %w", def.Part, def.Site, def.Version, err)
		}
		result.Routings++
	}
	return nil
}

func (i *Importer) importRouting(ctx context.Context, def RoutingDef, result *Result) error {
	routing, err := i.svc.CreateRouting(ctx, def.Part, def.Site, def.Version, "")
	if err != nil {
		return err
	}

	stepIDs := make(map[int]string, len(def.Steps))
	for _, stepDef := range def.Steps {
		segment, err := i.svc.GetSegmentByCode(ctx, stepDef.Segment)
		if err != nil {
			return fmt.Errorf("step %d: %w", stepDef.Number, err)
		}

		step, err := i.svc.AddStep(ctx, routing.ID(), stepDef.Number, segment.ID(), service.StepAttributes{
			Override:   stepOverride(stepDef),
			WorkCenter: stepDef.WorkCenter,
			Flags: domain.StepFlags{
				Optional:          stepDef.Optional,
				QualityCheckpoint: stepDef.QualityCheckpoint,
				CriticalPath:      stepDef.CriticalPath,
			},
		})
		if err != nil {
			return fmt.Errorf("step %d: %w", stepDef.Number, err)
		}
		stepIDs[stepDef.Number] = step.ID()
		result.Steps++
	}

	for _, depDef := range def.Dependencies {
		dependentID, ok := stepIDs[depDef.Step]
		if !ok {
			return fmt.Errorf("dependency references undeclared step %d", depDef.Step)
		}
		prerequisiteID, ok := stepIDs[depDef.After]
		if !ok {
			return fmt.Errorf("dependency references undeclared step %d", depDef.After)
		}

		depType, err := parseDependencyType(depDef.Type)
		if err != nil {
			return fmt.Errorf("dependency %d -> %d: %w", depDef.Step, depDef.After, err)
		}
		timingType, err := parseTimingType(depDef.Timing)
		if err != nil {
			return fmt.Errorf("dependency %d -> %d: %w", depDef.Step, depDef.After, err)
		}

		attrs := service.DependencyAttributes{}
		if depDef.Lag != nil {
			lag := time.Duration(*depDef.Lag)
			attrs.Lag = &lag
		}
		if depDef.Lead != nil {
			lead := time.Duration(*depDef.Lead)
			attrs.Lead = &lead
		}

		if _, err := i.svc.AddDependency(ctx, routing.ID(), dependentID, prerequisiteID, depType, timingType, attrs); err != nil {
			return fmt.Errorf("dependency %d -> %d: %w", depDef.Step, depDef.After, err)
		}
		result.Dependencies++
	}
	return nil
}

// stepOverride builds the timing override when any component is declared.
func stepOverride(def StepDef) *domain.Timing {
	if def.Setup == nil && def.Run == nil && def.Teardown == nil {
		return nil
	}
	override := &domain.Timing{}
	if def.Setup != nil {
		override.Setup = time.Duration(*def.Setup)
	}
	if def.Run != nil {
		override.Run = time.Duration(*def.Run)
	}
	if def.Teardown != nil {
		override.Teardown = time.Duration(*def.Teardown)
	}
	return override
}

func parseDependencyType(raw string) (domain.DependencyType, error) {
	switch raw {
	case "", string(domain.DependencyMustComplete):
		return domain.DependencyMustComplete, nil
	case string(domain.DependencyMustStart):
		return domain.DependencyMustStart, nil
	case string(domain.DependencyOverlapAllowed):
		return domain.DependencyOverlapAllowed, nil
	case string(domain.DependencyParallel):
		return domain.DependencyParallel, nil
	default:
		return "", fmt.Errorf("unknown dependency type %q", raw)
	}
}

func parseTimingType(raw string) (domain.TimingType, error) {
	switch raw {
	case "", string(domain.TimingFinishToStart):
		return domain.TimingFinishToStart, nil
	case string(domain.TimingStartToStart):
		return domain.TimingStartToStart, nil
	case string(domain.TimingFinishToFinish):
		return domain.TimingFinishToFinish, nil
	case string(domain.TimingStartToFinish):
		return domain.TimingStartToFinish, nil
	default:
		return "", fmt.Errorf("unknown timing type %q", raw)
	}
}

// duration parses YAML scalars like "30m" or "48h" via time.ParseDuration.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = duration(parsed)
	return nil
}
