package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"routecard/internal/routing/domain"
	"routecard/internal/routing/service"
)

// parsePositiveInt parses a positive integer argument.
func parsePositiveInt(raw, what string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", what, raw)
	}
	return n, nil
}

var (
	routingBasedOn string
	routingFilter  struct {
		part  string
		site  string
		state string
	}
	stepWorkCenter string
	stepOptional   bool
	stepQuality    bool
	stepCritical   bool
	stepSetup      time.Duration
	stepRun        time.Duration
	stepTeardown   time.Duration
	depType        string
	depTiming      string
	depLag         time.Duration
	depLead        time.Duration
	releaseBy      string
	promoteDemote  bool
)

// stepDTO is the JSON shape of a routing step.
type stepDTO struct {
	ID         string `json:"id"`
	Number     int    `json:"number"`
	SegmentID  string `json:"segment_id"`
	WorkCenter string `json:"work_center,omitempty"`
	Optional   bool   `json:"optional,omitempty"`
	Quality    bool   `json:"quality_checkpoint,omitempty"`
	Critical   bool   `json:"critical_path,omitempty"`
}

// dependencyDTO is the JSON shape of a dependency edge.
type dependencyDTO struct {
	ID           string `json:"id"`
	Dependent    string `json:"dependent_step_id"`
	Prerequisite string `json:"prerequisite_step_id"`
	Type         string `json:"type"`
	Timing       string `json:"timing"`
	Lag          string `json:"lag,omitempty"`
	Lead         string `json:"lead,omitempty"`
}

// routingDTO is the JSON shape of a routing aggregate.
type routingDTO struct {
	ID            string          `json:"id"`
	Part          string          `json:"part"`
	Site          string          `json:"site"`
	Version       string          `json:"version"`
	State         string          `json:"state"`
	Primary       bool            `json:"primary"`
	Revision      int64           `json:"revision"`
	ApprovedBy    string          `json:"approved_by,omitempty"`
	EffectiveFrom string          `json:"effective_from"`
	ExpiresAt     string          `json:"expires_at,omitempty"`
	Steps         []stepDTO       `json:"steps,omitempty"`
	Dependencies  []dependencyDTO `json:"dependencies,omitempty"`
}

func toRoutingDTO(r *domain.Routing, includeGraph bool) routingDTO {
	dto := routingDTO{
		ID:            r.ID(),
		Part:          r.PartID(),
		Site:          r.SiteID(),
		Version:       r.Version(),
		State:         string(r.State()),
		Primary:       r.IsPrimary(),
		Revision:      r.Revision(),
		ApprovedBy:    r.ApprovedBy(),
		EffectiveFrom: r.EffectiveFrom().Format(time.RFC3339),
	}
	if r.ExpiresAt() != nil {
		dto.ExpiresAt = r.ExpiresAt().Format(time.RFC3339)
	}
	if !includeGraph {
		return dto
	}
	for _, s := range r.Steps() {
		dto.Steps = append(dto.Steps, stepDTO{
			ID:         s.ID(),
			Number:     s.Number(),
			SegmentID:  s.SegmentID(),
			WorkCenter: s.WorkCenter(),
			Optional:   s.Flags().Optional,
			Quality:    s.Flags().QualityCheckpoint,
			Critical:   s.Flags().CriticalPath,
		})
	}
	for _, d := range r.Dependencies() {
		edge := dependencyDTO{
			ID:           d.ID(),
			Dependent:    d.DependentID(),
			Prerequisite: d.PrerequisiteID(),
			Type:         string(d.Type()),
			Timing:       string(d.TimingType()),
		}
		if d.Lag() != nil {
			edge.Lag = d.Lag().String()
		}
		if d.Lead() != nil {
			edge.Lead = d.Lead().String()
		}
		dto.Dependencies = append(dto.Dependencies, edge)
	}
	return dto
}

var routingCmd = &cobra.Command{
	Use:   "routing",
	Short: "Manage routings and their lifecycle",
}

var routingCreateCmd = &cobra.Command{
	Use:   "create <part> <site> [version]",
	Short: "Create a draft routing",
	Long: `Create a draft routing for a part at a site.

The site must hold an active availability grant for the part. Omitting the
version assigns the configured default. With --based-on, steps and edges are
deep-copied from an existing routing of the same part and site.

Examples:
  routecard routing create widget-a dallas 1.0
  routecard routing create widget-a dallas 2.0 --based-on <routing-id>`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		version := ""
		if len(args) == 3 {
			version = args[2]
		}
		routing, err := e.svc.CreateRouting(ctx, args[0], args[1], version, routingBasedOn)
		if err != nil {
			return err
		}
		return printJSON(toRoutingDTO(routing, true))
	}),
}

var routingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routings",
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		if routingFilter.state != "" && !domain.LifecycleState(routingFilter.state).IsValid() {
			return fmt.Errorf("unknown lifecycle state %q", routingFilter.state)
		}
		routings, err := e.svc.ListRoutings(ctx, domain.RoutingFilter{
			PartID: routingFilter.part,
			SiteID: routingFilter.site,
			State:  domain.LifecycleState(routingFilter.state),
		})
		if err != nil {
			return err
		}
		dtos := make([]routingDTO, 0, len(routings))
		for _, r := range routings {
			dtos = append(dtos, toRoutingDTO(r, false))
		}
		return printJSON(dtos)
	}),
}

var routingShowCmd = &cobra.Command{
	Use:   "show <routing-id>",
	Short: "Show a routing with its steps and edges",
	Args:  cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		routing, err := e.svc.GetRouting(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(toRoutingDTO(routing, true))
	}),
}

var routingDeleteCmd = &cobra.Command{
	Use:   "delete <routing-id>",
	Short: "Delete a draft routing",
	Args:  cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		return e.svc.DeleteRouting(ctx, args[0])
	}),
}

var stepAddCmd = &cobra.Command{
	Use:   "add-step <routing-id> <number> <segment-code>",
	Short: "Add a step to a draft or in-review routing",
	Long: `Add a step referencing a segment by code.

Setting any of --setup/--run/--teardown overrides the segment's nominal
timing wholesale for this step.

Examples:
  routecard routing add-step <routing-id> 10 CUT-100 --work-center WC-1
  routecard routing add-step <routing-id> 20 DRILL-200 --quality-checkpoint`,
	Args: cobra.ExactArgs(3),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		number, err := parsePositiveInt(args[1], "step number")
		if err != nil {
			return err
		}
		segment, err := e.svc.GetSegmentByCode(ctx, args[2])
		if err != nil {
			return err
		}
		attrs := service.StepAttributes{
			WorkCenter: stepWorkCenter,
			Flags: domain.StepFlags{
				Optional:          stepOptional,
				QualityCheckpoint: stepQuality,
				CriticalPath:      stepCritical,
			},
		}
		if stepSetup != 0 || stepRun != 0 || stepTeardown != 0 {
			attrs.Override = &domain.Timing{Setup: stepSetup, Run: stepRun, Teardown: stepTeardown}
		}
		step, err := e.svc.AddStep(ctx, args[0], number, segment.ID(), attrs)
		if err != nil {
			return err
		}
		return printJSON(stepDTO{
			ID:         step.ID(),
			Number:     step.Number(),
			SegmentID:  step.SegmentID(),
			WorkCenter: step.WorkCenter(),
			Optional:   step.Flags().Optional,
			Quality:    step.Flags().QualityCheckpoint,
			Critical:   step.Flags().CriticalPath,
		})
	}),
}

var stepRemoveCmd = &cobra.Command{
	Use:   "remove-step <routing-id> <step-id>",
	Short: "Remove a step (edges must be removed first)",
	Args:  cobra.ExactArgs(2),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		return e.svc.RemoveStep(ctx, args[0], args[1])
	}),
}

var depAddCmd = &cobra.Command{
	Use:   "add-dep <routing-id> <dependent-step-id> <prerequisite-step-id>",
	Short: "Declare a dependency edge between two steps",
	Long: `Declare that one step depends on another.

Types: must_complete (default), must_start, overlap_allowed, parallel.
Timing: finish_to_start (default), start_to_start, finish_to_finish,
start_to_finish.`,
	Args: cobra.ExactArgs(3),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		if !domain.DependencyType(depType).IsValid() {
			return fmt.Errorf("unknown dependency type %q", depType)
		}
		if !domain.TimingType(depTiming).IsValid() {
			return fmt.Errorf("unknown timing type %q", depTiming)
		}
		attrs := service.DependencyAttributes{}
		if depLag != 0 {
			attrs.Lag = &depLag
		}
		if depLead != 0 {
			attrs.Lead = &depLead
		}
		dep, err := e.svc.AddDependency(ctx, args[0], args[1], args[2],
			domain.DependencyType(depType), domain.TimingType(depTiming), attrs)
		if err != nil {
			return err
		}
		edge := dependencyDTO{
			ID:           dep.ID(),
			Dependent:    dep.DependentID(),
			Prerequisite: dep.PrerequisiteID(),
			Type:         string(dep.Type()),
			Timing:       string(dep.TimingType()),
		}
		if dep.Lag() != nil {
			edge.Lag = dep.Lag().String()
		}
		if dep.Lead() != nil {
			edge.Lead = dep.Lead().String()
		}
		return printJSON(edge)
	}),
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove-dep <routing-id> <dependency-id>",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(2),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		return e.svc.RemoveDependency(ctx, args[0], args[1])
	}),
}

var submitCmd = &cobra.Command{
	Use:   "submit <routing-id>",
	Short: "Submit a draft routing for review",
	Args:  cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		return e.svc.SubmitForReview(ctx, args[0])
	}),
}

var reworkCmd = &cobra.Command{
	Use:   "rework <routing-id>",
	Short: "Send an in-review routing back to draft",
	Args:  cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		return e.svc.SendBackToDraft(ctx, args[0])
	}),
}

var releaseCmd = &cobra.Command{
	Use:   "release <routing-id>",
	Short: "Release an in-review routing",
	Long: `Release an in-review routing for production use.

The dependency graph must validate with zero fatal findings, and an
approver must be named with --approved-by.`,
	Args: cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		return e.svc.Release(ctx, args[0], releaseBy)
	}),
}

var promoteCmd = &cobra.Command{
	Use:   "promote <routing-id>",
	Short: "Promote a released routing to production",
	Long: `Promote a released routing to production.

At most one production routing exists per part and site. When another
routing with an overlapping effective window is already in production, the
promotion fails unless --demote-sibling makes the swap explicit; the
sibling is then made obsolete in the same atomic write.`,
	Args: cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		return e.svc.PromoteToProduction(ctx, args[0], promoteDemote)
	}),
}

var obsoleteCmd = &cobra.Command{
	Use:   "obsolete <routing-id>",
	Short: "Retire a production routing",
	Args:  cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		return e.svc.MakeObsolete(ctx, args[0])
	}),
}

func init() {
	routingCreateCmd.Flags().StringVar(&routingBasedOn, "based-on", "", "routing id to deep-copy steps and edges from")

	routingListCmd.Flags().StringVar(&routingFilter.part, "part", "", "filter by part")
	routingListCmd.Flags().StringVar(&routingFilter.site, "site", "", "filter by site")
	routingListCmd.Flags().StringVar(&routingFilter.state, "state", "", "filter by lifecycle state")

	stepAddCmd.Flags().StringVar(&stepWorkCenter, "work-center", "", "work-center code")
	stepAddCmd.Flags().BoolVar(&stepOptional, "optional", false, "step may be skipped")
	stepAddCmd.Flags().BoolVar(&stepQuality, "quality-checkpoint", false, "step is an inspection gate")
	stepAddCmd.Flags().BoolVar(&stepCritical, "critical-path", false, "step drives the routing's lead time")
	stepAddCmd.Flags().DurationVar(&stepSetup, "setup", 0, "setup override")
	stepAddCmd.Flags().DurationVar(&stepRun, "run", 0, "run override")
	stepAddCmd.Flags().DurationVar(&stepTeardown, "teardown", 0, "teardown override")

	depAddCmd.Flags().StringVar(&depType, "type", string(domain.DependencyMustComplete), "dependency type")
	depAddCmd.Flags().StringVar(&depTiming, "timing", string(domain.TimingFinishToStart), "timing relationship")
	depAddCmd.Flags().DurationVar(&depLag, "lag", 0, "minimum wait after the prerequisite's reference point")
	depAddCmd.Flags().DurationVar(&depLead, "lead", 0, "maximum wait (must be at least the lag)")

	releaseCmd.Flags().StringVar(&releaseBy, "approved-by", "", "approver recorded with the release")
	promoteCmd.Flags().BoolVar(&promoteDemote, "demote-sibling", false, "demote an overlapping production sibling to obsolete")

	routingCmd.AddCommand(
		routingCreateCmd, routingListCmd, routingShowCmd, routingDeleteCmd,
		stepAddCmd, stepRemoveCmd, depAddCmd, depRemoveCmd,
		submitCmd, reworkCmd, releaseCmd, promoteCmd, obsoleteCmd,
	)
	rootCmd.AddCommand(routingCmd)
}
