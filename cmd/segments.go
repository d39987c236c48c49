package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"routecard/internal/routing/domain"
	"routecard/internal/routing/service"
)

var (
	segName     string
	segSite     string
	segStandard bool
	segSetup    time.Duration
	segRun      time.Duration
	segTeardown time.Duration
	segFilter   struct {
		site          string
		standardOnly  bool
		includeGlobal bool
	}
)

// segmentDTO is the JSON shape of a segment for CLI output.
type segmentDTO struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Site     string `json:"site,omitempty"`
	Standard bool   `json:"standard"`
	Setup    string `json:"setup"`
	Run      string `json:"run"`
	Teardown string `json:"teardown"`
}

func toSegmentDTO(s *domain.ProcessSegment) segmentDTO {
	return segmentDTO{
		ID:       s.ID(),
		Code:     s.Code(),
		Name:     s.Name(),
		Site:     s.SiteID(),
		Standard: s.IsStandard(),
		Setup:    s.Nominal().Setup.String(),
		Run:      s.Nominal().Run.String(),
		Teardown: s.Nominal().Teardown.String(),
	}
}

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Manage the process segment catalog",
}

var segmentRegisterCmd = &cobra.Command{
	Use:   "register <code>",
	Short: "Register a process segment",
	Long: `Register a process segment with its nominal timing.

Examples:
  routecard segment register CUT-100 --name "Rough cut" --run 30m --setup 10m
  routecard segment register DRILL-200 --site dallas --run 20m`,
	Args: cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		code := args[0]
		name := segName
		if name == "" {
			name = code
		}
		segment, err := e.svc.RegisterSegment(ctx, code, name,
			domain.Timing{Setup: segSetup, Run: segRun, Teardown: segTeardown},
			service.SegmentAttributes{SiteID: segSite, Standard: segStandard})
		if err != nil {
			return err
		}
		return printJSON(toSegmentDTO(segment))
	}),
}

var segmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered segments",
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		filter := domain.SegmentFilter{
			SiteID:        segFilter.site,
			IncludeGlobal: segFilter.includeGlobal,
		}
		if segFilter.standardOnly {
			standard := true
			filter.Standard = &standard
		}
		segments, err := e.svc.ListSegments(ctx, filter)
		if err != nil {
			return err
		}
		dtos := make([]segmentDTO, 0, len(segments))
		for _, s := range segments {
			dtos = append(dtos, toSegmentDTO(s))
		}
		return printJSON(dtos)
	}),
}

var segmentShowCmd = &cobra.Command{
	Use:   "show <code>",
	Short: "Show a segment by code",
	Args:  cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		segment, err := e.svc.GetSegmentByCode(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(toSegmentDTO(segment))
	}),
}

var segmentDeleteCmd = &cobra.Command{
	Use:   "delete <code>",
	Short: "Delete a segment",
	Long: `Delete a segment from the catalog.

Fails when any step of a non-draft routing still references the segment.`,
	Args: cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		segment, err := e.svc.GetSegmentByCode(ctx, args[0])
		if err != nil {
			return err
		}
		return e.svc.DeleteSegment(ctx, segment.ID())
	}),
}

func init() {
	segmentRegisterCmd.Flags().StringVar(&segName, "name", "", "human-readable segment name (defaults to the code)")
	segmentRegisterCmd.Flags().StringVar(&segSite, "site", "", "owning site (empty = global standard)")
	segmentRegisterCmd.Flags().BoolVar(&segStandard, "standard", false, "mark the segment reusable across routings")
	segmentRegisterCmd.Flags().DurationVar(&segSetup, "setup", 0, "nominal setup duration (e.g. 10m)")
	segmentRegisterCmd.Flags().DurationVar(&segRun, "run", 0, "nominal run duration")
	segmentRegisterCmd.Flags().DurationVar(&segTeardown, "teardown", 0, "nominal teardown duration")

	segmentListCmd.Flags().StringVar(&segFilter.site, "site", "", "filter by owning site")
	segmentListCmd.Flags().BoolVar(&segFilter.standardOnly, "standard", false, "only standard segments")
	segmentListCmd.Flags().BoolVar(&segFilter.includeGlobal, "include-global", false, "include global segments with a site filter")

	segmentCmd.AddCommand(segmentRegisterCmd, segmentListCmd, segmentShowCmd, segmentDeleteCmd)
	rootCmd.AddCommand(segmentCmd)
}
