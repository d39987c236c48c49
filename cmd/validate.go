package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"routecard/internal/routing/graph"
)

// advisoryDTO is the JSON shape of a non-fatal validation finding.
type advisoryDTO struct {
	Code       string `json:"code"`
	StepNumber int    `json:"step_number,omitempty"`
	Message    string `json:"message"`
}

// reportDTO is the JSON shape of a validation report.
type reportDTO struct {
	Order      []int         `json:"order"`
	Advisories []advisoryDTO `json:"advisories,omitempty"`
}

func toReportDTO(report *graph.Report) reportDTO {
	dto := reportDTO{Order: report.Order}
	for _, a := range report.Advisories {
		dto.Advisories = append(dto.Advisories, advisoryDTO{
			Code:       string(a.Code),
			StepNumber: a.StepNumber,
			Message:    a.Message,
		})
	}
	return dto
}

var validateCmd = &cobra.Command{
	Use:   "validate <routing-id>",
	Short: "Validate a routing's dependency graph",
	Long: `Validate a routing's dependency graph without changing its state.

Prints the canonical execution order and any advisories. Cycles and
incoherent timing bounds fail the command.`,
	Args: cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		report, err := e.svc.ValidateRouting(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(toReportDTO(report))
	}),
}

// plannedStepDTO is the JSON shape of one execution-order entry.
type plannedStepDTO struct {
	Position    int    `json:"position"`
	StepNumber  int    `json:"step_number"`
	SegmentCode string `json:"segment_code"`
	WorkCenter  string `json:"work_center,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Quality     bool   `json:"quality_checkpoint,omitempty"`
	Critical    bool   `json:"critical_path,omitempty"`
	Setup       string `json:"setup"`
	Run         string `json:"run"`
	Teardown    string `json:"teardown"`
}

var orderCmd = &cobra.Command{
	Use:   "order <routing-id>",
	Short: "Print a routing's canonical execution order with resolved timing",
	Args:  cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		planned, advisories, err := e.svc.ExecutionOrder(ctx, args[0])
		if err != nil {
			return err
		}
		out := struct {
			Steps      []plannedStepDTO `json:"steps"`
			Advisories []advisoryDTO    `json:"advisories,omitempty"`
		}{}
		for _, p := range planned {
			out.Steps = append(out.Steps, plannedStepDTO{
				Position:    p.Position,
				StepNumber:  p.StepNumber,
				SegmentCode: p.SegmentCode,
				WorkCenter:  p.WorkCenter,
				Optional:    p.Flags.Optional,
				Quality:     p.Flags.QualityCheckpoint,
				Critical:    p.Flags.CriticalPath,
				Setup:       p.Timing.Setup.String(),
				Run:         p.Timing.Run.String(),
				Teardown:    p.Timing.Teardown.String(),
			})
		}
		for _, a := range advisories {
			out.Advisories = append(out.Advisories, advisoryDTO{
				Code:       string(a.Code),
				StepNumber: a.StepNumber,
				Message:    a.Message,
			})
		}
		return printJSON(out)
	}),
}

func init() {
	rootCmd.AddCommand(validateCmd, orderCmd)
}
