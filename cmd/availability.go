package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"routecard/internal/routing/domain"
)

var (
	grantPreferred bool
	grantLeadTime  time.Duration
	grantMinLot    int
	grantMaxLot    int
	grantUnitCost  int64
	sitesAt        string
)

// availabilityDTO is the JSON shape of an availability record.
type availabilityDTO struct {
	Part          string `json:"part"`
	Site          string `json:"site"`
	Capable       bool   `json:"capable"`
	Preferred     bool   `json:"preferred"`
	LeadTime      string `json:"lead_time"`
	MinLot        int    `json:"min_lot,omitempty"`
	MaxLot        int    `json:"max_lot,omitempty"`
	UnitCostCents int64  `json:"unit_cost_cents,omitempty"`
	EffectiveFrom string `json:"effective_from"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

func toAvailabilityDTO(a *domain.PartSiteAvailability) availabilityDTO {
	c := a.Constraints()
	dto := availabilityDTO{
		Part:          a.PartID(),
		Site:          a.SiteID(),
		Capable:       a.IsCapable(),
		Preferred:     c.IsPreferred,
		LeadTime:      c.LeadTime.String(),
		MinLot:        c.MinLotSize,
		MaxLot:        c.MaxLotSize,
		UnitCostCents: c.UnitCostCents,
		EffectiveFrom: c.EffectiveFrom.Format(time.RFC3339),
	}
	if c.ExpiresAt != nil {
		dto.ExpiresAt = c.ExpiresAt.Format(time.RFC3339)
	}
	return dto
}

// parseAt parses an optional --at flag, defaulting to now.
func parseAt(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	return time.Parse(time.RFC3339, raw)
}

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Manage site certifications for parts",
}

var availabilityGrantCmd = &cobra.Command{
	Use:   "grant <part> <site>",
	Short: "Certify a site for a part",
	Long: `Certify a site to manufacture a part.

Granting again for the same pair replaces the constraints in place and
restores capability after a revocation.

Examples:
  routecard availability grant widget-a dallas --preferred --lead-time 48h
  routecard availability grant widget-a austin --min-lot 10 --max-lot 500`,
	Args: cobra.ExactArgs(2),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		record, err := e.svc.GrantAvailability(ctx, args[0], args[1], domain.AvailabilityConstraints{
			IsPreferred:   grantPreferred,
			LeadTime:      grantLeadTime,
			MinLotSize:    grantMinLot,
			MaxLotSize:    grantMaxLot,
			UnitCostCents: grantUnitCost,
		})
		if err != nil {
			return err
		}
		return printJSON(toAvailabilityDTO(record))
	}),
}

var availabilityRevokeCmd = &cobra.Command{
	Use:   "revoke <part> <site>",
	Short: "Withdraw a site's certification for a part",
	Args:  cobra.ExactArgs(2),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		return e.svc.RevokeAvailability(ctx, args[0], args[1])
	}),
}

var availabilitySitesCmd = &cobra.Command{
	Use:   "sites <part>",
	Short: "List sites authorized for a part",
	Long: `List the sites currently authorized to manufacture a part.

Use --at to query a different instant (RFC 3339).`,
	Args: cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		at, err := parseAt(sitesAt)
		if err != nil {
			return err
		}
		records, err := e.svc.ListAvailableSites(ctx, args[0], at)
		if err != nil {
			return err
		}
		dtos := make([]availabilityDTO, 0, len(records))
		for _, r := range records {
			dtos = append(dtos, toAvailabilityDTO(r))
		}
		return printJSON(dtos)
	}),
}

func init() {
	availabilityGrantCmd.Flags().BoolVar(&grantPreferred, "preferred", false, "mark this site preferred for the part")
	availabilityGrantCmd.Flags().DurationVar(&grantLeadTime, "lead-time", 0, "manufacturing lead time (e.g. 48h)")
	availabilityGrantCmd.Flags().IntVar(&grantMinLot, "min-lot", 0, "minimum lot size")
	availabilityGrantCmd.Flags().IntVar(&grantMaxLot, "max-lot", 0, "maximum lot size")
	availabilityGrantCmd.Flags().Int64Var(&grantUnitCost, "unit-cost-cents", 0, "unit cost in cents")

	availabilitySitesCmd.Flags().StringVar(&sitesAt, "at", "", "instant to query (RFC 3339, default now)")

	availabilityCmd.AddCommand(availabilityGrantCmd, availabilityRevokeCmd, availabilitySitesCmd)
	rootCmd.AddCommand(availabilityCmd)
}
