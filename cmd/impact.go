package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/atlasreq/tracegraph/core/engine"
	"github.com/atlasreq/tracegraph/core/impact"
)

var (
	impactProjectID  string
	impactChangeType string
	impactRate       float64
)

var impactCmd = &cobra.Command{
	Use:   "impact <target-id> [target-id...]",
	Short: "Estimate the direct and cascading impact of a proposed change",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			resp := eng.AnalyzeImpact(ctx, orgID, impactProjectID, impact.ChangeRequest{
				Type:       impact.ChangeType(impactChangeType),
				TargetIDs:  args,
				HourlyRate: impactRate,
			})
			return printJSON(resp)
		})
	},
}

func init() {
	impactCmd.Flags().StringVar(&impactProjectID, "project", "", "project scope (empty = whole organization)")
	impactCmd.Flags().StringVar(&impactChangeType, "type", string(impact.ChangeModification), "addition, modification, deletion, split, or merge")
	impactCmd.Flags().Float64Var(&impactRate, "hourly-rate", 0, "cost rate (0 = configured default)")
	rootCmd.AddCommand(impactCmd)
}
