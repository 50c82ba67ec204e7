package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/atlasreq/tracegraph/core/engine"
)

var (
	gapsProjectID string
	gapsProjects  []string
)

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Scan for traceability gaps",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			if len(gapsProjects) > 0 {
				return printJSON(eng.FindGapsAcrossProjects(ctx, orgID, gapsProjects))
			}
			return printJSON(eng.FindGaps(ctx, orgID, gapsProjectID))
		})
	},
}

func init() {
	gapsCmd.Flags().StringVar(&gapsProjectID, "project", "", "project scope (empty = whole organization)")
	gapsCmd.Flags().StringSliceVar(&gapsProjects, "projects", nil, "scan several projects through the worker pool")
	rootCmd.AddCommand(gapsCmd)
}
