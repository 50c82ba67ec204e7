package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/atlasreq/tracegraph/core/engine"
)

var cycleMaxDepth int

var cycleCmd = &cobra.Command{
	Use:   "validate-cycle <ancestor-id> <descendant-id>",
	Short: "Check whether a proposed hierarchical link would create a cycle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			resp := eng.ValidateCycle(ctx, orgID, args[0], args[1], cycleMaxDepth)
			return printJSON(resp)
		})
	},
}

func init() {
	cycleCmd.Flags().IntVar(&cycleMaxDepth, "max-depth", 0, "traversal depth bound (0 = configured default)")
	rootCmd.AddCommand(cycleCmd)
}
