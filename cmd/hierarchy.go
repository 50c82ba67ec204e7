package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/atlasreq/tracegraph/core/engine"
)

var (
	hierarchyDirection string
	hierarchyMaxDepth  int
	hierarchyMetadata  bool
)

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy <requirement-id>",
	Short: "Walk the requirement hierarchy from a root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			resp := eng.QueryHierarchy(ctx, orgID, args[0], hierarchyDirection, hierarchyMaxDepth, hierarchyMetadata)
			return printJSON(resp)
		})
	},
}

func init() {
	hierarchyCmd.Flags().StringVar(&hierarchyDirection, "direction", "both", "ancestors, descendants, or both")
	hierarchyCmd.Flags().IntVar(&hierarchyMaxDepth, "max-depth", 0, "traversal depth bound (0 = configured default)")
	hierarchyCmd.Flags().BoolVar(&hierarchyMetadata, "metadata", false, "include traversal metadata")
	rootCmd.AddCommand(hierarchyCmd)
}
