package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/atlasreq/tracegraph/core/engine"
)

var (
	matrixProjectID string
	matrixDocuments bool
	matrixOrphans   bool
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Generate the requirement coverage matrix for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			resp := eng.GenerateMatrix(ctx, orgID, matrixProjectID, matrixDocuments, matrixOrphans)
			return printJSON(resp)
		})
	},
}

func init() {
	matrixCmd.Flags().StringVar(&matrixProjectID, "project", "", "project scope (empty = whole organization)")
	matrixCmd.Flags().BoolVar(&matrixDocuments, "include-documents", false, "resolve containing document names")
	matrixCmd.Flags().BoolVar(&matrixOrphans, "include-orphans", true, "list zero-link requirements")
	rootCmd.AddCommand(matrixCmd)
}
