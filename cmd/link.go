package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/atlasreq/tracegraph/core/engine"
	"github.com/atlasreq/tracegraph/core/model"
)

var (
	linkType          string
	linkStrength      int
	linkBidirectional bool
	linkDescription   string
	linkVersion       int64
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage trace links",
}

var linkCreateCmd = &cobra.Command{
	Use:   "create <source-id> <target-id>",
	Short: "Create a trace link (cycle-gated for hierarchical types)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			resp := eng.CreateTraceLink(ctx, orgID, &model.TraceLink{
				SourceID:      args[0],
				TargetID:      args[1],
				Type:          model.LinkType(linkType),
				Strength:      linkStrength,
				Bidirectional: linkBidirectional,
				Description:   linkDescription,
			})
			return printJSON(resp)
		})
	},
}

var linkUpdateCmd = &cobra.Command{
	Use:   "update <link-id>",
	Short: "Update a trace link under an optimistic version check",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			update := engine.LinkUpdate{}
			if cmd.Flags().Changed("strength") {
				update.Strength = &linkStrength
			}
			if cmd.Flags().Changed("bidirectional") {
				update.Bidirectional = &linkBidirectional
			}
			if cmd.Flags().Changed("description") {
				update.Description = &linkDescription
			}
			return printJSON(eng.UpdateTraceLink(ctx, orgID, args[0], linkVersion, update))
		})
	},
}

var linkDeleteCmd = &cobra.Command{
	Use:   "delete <link-id>",
	Short: "Soft-delete a trace link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			return printJSON(eng.DeleteTraceLink(ctx, orgID, args[0]))
		})
	},
}

var linkGetCmd = &cobra.Command{
	Use:   "get <link-id>",
	Short: "Fetch a trace link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			return printJSON(eng.GetTraceLink(ctx, orgID, args[0]))
		})
	},
}

func init() {
	linkCreateCmd.Flags().StringVar(&linkType, "type", string(model.LinkRelatedTo), "link type")
	linkCreateCmd.Flags().IntVar(&linkStrength, "strength", 0, "relationship strength 1-10 (0 = default)")
	linkCreateCmd.Flags().BoolVar(&linkBidirectional, "bidirectional", false, "mark the link bidirectional")
	linkCreateCmd.Flags().StringVar(&linkDescription, "description", "", "link description")

	linkUpdateCmd.Flags().IntVar(&linkStrength, "strength", 0, "new relationship strength")
	linkUpdateCmd.Flags().BoolVar(&linkBidirectional, "bidirectional", false, "new bidirectional flag")
	linkUpdateCmd.Flags().StringVar(&linkDescription, "description", "", "new description")
	linkUpdateCmd.Flags().Int64Var(&linkVersion, "version", 1, "expected link version")

	linkCmd.AddCommand(linkCreateCmd, linkUpdateCmd, linkDeleteCmd, linkGetCmd)
	rootCmd.AddCommand(linkCmd)
}
