package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/atlasreq/tracegraph/core/engine"
	"github.com/atlasreq/tracegraph/core/model"
	"github.com/atlasreq/tracegraph/core/search"
)

var (
	searchProjectID  string
	searchDocumentID string
	searchStatus     string
	searchTypes      []string
	searchExternal   string
	searchExclude    string
	searchOffset     int
	searchLimit      int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search for candidate requirements to link",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			// One-shot invocations index the scope before querying.
			if err := eng.SyncIndex(ctx, orgID, searchProjectID); err != nil {
				return err
			}

			q := search.Query{
				OrgID:          orgID,
				ProjectID:      searchProjectID,
				DocumentID:     searchDocumentID,
				Status:         searchStatus,
				ExternalIDGlob: searchExternal,
				ExcludeID:      searchExclude,
				Offset:         searchOffset,
				Limit:          searchLimit,
			}
			if len(args) == 1 {
				q.Text = args[0]
			}
			for _, t := range searchTypes {
				et, err := model.ParseEntityType(t)
				if err != nil {
					return err
				}
				q.Types = append(q.Types, et)
			}

			return printJSON(eng.SearchForLinking(ctx, q))
		})
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchProjectID, "project", "", "project scope")
	searchCmd.Flags().StringVar(&searchDocumentID, "document", "", "document scope")
	searchCmd.Flags().StringVar(&searchStatus, "status", "", "status filter")
	searchCmd.Flags().StringSliceVar(&searchTypes, "type", nil, "entity type filter (repeatable)")
	searchCmd.Flags().StringVar(&searchExternal, "external-id", "", "external id glob, e.g. 'REQ-1*'")
	searchCmd.Flags().StringVar(&searchExclude, "exclude", "", "requirement id to exclude")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "pagination offset")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "page size (0 = configured max)")
	rootCmd.AddCommand(searchCmd)
}
