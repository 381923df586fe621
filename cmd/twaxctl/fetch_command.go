package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/twax-curation-api/internal/models"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch every configured feed and ingest new articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.Services.Ingest.FetchAndIngest(cmd.Context())
			if err != nil {
				return err
			}
			printBatchSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func printBatchSummary(out io.Writer, summary *models.BatchSummary) {
	fmt.Fprintf(out, "Fetched %d, new %d, duplicates %d, errors %d in %dms\n",
		summary.Fetched, summary.New, summary.Duplicates, summary.Errors, summary.DurationMs)

	if len(summary.Articles) > 0 {
		rows := make([][]string, 0, len(summary.Articles))
		for _, item := range summary.Articles {
			note := item.MatchedBy
			if item.Error != "" {
				note = item.Error
			}
			rows = append(rows, []string{
				string(item.Status),
				ellipsize(item.Title, 60),
				item.Source,
				formatScore(item.Relevance),
				note,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Status", "Title", "Source", "Relevance", "Note"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
	}

	for _, f := range summary.FeedErrors {
		fmt.Fprintf(out, "Feed %s failed: %s\n", f.Source, f.Error)
	}
}
