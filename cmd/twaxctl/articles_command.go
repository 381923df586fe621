package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/twax-curation-api/internal/models"
)

func newArticlesCommand(ctx *commandContext) *cobra.Command {
	articlesCmd := &cobra.Command{
		Use:   "articles",
		Short: "Inspect stored articles",
	}

	articlesCmd.AddCommand(newArticlesListCommand(ctx))
	articlesCmd.AddCommand(newArticlesStatsCommand(ctx))

	return articlesCmd
}

func newArticlesListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag, orderFlag string
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles, best scored first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.ListFilter{
				Order: models.ListOrder(strings.ToLower(orderFlag)),
				Limit: limitFlag,
			}
			if filter.Order != models.OrderRelevance && filter.Order != models.OrderRecent {
				return fmt.Errorf("order must be relevance or recent")
			}
			if statusFlag != "" {
				status, err := models.ParseStatus(statusFlag)
				if err != nil {
					return err
				}
				filter.Status = &status
			}

			application, err := ctx.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			articles, err := application.Services.Articles.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printArticles(cmd.OutOrStdout(), articles)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only show articles in this status")
	cmd.Flags().StringVar(&orderFlag, "order", string(models.OrderRelevance), "relevance or recent")
	cmd.Flags().IntVar(&limitFlag, "limit", 20, "Maximum number of articles")

	return cmd
}

func newArticlesStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count articles per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			counts, err := application.Services.Articles.CountByStatus(cmd.Context())
			if err != nil {
				return err
			}
			printStatusCounts(cmd.OutOrStdout(), counts)
			return nil
		},
	}
}

func printArticles(out io.Writer, articles []*models.Article) {
	if len(articles) == 0 {
		fmt.Fprintln(out, "No articles")
		return
	}

	const stampLayout = "2006-01-02 15:04"
	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, []string{
			a.ID,
			string(a.Status),
			formatScore(a.RelevanceScore),
			formatScore(a.NewsworthinessScore),
			ellipsize(a.Title, 60),
			a.CreatedAt.Local().Format(stampLayout),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Status", "Rel", "News", "Title", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
}

func printStatusCounts(out io.Writer, counts map[models.ArticleStatus]int) {
	rows := make([][]string, 0, len(models.AllStatuses)+1)
	total := 0
	for _, s := range models.AllStatuses {
		rows = append(rows, []string{string(s), strconv.Itoa(counts[s])})
		total += counts[s]
	}
	rows = append(rows, []string{"total", strconv.Itoa(total)})
	fmt.Fprintln(out, renderTable([]string{"Status", "Articles"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func formatScore(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func ellipsize(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
