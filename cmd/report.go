package cmd

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/retoucher/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "report <report.parquet>",
		Short: "Show the items of a batch report",
		Example: `  # List failed items of a run
  retoucher report results/batch-filter-2026-01-02_15-04-05.parquet --failed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := report.LoadParquet(args[0])
			if err != nil {
				return err
			}

			shown := 0
			for _, item := range items {
				if failedOnly && item.Status != "error" {
					continue
				}
				shown++
				fmt.Printf("%3d  %-10s  %s\n", item.Index+1, strings.ToUpper(item.Status), item.Source)
				if item.Output != "" {
					fmt.Printf("     -> %s (%dx%d)\n", item.Output, item.Width, item.Height)
				}
				if item.ErrorMessage != "" {
					fmt.Printf("     error: %s\n", item.ErrorMessage)
				}
			}
			fmt.Printf("\n%d of %d items\n", shown, len(items))
			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed items")

	return cmd
}
