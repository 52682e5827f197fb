package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/syncbridge/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted run records",
	Long: `List persisted run records, newest first.

Examples:
  syncbridge runs
  syncbridge runs --tenant acme --limit 5
  syncbridge runs --status failed`,
	RunE: listRuns,
}

func init() {
	runsCmd.Flags().String("tenant", "", "only show runs for this tenant")
	runsCmd.Flags().String("status", "", "only show runs with this status (running, completed, failed)")
	runsCmd.Flags().Int("limit", 20, "maximum number of records to show")

	rootCmd.AddCommand(runsCmd)
}

func listRuns(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	_, st, err := openApp()
	if err != nil {
		return err
	}
	defer st.Close()

	filter := store.RunFilter{Limit: limit}
	if tenantID != "" {
		filter.TenantID = &tenantID
	}
	if status != "" {
		filter.Status = &status
	}

	recs, err := st.GetRuns(context.Background(), filter)
	if err != nil {
		return err
	}

	if len(recs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, rec := range recs {
		mode := ""
		if rec.DryRun {
			mode = " (dry run)"
		}
		fmt.Printf("%s  %-10s %-16s %-9s %s%s\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.TenantID, rec.Direction, rec.Status,
			rec.Result.Summary(), mode,
		)
	}

	return nil
}
