package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/syncbridge/internal/model"
	"github.com/nhle/syncbridge/internal/runner"
	"github.com/nhle/syncbridge/internal/ui/runview"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a sync run for one tenant",
	Long: `Execute a sync run for one tenant.

By default both passes run: Notion pages are reconciled into Azure DevOps,
then newer work item changes are written back to Notion. Use --direction to
run a single pass.

A dry run classifies every item exactly as a live run would but performs no
writes on either side. Dry runs are recorded in the run history.

Examples:
  syncbridge run --tenant acme
  syncbridge run --tenant acme --dry-run
  syncbridge run --tenant acme --direction source_to_target --limit 5
  syncbridge run --tenant acme --plain`,
	RunE: runSync,
}

func init() {
	runCmd.Flags().String("tenant", "", "tenant id to sync (required)")
	runCmd.Flags().String("direction", string(model.DirectionBoth),
		"passes to execute: both, source_to_target, or target_to_source")
	runCmd.Flags().Bool("dry-run", false, "classify items without writing to either system")
	runCmd.Flags().Int("limit", 0, "process at most N unlinked pages (0 = no limit)")
	runCmd.Flags().Bool("plain", false, "print line output instead of the live view")
	_ = runCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(runCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	direction, _ := cmd.Flags().GetString("direction")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	limit, _ := cmd.Flags().GetInt("limit")
	plain, _ := cmd.Flags().GetBool("plain")

	cfg, st, err := openApp()
	if err != nil {
		return err
	}
	defer st.Close()

	r := runner.New(cfg, st)
	req := runner.Request{
		TenantID:  tenantID,
		Direction: model.Direction(direction),
		DryRun:    dryRun,
		Limit:     limit,
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	if plain {
		return runPlain(ctx, r, req)
	}

	events, err := r.Stream(ctx, req)
	if err != nil {
		return err
	}

	p := tea.NewProgram(runview.New(tenantID, events))
	_, viewErr := p.Run()

	// The view can quit mid-run (ctrl+c). Cancel the run and drain the
	// stream to closure so the background goroutine finishes and the run
	// record is finalized before we return.
	cancel()
	for range events {
	}

	if viewErr != nil {
		return fmt.Errorf("running sync view: %w", viewErr)
	}
	return nil
}

// runPlain executes the buffered path and prints one line per item.
func runPlain(ctx context.Context, r *runner.Runner, req runner.Request) error {
	rec, err := r.Run(ctx, req)
	if rec != nil {
		printResult(rec)
	}
	return err
}

func printResult(rec *model.RunRecord) {
	for _, item := range rec.Result.Items {
		line := fmt.Sprintf("%-14s %s", item.Action, item.Title)
		if item.Detail != "" {
			line += "  (" + item.Detail + ")"
		}
		fmt.Println(line)
	}

	for _, line := range rec.Result.Log {
		fmt.Println(line)
	}

	fmt.Printf("run %s %s: %s\n", rec.ID, rec.Status, rec.Result.Summary())
}
