package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodix/custodix/internal/syncer"
)

func newSyncCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile secondary-store records onto the ledger",
		Long:  "Detects evidence present in the secondary store but absent from the ledger and replays the missing registrations, one at a time. Ctrl-C stops between items; applied registrations are never rolled back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if dryRun {
				ids, err := eng.DetectDivergence(ctx)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					color.Green("secondary store and ledger agree, nothing to sync")
					return nil
				}
				fmt.Printf("%d records missing from the ledger:\n", len(ids))
				for _, id := range ids {
					fmt.Printf("  %s\n", id)
				}
				return nil
			}

			report, err := eng.SyncAll(ctx, func(p syncer.Progress) {
				switch p.Outcome {
				case syncer.OutcomeSynced:
					fmt.Printf("  [%d/%d] %s synced\n", p.Current, p.Total, p.EvidenceID)
				case syncer.OutcomeAlreadySynced:
					fmt.Printf("  [%d/%d] %s already on ledger\n", p.Current, p.Total, p.EvidenceID)
				default:
					fmt.Printf("  [%d/%d] %s failed: %v\n", p.Current, p.Total, p.EvidenceID, p.Err)
				}
			})
			if report != nil {
				fmt.Println()
				fmt.Printf("  Succeeded: %d\n", report.Succeeded)
				fmt.Printf("  Failed:    %d\n", report.Failed)
				if report.Aborted {
					color.Yellow("  Batch stopped early; remaining records were not attempted")
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list divergent records without syncing")
	return cmd
}
