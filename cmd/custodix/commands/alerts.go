package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodix/custodix/internal/evidence"
	"github.com/custodix/custodix/internal/store"
)

func newAlertsCmd() *cobra.Command {
	var unresolved bool
	var evidenceID string
	var limit int

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List security alerts",
		Example: `  custodix alerts
  custodix alerts --unresolved
  custodix alerts --evidence EV-2024-0042`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			list, err := eng.Alerts(cmd.Context(), store.AlertFilter{
				EvidenceID: evidenceID,
				Unresolved: unresolved,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("no alerts")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tTYPE\tEVIDENCE\tRESOLVED\tMESSAGE")
			for _, a := range list {
				ts := time.Unix(a.Timestamp, 0).UTC().Format(time.RFC3339)
				resolved := "no"
				if a.Resolved {
					resolved = "by " + a.ResolvedBy
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", a.AlertID, ts, a.Type, a.EvidenceID, resolved, a.Message)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "only unresolved alerts")
	cmd.Flags().StringVar(&evidenceID, "evidence", "", "filter by evidence id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum alerts to list")

	cmd.AddCommand(newAlertStatsCmd())
	return cmd
}

func newAlertStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show alert statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			stats, err := eng.AlertStatistics(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println()
			fmt.Println("  alert statistics")
			fmt.Println("  ────────────────────────────────────────")
			fmt.Printf("  Total:       %d\n", stats.Total)
			fmt.Printf("  Unresolved:  %d\n", stats.Unresolved)
			fmt.Printf("  Resolved:    %d\n", stats.Resolved)
			fmt.Printf("  Last 24h:    %d\n", stats.Last24h)
			fmt.Printf("  Last 7d:     %d\n", stats.Last7d)
			fmt.Println("  ────────────────────────────────────────")
			for _, t := range evidence.AlertTypes() {
				name := t.String()
				fmt.Printf("  %-22s %d\n", name+":", stats.ByType[name])
			}
			fmt.Println()
			return nil
		},
	}
}
