package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodix/custodix/internal/evidence"
)

func newTrailCmd() *cobra.Command {
	var inspect bool

	cmd := &cobra.Command{
		Use:   "trail <evidence-id>",
		Short: "Show the aggregated custody trail for a piece of evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			evidenceID := args[0]

			eng, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if inspect {
				insp, err := eng.Inspect(cmd.Context(), evidenceID)
				if err != nil {
					return err
				}
				printTrail(insp.Trail.Events, string(insp.Trail.Source))
				fmt.Println()
				if insp.Verdict.Suspicious {
					color.Red("  SUSPICIOUS: %s (rule %s)", insp.Verdict.Reason, insp.Verdict.Rule)
					if insp.Alert != nil {
						fmt.Printf("  Alert recorded with id %d\n", insp.Alert.AlertID)
					}
				} else {
					color.Green("  No suspicious pattern detected")
				}
				fmt.Println()
				return nil
			}

			tr, err := eng.AuditTrail(cmd.Context(), evidenceID)
			if err != nil {
				return err
			}
			printTrail(tr.Events, string(tr.Source))
			return nil
		},
	}

	cmd.Flags().BoolVar(&inspect, "inspect", false, "run anomaly detection over the trail")
	return cmd
}

func printTrail(events []evidence.CustodyEvent, source string) {
	if len(events) == 0 {
		fmt.Println("no custody events recorded")
		return
	}

	fmt.Printf("%d events (source: %s)\n\n", len(events), source)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tACTOR\tTARGET\tNOTES")
	for _, ev := range events {
		ts := time.Unix(ev.Timestamp, 0).UTC().Format(time.RFC3339)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ts, ev.Action, ev.Actor, ev.TransferTarget, ev.Notes)
	}
	_ = w.Flush()
}
