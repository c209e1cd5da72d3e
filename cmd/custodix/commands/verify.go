package commands

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodix/custodix/internal/fingerprint"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <evidence-id> <file|fingerprint>",
		Short: "Verify a file's fingerprint against the registered record",
		Args:  cobra.ExactArgs(2),
		Example: `  custodix verify EV-2024-0042 ./disk-image.dd
  custodix verify EV-2024-0042 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08`,
		RunE: func(cmd *cobra.Command, args []string) error {
			evidenceID := args[0]

			fp := args[1]
			if !isFingerprint(fp) {
				computed, err := fingerprint.ComputeFile(fp)
				if err != nil {
					return err
				}
				fp = computed
			}

			eng, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			res, err := eng.Verify(cmd.Context(), evidenceID, fp)
			if err != nil {
				return err
			}

			fmt.Println()
			switch {
			case res.Verified:
				color.Green("  VERIFIED  %s", evidenceID)
			case res.Mismatch:
				color.Red("  TAMPERED  %s", evidenceID)
			case res.NotFound:
				color.Yellow("  NOT FOUND  %s", evidenceID)
			}
			fmt.Printf("  Source:      %s\n", res.Source)
			fmt.Printf("  Detail:      %s\n", res.Message)
			if res.Mismatch {
				fmt.Printf("  Registered:  %s\n", res.RegisteredFingerprint)
				fmt.Printf("  Computed:    %s\n", res.CurrentFingerprint)
			}
			if res.CaseID != "" {
				fmt.Printf("  Case:        %s\n", res.CaseID)
				fmt.Printf("  Collector:   %s\n", res.Collector)
				fmt.Printf("  Registered:  %s\n", time.Unix(res.CreatedAt, 0).UTC().Format(time.RFC3339))
			}
			fmt.Println()
			return nil
		},
	}
}

// isFingerprint reports whether arg looks like a hex fingerprint rather
// than a file path.
func isFingerprint(arg string) bool {
	if len(arg) != fingerprint.Size {
		return false
	}
	_, err := hex.DecodeString(arg)
	return err == nil
}
