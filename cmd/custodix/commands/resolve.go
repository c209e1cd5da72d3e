package commands

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	var resolvedBy string

	cmd := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Resolve a security alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alertID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid alert id %q: %w", args[0], err)
			}
			if resolvedBy == "" {
				return fmt.Errorf("--by is required")
			}

			eng, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if err := eng.ResolveAlert(cmd.Context(), alertID, resolvedBy); err != nil {
				return err
			}
			color.Green("alert %d resolved by %s", alertID, resolvedBy)
			return nil
		},
	}

	cmd.Flags().StringVar(&resolvedBy, "by", "", "principal resolving the alert")
	return cmd
}
