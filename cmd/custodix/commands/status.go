package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ledgerState := "disabled (secondary store only)"
			if cfg.Ledger.Enabled {
				ledgerState = cfg.Ledger.BridgeURL
			}

			fmt.Println()
			fmt.Println("  custodix status")
			fmt.Println("  ────────────────────────────────────────")
			fmt.Printf("  Config:      %s\n", cfgFile)
			fmt.Printf("  Store:       %s\n", cfg.Store.Path)
			fmt.Printf("  Ledger:      %s\n", ledgerState)
			fmt.Printf("  Sync cache:  %s (ttl %dh)\n", cfg.Cache.Backend, cfg.Cache.TTLHours)
			fmt.Printf("  Sync delay:  %dms\n", cfg.Sync.DelayMs)

			eng, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			stats, err := eng.AlertStatistics(cmd.Context())
			if err == nil {
				fmt.Println("  ────────────────────────────────────────")
				fmt.Printf("  Alerts:      %d total, %d unresolved\n", stats.Total, stats.Unresolved)
				fmt.Printf("  Last 24h:    %d\n", stats.Last24h)
			}
			fmt.Println()
			return nil
		},
	}
}
