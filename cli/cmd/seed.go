package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gi-connect/gi-connect-stack/cli/internal/client"
	"github.com/gi-connect/gi-connect-stack/cli/internal/seeder"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the warehouse with fabricated data",
}

var seedEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Send fabricated activity events to the sync relay",
	Example: `  gictl seed events --count 100 --spread 24h
  gictl seed events --count 10 --sync-url http://localhost:8090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		spread, _ := cmd.Flags().GetDuration("spread")
		syncURL, _ := cmd.Flags().GetString("sync-url")

		syncClient := client.NewSyncClient(syncURL)

		sent := 0
		for i := 0; i < count; i++ {
			if err := syncClient.SendEvent(seeder.GenerateEvent(i, count, spread)); err != nil {
				return fmt.Errorf("after %d event(s): %w", sent, err)
			}
			sent++
		}

		fmt.Printf("Sent %d event(s)\n", sent)
		return nil
	},
}

var seedOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Send fabricated orders to the sync relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		spread, _ := cmd.Flags().GetDuration("spread")
		syncURL, _ := cmd.Flags().GetString("sync-url")

		syncClient := client.NewSyncClient(syncURL)

		sent := 0
		for i := 0; i < count; i++ {
			if err := syncClient.SendOrder(seeder.GenerateOrder(i, count, spread)); err != nil {
				return fmt.Errorf("after %d order(s): %w", sent, err)
			}
			sent++
		}

		fmt.Printf("Sent %d order(s)\n", sent)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedEventsCmd)
	seedCmd.AddCommand(seedOrdersCmd)

	for _, c := range []*cobra.Command{seedEventsCmd, seedOrdersCmd} {
		c.Flags().IntP("count", "n", 10, "number of records to send")
		c.Flags().Duration("spread", 24*time.Hour, "spread timestamps across this window")
	}
}
