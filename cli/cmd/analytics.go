package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gi-connect/gi-connect-stack/cli/internal/client"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Run a vendor analytics query",
	Example: `  gictl analytics --vendor vendor-001 --start 2024-01-01 --end 2024-02-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		vendorID, _ := cmd.Flags().GetString("vendor")
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		syncURL, _ := cmd.Flags().GetString("sync-url")

		if vendorID == "" {
			return fmt.Errorf("--vendor is required")
		}
		if start == "" || end == "" {
			return fmt.Errorf("--start and --end are required")
		}

		syncClient := client.NewSyncClient(syncURL)
		result, err := syncClient.QueryAnalytics(start, end, vendorID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(analyticsCmd)

	analyticsCmd.Flags().StringP("vendor", "v", "", "vendor ID")
	analyticsCmd.Flags().String("start", "", "window start date (YYYY-MM-DD)")
	analyticsCmd.Flags().String("end", "", "window end date (YYYY-MM-DD)")
}
