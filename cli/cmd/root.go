package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gictl",
	Short: "GI Connect operator CLI",
	Long: `gictl is the command-line interface for the GI Connect backend.

Seed the warehouse sync relay with fabricated events and orders, or run
analytics queries against a vendor's data, from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("sync-url", "http://localhost:8090", "sync service URL")
}
