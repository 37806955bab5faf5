package main

import (
	"fmt"
	"os"

	"github.com/fintrack/cmd/cli/client"
	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "fintrack",
	Short: "FinTrack CLI - a personal finance ledger",
	Long: `FinTrack CLI is a command-line client for the FinTrack server.
It manages accounts, transactions, recurring schedules, and notifications.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.NewAPIClient(serverURL)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "FinTrack server URL")

	addScheduledCommands(rootCmd)
	addNotificationCommands(rootCmd)
	addLedgerCommands(rootCmd)
	addReportCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
