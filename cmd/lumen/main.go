package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumenkb/lumen/internal/cli"
	"github.com/lumenkb/lumen/internal/cli/client"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lumen",
		Short: "Lumen knowledge base client",
		Long:  "lumen talks to a lumend server: ask questions, chat, inspect sessions and trigger syncs",
	}

	rootCmd.PersistentFlags().BoolP("output", "o", false, "Output results as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token (overrides config and LUMEN_API_TOKEN)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides config and LUMEN_API_URL)")

	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.HistoryCmd())
	rootCmd.AddCommand(client.SyncCmd())

	cli.CheckHelpJSON(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
