package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumenkb/lumen/internal/cli"
	"github.com/lumenkb/lumen/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lumend",
		Short: "Lumen knowledge base server",
		Long:  "lumend runs the Lumen chat API server and index sync jobs",
	}

	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.SyncCmd())

	// Default to serve when invoked without a subcommand
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
