package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type syncReportResponse struct {
	RunID      string `json:"run_id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Added      int    `json:"added"`
	Updated    int    `json:"updated"`
	Removed    int    `json:"removed"`
	Skipped    int    `json:"skipped"`
	Failed     []struct {
		DocumentID string `json:"document_id"`
		Name       string `json:"name"`
		Reason     string `json:"reason"`
	} `json:"failed"`
}

func SyncCmd() *cobra.Command {
	var latest bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger an index sync",
		Long:  "Runs a sync against the document source and prints the report. With --latest, prints the last report instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSync(cmd, latest, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "Show the most recent sync report without triggering a new run")

	return cmd
}

func runSync(cmd *cobra.Command, latest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	var resp *APIResponse
	if latest {
		resp, err = api.Get("/sync/latest")
	} else {
		resp, err = api.Post("/sync", nil)
	}
	if err != nil {
		return err
	}

	var report syncReportResponse
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		return fmt.Errorf("failed to parse sync report: %w", err)
	}

	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(report)
	}

	fmt.Printf("Run %s\n", report.RunID)
	fmt.Printf("  started:  %s\n", report.StartedAt)
	fmt.Printf("  finished: %s\n", report.FinishedAt)
	fmt.Printf("  added=%d updated=%d removed=%d skipped=%d failed=%d\n",
		report.Added, report.Updated, report.Removed, report.Skipped, len(report.Failed))

	for _, f := range report.Failed {
		fmt.Printf("  FAILED %s (%s): %s\n", f.Name, f.DocumentID, f.Reason)
	}

	return nil
}
