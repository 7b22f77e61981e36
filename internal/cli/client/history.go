package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type turnsResponse struct {
	SessionID string `json:"session_id"`
	Turns     []struct {
		Seq           int64  `json:"seq"`
		Role          string `json:"role"`
		Content       string `json:"content"`
		AttachmentKey string `json:"attachment_key"`
		CreatedAt     string `json:"created_at"`
	} `json:"turns"`
}

func HistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show the turns of a session",
		Long:  "Prints the full turn log of a session. Defaults to the most recent session.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := ""
			if len(args) > 0 {
				sessionID = args[0]
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runHistory(cmd, sessionID, outputJSON)
		},
	}

	return cmd
}

func runHistory(cmd *cobra.Command, sessionID string, outputJSON bool) error {
	if sessionID == "" {
		config, err := LoadGlobalConfig()
		if err != nil {
			return err
		}
		if config == nil || config.LastSessionID == "" {
			return fmt.Errorf("no session id given and no previous session recorded")
		}
		sessionID = config.LastSessionID
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/sessions/" + sessionID + "/turns")
	if err != nil {
		return err
	}

	var history turnsResponse
	if err := json.Unmarshal(resp.Data, &history); err != nil {
		return fmt.Errorf("failed to parse history response: %w", err)
	}

	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(history)
	}

	fmt.Printf("Session %s (%d turns)\n\n", history.SessionID, len(history.Turns))
	for _, t := range history.Turns {
		fmt.Printf("[%d] %s: %s\n", t.Seq, t.Role, t.Content)
		if t.AttachmentKey != "" {
			fmt.Printf("     attachment: %s\n", t.AttachmentKey)
		}
	}

	return nil
}
