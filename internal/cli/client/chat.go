package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func ChatCmd() *cobra.Command {
	var sessionID string
	var resume bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long:  "Opens a REPL against the chat API. Type /quit to exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, sessionID, resume)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing session")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue the most recent session")

	return cmd
}

func runChat(cmd *cobra.Command, sessionID string, resume bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if sessionID == "" && resume {
		config, err := LoadGlobalConfig()
		if err != nil {
			return err
		}
		if config == nil || config.LastSessionID == "" {
			return fmt.Errorf("no previous session to resume")
		}
		sessionID = config.LastSessionID
	}

	if sessionID != "" {
		fmt.Printf("Continuing session %s\n", sessionID)
	}
	fmt.Println("Type /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		resp, err := api.Post("/chat", map[string]string{
			"session_id": sessionID,
			"message":    line,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		var chat chatResponse
		if err := json.Unmarshal(resp.Data, &chat); err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to parse response: %v\n", err)
			continue
		}

		sessionID = chat.SessionID
		fmt.Println()
		printChatResponse(&chat)
		fmt.Println()
	}

	if sessionID != "" {
		if err := RememberSession(sessionID); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remember session: %v\n", err)
		}
	}

	return scanner.Err()
}
