package client

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type chatResponse struct {
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
	Reply     string `json:"reply"`
	Sources   []struct {
		DocumentID string  `json:"document_id"`
		Filename   string  `json:"filename"`
		Filepath   string  `json:"filepath"`
		Score      float64 `json:"score"`
	} `json:"sources"`
}

func AskCmd() *cobra.Command {
	var sessionID string
	var attachment string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, strings.Join(args, " "), sessionID, attachment, outputJSON)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing session")
	cmd.Flags().StringVar(&attachment, "image", "", "Attach an image file (screenshot of an error, for example)")

	return cmd
}

func runAsk(cmd *cobra.Command, question, sessionID, attachment string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	attachmentKey := ""
	if attachment != "" {
		attachmentKey, err = uploadAttachment(api, attachment)
		if err != nil {
			return err
		}
	}

	resp, err := api.Post("/chat", map[string]string{
		"session_id":     sessionID,
		"message":        question,
		"attachment_key": attachmentKey,
	})
	if err != nil {
		return err
	}

	var chat chatResponse
	if err := json.Unmarshal(resp.Data, &chat); err != nil {
		return fmt.Errorf("failed to parse chat response: %w", err)
	}

	if err := RememberSession(chat.SessionID); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to remember session: %v\n", err)
	}

	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(chat)
	}

	printChatResponse(&chat)
	return nil
}

func printChatResponse(chat *chatResponse) {
	fmt.Println(chat.Reply)
	if len(chat.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, s := range chat.Sources {
			fmt.Printf("  %s (%.2f)\n", s.Filename, s.Score)
		}
	}
}

func uploadAttachment(api *APIClient, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", path, err)
	}

	contentType := contentTypeFor(path)
	resp, err := api.PostRaw("/attachments", contentType, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	var uploaded struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(resp.Data, &uploaded); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}

	return uploaded.Key, nil
}

func contentTypeFor(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	}
	return "image/png"
}
