package client

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func InitCmd() *cobra.Command {
	var apiToken string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Configure the lumen client",
		Long:  "Stores the API URL and optional API token in the user config directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(apiToken, apiURL)
		},
	}

	cmd.Flags().StringVar(&apiToken, "api-token", "", "API token (leave empty for unauthenticated servers)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL (default: http://localhost:8080)")

	return cmd
}

func runInit(apiToken, apiURL string) error {
	reader := bufio.NewReader(os.Stdin)

	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}
	if apiURL == "" {
		fmt.Printf("API URL [%s]: ", defaultAPIURL)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API URL: %w", err)
		}
		apiURL = strings.TrimSpace(input)
		if apiURL == "" {
			apiURL = defaultAPIURL
		}
	}

	if apiToken == "" {
		apiToken = os.Getenv(envAPIToken)
	}

	api, err := NewAPIClientWithConfig(apiToken, apiURL)
	if err != nil {
		return err
	}
	if _, err := api.Get("/health"); err != nil {
		return fmt.Errorf("server at %s is not reachable: %w", apiURL, err)
	}

	if err := SaveGlobalConfig(&GlobalConfig{
		APIToken: apiToken,
		APIURL:   apiURL,
	}); err != nil {
		return err
	}

	configPath, _ := GetConfigPath()
	fmt.Printf("Configuration saved to %s\n", configPath)
	return nil
}
