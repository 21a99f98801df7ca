package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medgpt/logging"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check which model backends are available",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, client, err := setup()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer logging.Sync()

		status, err := client.CheckSystemStatus(context.Background())
		if err != nil {
			fmt.Printf("Error checking server status: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Server: %s\n", cfg.ServerURL)
		fmt.Printf("Gemini: %s\n", availability(status.GeminiAPI))
		fmt.Printf("RAG:    %s\n", availability(status.RAGSystem))
	},
}

func availability(up bool) string {
	if up {
		return "available"
	}
	return "unavailable"
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
