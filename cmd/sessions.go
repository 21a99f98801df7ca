package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medgpt/api"
	"medgpt/logging"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved conversations",
	Long:  `List the conversations saved on the server for the logged-in account.`,
	Run: func(cmd *cobra.Command, args []string) {
		_, client, err := setup()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer logging.Sync()

		sessions, err := client.ListSessions(context.Background())
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				fmt.Println("Not logged in. Start medgpt and log in to see saved conversations.")
				os.Exit(1)
			}
			fmt.Printf("Error listing sessions: %v\n", err)
			os.Exit(1)
		}

		if len(sessions) == 0 {
			fmt.Println("No saved conversations.")
			return
		}

		fmt.Printf("Found %d conversation(s):\n\n", len(sessions))
		for i, s := range sessions {
			title := s.Title
			if title == "" {
				title = "Untitled"
			}
			fmt.Printf("%d. %s\n", i+1, title)
			fmt.Printf("   ID: %s\n", s.ID)
			if s.CreatedAt != "" {
				fmt.Printf("   Created: %s\n", s.CreatedAt)
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
