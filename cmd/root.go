package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"medgpt/api"
	"medgpt/chat"
	"medgpt/config"
	"medgpt/logging"
	"medgpt/render"
	"medgpt/tui"
)

var (
	serverURL string
	modelName string
)

var rootCmd = &cobra.Command{
	Use:   "medgpt",
	Short: "MedGPT is a terminal client for the medical-assistant service",
	Long: `MedGPT is a terminal chat client for a medical-assistant service.
It talks to the server's Gemini and RAG model backends, manages saved
conversations, and can upload documents for summarization.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, client, err := setup()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer logging.Sync()

		var renderer render.Renderer
		if md, err := render.NewMarkdown(100); err == nil {
			renderer = md
		} else {
			logging.L().Warn("markdown renderer unavailable, using plain text")
			renderer = render.Plain{}
		}

		ctrl := chat.New(client, renderer, logging.L(), cfg.Model)
		if err := tui.StartTUI(cfg, client, ctrl); err != nil {
			fmt.Printf("Error starting TUI: %v\n", err)
			os.Exit(1)
		}
	},
}

// setup loads config, applies flag overrides and initializes logging and
// the API client.
func setup() (*config.Config, *api.Client, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	cfg, err := config.LoadConfig(workDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if modelName != "" {
		if err := cfg.Set("model", modelName); err != nil {
			return nil, nil, err
		}
	}

	if err := logging.InitLogger(cfg.LogFile); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	client := api.NewClient(cfg.ServerURL, time.Duration(cfg.RequestTimeout)*time.Second)
	return cfg, client, nil
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL (overrides config)")
	rootCmd.Flags().StringVarP(&modelName, "model", "m", "", "Model to chat with: gemini or rag")
}
