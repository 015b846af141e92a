package main

import (
	"fmt"
	"os"
	"time"

	foanalytics "github.com/adamgoral/fo-analytics-go"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusProbe, "probe", false, "attempt a live connection to the realtime API")
}

var statusProbe bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current configuration and connectivity",
	Long:  "Display the resolved configuration and, with --probe, attempt a live realtime connection.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		path, _ := configPath()
		fmt.Println("Configuration:")
		fmt.Printf("  File:     %s\n", path)
		fmt.Printf("  Base URL: %s\n", resolveBaseURL(cfg))

		token := os.Getenv("FOA_TOKEN")
		source := "environment (FOA_TOKEN)"
		if token == "" {
			token = cfg.Auth.Token
			source = "config file"
		}
		if token != "" {
			fmt.Printf("  Token:    %s (%s)\n", maskToken(token), source)
		} else {
			fmt.Println("  Token:    (not set)")
		}

		if !statusProbe {
			return nil
		}

		fmt.Println()
		fmt.Print("Probing realtime API... ")
		client, err := newRealtimeClient()
		if err != nil {
			return err
		}
		defer client.Close()

		opened := make(chan struct{}, 1)
		unsubscribe := client.Subscribe(foanalytics.EventConnectionOpen, func(foanalytics.Message) {
			select {
			case opened <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		client.Connect()
		select {
		case <-opened:
			fmt.Println("ok")
			client.Disconnect()
		case <-time.After(10 * time.Second):
			fmt.Println("unreachable")
		}
		return nil
	},
}
