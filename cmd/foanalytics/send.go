package main

import (
	"encoding/json"
	"fmt"
	"time"

	foanalytics "github.com/adamgoral/fo-analytics-go"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "how long to wait for the connection")
}

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <event-type> [json-data]",
	Short: "Publish one envelope to the realtime API",
	Long:  "Connect, send a single message of the given type with an optional JSON payload, and disconnect.\nExample: foanalytics send document.reprocess '{\"document_id\":\"d1\"}'",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]any{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
				return fmt.Errorf("payload is not valid JSON: %w", err)
			}
		}

		client, err := newRealtimeClient()
		if err != nil {
			return err
		}
		defer client.Close()

		opened := make(chan struct{}, 1)
		failed := make(chan string, 1)
		unsubOpen := client.Subscribe(foanalytics.EventConnectionOpen, func(foanalytics.Message) {
			select {
			case opened <- struct{}{}:
			default:
			}
		})
		defer unsubOpen()
		unsubFailed := client.Subscribe(foanalytics.EventConnectionFailed, func(msg foanalytics.Message) {
			reason, _ := msg.Data["reason"].(string)
			select {
			case failed <- reason:
			default:
			}
		})
		defer unsubFailed()

		client.Connect()

		select {
		case <-opened:
		case reason := <-failed:
			return fmt.Errorf("connection failed: %s", reason)
		case <-time.After(sendTimeout):
			return fmt.Errorf("timed out waiting for connection (is a token configured?)")
		}

		client.Send(foanalytics.Message{Type: args[0], Data: payload})
		client.Disconnect()
		fmt.Printf("Sent %s\n", args[0])
		return nil
	},
}
