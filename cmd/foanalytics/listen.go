package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	foanalytics "github.com/adamgoral/fo-analytics-go"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listenCmd)
}

var listenCmd = &cobra.Command{
	Use:   "listen [event-type ...]",
	Short: "Stream realtime events to stdout",
	Long: "Connect to the realtime API and print matching events until interrupted.\n" +
		"With no arguments every event is printed, including connection lifecycle\n" +
		"events. SIGCONT (e.g. after the terminal resumes) triggers an immediate\n" +
		"reconnect instead of waiting for the next backoff tick.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newRealtimeClient()
		if err != nil {
			return err
		}
		defer client.Close()

		types := args
		if len(types) == 0 {
			types = []string{foanalytics.Wildcard}
		}
		for _, typ := range types {
			unsubscribe := client.Subscribe(typ, printMessage)
			defer unsubscribe()
		}

		client.Connect()
		fmt.Fprintln(os.Stderr, "Listening... (Ctrl-C to stop)")

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGCONT)
		defer signal.Stop(signals)

		for sig := range signals {
			if sig == syscall.SIGCONT {
				client.NotifyVisible()
				continue
			}
			break
		}

		client.Disconnect()
		return nil
	},
}

// printMessage writes one event per line: timestamp, type, and the payload
// as compact JSON.
func printMessage(msg foanalytics.Message) {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		data = []byte("{}")
	}
	fmt.Printf("%s  %-36s %s\n", msg.Timestamp, msg.Type, data)
}
