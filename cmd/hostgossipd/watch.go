package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream host events from a running daemon",
		RunE:  runWatch,
	}
}

var (
	addedColor   = color.New(color.FgGreen, color.Bold)
	movedColor   = color.New(color.FgYellow, color.Bold)
	updatedColor = color.New(color.FgCyan)
	removedColor = color.New(color.FgRed, color.Bold)
)

func runWatch(cmd *cobra.Command, args []string) error {
	listen, _ := cmd.Flags().GetString("listen")
	u := url.URL{Scheme: "ws", Host: listen, Path: "/events"}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed connecting to %s: %w", u.String(), err)
	}
	defer conn.Close()

	for {
		var event types.HostEvent
		if err := conn.ReadJSON(&event); err != nil {
			return fmt.Errorf("connection closed: %w", err)
		}
		printEvent(event)
	}
}

func printEvent(event types.HostEvent) {
	switch event.Type {
	case types.HostAdded:
		addedColor.Printf("+ ADDED   %s at %s\n", event.Subject.HostId, event.Subject.Location)
	case types.HostMoved:
		from := "?"
		if event.Prev != nil {
			from = event.Prev.String()
		}
		movedColor.Printf("~ MOVED   %s from %s to %s\n", event.Subject.HostId, from, event.Subject.Location)
	case types.HostUpdated:
		updatedColor.Printf("  UPDATED %s, %s\n", event.Subject.HostId, describeHost(event.Subject))
	case types.HostRemoved:
		removedColor.Printf("- REMOVED %s\n", event.Subject.HostId)
	}
}

func describeHost(h types.Host) string {
	b, err := json.Marshal(h)
	if err != nil {
		return "<unprintable>"
	}
	return string(b)
}
