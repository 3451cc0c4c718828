package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/vitaminmoo/ble-heartbeat/internal/ble"
	"github.com/vitaminmoo/ble-heartbeat/internal/config"
	"github.com/vitaminmoo/ble-heartbeat/internal/heartbeat"
)

// Explore connects to serviceUUID and lists its characteristics with their
// notify flag and the channel the router would bind them to. Nothing is
// subscribed.
func Explore(ctx context.Context, t ble.Transport, router *heartbeat.Router, serviceUUID string, w io.Writer) error {
	fmt.Fprintf(w, "Connecting to service %s...\n", serviceUUID)

	chars, err := t.Connect(ctx, serviceUUID)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer t.Disconnect()

	fmt.Fprintf(w, "\nFound %d characteristics:\n\n", len(chars))
	for i, c := range chars {
		config.Debugf("characteristic %s handle %T", c.UUID, c.Handle())
		notify := "no"
		if c.Notify {
			notify = "yes"
		}
		fmt.Fprintf(w, "  [%d] %s\n", i+1, c.UUID)
		fmt.Fprintf(w, "      Notify:  %s\n", notify)
		fmt.Fprintf(w, "      Channel: %s\n", router.ChannelFor(c))
	}
	return nil
}
