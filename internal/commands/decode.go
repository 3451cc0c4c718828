package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/vitaminmoo/ble-heartbeat/internal/ble"
	"github.com/vitaminmoo/ble-heartbeat/internal/heartbeat"
	"github.com/vitaminmoo/ble-heartbeat/internal/util"
)

// DecodeStatus prints what the display would show for each status code.
func DecodeStatus(w io.Writer, codes []int) {
	for _, code := range codes {
		u := heartbeat.DecodeStatus(code)
		msg := u.Message
		if msg == "" {
			msg = "(blank)"
		}
		fmt.Fprintf(w, "status %d: %s", code, msg)
		if u.ResetRate {
			fmt.Fprintf(w, " [heart rate reset to %s]", heartbeat.Placeholder)
		}
		fmt.Fprintln(w)
	}
}

// DecodeRate prints what the display would show for each heart rate value.
func DecodeRate(w io.Writer, values []float64) {
	for _, v := range values {
		fmt.Fprintf(w, "heart rate %v: %s\n", v, heartbeat.FormatHeartRate(heartbeat.Reading{BPM: v, Present: true}))
	}
}

// DecodePayload decodes a raw notification given as "status:HEX" or
// "rate:HEX", as the router would on receipt.
func DecodePayload(w io.Writer, arg string) error {
	channel, raw, ok := strings.Cut(arg, ":")
	if !ok {
		return fmt.Errorf("payload %q: want status:HEX or rate:HEX", arg)
	}
	buf, err := hex.DecodeString(strings.ReplaceAll(raw, " ", ""))
	if err != nil {
		return fmt.Errorf("payload %q: %w", arg, err)
	}

	fmt.Fprintf(w, "%s payload, %d bytes\n%s", channel, len(buf), util.HexDump(buf))

	switch channel {
	case "status":
		code, err := ble.StatusCode(buf)
		if err != nil {
			fmt.Fprintf(w, "dropped: %v\n", err)
			return nil
		}
		DecodeStatus(w, []int{code})
	case "rate", "heart-rate":
		bpm, present := ble.HeartRate(buf)
		fmt.Fprintf(w, "heart rate: %s\n", heartbeat.FormatHeartRate(heartbeat.Reading{BPM: bpm, Present: present}))
	default:
		return fmt.Errorf("payload %q: unknown channel %q", arg, channel)
	}
	return nil
}
