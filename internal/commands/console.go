package commands

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/vitaminmoo/ble-heartbeat/internal/heartbeat"
)

// ConsoleDisplay is a heartbeat.Display that prints one timestamped line per
// change. Repeated identical values are not printed again.
type ConsoleDisplay struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time

	connected bool
	status    string
	rate      string

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	bold   *color.Color
}

// NewConsoleDisplay returns a ConsoleDisplay writing to w.
func NewConsoleDisplay(w io.Writer) *ConsoleDisplay {
	return &ConsoleDisplay{
		w:      w,
		now:    time.Now,
		rate:   heartbeat.Placeholder,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		bold:   color.New(color.Bold),
	}
}

func (d *ConsoleDisplay) printf(c *color.Color, format string, args ...any) {
	fmt.Fprintf(d.w, "%s  %s\n", d.now().Format("15:04:05"), c.Sprintf(format, args...))
}

func (d *ConsoleDisplay) SetConnected(connected bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if connected == d.connected {
		return
	}
	d.connected = connected
	if connected {
		d.printf(d.green, "connected")
	} else {
		d.printf(d.yellow, "disconnected")
	}
}

func (d *ConsoleDisplay) SetStatus(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if text == d.status {
		return
	}
	d.status = text
	if text == "" {
		d.printf(d.yellow, "status cleared")
		return
	}
	d.printf(d.yellow, "status: %s", text)
}

func (d *ConsoleDisplay) SetHeartRate(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if text == d.rate {
		return
	}
	d.rate = text
	if text == heartbeat.Placeholder {
		d.printf(d.bold, "heart rate: %s", text)
		return
	}
	d.printf(d.bold, "heart rate: %s bpm", text)
}

func (d *ConsoleDisplay) SetError(err error) {
	if err == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.printf(d.red, "error: %v", err)
}

var _ heartbeat.Display = (*ConsoleDisplay)(nil)
