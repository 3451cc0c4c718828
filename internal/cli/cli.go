package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/vitaminmoo/ble-heartbeat/internal/ble"
	"github.com/vitaminmoo/ble-heartbeat/internal/commands"
	"github.com/vitaminmoo/ble-heartbeat/internal/config"
	"github.com/vitaminmoo/ble-heartbeat/internal/heartbeat"
	"github.com/vitaminmoo/ble-heartbeat/internal/tui"
)

// CLI is the root command structure for ble-heartbeat.
type CLI struct {
	Verbose bool   `short:"v" help:"Enable verbose debug output"`
	Config  string `short:"c" type:"path" help:"Config file (default ~/.config/ble-heartbeat/config.yaml)"`
	Backend string `short:"b" help:"BLE backend, overrides the config file (tinygo or goble)"`

	// Default command - TUI
	Tui TuiCmd `cmd:"" default:"withargs" help:"Launch interactive heart rate display (default)"`

	Watch   WatchCmd   `cmd:"" help:"Connect and print every display change as a timestamped line"`
	Explore ExploreCmd `cmd:"" help:"List the service's characteristics and where they would be routed"`
	Decode  DecodeCmd  `cmd:"" help:"Decode status codes, heart rates or raw payloads without a device"`
}

// setup loads and validates the configuration and installs the logger.
// toTerminal selects stderr as the log destination when no log_file is set.
func (c *CLI) setup(toTerminal bool) (*config.Config, io.Closer, error) {
	config.Verbose = c.Verbose

	cfg, err := config.LoadOrDefault(c.Config)
	if err != nil {
		return nil, nil, err
	}
	if c.Backend != "" {
		cfg.Backend = c.Backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := cfg.NewLogger(toTerminal)
	if err != nil {
		return nil, nil, err
	}
	config.Log = logger
	config.Debugf("config: %+v", *cfg)
	return cfg, closer, nil
}

// newTransport builds the transport named by cfg.Backend.
func newTransport(cfg *config.Config, log logrus.FieldLogger) (ble.Transport, error) {
	log = log.WithField("backend", cfg.Backend)
	switch cfg.Backend {
	case config.BackendTinygo:
		return ble.NewTinygoTransport(cfg.ScanTimeout, log), nil
	case config.BackendGoble:
		return ble.NewGobleTransport(cfg.ScanTimeout, log), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func newSession(cfg *config.Config, d heartbeat.Display) (*heartbeat.Session, error) {
	t, err := newTransport(cfg, config.Log)
	if err != nil {
		return nil, err
	}
	return heartbeat.NewSession(t, d, sessionOptions(cfg), config.Log), nil
}

func sessionOptions(cfg *config.Config) heartbeat.Options {
	return heartbeat.Options{
		ServiceUUID: cfg.ServiceUUID,
		StatusUUID:  cfg.StatusUUID,
		RateUUID:    cfg.RateUUID,
	}
}

// --- TUI Command ---

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx context.Context, globals *CLI) error {
	cfg, closer, err := globals.setup(false)
	if err != nil {
		return err
	}
	defer closer.Close()

	sink := tui.NewSink()
	session, err := newSession(cfg, sink)
	if err != nil {
		return err
	}
	return tui.Run(ctx, session, sink, cfg.MaxBPM)
}

// --- Watch Command ---

type WatchCmd struct{}

func (c *WatchCmd) Run(ctx context.Context, globals *CLI) error {
	cfg, closer, err := globals.setup(true)
	if err != nil {
		return err
	}
	defer closer.Close()

	session, err := newSession(cfg, commands.NewConsoleDisplay(os.Stdout))
	if err != nil {
		return err
	}
	return commands.Watch(ctx, session)
}

// --- Explore Command ---

type ExploreCmd struct{}

func (c *ExploreCmd) Run(ctx context.Context, globals *CLI) error {
	cfg, closer, err := globals.setup(true)
	if err != nil {
		return err
	}
	defer closer.Close()

	t, err := newTransport(cfg, config.Log)
	if err != nil {
		return err
	}
	router := heartbeat.NewRouter(t, commands.NewConsoleDisplay(io.Discard), cfg.StatusUUID, cfg.RateUUID, config.Log)
	return commands.Explore(ctx, t, router, cfg.ServiceUUID, os.Stdout)
}

// --- Decode Command ---

type DecodeCmd struct {
	Status  []int     `short:"s" help:"Status code to decode (repeatable)"`
	Rate    []float64 `short:"r" help:"Heart rate value to format (repeatable)"`
	Payload []string  `short:"p" help:"Raw notification as status:HEX or rate:HEX (repeatable)"`
}

func (c *DecodeCmd) Run(globals *CLI) error {
	config.Verbose = globals.Verbose
	return c.run(os.Stdout)
}

func (c *DecodeCmd) run(w io.Writer) error {
	if len(c.Status) == 0 && len(c.Rate) == 0 && len(c.Payload) == 0 {
		return errors.New("nothing to decode: pass --status, --rate or --payload")
	}
	commands.DecodeStatus(w, c.Status)
	commands.DecodeRate(w, c.Rate)
	for _, p := range c.Payload {
		if err := commands.DecodePayload(w, p); err != nil {
			return err
		}
	}
	return nil
}
