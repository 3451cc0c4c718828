package commands

import (
	"context"
	"fmt"

	"github.com/vitaminmoo/ble-heartbeat/internal/config"
)

// Session is the part of heartbeat.Session the commands drive.
type Session interface {
	Connect(ctx context.Context) error
	Close() error
}

// Watch connects session and blocks until ctx is done, then tears the
// session down. Display updates flow through whatever Display the session
// was built with. A connect failure is returned without retrying.
func Watch(ctx context.Context, session Session) error {
	if err := session.Connect(ctx); err != nil {
		if cerr := session.Close(); cerr != nil {
			config.Log.WithError(cerr).Debug("close after failed connect")
		}
		return err
	}

	<-ctx.Done()

	if err := session.Close(); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}
