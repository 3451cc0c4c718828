package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the TUI application. sink must be the Display the session was
// created with. The session is closed when the program exits.
func Run(ctx context.Context, session Connector, sink *Sink, maxBPM int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(ctx, session, maxBPM)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(p)

	_, runErr := p.Run()
	cancel()
	closeErr := session.Close()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", runErr)
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing session: %w", closeErr)
	}
	return nil
}
