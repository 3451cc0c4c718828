package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vitaminmoo/ble-heartbeat/internal/heartbeat"
)

// Display updates, delivered to the model through the program.
type (
	connectedMsg  bool
	statusTextMsg string
	rateTextMsg   string
	displayErrMsg struct{ err error }
)

// Sink is a heartbeat.Display that forwards every update to a running
// bubbletea program. Updates arriving before Attach are dropped.
type Sink struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

// NewSink returns an unattached Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Attach starts forwarding to p.
func (s *Sink) Attach(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send = p.Send
}

func (s *Sink) post(msg tea.Msg) {
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

func (s *Sink) SetConnected(connected bool) { s.post(connectedMsg(connected)) }
func (s *Sink) SetStatus(text string)       { s.post(statusTextMsg(text)) }
func (s *Sink) SetHeartRate(text string)    { s.post(rateTextMsg(text)) }
func (s *Sink) SetError(err error)          { s.post(displayErrMsg{err: err}) }

var _ heartbeat.Display = (*Sink)(nil)
