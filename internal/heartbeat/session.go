package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vitaminmoo/ble-heartbeat/internal/ble"
)

var (
	// ErrAlreadyConnected is returned by Connect while a connection attempt
	// is in flight or established.
	ErrAlreadyConnected = errors.New("heartbeat: already connected")
	// ErrLinkLost is reported to the display when the peripheral drops.
	ErrLinkLost = errors.New("heartbeat: peripheral disconnected")
	// ErrClosed is returned by Connect when Close ran while connecting.
	ErrClosed = errors.New("heartbeat: session closed")
)

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Options names the service and the two notification channels.
type Options struct {
	ServiceUUID string
	StatusUUID  string
	RateUUID    string
}

// Session owns the transport for one peripheral: it connects to the
// service, hands the discovered characteristics to the Router and tears the
// subscriptions down again.
type Session struct {
	transport   ble.Transport
	display     Display
	router      *Router
	serviceUUID string
	log         logrus.FieldLogger

	// connMu serialises transport connects and their completion so a stale
	// attempt cleans up before the next one touches the transport.
	connMu sync.Mutex

	mu       sync.Mutex
	state    State
	bindings []Binding
	attempt  uint64
	cancel   context.CancelFunc
}

// NewSession wires t to d. The session registers itself as t's disconnect
// handler.
func NewSession(t ble.Transport, d Display, opts Options, log logrus.FieldLogger) *Session {
	s := &Session{
		transport:   t,
		display:     d,
		router:      NewRouter(t, d, opts.StatusUUID, opts.RateUUID, log),
		serviceUUID: ble.CanonicalUUID(opts.ServiceUUID),
		log:         log,
	}
	t.OnDisconnect(s.linkLost)
	return s
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bindings returns the subscriptions made by the last successful Connect.
func (s *Session) Bindings() []Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Binding(nil), s.bindings...)
}

// Connect connects to the service and routes its notifications. On failure
// the error is logged, shown on the display and returned; nothing is
// retried. A routing failure leaves the session connected with whatever
// bindings succeeded. Close cancels an attempt in flight, which then
// returns ErrClosed.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.attempt++
	id := s.attempt
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = Connecting
	s.mu.Unlock()
	defer cancel()

	s.connMu.Lock()
	defer s.connMu.Unlock()

	chars, err := s.transport.Connect(ctx, s.serviceUUID)
	return s.gotCharacteristics(id, chars, err)
}

func (s *Session) gotCharacteristics(id uint64, chars []ble.Characteristic, err error) error {
	s.mu.Lock()
	if s.attempt != id || s.state != Connecting {
		s.mu.Unlock()
		if err == nil {
			if derr := s.transport.Disconnect(); derr != nil {
				s.log.WithError(derr).Debug("disconnect after closed connect")
			}
		}
		return ErrClosed
	}
	s.cancel = nil
	if err != nil {
		s.state = Disconnected
		s.mu.Unlock()

		s.log.WithError(err).WithField("service", s.serviceUUID).Error("connect failed")
		s.display.SetError(err)
		return fmt.Errorf("connect: %w", err)
	}
	s.state = Connected
	s.mu.Unlock()
	s.display.SetConnected(true)

	bindings, err := s.router.Route(chars)

	s.mu.Lock()
	current := s.attempt == id && s.state == Connected
	if current {
		s.bindings = bindings
	}
	s.mu.Unlock()

	if !current {
		return ErrClosed
	}
	if err != nil {
		s.log.WithError(err).Warn("some notifications could not be enabled")
		s.display.SetError(err)
		return fmt.Errorf("route notifications: %w", err)
	}
	return nil
}

// Close tears the connection down: notifications stop, the link is dropped
// and the display returns to its disconnected look.
func (s *Session) Close() error {
	s.mu.Lock()
	wasUp := s.state != Disconnected
	s.state = Disconnected
	s.bindings = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	err := s.transport.Disconnect()
	if wasUp {
		s.resetDisplay()
	}
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

func (s *Session) linkLost() {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return
	}
	s.state = Disconnected
	s.bindings = nil
	s.mu.Unlock()

	s.log.Warn("peripheral disconnected")
	s.resetDisplay()
	s.display.SetError(ErrLinkLost)
}

func (s *Session) resetDisplay() {
	s.display.SetConnected(false)
	s.display.SetStatus(StatusMessage(StatusIdle))
	s.display.SetHeartRate(Placeholder)
}
