package heartbeat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaminmoo/ble-heartbeat/internal/ble"
	"github.com/vitaminmoo/ble-heartbeat/internal/ble/bletest"
)

func defaultOptions() Options {
	return Options{
		ServiceUUID: ble.ServiceUUID,
		StatusUUID:  ble.StatusCharUUID,
		RateUUID:    ble.RateCharUUID,
	}
}

func sensorChars() []ble.Characteristic {
	return []ble.Characteristic{
		bletest.Char(ble.StatusCharUUID, true),
		bletest.Char(ble.RateCharUUID, true),
		bletest.Char(otherUUID, true),
	}
}

func TestSessionConnect(t *testing.T) {
	tr := bletest.New(sensorChars()...)
	d := newRecorder()
	s := NewSession(tr, d, defaultOptions(), quietLogger())

	require.NoError(t, s.Connect(t.Context()))

	assert.Equal(t, Connected, s.State())
	assert.Equal(t, ble.ServiceUUID, tr.LastService())
	assert.Len(t, s.Bindings(), 2)
	connected, _, _, _ := d.snapshot()
	assert.True(t, connected)
	assert.Empty(t, d.errs)

	tr.Notify(ble.RateCharUUID, []byte{61})
	_, _, rate, _ := d.snapshot()
	assert.Equal(t, "61", rate)
}

func TestSessionConnectFailure(t *testing.T) {
	tr := bletest.New(sensorChars()...)
	tr.Err = errors.New("timeout")
	d := newRecorder()
	s := NewSession(tr, d, defaultOptions(), quietLogger())

	err := s.Connect(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, tr.Err)

	assert.Equal(t, Disconnected, s.State())
	assert.Empty(t, s.Bindings())
	assert.Empty(t, tr.Subscribed())
	connected, _, _, _ := d.snapshot()
	assert.False(t, connected)
	require.Len(t, d.errs, 1)
	assert.Equal(t, "timeout", d.errs[0].Error())

	// no retry
	assert.Equal(t, 1, tr.ConnectCalls())
}

func TestSessionConnectCancelled(t *testing.T) {
	tr := bletest.New(sensorChars()...)
	s := NewSession(tr, newRecorder(), defaultOptions(), quietLogger())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := s.Connect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Disconnected, s.State())
}

func TestSessionConnectTwice(t *testing.T) {
	tr := bletest.New(sensorChars()...)
	s := NewSession(tr, newRecorder(), defaultOptions(), quietLogger())

	require.NoError(t, s.Connect(t.Context()))
	assert.ErrorIs(t, s.Connect(t.Context()), ErrAlreadyConnected)
	assert.Equal(t, 1, tr.ConnectCalls())
}

func TestSessionRoutingFailureStaysConnected(t *testing.T) {
	tr := bletest.New(sensorChars()...)
	tr.SubscribeErr = map[string]error{ble.RateCharUUID: errors.New("gatt error")}
	d := newRecorder()
	s := NewSession(tr, d, defaultOptions(), quietLogger())

	err := s.Connect(t.Context())
	require.Error(t, err)
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, []Binding{{UUID: ble.StatusCharUUID, Channel: ChannelStatus}}, s.Bindings())
	assert.Len(t, d.errs, 1)
}

func TestSessionClose(t *testing.T) {
	tr := bletest.New(sensorChars()...)
	d := newRecorder()
	s := NewSession(tr, d, defaultOptions(), quietLogger())
	require.NoError(t, s.Connect(t.Context()))
	tr.Notify(ble.RateCharUUID, []byte{70})
	tr.Notify(ble.StatusCharUUID, []byte{StatusIdle})

	require.NoError(t, s.Close())

	assert.Equal(t, Disconnected, s.State())
	assert.Empty(t, s.Bindings())
	assert.Empty(t, tr.Subscribed())
	assert.Equal(t, 1, tr.Disconnects())
	connected, status, rate, _ := d.snapshot()
	assert.False(t, connected)
	assert.Equal(t, "", status)
	assert.Equal(t, Placeholder, rate)

	assert.Zero(t, tr.Notify(ble.RateCharUUID, []byte{80}))

	// reconnect after close
	require.NoError(t, s.Connect(t.Context()))
	assert.Equal(t, 2, tr.ConnectCalls())
}

func TestSessionCloseIdle(t *testing.T) {
	tr := bletest.New()
	d := newRecorder()
	s := NewSession(tr, d, defaultOptions(), quietLogger())

	require.NoError(t, s.Close())
	_, _, _, calls := d.snapshot()
	assert.Empty(t, calls)
	assert.Zero(t, tr.Disconnects())
}

func TestSessionLinkLost(t *testing.T) {
	tr := bletest.New(sensorChars()...)
	d := newRecorder()
	s := NewSession(tr, d, defaultOptions(), quietLogger())
	require.NoError(t, s.Connect(t.Context()))
	tr.Notify(ble.RateCharUUID, []byte{70})

	tr.Drop()

	assert.Equal(t, Disconnected, s.State())
	assert.Empty(t, s.Bindings())
	connected, _, rate, _ := d.snapshot()
	assert.False(t, connected)
	assert.Equal(t, Placeholder, rate)
	require.NotEmpty(t, d.errs)
	assert.ErrorIs(t, d.errs[len(d.errs)-1], ErrLinkLost)

	// a second drop while idle is ignored
	n := len(d.errs)
	tr.Drop()
	assert.Len(t, d.errs, n)
}

// gatedTransport holds every Connect until the test releases it and then
// connects regardless of cancellation, like a stack that ignores ctx.
type gatedTransport struct {
	*bletest.Transport
	entered       chan context.Context
	release       chan struct{}
	disconnectErr error
}

func newGatedTransport(chars ...ble.Characteristic) *gatedTransport {
	return &gatedTransport{
		Transport: bletest.New(chars...),
		entered:   make(chan context.Context, 4),
		release:   make(chan struct{}),
	}
}

func (g *gatedTransport) Connect(ctx context.Context, serviceUUID string) ([]ble.Characteristic, error) {
	g.entered <- ctx
	<-g.release
	return g.Transport.Connect(context.WithoutCancel(ctx), serviceUUID)
}

func (g *gatedTransport) Disconnect() error {
	err := g.Transport.Disconnect()
	if g.disconnectErr != nil {
		return g.disconnectErr
	}
	return err
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

func connectAsync(t *testing.T, s *Session) chan error {
	done := make(chan error, 1)
	go func() { done <- s.Connect(t.Context()) }()
	return done
}

func TestSessionCloseDuringConnect(t *testing.T) {
	g := newGatedTransport(sensorChars()...)
	d := newRecorder()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s := NewSession(g, d, defaultOptions(), logger)

	done := connectAsync(t, s)
	attemptCtx := receive(t, g.entered)
	assert.Equal(t, Connecting, s.State())

	require.NoError(t, s.Close())
	assert.ErrorIs(t, attemptCtx.Err(), context.Canceled)

	g.disconnectErr = errors.New("link busy")
	g.release <- struct{}{}
	assert.ErrorIs(t, receive(t, done), ErrClosed)

	assert.Equal(t, Disconnected, s.State())
	assert.Empty(t, s.Bindings())
	assert.Empty(t, g.Subscribed())
	assert.Equal(t, 1, g.Disconnects(), "late link is dropped")
	connected, _, _, _ := d.snapshot()
	assert.False(t, connected)
	assert.Empty(t, d.errs)

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.DebugLevel && e.Message == "disconnect after closed connect" {
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestSessionReconnectAfterCloseDuringConnect(t *testing.T) {
	g := newGatedTransport(sensorChars()...)
	d := newRecorder()
	s := NewSession(g, d, defaultOptions(), quietLogger())

	first := connectAsync(t, s)
	receive(t, g.entered)
	require.NoError(t, s.Close())

	second := connectAsync(t, s)
	require.Eventually(t, func() bool { return s.State() == Connecting }, 2*time.Second, time.Millisecond)

	g.release <- struct{}{}
	assert.ErrorIs(t, receive(t, first), ErrClosed)
	assert.Equal(t, Connecting, s.State(), "stale attempt must not claim the new one")

	receive(t, g.entered)
	g.release <- struct{}{}
	require.NoError(t, receive(t, second))

	assert.Equal(t, Connected, s.State())
	assert.Len(t, s.Bindings(), 2)
	assert.Equal(t, map[string]int{ble.StatusCharUUID: 1, ble.RateCharUUID: 1}, g.Subscribed())
	connected, _, _, _ := d.snapshot()
	assert.True(t, connected)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
}
