package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaminmoo/ble-heartbeat/internal/heartbeat"
)

type fakeSession struct {
	mu       sync.Mutex
	err      error
	connects int
	closes   int
}

func (f *fakeSession) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.err
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// runBatch executes cmd and returns every message it produced, skipping
// spinner ticks.
func runBatch(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			if c == nil {
				continue
			}
			switch inner := c().(type) {
			case connectDoneMsg, closeDoneMsg:
				out = append(out, inner)
			}
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestNewModel(t *testing.T) {
	m := NewModel(t.Context(), &fakeSession{}, 200)
	assert.False(t, m.connected)
	assert.Equal(t, heartbeat.Placeholder, m.rate)
	assert.Contains(t, m.View(), "Disconnected")
	assert.Contains(t, m.View(), heartbeat.Placeholder)
}

func TestConnectKey(t *testing.T) {
	sess := &fakeSession{}
	m := NewModel(t.Context(), sess, 200)

	m, cmd := update(t, m, keyPress('c'))
	assert.True(t, m.connecting)
	assert.Contains(t, m.View(), "Connecting...")
	require.NotNil(t, cmd)

	msgs := runBatch(cmd)
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, sess.connects)

	// A second press while connecting does nothing.
	_, cmd = update(t, m, keyPress('c'))
	assert.Nil(t, cmd)

	m, _ = update(t, m, connectedMsg(true))
	m, _ = update(t, m, msgs[0])
	assert.False(t, m.connecting)
	assert.True(t, m.connected)
	assert.Contains(t, m.View(), "Connected")
}

func TestConnectFailureShowsRetry(t *testing.T) {
	m := NewModel(t.Context(), &fakeSession{}, 200)
	m, _ = update(t, m, keyPress('c'))

	m, _ = update(t, m, displayErrMsg{err: errors.New("timeout")})
	m, _ = update(t, m, connectDoneMsg{err: errors.New("connect: timeout")})

	assert.False(t, m.connecting)
	assert.False(t, m.connected)
	assert.Equal(t, "timeout", m.errorMsg)
	assert.Contains(t, m.View(), "'c' to retry")
}

func TestConnectDoneIgnoresAlreadyConnected(t *testing.T) {
	m := NewModel(t.Context(), &fakeSession{}, 200)
	m, _ = update(t, m, connectDoneMsg{err: heartbeat.ErrAlreadyConnected})
	assert.Empty(t, m.errorMsg)
}

func TestConnectDoneIgnoresClosedAttempt(t *testing.T) {
	m := NewModel(t.Context(), &fakeSession{}, 200)

	// c, d while connecting, then c again: the first attempt reports last.
	m, _ = update(t, m, keyPress('c'))
	m, _ = update(t, m, closeDoneMsg{})
	m, _ = update(t, m, keyPress('c'))
	require.True(t, m.connecting)

	m, _ = update(t, m, connectDoneMsg{err: heartbeat.ErrClosed})
	assert.True(t, m.connecting, "newer attempt still running")
	assert.Empty(t, m.errorMsg)
}

func TestDisplayUpdates(t *testing.T) {
	m := NewModel(t.Context(), &fakeSession{}, 200)
	m, _ = update(t, m, connectedMsg(true))

	m, _ = update(t, m, statusTextMsg("Measuring ..."))
	m, _ = update(t, m, rateTextMsg("100"))
	assert.Equal(t, "Measuring ...", m.status)
	assert.Equal(t, "100", m.rate)
	assert.InDelta(t, 0.5, m.gauge.Percent(), 1e-9)

	view := m.View()
	assert.Contains(t, view, "Measuring ...")
	assert.Contains(t, view, "100")
	assert.Contains(t, view, "bpm")

	m, _ = update(t, m, rateTextMsg(heartbeat.Placeholder))
	assert.Zero(t, m.gauge.Percent())
	assert.NotContains(t, m.View(), "bpm")
}

func TestDisconnectKey(t *testing.T) {
	sess := &fakeSession{}
	m := NewModel(t.Context(), sess, 200)

	_, cmd := update(t, m, keyPress('d'))
	assert.Nil(t, cmd, "nothing to tear down")

	m, _ = update(t, m, connectedMsg(true))
	_, cmd = update(t, m, keyPress('d'))
	require.NotNil(t, cmd)
	assert.Equal(t, closeDoneMsg{}, cmd())
	assert.Equal(t, 1, sess.closes)
}

func TestQuitKey(t *testing.T) {
	m := NewModel(t.Context(), &fakeSession{}, 200)
	_, cmd := update(t, m, keyPress('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestHelpKey(t *testing.T) {
	m := NewModel(t.Context(), &fakeSession{}, 200)
	m, _ = update(t, m, keyPress('?'))
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "disconnect")
}

func TestGauge(t *testing.T) {
	g := NewGauge(200)
	for _, tt := range []struct {
		text string
		want float64
	}{
		{"50", 0.25},
		{"72.5", 0.3625},
		{"400", 1},
		{"0", 0},
		{"-5", 0},
		{heartbeat.Placeholder, 0},
		{"NaN", 0},
	} {
		g.Set(tt.text)
		assert.InDelta(t, tt.want, g.Percent(), 1e-9, tt.text)
	}

	assert.Zero(t, NewGauge(0).Percent())
}

func TestSinkDropsUntilAttached(t *testing.T) {
	s := NewSink()
	assert.NotPanics(t, func() { s.SetStatus("ignored") })

	var got []tea.Msg
	s.send = func(msg tea.Msg) { got = append(got, msg) }

	s.SetConnected(true)
	s.SetStatus("Keep sensor still")
	s.SetHeartRate("64")
	errLost := errors.New("lost")
	s.SetError(errLost)

	assert.Equal(t, []tea.Msg{
		connectedMsg(true),
		statusTextMsg("Keep sensor still"),
		rateTextMsg("64"),
		displayErrMsg{err: errLost},
	}, got)
}
