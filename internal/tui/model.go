package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vitaminmoo/ble-heartbeat/internal/heartbeat"
)

// Connector is the part of heartbeat.Session the model drives.
type Connector interface {
	Connect(ctx context.Context) error
	Close() error
}

// Model is the main Bubbletea model for the TUI.
type Model struct {
	ctx     context.Context
	session Connector
	width   int

	// Display state, written by the Sink
	connected  bool
	connecting bool
	status     string
	rate       string
	errorMsg   string

	// Components
	gauge   Gauge
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	styles  Styles
}

// connectDoneMsg signals the end of a connection attempt. The session has
// already reported the outcome through the Sink.
type connectDoneMsg struct {
	err error
}

// closeDoneMsg signals the session was torn down.
type closeDoneMsg struct {
	err error
}

// NewModel creates a new TUI model driving session. ctx bounds every
// connection attempt.
func NewModel(ctx context.Context, session Connector, maxBPM int) Model {
	h := help.New()
	h.ShowAll = false

	s := spinner.New()
	s.Spinner = spinner.Pulse
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	return Model{
		ctx:     ctx,
		session: session,
		rate:    heartbeat.Placeholder,
		gauge:   NewGauge(maxBPM),
		keys:    DefaultKeyMap(),
		help:    h,
		spinner: s,
		styles:  DefaultStyles(),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func connectCmd(ctx context.Context, session Connector) tea.Cmd {
	return func() tea.Msg {
		return connectDoneMsg{err: session.Connect(ctx)}
	}
}

func closeCmd(session Connector) tea.Cmd {
	return func() tea.Msg {
		return closeDoneMsg{err: session.Close()}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		if w := msg.Width - 20; w > 10 && w < 60 {
			m.gauge.SetWidth(w)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.connected = bool(msg)
		if m.connected {
			m.connecting = false
			m.errorMsg = ""
		}
		return m, nil

	case statusTextMsg:
		m.status = string(msg)
		return m, nil

	case rateTextMsg:
		m.rate = string(msg)
		m.gauge.Set(m.rate)
		return m, nil

	case displayErrMsg:
		if msg.err != nil {
			m.errorMsg = msg.err.Error()
		}
		return m, nil

	case connectDoneMsg:
		// A closed attempt finishes after the user moved on.
		if errors.Is(msg.err, heartbeat.ErrClosed) {
			return m, nil
		}
		m.connecting = false
		if msg.err != nil && m.errorMsg == "" && !errors.Is(msg.err, heartbeat.ErrAlreadyConnected) {
			m.errorMsg = msg.err.Error()
		}
		return m, nil

	case closeDoneMsg:
		m.connecting = false
		if msg.err != nil {
			m.errorMsg = msg.err.Error()
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Connect):
		if m.connected || m.connecting {
			return m, nil
		}
		m.connecting = true
		m.errorMsg = ""
		return m, tea.Batch(connectCmd(m.ctx, m.session), m.spinner.Tick)

	case key.Matches(msg, m.keys.Disconnect):
		if !m.connected && !m.connecting {
			return m, nil
		}
		return m, closeCmd(m.session)
	}

	return m, nil
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar("Heart Rate"))
	b.WriteString("\n")

	if m.errorMsg != "" {
		b.WriteString(m.styles.Error.Render(m.errorMsg))
		if !m.connected {
			b.WriteString("  ")
			connectKey := m.keys.Connect.Help().Key
			b.WriteString(m.styles.Muted.Render(fmt.Sprintf("['%s' to retry]", connectKey)))
		}
		b.WriteString("\n")
	}

	var body strings.Builder
	body.WriteString(m.renderField("Status", m.styles.Value.Render(m.status)))
	rate := m.styles.Muted.Render(m.rate)
	if m.rate != heartbeat.Placeholder {
		rate = m.styles.Rate.Render(m.rate) + m.styles.Muted.Render(" bpm")
	}
	body.WriteString(m.renderField("Heart rate", rate))
	body.WriteString("\n")
	body.WriteString(m.gauge.View())
	b.WriteString(m.styles.Content.Render(body.String()))

	helpView := m.styles.Help.Render(m.help.View(m.keys))

	return m.styles.App.Render(
		b.String() + "\n" + helpView,
	)
}

// renderTitleBar renders the title with the connection indicator.
func (m Model) renderTitleBar(title string) string {
	parts := []string{m.styles.Title.Render(title)}

	switch {
	case m.connecting:
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render("Connecting..."))
	case m.connected:
		parts = append(parts, m.styles.StatusOnline.Render("● Connected"))
	default:
		parts = append(parts, m.styles.StatusOffline.Render("○ Disconnected"))
	}

	return strings.Join(parts, "  ")
}

func (m Model) renderField(label, value string) string {
	return m.styles.Label.Render(label) + value + "\n"
}
