package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/apsta/internal/radio"
	"github.com/muurk/apsta/internal/server"
	"github.com/muurk/apsta/internal/wifi"
)

const (
	// maxEventLines is how many recent events the monitor lists.
	maxEventLines = 12

	// DefaultReconnectDelay is the wait before reopening a lost stream.
	DefaultReconnectDelay = 2 * time.Second
)

// EventStream yields event messages until it fails or is closed.
type EventStream interface {
	Next() (server.Message, error)
	Close() error
}

// Feed supplies the monitor with a status snapshot and an event stream.
type Feed interface {
	Status(ctx context.Context) (*server.StatusResponse, error)
	Open(ctx context.Context, since uint64) (EventStream, error)
}

// HTTPFeed reads from a status server.
type HTTPFeed struct {
	BaseURL string
}

// Status implements Feed.
func (f HTTPFeed) Status(ctx context.Context) (*server.StatusResponse, error) {
	return server.FetchStatus(ctx, f.BaseURL)
}

// Open implements Feed.
func (f HTTPFeed) Open(ctx context.Context, since uint64) (EventStream, error) {
	stream, err := server.DialEvents(ctx, f.BaseURL, since)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Messages
type (
	statusMsg       struct{ status *server.StatusResponse }
	streamOpenedMsg struct{ stream EventStream }
	eventMsg        struct{ msg server.Message }
	feedErrMsg      struct{ err error }
	reconnectMsg    struct{}
)

// monitorKeyMap defines key bindings for the monitor
type monitorKeyMap struct {
	Clear key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Clear, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Clear, k.Help, k.Quit}}
}

// StationView is the monitor's copy of the manager state, rebuilt from the
// status snapshot and kept current by events.
type StationView struct {
	Role        radio.Role
	State       wifi.State
	Attempts    uint32
	MaxAttempts uint32
	LastReason  radio.Reason
	Address     string
	SSID        string
	Peers       []string
	Version     string
}

// Apply folds one event into the view.
func (v *StationView) Apply(e wifi.Event) {
	v.State = e.State
	switch e.Kind {
	case wifi.EventRoleStarted:
		v.Role = e.Role
		v.Attempts = 0
		v.Peers = nil
		v.Address = ""
	case wifi.EventRoleStopped:
		v.Role = radio.RoleIdle
		v.Peers = nil
		v.Address = ""
	case wifi.EventAssociated:
		v.Attempts = 0
	case wifi.EventAddressAcquired:
		v.Address = e.Addr
	case wifi.EventDisassociated:
		v.LastReason = e.Reason
		v.Address = ""
	case wifi.EventReconnecting:
		v.Attempts = e.Attempt
	case wifi.EventPeerJoined:
		v.addPeer(e.Peer)
	case wifi.EventPeerLeft:
		v.removePeer(e.Peer)
	}
}

func (v *StationView) addPeer(mac string) {
	for _, p := range v.Peers {
		if p == mac {
			return
		}
	}
	v.Peers = append(v.Peers, mac)
	sort.Strings(v.Peers)
}

func (v *StationView) removePeer(mac string) {
	out := v.Peers[:0]
	for _, p := range v.Peers {
		if p != mac {
			out = append(out, p)
		}
	}
	v.Peers = out
}

func viewFromStatus(s *server.StatusResponse) StationView {
	return StationView{
		Role:        s.Role,
		State:       s.State,
		Attempts:    s.Attempts,
		MaxAttempts: s.MaxAttempts,
		LastReason:  s.LastReason,
		Address:     s.Address,
		SSID:        s.SSID,
		Peers:       append([]string(nil), s.Peers...),
		Version:     s.Version.Version,
	}
}

// MonitorModel is the live status screen.
type MonitorModel struct {
	feed   Feed
	ctx    context.Context
	target string

	Station   StationView
	Events    []server.Message
	LastSeq   uint64
	Connected bool
	Err       error

	stream         EventStream
	reconnectDelay time.Duration

	Width   int
	Height  int
	Spinner spinner.Model
	Help    help.Model
	Keys    monitorKeyMap
}

// NewMonitorModel creates a monitor reading from feed. target is shown in
// the title.
func NewMonitorModel(ctx context.Context, feed Feed, target string) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	width, height := GetTerminalSize()

	return MonitorModel{
		feed:           feed,
		ctx:            ctx,
		target:         target,
		reconnectDelay: DefaultReconnectDelay,
		Width:          width,
		Height:         height,
		Spinner:        s,
		Help:           help.New(),
		Keys: monitorKeyMap{
			Clear: key.NewBinding(
				key.WithKeys("c"),
				key.WithHelp("c", "clear events"),
			),
			Help: key.NewBinding(
				key.WithKeys("?"),
				key.WithHelp("?", "toggle help"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

// SetReconnectDelay changes the wait before a lost stream is reopened.
func (m *MonitorModel) SetReconnectDelay(d time.Duration) {
	m.reconnectDelay = d
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), m.Spinner.Tick)
}

func (m MonitorModel) fetchStatus() tea.Cmd {
	feed, ctx := m.feed, m.ctx
	return func() tea.Msg {
		status, err := feed.Status(ctx)
		if err != nil {
			return feedErrMsg{err: err}
		}
		return statusMsg{status: status}
	}
}

func (m MonitorModel) openStream(since uint64) tea.Cmd {
	feed, ctx := m.feed, m.ctx
	return func() tea.Msg {
		stream, err := feed.Open(ctx, since)
		if err != nil {
			return feedErrMsg{err: err}
		}
		return streamOpenedMsg{stream: stream}
	}
}

func waitForEvent(stream EventStream) tea.Cmd {
	return func() tea.Msg {
		msg, err := stream.Next()
		if err != nil {
			return feedErrMsg{err: err}
		}
		return eventMsg{msg: msg}
	}
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			m.closeStream()
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Clear):
			m.Events = nil
		case key.Matches(msg, m.Keys.Help):
			m.Help.ShowAll = !m.Help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		m.Height = msg.Height
		m.Help.Width = msg.Width
		return m, nil

	case statusMsg:
		m.Station = viewFromStatus(msg.status)
		m.LastSeq = msg.status.Seq
		m.Err = nil
		return m, m.openStream(m.LastSeq)

	case streamOpenedMsg:
		m.stream = msg.stream
		m.Connected = true
		m.Err = nil
		return m, waitForEvent(msg.stream)

	case eventMsg:
		if msg.msg.Seq <= m.LastSeq {
			return m, waitForEvent(m.stream)
		}
		m.LastSeq = msg.msg.Seq
		m.Station.Apply(msg.msg.Event)
		m.Events = append(m.Events, msg.msg)
		if len(m.Events) > maxEventLines {
			m.Events = m.Events[len(m.Events)-maxEventLines:]
		}
		return m, waitForEvent(m.stream)

	case feedErrMsg:
		m.Err = msg.err
		m.Connected = false
		m.closeStream()
		return m, tea.Tick(m.reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, m.fetchStatus()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *MonitorModel) closeStream() {
	if m.stream != nil {
		_ = m.stream.Close()
		m.stream = nil
	}
}

// View implements tea.Model
func (m MonitorModel) View() string {
	width := clampWidth(m.Width)
	var b strings.Builder

	b.WriteString(HeaderTitleStyle.Render("APSTA MONITOR"))
	b.WriteString("  ")
	b.WriteString(HeaderCommandStyle.Render(m.target))
	b.WriteString("\n\n")

	switch {
	case m.Connected:
		b.WriteString(lipgloss.NewStyle().Foreground(SuccessColor).PaddingLeft(2).Render("● live"))
	case m.Err != nil:
		b.WriteString(ErrorMessageStyle.PaddingLeft(2).Render(fmt.Sprintf("%s %v (retrying)", FailureMarker, m.Err)))
	default:
		b.WriteString("  " + m.Spinner.View() + " connecting")
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderState())
	b.WriteString("\n")
	b.WriteString(RenderHorizontalDivider(width-4, "─"))
	b.WriteString("\n")
	b.WriteString(m.renderEvents())
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(m.Help.View(m.Keys)))
	return b.String()
}

func (m MonitorModel) renderState() string {
	v := m.Station
	rows := []Param{
		{Key: "Role", Value: v.Role.String()},
		{Key: "State", Value: StateStyle(v.State).Render(v.State.String())},
	}
	if v.SSID != "" {
		rows = append(rows, Param{Key: "SSID", Value: v.SSID})
	}
	if v.Role == radio.RoleStation {
		rows = append(rows, Param{Key: "Attempts", Value: fmt.Sprintf("%d/%d", v.Attempts, v.MaxAttempts)})
	}
	if v.Address != "" {
		rows = append(rows, Param{Key: "Address", Value: v.Address})
	}
	if v.LastReason != 0 {
		rows = append(rows, Param{Key: "Last reason", Value: v.LastReason.String()})
	}
	if v.Role == radio.RoleAccessPoint {
		peers := "none"
		if len(v.Peers) > 0 {
			peers = strings.Join(v.Peers, ", ")
		}
		rows = append(rows, Param{Key: "Clients", Value: peers})
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, ResultKeyStyle.Render("  "+r.Key+":")+" "+ResultValueStyle.Render(r.Value))
	}
	return strings.Join(lines, "\n")
}

func (m MonitorModel) renderEvents() string {
	if len(m.Events) == 0 {
		return EventTimeStyle.PaddingLeft(2).Render("no events yet")
	}
	lines := make([]string, 0, len(m.Events))
	for _, msg := range m.Events {
		lines = append(lines, "  "+
			EventTimeStyle.Render(msg.Event.Time.Local().Format("15:04:05.000"))+" "+
			EventKindStyle.Render(string(msg.Event.Kind))+" "+
			DescribeEvent(msg.Event))
	}
	return strings.Join(lines, "\n")
}

// DescribeEvent renders the kind-specific detail of an event.
func DescribeEvent(e wifi.Event) string {
	switch e.Kind {
	case wifi.EventRoleStarted, wifi.EventRoleStopped:
		return e.Role.String()
	case wifi.EventStateChanged:
		s := e.State.String()
		if e.Previous != nil {
			s = e.Previous.String() + " → " + s
		}
		if e.Reason != 0 {
			s += " (" + e.Reason.String() + ")"
		}
		return s
	case wifi.EventDisassociated:
		s := e.Reason.String()
		if e.Retrying {
			s += fmt.Sprintf(", retry %d in %s", e.Attempt, time.Duration(e.DelayMS)*time.Millisecond)
		}
		return s
	case wifi.EventReconnecting:
		return fmt.Sprintf("attempt %d", e.Attempt)
	case wifi.EventAddressAcquired:
		return e.Addr
	case wifi.EventOutcome:
		return e.Outcome
	case wifi.EventConnectResult:
		s := fmt.Sprintf("%s after %s", e.Outcome, time.Duration(e.DurationMS)*time.Millisecond)
		if e.TimedOut {
			s += " (timed out)"
		}
		return s
	case wifi.EventPeerJoined, wifi.EventPeerLeft:
		return e.Peer
	default:
		return ""
	}
}
