package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pairline/pairline/internal/protocol"
	"github.com/pairline/pairline/internal/session"
)

const chatHistoryLimit = 200

type chatLine struct {
	author string
	text   string
	mine   bool
	system bool

	// raw lines are pre-rendered blocks, printed as-is.
	raw bool
}

// sessionEventMsg wraps a controller event for the Bubble Tea loop.
type sessionEventMsg struct{ ev session.Event }

// sessionClosedMsg means the controller stopped.
type sessionClosedMsg struct{}

// ChatModel is the Bubble Tea model for an interactive chat session. It
// issues commands to the controller and renders its event stream.
type ChatModel struct {
	ctrl   *session.Controller
	events <-chan session.Event

	profile protocol.Profile
	state   session.State
	peer    *protocol.PeerInfo
	status  string

	lines   []chatLine
	input   textinput.Model
	spinner spinner.Model

	width    int
	quitting bool
}

// NewChatModel creates a chat model driving the given controller. The
// controller must already be running; the profile is re-sent after a
// successful reconnect.
func NewChatModel(ctrl *session.Controller, profile protocol.Profile) *ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 500
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &ChatModel{
		ctrl:    ctrl,
		events:  ctrl.Events(),
		profile: profile,
		state:   session.StateIdle,
		status:  "Connecting...",
		input:   ti,
		spinner: s,
		width:   80,
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForEvent())
}

func (m *ChatModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return sessionClosedMsg{}
		}
		return sessionEventMsg{ev: ev}
	}
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.ctrl.Close()
			return m, tea.Quit

		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" && m.peer != nil {
				m.ctrl.SendMessage(text)
				m.appendLine(chatLine{author: m.profile.FullName, text: text, mine: true})
				m.input.Reset()
			}

		case "ctrl+n":
			// Next: leave the current peer and search again. Ignored in
			// states where a new search cannot be issued.
			switch m.state {
			case session.StateCallConnecting, session.StateCallConnected:
				m.ctrl.EndCall()
				m.ctrl.FindMatch()
				m.appendSystem("Searching for a new match...")
			case session.StateRegistered, session.StateWaiting, session.StateError, session.StateCallEnded:
				m.ctrl.FindMatch()
				m.appendSystem("Searching for a new match...")
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-10)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case sessionEventMsg:
		m.handleEvent(msg.ev)
		cmds = append(cmds, m.waitForEvent())

	case sessionClosedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *ChatModel) handleEvent(ev session.Event) {
	switch ev := ev.(type) {
	case session.StateChanged:
		m.state = ev.To
		switch ev.To {
		case session.StateIdle:
			// A fresh connection means a fresh session; register again.
			m.status = "Reconnected, registering again..."
			m.ctrl.Register(m.profile)
		case session.StateSearching:
			m.status = "Searching for a match..."
		case session.StateWaiting:
			m.status = "Waiting for someone to show up..."
		case session.StateCallConnecting:
			m.status = "Setting up the call..."
		case session.StateDisconnected:
			m.status = "Disconnected."
		}

	case session.Registered:
		m.status = fmt.Sprintf("Registered as %s. Searching...", ev.Ack.FullName)
		m.ctrl.FindMatch()

	case session.Matched:
		peer := ev.Peer
		m.peer = &peer
		m.status = fmt.Sprintf("Chatting with %s", peer.FullName)
		m.appendLine(chatLine{text: PeerCardView(peer), raw: true})

	case session.ChatMessage:
		author := "Peer"
		if m.peer != nil {
			author = m.peer.FullName
		}
		m.appendLine(chatLine{author: author, text: ev.Text})

	case session.CallConnected:
		m.appendSystem(IconCall + " Call connected")
		m.status = "In call"

	case session.CallEnded:
		m.appendSystem(fmt.Sprintf("%s Call ended (%s)", IconBye, ev.Reason))

	case session.PeerDisconnected:
		m.appendSystem(IconWarning + " Your peer disconnected. Press ctrl+n to search again.")
		m.peer = nil
		m.status = "Peer left."

	case session.Reconnecting:
		m.status = fmt.Sprintf("Connection lost, reconnecting (%d/%d)...", ev.Attempt, ev.Max)

	case session.Errored:
		m.appendSystem(IconError + " " + ev.Err.Error())
	}
}

func (m *ChatModel) appendLine(line chatLine) {
	m.lines = append(m.lines, line)
	if len(m.lines) > chatHistoryLimit {
		m.lines = m.lines[len(m.lines)-chatHistoryLimit:]
	}
}

func (m *ChatModel) appendSystem(text string) {
	m.appendLine(chatLine{text: text, system: true})
}

func (m *ChatModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(HeaderStyle.Render(IconChat+" Pairline") + "\n")

	switch m.state {
	case session.StateSearching, session.StateWaiting, session.StateCallConnecting:
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), m.status))
	default:
		b.WriteString(MutedStyle.Render(m.status) + "\n\n")
	}

	for _, line := range m.lines {
		b.WriteString(m.renderLine(line) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(FooterStyle.Render("enter: send • ctrl+n: next match • esc: quit"))

	return b.String()
}

func (m *ChatModel) renderLine(line chatLine) string {
	if line.raw {
		return line.text
	}
	if line.system {
		return SystemLineStyle.Render(line.text)
	}
	style := PeerNameStyle
	if line.mine {
		style = SelfNameStyle
	}
	return fmt.Sprintf("%s %s", style.Render(line.author+":"), line.text)
}
