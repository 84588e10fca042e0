package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/koscakluka/ema-voiceloop/core"
	"github.com/koscakluka/ema-voiceloop/core/conversations"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("#3C3C3C")).Padding(0, 1)
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true)
	partialStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type (
	turnMsg       struct{ turn conversations.Turn }
	stateMsg      struct{ to orchestration.State }
	transcriptMsg struct{ transcript string }
	connectionMsg struct{ connected bool }
	errorMsg      struct {
		kind    orchestration.ErrorKind
		message string
	}
	// commandMsg carries the result of a command run off the UI loop.
	commandMsg struct {
		start bool
		err   error
	}
)

type line struct {
	style lipgloss.Style
	label string
	text  string
}

type model struct {
	orchestrator  *orchestration.Orchestrator
	defaultPrompt string

	viewport viewport.Model
	input    textinput.Model
	ready    bool

	lines      []line
	partial    string
	state      orchestration.State
	connected  bool
	started    bool
	lastNotice string
}

func newModel(orchestrator *orchestration.Orchestrator, defaultPrompt string) model {
	input := textinput.New()
	input.Placeholder = "system prompt, then Enter to start"
	if defaultPrompt != "" {
		input.Placeholder = defaultPrompt
	}
	input.Focus()

	return model{orchestrator: orchestrator, defaultPrompt: defaultPrompt, input: input}
}

// callbacks forwards orchestrator events into the program. They run on the
// orchestrator's dispatcher goroutine, so they only ever call Send.
func (m model) callbacks(program *tea.Program) []orchestration.OrchestrateOption {
	return []orchestration.OrchestrateOption{
		orchestration.WithTurnAppendedCallback(func(turn conversations.Turn) { program.Send(turnMsg{turn: turn}) }),
		orchestration.WithStateChangedCallback(func(_, to orchestration.State) { program.Send(stateMsg{to: to}) }),
		orchestration.WithTranscriptCallback(func(transcript string) { program.Send(transcriptMsg{transcript: transcript}) }),
		orchestration.WithConnectionChangedCallback(func(connected bool) { program.Send(connectionMsg{connected: connected}) }),
		orchestration.WithErrorRaisedCallback(func(kind orchestration.ErrorKind, message string) {
			program.Send(errorMsg{kind: kind, message: message})
		}),
	}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+s":
			return m, m.run(false, func() error { m.orchestrator.Stop(); return nil })
		case "ctrl+n":
			m.started = false
			m.input.Placeholder = "system prompt, then Enter to start"
			return m, m.run(false, func() error { m.orchestrator.Stop(); return nil })
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if !m.started {
				if text == "" {
					text = m.defaultPrompt
				}
				m.started = true
				m.input.Placeholder = "type a message, or just talk"
				return m, m.run(true, func() error { return m.orchestrator.Start(text) })
			}
			return m, m.run(false, func() error { return m.orchestrator.SendText(text) })
		}

	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.input.Width = msg.Width - 4
		m.refresh()

	case turnMsg:
		m.lines = append(m.lines, turnLine(msg.turn))
		m.refresh()

	case stateMsg:
		m.state = msg.to
		if msg.to == orchestration.StateIdle && !m.orchestrator.ListeningIntent() {
			m.lastNotice = "stopped listening; Enter sends text, ctrl+n starts over"
		} else {
			m.lastNotice = ""
		}

	case transcriptMsg:
		m.partial = msg.transcript
		m.refresh()

	case connectionMsg:
		m.connected = msg.connected

	case errorMsg:
		m.lines = append(m.lines, line{style: errorStyle, label: string(msg.kind), text: msg.message})
		m.refresh()

	case commandMsg:
		// a rejected start leaves the prompt to be entered again
		if msg.start && msg.err != nil && !errors.Is(msg.err, orchestration.ErrSessionActive) {
			m.started = false
			m.input.Placeholder = "system prompt, then Enter to start"
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// run keeps blocking orchestrator calls off the UI loop.
func (m model) run(start bool, command func() error) tea.Cmd {
	return func() tea.Msg { return commandMsg{start: start, err: command()} }
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.contentView())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.headerView(), m.viewport.View(), m.footerView())
}

func (m model) headerView() string {
	title := titleStyle.Render("ema voiceloop")
	connection := "offline"
	if m.connected {
		connection = "connected"
	}
	status := statusStyle.Render(fmt.Sprintf("%s | %s", m.state, connection))
	gap := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title)-lipgloss.Width(status)))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, gap, status)
}

func (m model) footerView() string {
	help := partialStyle.Render("enter send • ctrl+s stop • ctrl+n new session • ctrl+c quit")
	if m.lastNotice != "" {
		help = partialStyle.Render(m.lastNotice)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.input.View(), help)
}

func (m model) contentView() string {
	width := max(m.viewport.Width-2, 10)

	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(wordwrap.String(l.style.Render(l.label+":")+" "+l.text, width))
		b.WriteString("\n\n")
	}
	if m.partial != "" {
		b.WriteString(wordwrap.String(partialStyle.Render("… "+m.partial), width))
		b.WriteString("\n")
	}
	return b.String()
}

func turnLine(turn conversations.Turn) line {
	switch turn.Role {
	case conversations.RoleSystemPrompt:
		return line{style: systemStyle, label: "system", text: turn.Text}
	case conversations.RoleUser:
		return line{style: userStyle, label: "you", text: turn.Text}
	default:
		text := turn.Text
		if turn.HasAudio() {
			text += " ♪"
		}
		return line{style: assistantStyle, label: "assistant", text: text}
	}
}
