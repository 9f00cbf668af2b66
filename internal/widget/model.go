// Package widget is the terminal chat widget: it collects input, drives a
// conversation controller one turn at a time and renders the transcript.
package widget

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
)

// reservedRows is the input line, the separator and the status line.
const reservedRows = 3

// completionMsg carries the outcome of one completion call back into Update.
type completionMsg struct {
	turn    *conversation.Turn
	outcome conversation.Outcome
}

// Model is the bubbletea model of the chat widget.
type Model struct {
	ctx       context.Context
	ctrl      *conversation.Controller
	completer conversation.Completer
	theme     Theme

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	err    error
	width  int
	height int
}

// NewModel builds a widget over ctrl. Completion calls run under ctx.
func NewModel(ctx context.Context, ctrl *conversation.Controller, completer conversation.Completer) Model {
	input := textinput.New()
	input.Placeholder = "Write your message ..."
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:       ctx,
		ctrl:      ctrl,
		completer: completer,
		theme:     DefaultTheme(),
		input:     input,
		viewport:  viewport.New(80, 20),
		spinner:   sp,
		width:     80,
		height:    20 + reservedRows,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-reservedRows)
		m.input.Width = max(1, msg.Width-len(m.input.Prompt)-1)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case completionMsg:
		if _, err := m.ctrl.Resolve(msg.turn, msg.outcome); err != nil {
			log.Warn().Err(err).Str("component", "widget").Msg("turn failed")
			m.err = err
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.IsBusy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a turn for the current input. Empty input and input typed
// while a reply is pending are ignored.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if conversation.ValidateInput(text) != nil || m.ctrl.IsBusy() {
		return m, nil
	}

	turn, err := m.ctrl.Start(text)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	m.input.Reset()
	m.refresh()

	return m, tea.Batch(m.spinner.Tick, m.awaitReply(turn))
}

func (m Model) awaitReply(turn *conversation.Turn) tea.Cmd {
	ctx, completer := m.ctx, m.completer
	return func() tea.Msg {
		raw, err := completer.Complete(ctx, turn.Request)
		if err != nil {
			return completionMsg{turn: turn, outcome: conversation.Failure(err)}
		}
		return completionMsg{turn: turn, outcome: conversation.Success(raw)}
	}
}

// refresh re-renders the transcript into the viewport and keeps it scrolled
// to the newest message.
func (m *Model) refresh() {
	content := m.theme.RenderTranscript(m.ctrl.Transcript(), m.width)
	if m.ctrl.IsBusy() {
		content += "\n\n" + m.theme.RenderLoading(m.spinner.View())
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.theme.Separator.Render(strings.Repeat("─", max(1, m.width))))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) statusLine() string {
	if m.err != nil {
		return m.theme.Error.Render("error: " + m.err.Error() + " (press enter to try again)")
	}
	if m.ctrl.IsBusy() {
		return m.theme.Help.Render("waiting for a reply...")
	}
	return m.theme.Help.Render("enter send • pgup/pgdn scroll • esc quit")
}

// Err returns the last turn error shown in the status line.
func (m Model) Err() error { return m.err }
