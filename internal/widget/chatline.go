package widget

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// Theme holds the styles used to render message lines.
type Theme struct {
	BotName   lipgloss.Style
	BotText   lipgloss.Style
	UserName  lipgloss.Style
	UserText  lipgloss.Style
	Loading   lipgloss.Style
	Error     lipgloss.Style
	Separator lipgloss.Style
	Help      lipgloss.Style
}

// DefaultTheme mirrors the web widget: grey bubbles for the bot, blue for the user.
func DefaultTheme() Theme {
	return Theme{
		BotName:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245")),
		BotText:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		UserName:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")),
		UserText:  lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		Loading:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		Help:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func speakerLabel(who chat.Speaker) string {
	if who == chat.SpeakerUser {
		return "You"
	}
	return "AI"
}

// RenderLine renders one message. User lines are right-aligned within width.
func (t Theme) RenderLine(msg chat.Message, width int) string {
	label := speakerLabel(msg.Who)
	text := msg.Message
	if width > 4 {
		text = lipgloss.NewStyle().Width(width - 2).Render(text)
	}

	var block string
	if msg.Who == chat.SpeakerUser {
		block = lipgloss.JoinVertical(lipgloss.Right, t.UserName.Render(label), t.UserText.Render(text))
		if width > 0 {
			block = lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
		}
	} else {
		block = lipgloss.JoinVertical(lipgloss.Left, t.BotName.Render(label), t.BotText.Render(text))
	}
	return block
}

// RenderTranscript renders every message separated by blank lines.
func (t Theme) RenderTranscript(messages []chat.Message, width int) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, t.RenderLine(msg, width))
	}
	return strings.Join(lines, "\n\n")
}

// RenderLoading renders the placeholder line shown while a reply is pending.
func (t Theme) RenderLoading(indicator string) string {
	return t.BotName.Render("AI") + "\n" + t.Loading.Render(indicator+" thinking...")
}

// PlainLine renders a message without styling, for line mode.
func PlainLine(msg chat.Message) string {
	return speakerLabel(msg.Who) + ": " + msg.Message
}
