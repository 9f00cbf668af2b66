package widget

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
)

func echoCompleter(reply string) conversation.Completer {
	return conversation.CompleterFunc(func(context.Context, chat.CompletionRequest) (string, error) {
		return reply, nil
	})
}

func newTestModel(completer conversation.Completer) (Model, *conversation.Controller) {
	ctrl := conversation.NewController("user-1", chat.Seed()...)
	m := NewModel(context.Background(), ctrl, completer)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), ctrl
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return updated.(Model)
}

func pressEnter(m Model) (Model, tea.Cmd) {
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model), cmd
}

// findCompletion runs cmd (expanding batches) and returns the completion
// message it produces.
func findCompletion(t *testing.T, cmd tea.Cmd) completionMsg {
	t.Helper()
	require.NotNil(t, cmd)
	switch msg := cmd().(type) {
	case completionMsg:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if done, ok := c().(completionMsg); ok {
				return done
			}
		}
	}
	t.Fatal("no completion message produced")
	return completionMsg{}
}

func TestModelShowsGreeting(t *testing.T) {
	m, _ := newTestModel(echoCompleter("ok"))
	assert.Contains(t, m.View(), chat.Greeting)
	assert.Contains(t, m.View(), "Write your message")
}

func TestEnterIgnoresEmptyInput(t *testing.T) {
	m, ctrl := newTestModel(echoCompleter("ok"))
	m = typeText(t, m, "   ")

	m, cmd := pressEnter(m)
	assert.Nil(t, cmd)
	assert.False(t, ctrl.IsBusy())
	assert.Equal(t, 1, ctrl.Len())
}

func TestSubmitRunsOneTurn(t *testing.T) {
	m, ctrl := newTestModel(echoCompleter("  4  "))
	m = typeText(t, m, "What is 2+2?")

	m, cmd := pressEnter(m)
	require.True(t, ctrl.IsBusy())
	assert.Empty(t, m.input.Value())
	assert.Equal(t, 2, ctrl.Len())
	assert.Contains(t, m.View(), "thinking")

	done := findCompletion(t, cmd)
	assert.Equal(t, []chat.Message{chat.Seed()[0], chat.UserMessage("What is 2+2?")}, done.turn.Request.Messages)

	updated, _ := m.Update(done)
	m = updated.(Model)
	assert.False(t, ctrl.IsBusy())
	require.Equal(t, 3, ctrl.Len())
	assert.Equal(t, chat.BotMessage("4"), ctrl.Transcript()[2])
	assert.NotContains(t, m.View(), "thinking")
}

func TestEnterIgnoredWhileBusy(t *testing.T) {
	m, ctrl := newTestModel(echoCompleter("ok"))
	m = typeText(t, m, "first")
	m, cmd := pressEnter(m)
	require.NotNil(t, cmd)

	m = typeText(t, m, "second")
	m, again := pressEnter(m)
	assert.Nil(t, again)
	assert.Equal(t, 2, ctrl.Len())
	assert.Equal(t, "second", m.input.Value())
}

func TestFailureShowsErrorAndStaysUsable(t *testing.T) {
	calls := 0
	completer := conversation.CompleterFunc(func(context.Context, chat.CompletionRequest) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("connection refused")
		}
		return "back online", nil
	})
	m, ctrl := newTestModel(completer)

	m = typeText(t, m, "hello")
	m, cmd := pressEnter(m)
	updated, _ := m.Update(findCompletion(t, cmd))
	m = updated.(Model)

	require.Error(t, m.Err())
	assert.Contains(t, m.View(), "connection refused")
	assert.False(t, ctrl.IsBusy())
	assert.Equal(t, 2, ctrl.Len())

	m = typeText(t, m, "retry")
	m, cmd = pressEnter(m)
	assert.NoError(t, m.Err())
	updated, _ = m.Update(findCompletion(t, cmd))
	m = updated.(Model)

	assert.NoError(t, m.Err())
	transcript := ctrl.Transcript()
	require.Len(t, transcript, 4)
	assert.Equal(t, chat.BotMessage("back online"), transcript[3])
}

func TestQuitKeys(t *testing.T) {
	m, _ := newTestModel(echoCompleter("ok"))
	for _, key := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		_, cmd := m.Update(tea.KeyMsg{Type: key})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	}
}

func TestRenderLineSpeakers(t *testing.T) {
	theme := DefaultTheme()
	bot := theme.RenderLine(chat.BotMessage("hi there"), 60)
	user := theme.RenderLine(chat.UserMessage("hello"), 60)

	assert.Contains(t, bot, "AI")
	assert.Contains(t, bot, "hi there")
	assert.Contains(t, user, "You")
	assert.Contains(t, user, "hello")
	assert.Equal(t, "You: hello", PlainLine(chat.UserMessage("hello")))
}

func TestRunLines(t *testing.T) {
	ctrl := conversation.NewController("user-1", chat.Seed()...)
	var seen []int
	completer := conversation.CompleterFunc(func(_ context.Context, req chat.CompletionRequest) (string, error) {
		seen = append(seen, len(req.Messages))
		last := req.Messages[len(req.Messages)-1].Message
		if last == "boom" {
			return "", errors.New("upstream down")
		}
		return " echo: " + last + " ", nil
	})

	in := strings.NewReader("hello\n\n   \nboom\nbye\n")
	var out bytes.Buffer
	require.NoError(t, RunLines(context.Background(), ctrl, completer, in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "AI: "+chat.Greeting, lines[0])
	assert.Equal(t, "AI: echo: hello", lines[1])
	assert.Contains(t, lines[2], "upstream down")
	assert.Equal(t, "AI: echo: bye", lines[3])

	assert.Equal(t, []int{2, 4, 5}, seen)
	assert.Equal(t, 6, ctrl.Len())
}
