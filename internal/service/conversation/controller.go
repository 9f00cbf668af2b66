package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// TailSize is the number of trailing transcript messages sent with each turn.
const TailSize = 10

var (
	ErrTurnInFlight = errors.New("a turn is already awaiting a reply")
	ErrNoTurn       = errors.New("no turn is awaiting a reply")
	ErrStaleTurn    = errors.New("turn does not match the turn awaiting a reply")
	ErrEmptyInput   = errors.New("message is empty")
)

// Completer is the remote collaborator that turns an outbound tail into a raw reply.
type Completer interface {
	Complete(ctx context.Context, req chat.CompletionRequest) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, req chat.CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req chat.CompletionRequest) (string, error) {
	return f(ctx, req)
}

// Controller owns one transcript and its turn lifecycle. It is the only
// writer of the transcript; readers get snapshots.
type Controller struct {
	mu         sync.Mutex
	userID     string
	transcript []chat.Message
	state      State
	current    *Turn
	seq        uint64
}

// NewController starts a conversation for userID, seeded with seed.
func NewController(userID string, seed ...chat.Message) *Controller {
	transcript := make([]chat.Message, 0, len(seed)+16)
	transcript = append(transcript, seed...)
	return &Controller{
		userID:     userID,
		transcript: transcript,
	}
}

// UserID returns the session identifier attached to outbound requests.
func (c *Controller) UserID() string {
	return c.userID
}

// AppendUserMessage appends text as a user message. Any text is accepted,
// gating empty input is left to the UI.
func (c *Controller) AppendUserMessage(text string) {
	c.mu.Lock()
	c.transcript = append(c.transcript, chat.UserMessage(text))
	c.mu.Unlock()
}

// BeginTurn snapshots the outbound tail and moves the controller to
// AwaitingReply. It fails with ErrTurnInFlight while another turn is pending.
func (c *Controller) BeginTurn() (*Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked()
}

func (c *Controller) beginLocked() (*Turn, error) {
	if c.state == StateAwaitingReply {
		return nil, ErrTurnInFlight
	}

	c.seq++
	turn := &Turn{
		ID: c.seq,
		Request: chat.CompletionRequest{
			Messages: Tail(c.transcript),
			User:     c.userID,
		},
	}
	c.current = turn
	c.state = StateAwaitingReply
	return turn, nil
}

// CompleteTurn records a successful reply for turn.
func (c *Controller) CompleteTurn(turn *Turn, rawReply string) (chat.Message, error) {
	return c.Resolve(turn, Success(rawReply))
}

// FailTurn abandons turn without appending anything.
func (c *Controller) FailTurn(turn *Turn, reason error) error {
	_, err := c.Resolve(turn, Failure(reason))
	return err
}

// Resolve settles the pending turn with outcome and returns the controller to
// Idle. A success appends the trimmed reply; a failure appends nothing and is
// reported as a *TurnError.
func (c *Controller) Resolve(turn *Turn, outcome Outcome) (chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingReply || c.current == nil {
		return chat.Message{}, ErrNoTurn
	}
	if turn == nil || turn.ID != c.current.ID {
		return chat.Message{}, ErrStaleTurn
	}

	c.current = nil
	c.state = StateIdle

	if outcome.Failed() {
		return chat.Message{}, &TurnError{Turn: turn.ID, Err: outcome.Err}
	}

	reply := chat.BotMessage(outcome.Text)
	c.transcript = append(c.transcript, reply)
	return reply, nil
}

// Start appends text and begins its turn in one step, so a submission made
// while busy is rejected before anything is appended.
func (c *Controller) Start(text string) (*Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateAwaitingReply {
		return nil, ErrTurnInFlight
	}
	c.transcript = append(c.transcript, chat.UserMessage(text))
	return c.beginLocked()
}

// Submit runs one full turn: Start, send the tail through completer and
// resolve with its outcome.
func (c *Controller) Submit(ctx context.Context, text string, completer Completer) (chat.Message, error) {
	turn, err := c.Start(text)
	if err != nil {
		return chat.Message{}, err
	}

	log.Debug().
		Str("component", "conversation").
		Str("user", c.userID).
		Uint64("turn", turn.ID).
		Int("tail", len(turn.Request.Messages)).
		Msg("turn started")

	raw, err := completer.Complete(ctx, turn.Request)
	if err != nil {
		return c.Resolve(turn, Failure(err))
	}
	return c.Resolve(turn, Success(raw))
}

// IsBusy reports whether a turn is awaiting its reply.
func (c *Controller) IsBusy() bool {
	return c.State() == StateAwaitingReply
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns a snapshot of every message in conversation order.
func (c *Controller) Transcript() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.transcript...)
}

// Len returns the number of messages in the transcript.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transcript)
}

// Tail copies the last TailSize messages of transcript, or all of them when
// there are fewer.
func Tail(transcript []chat.Message) []chat.Message {
	start := 0
	if len(transcript) > TailSize {
		start = len(transcript) - TailSize
	}
	return append(make([]chat.Message, 0, len(transcript)-start), transcript[start:]...)
}

// ValidateInput rejects whitespace-only submissions. UIs call it before Submit.
func ValidateInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	return nil
}
