package conversation

import (
	"fmt"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// State is the turn lifecycle state of a Controller.
type State int

const (
	StateIdle State = iota
	StateAwaitingReply
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting_reply"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Turn is the handle of one in-flight request/response cycle.
type Turn struct {
	ID      uint64
	Request chat.CompletionRequest
}

// Outcome is the result of a completion call: either raw reply text or a reason.
type Outcome struct {
	Text string
	Err  error
}

func Success(text string) Outcome { return Outcome{Text: text} }

func Failure(reason error) Outcome {
	if reason == nil {
		reason = fmt.Errorf("completion failed")
	}
	return Outcome{Err: reason}
}

func (o Outcome) Failed() bool { return o.Err != nil }

// TurnError reports a turn that ended without a reply. The controller is
// already back to Idle when it is returned.
type TurnError struct {
	Turn uint64
	Err  error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn %d failed: %v", e.Turn, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }
