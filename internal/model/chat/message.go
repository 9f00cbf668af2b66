package chat

import "strings"

// Speaker identifies who authored a message.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Valid reports whether the speaker is one the completion endpoint accepts.
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerBot
}

// Greeting is the opening line shown before the user has typed anything.
const Greeting = "Hi! I'm a friendly AI assistant. Ask me anything!"

// Message is a single transcript entry. The JSON shape is the wire format
// exchanged with the completion endpoint.
type Message struct {
	Who     Speaker `json:"who"`
	Message string  `json:"message"`
}

// UserMessage builds a message authored by the user.
func UserMessage(text string) Message {
	return Message{Who: SpeakerUser, Message: text}
}

// BotMessage builds a bot message, trimming surrounding whitespace from the raw reply.
func BotMessage(raw string) Message {
	return Message{Who: SpeakerBot, Message: strings.TrimSpace(raw)}
}

// Seed returns the default transcript a new conversation starts with.
func Seed() []Message {
	return []Message{{Who: SpeakerBot, Message: Greeting}}
}
