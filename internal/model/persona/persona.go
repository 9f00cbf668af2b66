package persona

import "github.com/zhouzirui/z-chat/backend/internal/model/chat"

// DefaultID names the persona used when none is requested.
const DefaultID = "assistant"

// Persona captures the assistant attributes exposed to the frontend.
type Persona struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Tone        string   `json:"tone"`
	PromptHint  string   `json:"promptHint"`
	OpeningLine string   `json:"openingLine"`
	Description string   `json:"description,omitempty"`
	Traits      []string `json:"traits,omitempty"`
}

// Greeting returns the bot message a conversation with this persona starts with.
func (p Persona) Greeting() chat.Message {
	line := p.OpeningLine
	if line == "" {
		line = chat.Greeting
	}
	return chat.Message{Who: chat.SpeakerBot, Message: line}
}

// Seed provides the built-in personas.
func Seed() []Persona {
	return []Persona{
		{
			ID:          DefaultID,
			Name:        "AI",
			Title:       "Friendly assistant",
			Tone:        "helpful, concise, warm",
			PromptHint:  "Answer directly. Ask a clarifying question only when the request is ambiguous.",
			OpeningLine: chat.Greeting,
			Description: "A general purpose assistant that answers questions in plain language.",
			Traits:      []string{"patient", "precise", "curious"},
		},
		{
			ID:          "tutor",
			Name:        "Tutor",
			Title:       "Step-by-step explainer",
			Tone:        "encouraging, structured",
			PromptHint:  "Break problems into small steps and check understanding before moving on.",
			OpeningLine: "Hello! What would you like to learn today?",
			Description: "Explains concepts gradually and favours worked examples.",
			Traits:      []string{"methodical", "encouraging"},
		},
		{
			ID:          "critic",
			Name:        "Critic",
			Title:       "Honest reviewer",
			Tone:        "direct, constructive",
			PromptHint:  "Point out weaknesses first, then suggest one concrete improvement.",
			OpeningLine: "Show me what you are working on and I'll tell you what I think.",
			Description: "Reviews drafts, code and plans with blunt but constructive feedback.",
			Traits:      []string{"direct", "rigorous"},
		},
	}
}
