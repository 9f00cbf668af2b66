package chat

import "time"

// Session captures a server-hosted conversation.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
}
