package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/model/persona"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
)

var (
	ErrUserRequired    = errors.New("user identifier is required")
	ErrSessionNotFound = errors.New("session not found")
)

type entry struct {
	session    chat.Session
	persona    persona.Persona
	controller *conversation.Controller
}

// Service keeps server-hosted conversations in memory. Conversations live as
// long as the process; nothing is persisted.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewService bootstraps the in-memory conversation registry.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*entry),
	}
}

// CreateSession starts a conversation for userID with p, seeded with the
// persona's greeting.
func (s *Service) CreateSession(_ context.Context, userID string, p persona.Persona) (chat.Session, error) {
	if userID == "" {
		return chat.Session{}, ErrUserRequired
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		PersonaID: p.ID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &entry{
		session:    session,
		persona:    p,
		controller: conversation.NewController(userID, p.Greeting()),
	}
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return e.session, nil
}

// Controller returns the conversation controller and persona bound to sessionID.
func (s *Service) Controller(_ context.Context, sessionID string) (*conversation.Controller, persona.Persona, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, persona.Persona{}, err
	}
	return e.controller, e.persona, nil
}

// LoadTranscript returns a snapshot of the session's transcript.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.controller.Transcript(), nil
}

// EndSession drops the conversation and its transcript.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}
