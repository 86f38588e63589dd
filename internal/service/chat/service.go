package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidParticipant = errors.New("sender is not a participant of the session")
	ErrRequestInFlight    = errors.New("assistant reply already in flight")
	ErrEmptyMessage       = errors.New("message content is empty")
	ErrInvalidSession     = errors.New("invalid session")
)

// Service owns the conversation threads and their message sequences.
// Reads return copies; every mutation is visible to reads issued after it returns,
// and subscribers observe events in mutation order.
type Service struct {
	mu       sync.RWMutex
	order    []string
	sessions map[string]*chat.Session
	events   *broker
}

// NewService bootstraps the store from seed sessions, preserving their order.
func NewService(seed []chat.Session) (*Service, error) {
	s := &Service{
		order:    make([]string, 0, len(seed)),
		sessions: make(map[string]*chat.Session, len(seed)),
		events:   newBroker(),
	}

	for _, session := range seed {
		if err := validateSeed(session); err != nil {
			return nil, err
		}
		if _, dup := s.sessions[session.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate session id %s", ErrInvalidSession, session.ID)
		}

		stored := session.Clone()
		stored.Pending = false
		stored.LastMessage = nil
		if n := len(stored.Messages); n > 0 {
			last := stored.Messages[n-1]
			stored.LastMessage = &last
		}

		s.sessions[stored.ID] = &stored
		s.order = append(s.order, stored.ID)
	}

	return s, nil
}

func validateSeed(session chat.Session) error {
	if session.ID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidSession)
	}
	if len(session.Participants) < 2 {
		return fmt.Errorf("%w: session %s needs at least two participants", ErrInvalidSession, session.ID)
	}

	seen := make(map[string]struct{}, len(session.Participants))
	for _, p := range session.Participants {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: session %s lists participant %s twice", ErrInvalidSession, session.ID, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	for _, msg := range session.Messages {
		if _, ok := seen[msg.SenderID]; !ok {
			return fmt.Errorf("%w: session %s message %s from %s", ErrInvalidParticipant, session.ID, msg.ID, msg.SenderID)
		}
	}
	return nil
}

// Append adds message to the session and refreshes its last-message cache in one step.
// Missing ID, timestamp and kind are filled in; the stored message is returned.
// An unknown session is reported before any problem with the message itself.
func (s *Service) Append(_ context.Context, sessionID string, message chat.Message) (chat.Message, error) {
	if message.ID == "" {
		message.ID = newMessageID()
	}
	if message.Timestamp == 0 {
		message.Timestamp = time.Now().UnixMilli()
	}
	if message.Kind == "" {
		message.Kind = chat.KindText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Message{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if strings.TrimSpace(message.Content) == "" && message.MediaURL == "" {
		return chat.Message{}, ErrEmptyMessage
	}
	if !session.HasParticipant(message.SenderID) {
		return chat.Message{}, fmt.Errorf("%w: %s in %s", ErrInvalidParticipant, message.SenderID, sessionID)
	}

	session.Messages = append(session.Messages, message)
	last := message
	session.LastMessage = &last

	published := message
	s.events.publish(chat.Event{
		Type:      chat.EventMessageAppended,
		SessionID: sessionID,
		Message:   &published,
	})

	return message, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session.Clone(), nil
}

// ListSessions returns all sessions in seed order.
func (s *Service) ListSessions(_ context.Context) []chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sessions[id].Clone())
	}
	return out
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	copied := make([]chat.Message, len(session.Messages))
	copy(copied, session.Messages)
	return copied, nil
}

// BeginReply marks the session as waiting for an assistant reply.
// It fails with ErrRequestInFlight when a reply is already pending.
func (s *Service) BeginReply(_ context.Context, sessionID string) error {
	return s.setPending(sessionID, true)
}

// EndReply clears the pending flag. Clearing an idle session is a no-op.
func (s *Service) EndReply(_ context.Context, sessionID string) error {
	return s.setPending(sessionID, false)
}

func (s *Service) setPending(sessionID string, pending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if session.Pending == pending {
		if pending {
			return fmt.Errorf("%w: %s", ErrRequestInFlight, sessionID)
		}
		return nil
	}

	session.Pending = pending
	s.events.publish(chat.Event{Type: chat.EventTypingChanged, SessionID: sessionID, Pending: pending})
	return nil
}

// Subscribe registers an observer for session events. Events are dropped for
// subscribers whose buffer is full; cancel must be called to release the channel.
func (s *Service) Subscribe(buffer int) (<-chan chat.Event, func()) {
	return s.events.subscribe(buffer)
}

// newMessageID returns a time-ordered identifier so ids sort in creation order.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
