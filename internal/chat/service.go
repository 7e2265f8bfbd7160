package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stylevault/backend/internal/db"
	"github.com/stylevault/backend/internal/logger"
	"github.com/stylevault/backend/internal/stylist"
)

// ErrNotSessionOwner is returned when a user touches a session that
// belongs to someone else.
var ErrNotSessionOwner = errors.New("not the session owner")

// sessionStore is the persistence surface the service needs; *Store
// satisfies it.
type sessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	AppendMessage(ctx context.Context, id string, msg StoredMessage) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Session, error)
	Delete(ctx context.Context, id string) error
	ClearMessages(ctx context.Context, id string) error
}

// completer produces assistant replies; *stylist.Client satisfies it.
type completer interface {
	Complete(ctx context.Context, messages []stylist.Message) (string, error)
}

// Service owns chat sessions: creation with a context snapshot,
// message exchange with the stylist API, history and listing.
type Service struct {
	store    sessionStore
	stylist  completer
	contexts *ContextBuilder
	hub      *Hub
	log      *logger.Logger
}

func NewService(store sessionStore, stylistClient completer, contexts *ContextBuilder, hub *Hub) *Service {
	return &Service{
		store:    store,
		stylist:  stylistClient,
		contexts: contexts,
		hub:      hub,
		log:      logger.Default().WithComponent("chat"),
	}
}

// CreateSession snapshots the requested user context and opens a new
// session seeded with the rendered system prompt.
func (s *Service) CreateSession(ctx context.Context, user *db.User, name string, opts ContextOptions) (*Session, error) {
	uc, err := s.contexts.Build(ctx, user.ID, opts)
	if err != nil {
		return nil, err
	}

	session := &Session{
		UserID: user.ID,
		Name:   name,
		Messages: []StoredMessage{{
			Role:      stylist.RoleSystem,
			Content:   SystemPrompt(uc),
			Timestamp: time.Now().UTC(),
		}},
	}
	if !uc.Empty() {
		session.Context = uc
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "chat session created", map[string]interface{}{
		"session_id":    session.ID,
		"user_id":       user.ID.String(),
		"context_items": len(uc.WardrobeItems),
	})
	return session, nil
}

// SendMessage appends the user's message, asks the stylist for a
// reply, appends that too and returns it. Both messages fan out to any
// live websocket subscribers of the session.
func (s *Service) SendMessage(ctx context.Context, user *db.User, sessionID, content string) (string, error) {
	session, err := s.ownedSession(ctx, user, sessionID)
	if err != nil {
		return "", err
	}

	userMsg := StoredMessage{
		Role:      stylist.RoleUser,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, sessionID, userMsg); err != nil {
		return "", err
	}
	s.broadcast(sessionID, userMsg)

	history := make([]stylist.Message, 0, len(session.Messages)+1)
	for _, msg := range session.Messages {
		history = append(history, stylist.Message{Role: msg.Role, Content: msg.Content})
	}
	history = append(history, stylist.Message{Role: userMsg.Role, Content: userMsg.Content})

	reply, err := s.stylist.Complete(ctx, history)
	if err != nil {
		return "", err
	}

	assistantMsg := StoredMessage{
		Role:      stylist.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, sessionID, assistantMsg); err != nil {
		return "", err
	}
	s.broadcast(sessionID, assistantMsg)

	return reply, nil
}

// History returns the full session transcript.
func (s *Service) History(ctx context.Context, user *db.User, sessionID string) (*Session, error) {
	return s.ownedSession(ctx, user, sessionID)
}

// ListSessions returns all of the user's sessions.
func (s *Service) ListSessions(ctx context.Context, user *db.User) ([]*Session, error) {
	return s.store.ListByUser(ctx, user.ID)
}

// DeleteSession removes a session entirely.
func (s *Service) DeleteSession(ctx context.Context, user *db.User, sessionID string) error {
	if _, err := s.ownedSession(ctx, user, sessionID); err != nil {
		return err
	}
	return s.store.Delete(ctx, sessionID)
}

// ClearHistory drops a session's conversation. The session, its
// context snapshot and the seeded system prompt stay, so the stylist
// persona survives a clear.
func (s *Service) ClearHistory(ctx context.Context, user *db.User, sessionID string) error {
	if _, err := s.ownedSession(ctx, user, sessionID); err != nil {
		return err
	}
	return s.store.ClearMessages(ctx, sessionID)
}

func (s *Service) ownedSession(ctx context.Context, user *db.User, sessionID string) (*Session, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != user.ID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

func (s *Service) broadcast(sessionID string, msg StoredMessage) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(&Event{
		Type:      "message",
		SessionID: sessionID,
		Role:      msg.Role,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	})
}
