package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stylevault/backend/internal/logger"
	"github.com/stylevault/backend/internal/stylist"
)

// ErrSessionNotFound is returned when a session ID resolves to nothing.
var ErrSessionNotFound = errors.New("chat session not found")

// StoredMessage is one message in a session transcript.
type StoredMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a chat session document. Sessions live in Redis as JSON
// values, one per session, with a per-user index set for listing.
type Session struct {
	ID        string          `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"session_name,omitempty"`
	Messages  []StoredMessage `json:"messages"`
	Context   *UserContext    `json:"user_context,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store persists chat sessions in Redis.
type Store struct {
	client *redis.Client
	log    *logger.Logger
}

// NewStore connects to Redis and verifies the connection.
func NewStore(addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &Store{
		client: client,
		log:    logger.Default().WithComponent("chat-store"),
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func sessionKey(id string) string {
	return "chat:session:" + id
}

func userIndexKey(userID uuid.UUID) string {
	return "chat:user:" + userID.String() + ":sessions"
}

// CreateSession assigns the session an ID and persists it.
func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	session.ID = uuid.NewString()
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	if err := s.save(ctx, session); err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, userIndexKey(session.UserID), session.ID).Err(); err != nil {
		return fmt.Errorf("failed to index session %s: %w", session.ID, err)
	}
	return nil
}

// Get loads a session document by ID.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &session, nil
}

// AppendMessage appends one message to a session's transcript.
func (s *Store) AppendMessage(ctx context.Context, id string, msg StoredMessage) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = time.Now().UTC()
	return s.save(ctx, session)
}

// ListByUser returns all sessions for a user. Index entries whose
// document has disappeared are pruned on the way through.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	ids, err := s.client.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for user %s: %w", userID, err)
	}

	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			if err := s.client.SRem(ctx, userIndexKey(userID), id).Err(); err != nil {
				s.log.Warn(ctx, "failed to prune stale session index entry", map[string]interface{}{
					"session_id": id,
					"error":      err.Error(),
				})
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Delete removes a session document and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if err := s.client.SRem(ctx, userIndexKey(session.UserID), id).Err(); err != nil {
		return fmt.Errorf("failed to unindex session %s: %w", id, err)
	}
	return nil
}

// ClearMessages drops a session's conversation but keeps the session,
// its context and the seeded system prompt, so later completions still
// carry the stylist persona.
func (s *Store) ClearMessages(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	session.Messages = retainSystemPrefix(session.Messages)
	session.UpdatedAt = time.Now().UTC()
	return s.save(ctx, session)
}

// retainSystemPrefix keeps the leading run of system messages and
// discards the rest of the transcript.
func retainSystemPrefix(messages []StoredMessage) []StoredMessage {
	var kept []StoredMessage
	for _, msg := range messages {
		if msg.Role != stylist.RoleSystem {
			break
		}
		kept = append(kept, msg)
	}
	return kept
}

func (s *Store) save(ctx context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store session %s: %w", session.ID, err)
	}
	return nil
}
