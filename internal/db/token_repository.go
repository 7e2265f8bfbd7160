package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrTokenNotFound = errors.New("token not found")

// RefreshTokenRecord is the persisted side of a refresh token. The
// token itself stays with the client; only its jti, owner and expiry
// are recorded here so the server can revoke what it cannot recall.
type RefreshTokenRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenID   string
	Revoked   bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

type TokenRepository struct {
	db *DB
}

func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, record *RefreshTokenRecord) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_id, revoked, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.TokenID, record.Revoked, record.CreatedAt, record.ExpiresAt,
	)
	return err
}

// GetActive returns the record for a token id only while it is still
// usable. Revoked, expired and unknown token ids are all reported as
// ErrTokenNotFound; callers cannot tell the cases apart.
func (r *TokenRepository) GetActive(ctx context.Context, tokenID string) (*RefreshTokenRecord, error) {
	query := `
		SELECT id, user_id, token_id, revoked, created_at, expires_at
		FROM refresh_tokens
		WHERE token_id = $1 AND revoked = FALSE AND expires_at > NOW()
	`

	record := &RefreshTokenRecord{}
	err := r.db.QueryRowContext(ctx, query, tokenID).Scan(
		&record.ID, &record.UserID, &record.TokenID, &record.Revoked, &record.CreatedAt, &record.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return record, nil
}

// RevokeAllForUser marks every live refresh token of a user revoked in
// a single statement. Running it when nothing is live is a no-op.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE user_id = $1 AND revoked = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteExpired removes rows past their expiry. GetActive already
// filters on expiry, so skipping this sweep never affects correctness.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < NOW()
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
