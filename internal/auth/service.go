package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stylevault/backend/internal/db"
	"github.com/stylevault/backend/internal/logger"
)

const bcryptCost = 12

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWrongTokenType     = errors.New("wrong token type")
	ErrTokenRevoked       = errors.New("refresh token revoked or unknown")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrUsernameExists     = errors.New("username already taken")
	ErrUserInactive       = errors.New("user is inactive")
)

// UserDirectory is the slice of the user store the auth service needs.
// *db.UserRepository satisfies it.
type UserDirectory interface {
	Create(ctx context.Context, user *db.User) error
	GetByEmail(ctx context.Context, email string) (*db.User, error)
}

// TokenLedger records issued refresh tokens and answers whether a
// token ID is still usable. *db.TokenRepository satisfies it.
type TokenLedger interface {
	Create(ctx context.Context, record *db.RefreshTokenRecord) error
	GetActive(ctx context.Context, tokenID string) (*db.RefreshTokenRecord, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// TokenPair is the credential set returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Service owns the session lifecycle: registration, login, refresh
// token rotation and logout.
type Service struct {
	codec  *Codec
	users  UserDirectory
	ledger TokenLedger
	log    *logger.Logger
}

func NewService(codec *Codec, users UserDirectory, ledger TokenLedger) *Service {
	return &Service{
		codec:  codec,
		users:  users,
		ledger: ledger,
		log:    logger.Default().WithComponent("auth"),
	}
}

// Register creates a new user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, email, username, password string) (*db.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user := &db.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, db.ErrEmailExists):
			return nil, ErrEmailExists
		case errors.Is(err, db.ErrUsernameExists):
			return nil, ErrUsernameExists
		}
		return nil, err
	}

	s.log.Info(ctx, "user registered", map[string]interface{}{
		"user_id": user.ID.String(),
	})
	return user, nil
}

// Login verifies credentials and issues a fresh token pair. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.mintPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user logged in", map[string]interface{}{
		"user_id": user.ID.String(),
	})
	return pair, nil
}

// Refresh rotates a refresh token: the presented token must verify,
// declare the refresh type, carry a token ID, and that ID must still
// be active in the ledger. On success every prior refresh token for
// the user is revoked and a new pair is issued, so each refresh token
// grants exactly one rotation.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}
	if claims.Kind() != TokenRefresh {
		return nil, ErrWrongTokenType
	}
	if claims.ID == "" {
		return nil, ErrMalformedClaims
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if _, err := s.ledger.GetActive(ctx, claims.ID); err != nil {
		if errors.Is(err, db.ErrTokenNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, err
	}

	pair, err := s.mintPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.sweepExpired(ctx)
	return pair, nil
}

// Logout revokes every active refresh token for the user. Access
// tokens already in the wild stay valid until they expire.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	n, err := s.ledger.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	s.log.Info(ctx, "user logged out", map[string]interface{}{
		"user_id":        userID.String(),
		"tokens_revoked": n,
	})
	return nil
}

// Authenticate resolves a bearer token of the given kind to its user.
// Refresh-kind authentication additionally requires the token to be
// active in the ledger.
func (s *Service) Authenticate(ctx context.Context, tokenString string, kind TokenKind) (*db.User, error) {
	claims, err := s.codec.Decode(tokenString, kind)
	if err != nil {
		return nil, err
	}
	if claims.Kind() != kind {
		return nil, ErrWrongTokenType
	}
	if kind == TokenRefresh {
		if claims.ID == "" {
			return nil, ErrMalformedClaims
		}
		if _, err := s.ledger.GetActive(ctx, claims.ID); err != nil {
			if errors.Is(err, db.ErrTokenNotFound) {
				return nil, ErrTokenRevoked
			}
			return nil, err
		}
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// mintPair issues an access and refresh token for the user, revokes
// all of the user's prior refresh tokens and records the new one. The
// revoke happens only after both tokens minted successfully, so a
// signing failure never strands the user without a usable token.
func (s *Service) mintPair(ctx context.Context, user *db.User) (*TokenPair, error) {
	access, err := s.codec.Mint(user.Email, TokenAccess)
	if err != nil {
		return nil, fmt.Errorf("minting access token: %w", err)
	}
	refresh, err := s.codec.Mint(user.Email, TokenRefresh)
	if err != nil {
		return nil, fmt.Errorf("minting refresh token: %w", err)
	}

	claims, err := s.codec.Decode(refresh, TokenRefresh)
	if err != nil {
		return nil, fmt.Errorf("decoding freshly minted refresh token: %w", err)
	}

	if _, err := s.ledger.RevokeAllForUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("revoking prior refresh tokens: %w", err)
	}

	record := &db.RefreshTokenRecord{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenID:   claims.ID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("recording refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

// sweepExpired opportunistically prunes expired ledger rows. Failures
// are logged, never surfaced: the sweep is housekeeping, not part of
// the refresh contract.
func (s *Service) sweepExpired(ctx context.Context) {
	n, err := s.ledger.DeleteExpired(ctx)
	if err != nil {
		s.log.Warn(ctx, "expired token sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if n > 0 {
		s.log.Debug(ctx, "swept expired refresh tokens", map[string]interface{}{
			"deleted": n,
		})
	}
}
