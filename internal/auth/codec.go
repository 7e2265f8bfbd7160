package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates the two token classes. Every minted token
// carries its kind in the "type" claim and is signed with the secret
// belonging to that kind.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

const issuer = "stylevault"

var (
	// ErrInvalidToken covers bad signatures, expiry and unparseable
	// tokens alike.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMalformedClaims is returned when a token verifies but lacks a
	// subject or type claim.
	ErrMalformedClaims = errors.New("malformed token claims")
)

// Claims is the signed claim set for both token kinds. Refresh tokens
// additionally carry a unique ID (jti); access tokens never do.
type Claims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Kind returns the declared token kind.
func (c *Claims) Kind() TokenKind {
	return TokenKind(c.TokenType)
}

// Codec mints and verifies signed expiring claim sets. The two kinds
// use independent secrets and lifetimes; construction is the only
// place either secret is handled.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// Mint produces a signed token of the given kind for a subject.
func (c *Codec) Mint(subject string, kind TokenKind) (string, error) {
	now := time.Now()
	claims := &Claims{
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttlFor(kind))),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	if kind == TokenRefresh {
		id, err := newTokenID()
		if err != nil {
			return "", err
		}
		claims.ID = id
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secretFor(kind))
}

// Decode verifies a token against the secret for the given kind and
// returns its claims. It does not check that the declared type matches
// kind; callers enforce that so mismatches can be reported distinctly.
func (c *Codec) Decode(tokenString string, kind TokenKind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secretFor(kind), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.TokenType == "" {
		return nil, ErrMalformedClaims
	}

	return claims, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

func (c *Codec) secretFor(kind TokenKind) []byte {
	if kind == TokenRefresh {
		return c.refreshSecret
	}
	return c.accessSecret
}

func (c *Codec) ttlFor(kind TokenKind) time.Duration {
	if kind == TokenRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// newTokenID generates a refresh token ID: 32 random bytes, URL-safe
// encoded. Uniqueness is enforced again by the ledger's constraint.
func newTokenID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
