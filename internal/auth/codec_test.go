package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec() *Codec {
	return NewCodec("access-secret", "refresh-secret", 30*time.Minute, 30*24*time.Hour)
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec()

	tests := []struct {
		name    string
		kind    TokenKind
		wantJTI bool
	}{
		{name: "access token", kind: TokenAccess, wantJTI: false},
		{name: "refresh token", kind: TokenRefresh, wantJTI: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := codec.Mint("user@example.com", tt.kind)
			if err != nil {
				t.Fatalf("Mint() error = %v", err)
			}

			claims, err := codec.Decode(token, tt.kind)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if claims.Subject != "user@example.com" {
				t.Errorf("subject = %q, want %q", claims.Subject, "user@example.com")
			}
			if claims.Kind() != tt.kind {
				t.Errorf("kind = %q, want %q", claims.Kind(), tt.kind)
			}
			if (claims.ID != "") != tt.wantJTI {
				t.Errorf("jti = %q, wantJTI %v", claims.ID, tt.wantJTI)
			}
		})
	}
}

func TestCodecSecretIsolation(t *testing.T) {
	codec := newTestCodec()

	access, err := codec.Mint("user@example.com", TokenAccess)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	// Decoding with the refresh secret must fail even though the token
	// itself is well formed.
	if _, err := codec.Decode(access, TokenRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode() with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestCodecRejectsExpiredToken(t *testing.T) {
	codec := NewCodec("access-secret", "refresh-secret", -time.Minute, -time.Minute)

	token, err := codec.Mint("user@example.com", TokenAccess)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	if _, err := codec.Decode(token, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode() of expired token = %v, want ErrInvalidToken", err)
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec := newTestCodec()

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := codec.Decode(token, TokenAccess); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Decode(%q) = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestCodecRejectsForeignSignature(t *testing.T) {
	codec := newTestCodec()
	other := NewCodec("other-access", "other-refresh", 30*time.Minute, 30*24*time.Hour)

	token, err := other.Mint("user@example.com", TokenAccess)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	if _, err := codec.Decode(token, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode() with foreign signature = %v, want ErrInvalidToken", err)
	}
}

func TestNewTokenID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := newTokenID()
		if err != nil {
			t.Fatalf("newTokenID() error = %v", err)
		}
		if len(id) != 43 {
			t.Fatalf("token ID length = %d, want 43", len(id))
		}
		if seen[id] {
			t.Fatal("newTokenID() produced a duplicate")
		}
		seen[id] = true
	}
}
