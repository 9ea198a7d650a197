package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

func TestIssueAndParseToken(t *testing.T) {
	adapter := NewAdapter("test-secret")

	token, err := adapter.IssueToken("analyst-1", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("expected a JWT, got %q", token)
	}

	claims, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if claims.Subject != "analyst-1" {
		t.Errorf("expected subject analyst-1, got %s", claims.Subject)
	}
	if claims.ExpiresAt <= claims.IssuedAt {
		t.Error("expected expiry after issue time")
	}
}

func TestGenerateToken_RequiresSubject(t *testing.T) {
	adapter := NewAdapter("test-secret")
	if _, err := adapter.GenerateToken(&domain.TokenClaims{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	adapter := NewAdapter("test-secret")
	past := time.Now().Add(-2 * time.Hour)
	token, err := adapter.GenerateToken(&domain.TokenClaims{
		Subject:   "analyst-1",
		IssuedAt:  past.Unix(),
		ExpiresAt: past.Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := adapter.ParseToken(token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _ := NewAdapter("secret-a").IssueToken("analyst-1", time.Hour)

	if _, err := NewAdapter("secret-b").ParseToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestParseToken_Malformed(t *testing.T) {
	adapter := NewAdapter("test-secret")
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := adapter.ParseToken(token); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("token %q: expected ErrUnauthorized, got %v", token, err)
		}
	}
}

func TestParseToken_MissingExpiry(t *testing.T) {
	adapter := NewAdapter("test-secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "analyst-1"}).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := adapter.ParseToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	adapter := NewAdapter("test-secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "analyst-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := adapter.ParseToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
