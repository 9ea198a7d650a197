package driven

import "github.com/innovest/innovest-rag/internal/core/domain"

// AuthAdapter signs and verifies API bearer tokens.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)

	// ParseToken returns domain.ErrTokenExpired for expired tokens and
	// domain.ErrUnauthorized for anything else that fails verification.
	ParseToken(token string) (*domain.TokenClaims, error)
}
