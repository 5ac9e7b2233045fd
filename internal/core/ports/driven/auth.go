package driven

import "github.com/custodia-labs/clubdocs/internal/core/domain"

// TokenAdapter handles bearer token cryptography.
// Identity is issued upstream; GenerateToken exists for operators and tests.
type TokenAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
