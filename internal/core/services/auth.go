package services

import (
	"context"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService implements the AuthService interface
type authService struct {
	tokenAdapter driven.TokenAdapter
}

// NewAuthService creates a new AuthService
func NewAuthService(tokenAdapter driven.TokenAdapter) driving.AuthService {
	return &authService{tokenAdapter: tokenAdapter}
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.tokenAdapter.ParseToken(token)
	if err != nil {
		return nil, err
	}

	// Check expiration
	if claims.ExpiresAt == 0 || time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	// Every request is scoped to a club
	if claims.UserID == "" || claims.ClubID == "" {
		return nil, domain.ErrTokenInvalid
	}

	return claims.AuthContext(), nil
}

// IssueToken signs a token for a user of a club
func (s *authService) IssueToken(ctx context.Context, userID, clubID string, ttl time.Duration) (string, error) {
	if userID == "" || clubID == "" {
		return "", domain.ErrInvalidInput
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	now := time.Now()
	return s.tokenAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    userID,
		ClubID:    clubID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
}
