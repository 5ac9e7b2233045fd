package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

// AuthService verifies bearer tokens issued by the club portal
type AuthService interface {
	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// IssueToken signs a token for a user of a club, for operators and tests
	IssueToken(ctx context.Context, userID, clubID string, ttl time.Duration) (string, error)
}
