package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// Ensure Adapter implements TokenAdapter
var _ driven.TokenAdapter = (*Adapter)(nil)

// jwtClaims wraps domain.TokenClaims for JWT compatibility
type jwtClaims struct {
	UserID string `json:"user_id"`
	ClubID string `json:"club_id"`
	jwt.RegisteredClaims
}

// Config holds token verification settings
type Config struct {
	// Secret is the shared HMAC key
	Secret string

	// Issuer, when set, is stamped on generated tokens and required on
	// parsed ones
	Issuer string

	// Leeway tolerates clock skew with the issuing service
	Leeway time.Duration
}

// Adapter signs and verifies HS256 bearer tokens carrying a club identity
type Adapter struct {
	jwtSecret []byte
	issuer    string
	leeway    time.Duration
}

// NewAdapter creates a new auth adapter
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{
		jwtSecret: []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		leeway:    cfg.Leeway,
	}
}

// GenerateToken creates a signed JWT from domain claims
func (a *Adapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	jc := jwtClaims{
		UserID: claims.UserID,
		ClubID: claims.ClubID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Unix(claims.IssuedAt, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jc)
	return token.SignedString(a.jwtSecret)
}

// ParseToken validates a JWT and extracts domain claims. Expired tokens
// return domain.ErrTokenExpired, anything else unusable
// domain.ErrTokenInvalid.
func (a *Adapter) ParseToken(tokenString string) (*domain.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" || claims.ClubID == "" {
		return nil, fmt.Errorf("%w: missing user or club", domain.ErrTokenInvalid)
	}

	var issuedAt int64
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Unix()
	}

	return &domain.TokenClaims{
		UserID:    userID,
		ClubID:    claims.ClubID,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}
