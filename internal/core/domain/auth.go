package domain

// AuthContext contains the caller's identity for request context.
// Identity is issued elsewhere; this service only verifies it.
type AuthContext struct {
	UserID string `json:"user_id"`
	ClubID string `json:"club_id"`
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	UserID    string `json:"user_id"`
	ClubID    string `json:"club_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// AuthContext converts verified claims into a request identity.
func (c *TokenClaims) AuthContext() *AuthContext {
	return &AuthContext{UserID: c.UserID, ClubID: c.ClubID}
}
