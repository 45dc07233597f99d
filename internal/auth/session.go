package auth

import "time"

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
	TokenID string `json:"token_id"`
	// TokenExpiresAt bounds how long a revocation has to be remembered
	TokenExpiresAt time.Time `json:"token_expires_at"`
}
