package domain

import "time"

// SessionToken is a signed full-session bearer token.
type SessionToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PendingMFAToken asserts that the password was verified and a TOTP code is outstanding.
// It is never accepted by a protected operation.
type PendingMFAToken struct {
	Token     string    `json:"pending_token"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResult is either a full session or a request for the second factor.
type LoginResult struct {
	User       *User
	Session    *SessionToken
	PendingMFA *PendingMFAToken
}

// RequiresMFA reports whether the login stopped before the second factor.
func (r *LoginResult) RequiresMFA() bool {
	return r.PendingMFA != nil
}
