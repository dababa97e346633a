package accountsdk

import (
	"time"
)

// Session carries a bearer token for authenticated calls. It is safe for
// concurrent use; the token is never refreshed.
type Session struct {
	client    *Client
	token     string
	expiresAt time.Time
}

// AccessToken returns the bearer token.
func (s *Session) AccessToken() string { return s.token }

// ExpiresAt returns the token expiry reported at login.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Expired reports whether the token is past its expiry.
func (s *Session) Expired() bool {
	return !s.expiresAt.IsZero() && !time.Now().Before(s.expiresAt)
}
