// Package session owns the operator's credential token. The browser only
// ever holds an opaque session id in an HttpOnly cookie; the token itself
// lives in a Store and is handed explicitly to whatever issues
// authenticated calls.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session_not_found")

type Session struct {
	ID        string    `json:"-"`
	Token     string    `json:"token"`
	Subject   string    `json:"subject,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticated reports whether a token is present. Token freshness is not
// checked here; the remote API is the only judge of that.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// ShortID is a log-safe prefix of the session id.
func (s *Session) ShortID() string {
	if s == nil {
		return ""
	}
	if len(s.ID) > 8 {
		return s.ID[:8]
	}
	return s.ID
}

type Store interface {
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

const idBytes = 32

func newID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
