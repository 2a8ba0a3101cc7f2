package session

import (
	"context"
	"errors"
	"net/http"
	"time"
)

type Options struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
}

// Manager ties a Store to the session cookie.
type Manager struct {
	store Store
	opts  Options
	now   func() time.Time
}

func NewManager(store Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "console_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{
		store: store,
		opts:  opts,
		now:   time.Now,
	}
}

// Start stores token under a fresh session and sets the cookie. The session
// lives for the configured TTL, or until the token's own expiry when the
// token carries one.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, token string) (*Session, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	ttl := m.opts.TTL
	subject, exp := tokenClaims(token)
	if !exp.IsZero() {
		if left := exp.Sub(now); left < ttl {
			ttl = left
		}
	}
	if ttl <= 0 {
		return nil, errors.New("token already expired")
	}

	sess := &Session{
		ID:        id,
		Token:     token,
		Subject:   subject,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := m.store.Save(ctx, sess, ttl); err != nil {
		return nil, err
	}

	m.setCookie(w, id, ttl)
	return sess, nil
}

// Load returns the session addressed by the request cookie.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	id := m.readCookie(r)
	if id == "" {
		return nil, ErrNotFound
	}
	return m.store.Get(r.Context(), id)
}

// Invalidate removes the session server-side. The token is gone after this
// even if the browser keeps the cookie.
func (m *Manager) Invalidate(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// End invalidates the session and clears the cookie.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, id string) error {
	m.ClearCookie(w)
	if id == "" {
		return nil
	}
	return m.Invalidate(ctx, id)
}

func (m *Manager) TTL() time.Duration { return m.opts.TTL }

func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

func (m *Manager) cookieName() string {
	if m.opts.Secure {
		return "__Host-" + m.opts.CookieName
	}
	return m.opts.CookieName
}

func (m *Manager) setCookie(w http.ResponseWriter, id string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName(),
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// ClearCookie expires the session cookie without touching the store.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (m *Manager) readCookie(r *http.Request) string {
	if c, err := r.Cookie("__Host-" + m.opts.CookieName); err == nil {
		return c.Value
	}
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
