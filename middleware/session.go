package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/baechuer/user-console/internal/session"
)

type ctxKeySession struct{}

// LoginPath is where the gate sends requests without a session.
const LoginPath = "/login"

// SessionLoader is satisfied by *session.Manager.
type SessionLoader interface {
	Load(r *http.Request) (*session.Session, error)
}

// Session attaches the caller's session, if any, to the request context.
// A missing or unknown cookie is not an error here; the gate decides.
func Session(loader SessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := loader.Load(r)
			if err != nil {
				if !errors.Is(err, session.ErrNotFound) {
					log.Warn().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("session_load_failed")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// RequireSession is the session gate: the protected subtree only runs when a
// token is present, everything else is redirected to the login screen.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetSession(r.Context()).Authenticated() {
			gateRedirectsTotal.Inc()
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, ctxKeySession{}, s)
}

func GetSession(ctx context.Context) *session.Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(ctxKeySession{}).(*session.Session)
	return s
}
