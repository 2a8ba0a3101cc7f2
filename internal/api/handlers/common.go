package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/baechuer/user-console/internal/audit"
	"github.com/baechuer/user-console/internal/domain"
	"github.com/baechuer/user-console/internal/downstream"
	"github.com/baechuer/user-console/internal/logger"
	"github.com/baechuer/user-console/internal/session"
	"github.com/baechuer/user-console/middleware"
)

const (
	UsersPath   = "/users"
	ExpiredPath = middleware.LoginPath + "?expired=1"

	MsgSessionExpired = "Your session has expired, please log in again."
)

// SessionManager is satisfied by *session.Manager.
type SessionManager interface {
	Start(ctx context.Context, w http.ResponseWriter, token string) (*session.Session, error)
	End(ctx context.Context, w http.ResponseWriter, id string) error
	ClearCookie(w http.ResponseWriter)
}

func sendError(w http.ResponseWriter, r *http.Request, code string, message string, status int) {
	resp := domain.APIError{}
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.RequestID = middleware.GetRequestID(r.Context())

	render.Status(r, status)
	render.JSON(w, r, resp)
}

// renderFailed reports a template failure. Nothing has been written yet
// because pages are buffered.
func renderFailed(w http.ResponseWriter, r *http.Request, err error) {
	logger.Ctx(r.Context()).Error().Err(err).Msg("render_failed")
	sendError(w, r, "internal_error", "failed to render page", http.StatusInternalServerError)
}

func seeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func isUnauthorized(err error) bool {
	return errors.Is(err, downstream.ErrUnauthorized)
}

// expire ends a session the remote API no longer accepts and sends the
// operator back to the login screen.
func expire(w http.ResponseWriter, r *http.Request, sessions SessionManager, forget func(id string), pub audit.Publisher) {
	ctx := r.Context()
	sess := middleware.GetSession(ctx)

	id := ""
	actor := ""
	if sess != nil {
		id = sess.ID
		actor = sess.Subject
	}
	if err := sessions.End(ctx, w, id); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("session_end_failed")
	}
	if forget != nil && id != "" {
		forget(id)
	}

	evt := audit.NewEvent(ctx, audit.SessionEnded, actor, "")
	evt.Attrs = map[string]string{"reason": "expired"}
	audit.Record(ctx, pub, evt)

	logger.Ctx(ctx).Info().Msg("session_expired")
	seeOther(w, r, ExpiredPath)
}

// MethodNotAllowed answers with the JSON error envelope.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	sendError(w, r, "method_not_allowed", "method not allowed", http.StatusMethodNotAllowed)
}
