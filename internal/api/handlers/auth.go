package handlers

import (
	"errors"
	"net/http"

	"github.com/baechuer/user-console/internal/audit"
	"github.com/baechuer/user-console/internal/authscreen"
	"github.com/baechuer/user-console/internal/logger"
	"github.com/baechuer/user-console/internal/views"
	"github.com/baechuer/user-console/middleware"
)

// AuthHandler serves the login and registration screen.
type AuthHandler struct {
	api      authscreen.AuthAPI
	sessions SessionManager
	views    *views.Renderer
	audit    audit.Publisher
}

func NewAuthHandler(api authscreen.AuthAPI, sessions SessionManager, v *views.Renderer, pub audit.Publisher) *AuthHandler {
	return &AuthHandler{api: api, sessions: sessions, views: v, audit: pub}
}

// Page renders the screen. ?mode=register is the mode toggle, which always
// starts from empty fields.
func (h *AuthHandler) Page(w http.ResponseWriter, r *http.Request) {
	s := authscreen.New(h.api)
	q := r.URL.Query()
	if q.Get("mode") == string(authscreen.ModeRegister) {
		s.ToggleMode()
	}
	if q.Get("expired") == "1" {
		s.ErrorMessage = MsgSessionExpired
	}
	if q.Get("registered") == "1" {
		s.Notice = authscreen.MsgRegistered
	}
	h.render(w, r, http.StatusOK, s)
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	s := authscreen.New(h.api)
	s.Email = r.PostForm.Get("email")
	s.Password = r.PostForm.Get("password")

	token, err := s.SubmitLogin(r.Context())
	if err != nil {
		h.render(w, r, http.StatusUnauthorized, s)
		return
	}

	sess, err := h.sessions.Start(r.Context(), w, token)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("session_start_failed")
		s.ErrorMessage = authscreen.MsgInvalidCredentials
		h.render(w, r, http.StatusUnauthorized, s)
		return
	}

	audit.Record(r.Context(), h.audit, audit.NewEvent(r.Context(), audit.SessionStarted, sess.Subject, ""))
	logger.Ctx(r.Context()).Info().Str("session", sess.ShortID()).Msg("session_started")
	seeOther(w, r, UsersPath)
}

// Register handles POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	s := authscreen.New(h.api)
	s.ToggleMode()
	s.Email = r.PostForm.Get("email")
	s.Password = r.PostForm.Get("password")
	s.ConfirmPassword = r.PostForm.Get("confirm_password")

	if err := s.SubmitRegistration(r.Context()); err != nil {
		status := http.StatusBadGateway
		if !errors.Is(err, authscreen.ErrRegisterFailed) {
			status = http.StatusUnprocessableEntity
		}
		h.render(w, r, status, s)
		return
	}

	seeOther(w, r, middleware.LoginPath+"?registered=1")
}

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, s *authscreen.Screen) {
	page := views.LoginPage{
		Register:     s.Mode == authscreen.ModeRegister,
		Email:        s.Email,
		ErrorMessage: s.ErrorMessage,
		Notice:       s.Notice,
	}
	if err := h.views.Login(w, status, page); err != nil {
		renderFailed(w, r, err)
	}
}
