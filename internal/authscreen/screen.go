package authscreen

import (
	"context"
	"errors"

	"github.com/baechuer/user-console/internal/domain"
	"github.com/baechuer/user-console/internal/logger"
)

type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgPasswordMismatch   = "Passwords don't match"
	MsgRegisterFailed     = "Failed to register"
	MsgRequired           = "Email and password are required"
	MsgRegistered         = "Registration successful, you can now log in."
)

var (
	ErrPasswordMismatch = errors.New("passwords don't match")
	ErrLoginFailed      = errors.New("login failed")
	ErrRegisterFailed   = errors.New("registration failed")
)

// AuthAPI is implemented by downstream.AuthClient.
type AuthAPI interface {
	Login(ctx context.Context, cred domain.Credential) (string, error)
	Register(ctx context.Context, cred domain.Credential) error
}

// Screen is the state of the login/registration form for one submission.
// It is rebuilt from the posted form on every request.
type Screen struct {
	Email           string
	Password        string
	ConfirmPassword string
	Mode            Mode
	ErrorMessage    string
	Notice          string

	api AuthAPI
}

func New(api AuthAPI) *Screen {
	return &Screen{Mode: ModeLogin, api: api}
}

func (s *Screen) credential() domain.Credential {
	return domain.Credential{Email: s.Email, Password: s.Password}
}

// SubmitLogin returns the session token on success. Any failure leaves the
// same generic message on the screen.
func (s *Screen) SubmitLogin(ctx context.Context) (string, error) {
	cred := s.credential()
	if err := cred.Validate(); err != nil {
		s.ErrorMessage = MsgRequired
		return "", err
	}

	token, err := s.api.Login(ctx, cred)
	if err != nil {
		logger.Ctx(ctx).Debug().Err(err).Msg("login_rejected")
		s.ErrorMessage = MsgInvalidCredentials
		return "", ErrLoginFailed
	}

	s.ErrorMessage = ""
	return token, nil
}

// SubmitRegistration creates the account and switches back to login mode.
// Mismatched passwords never reach the network.
func (s *Screen) SubmitRegistration(ctx context.Context) error {
	if s.Password != s.ConfirmPassword {
		s.ErrorMessage = MsgPasswordMismatch
		return ErrPasswordMismatch
	}

	cred := s.credential()
	if err := cred.Validate(); err != nil {
		s.ErrorMessage = MsgRequired
		return err
	}

	if err := s.api.Register(ctx, cred); err != nil {
		logger.Ctx(ctx).Debug().Err(err).Msg("registration_rejected")
		s.ErrorMessage = MsgRegisterFailed
		return ErrRegisterFailed
	}

	s.Mode = ModeLogin
	s.ErrorMessage = ""
	s.Password = ""
	s.ConfirmPassword = ""
	s.Notice = MsgRegistered
	return nil
}

// ToggleMode flips between login and registration and clears every field.
func (s *Screen) ToggleMode() {
	s.Email = ""
	s.Password = ""
	s.ConfirmPassword = ""
	s.ErrorMessage = ""
	s.Notice = ""
	if s.Mode == ModeRegister {
		s.Mode = ModeLogin
	} else {
		s.Mode = ModeRegister
	}
}
