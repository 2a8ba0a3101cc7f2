package authscreen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/user-console/internal/domain"
)

type mockAuthAPI struct {
	mock.Mock
}

func (m *mockAuthAPI) Login(ctx context.Context, cred domain.Credential) (string, error) {
	args := m.Called(ctx, cred)
	return args.String(0), args.Error(1)
}

func (m *mockAuthAPI) Register(ctx context.Context, cred domain.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func TestSubmitLogin_Success(t *testing.T) {
	api := new(mockAuthAPI)
	api.On("Login", mock.Anything, domain.Credential{Email: "a@x.com", Password: "secret"}).Return("T1", nil)

	s := New(api)
	s.Email, s.Password = "a@x.com", "secret"
	s.ErrorMessage = "stale"

	token, err := s.SubmitLogin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", token)
	assert.Empty(t, s.ErrorMessage)
	api.AssertExpectations(t)
}

func TestSubmitLogin_FailureIsGeneric(t *testing.T) {
	api := new(mockAuthAPI)
	api.On("Login", mock.Anything, mock.Anything).Return("", errors.New("user is locked"))

	s := New(api)
	s.Email, s.Password = "a@x.com", "wrong"

	_, err := s.SubmitLogin(context.Background())
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.Equal(t, MsgInvalidCredentials, s.ErrorMessage)
}

func TestSubmitLogin_RequiresBothFields(t *testing.T) {
	api := new(mockAuthAPI)
	s := New(api)
	s.Email = "a@x.com"

	_, err := s.SubmitLogin(context.Background())
	assert.ErrorIs(t, err, domain.ErrCredentialsRequired)
	assert.Equal(t, MsgRequired, s.ErrorMessage)
	api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestSubmitRegistration_MismatchNeverCallsAPI(t *testing.T) {
	pairs := []struct{ pw, confirm string }{
		{"secret", "secret2"},
		{"", "x"},
		{"x", ""},
		{"Secret", "secret"},
	}

	for _, p := range pairs {
		api := new(mockAuthAPI)
		s := New(api)
		s.Mode = ModeRegister
		s.Email, s.Password, s.ConfirmPassword = "a@x.com", p.pw, p.confirm

		err := s.SubmitRegistration(context.Background())
		assert.ErrorIs(t, err, ErrPasswordMismatch)
		assert.Equal(t, MsgPasswordMismatch, s.ErrorMessage)
		api.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	}
}

func TestSubmitRegistration_Success(t *testing.T) {
	api := new(mockAuthAPI)
	api.On("Register", mock.Anything, domain.Credential{Email: "a@x.com", Password: "pw"}).Return(nil)

	s := New(api)
	s.Mode = ModeRegister
	s.Email, s.Password, s.ConfirmPassword = "a@x.com", "pw", "pw"
	s.ErrorMessage = "stale"

	require.NoError(t, s.SubmitRegistration(context.Background()))
	assert.Equal(t, ModeLogin, s.Mode)
	assert.Empty(t, s.ErrorMessage)
	assert.Equal(t, MsgRegistered, s.Notice)
	assert.Empty(t, s.Password)
	assert.Empty(t, s.ConfirmPassword)
	api.AssertExpectations(t)
}

func TestSubmitRegistration_Failure(t *testing.T) {
	api := new(mockAuthAPI)
	api.On("Register", mock.Anything, mock.Anything).Return(errors.New("email taken"))

	s := New(api)
	s.Mode = ModeRegister
	s.Email, s.Password, s.ConfirmPassword = "a@x.com", "pw", "pw"

	err := s.SubmitRegistration(context.Background())
	assert.ErrorIs(t, err, ErrRegisterFailed)
	assert.Equal(t, MsgRegisterFailed, s.ErrorMessage)
	assert.Equal(t, ModeRegister, s.Mode)
}

func TestToggleMode(t *testing.T) {
	s := New(nil)
	s.Email, s.Password, s.ConfirmPassword = "a", "b", "c"
	s.ErrorMessage, s.Notice = "err", "note"

	s.ToggleMode()
	assert.Equal(t, ModeRegister, s.Mode)
	assert.Equal(t, Screen{Mode: ModeRegister}, *s)

	s.ToggleMode()
	assert.Equal(t, ModeLogin, s.Mode)
}
