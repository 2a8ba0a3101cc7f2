package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MobileLength = 10

	MsgMobileLength = "Mobile no should be in 10 digits"
)

var ErrCredentialsRequired = errors.New("email and password are required")

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// report json names so messages match the field names the API uses
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidationError describes why a Form Draft cannot be saved.
type ValidationError struct {
	// Missing holds the json names of required fields that are empty after
	// trimming, in form order.
	Missing []string
	// MobileInvalid is set when mobile is not exactly MobileLength characters.
	MobileInvalid bool
}

// Error is the message shown to the operator. The mobile check wins over
// missing fields.
func (e *ValidationError) Error() string {
	if e.MobileInvalid {
		return MsgMobileLength
	}
	return strings.Join(e.Missing, ", ") + " is missing;"
}

// draftRules is the trimmed view of a User that the required rules run on.
type draftRules struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Role      string `json:"role" validate:"required"`
	Email     string `json:"email" validate:"required"`
	DOB       string `json:"dob" validate:"required"`
	Gender    string `json:"gender" validate:"required"`
	Mobile    string `json:"mobile" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
}

// ValidateDraft checks a Form Draft before it is sent to the API. It returns
// nil or a *ValidationError.
func ValidateDraft(u User) error {
	ve := &ValidationError{}

	// length is measured on the untrimmed value, as typed
	if err := validate.Var(u.Mobile, "len=10"); err != nil {
		ve.MobileInvalid = true
	}

	rules := draftRules{
		FirstName: strings.TrimSpace(u.FirstName),
		LastName:  strings.TrimSpace(u.LastName),
		Role:      strings.TrimSpace(u.Role),
		Email:     strings.TrimSpace(u.Email),
		DOB:       strings.TrimSpace(u.DOB),
		Gender:    strings.TrimSpace(u.Gender),
		Mobile:    strings.TrimSpace(u.Mobile),
		City:      strings.TrimSpace(u.City),
		State:     strings.TrimSpace(u.State),
	}
	if err := validate.Struct(rules); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			ve.Missing = append(ve.Missing, fe.Field())
		}
	}

	if ve.MobileInvalid || len(ve.Missing) > 0 {
		return ve
	}
	return nil
}

// Validate checks that both credential fields are present.
func (c Credential) Validate() error {
	if err := validate.Struct(c); err != nil {
		return ErrCredentialsRequired
	}
	return nil
}
