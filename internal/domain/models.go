package domain

// User mirrors one record of the remote users collection. The id is
// assigned by the remote API and never edited locally.
type User struct {
	ID        string `json:"_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	DOB       string `json:"dob"`
	Gender    string `json:"gender"`
	Mobile    string `json:"mobile"`
	City      string `json:"city"`
	State     string `json:"state"`
}

// EditableFields lists the form names of every field an operator may change,
// in edit form order.
var EditableFields = []string{
	"first_name",
	"last_name",
	"role",
	"email",
	"dob",
	"gender",
	"mobile",
	"city",
	"state",
}

// Field returns the value of the named editable field.
func (u User) Field(name string) (string, bool) {
	switch name {
	case "first_name":
		return u.FirstName, true
	case "last_name":
		return u.LastName, true
	case "role":
		return u.Role, true
	case "email":
		return u.Email, true
	case "dob":
		return u.DOB, true
	case "gender":
		return u.Gender, true
	case "mobile":
		return u.Mobile, true
	case "city":
		return u.City, true
	case "state":
		return u.State, true
	}
	return "", false
}

// SetField assigns the named editable field. It reports false for unknown
// names, including the id.
func (u *User) SetField(name, value string) bool {
	switch name {
	case "first_name":
		u.FirstName = value
	case "last_name":
		u.LastName = value
	case "role":
		u.Role = value
	case "email":
		u.Email = value
	case "dob":
		u.DOB = value
	case "gender":
		u.Gender = value
	case "mobile":
		u.Mobile = value
	case "city":
		u.City = value
	case "state":
		u.State = value
	default:
		return false
	}
	return true
}

// Credential is the login/registration payload. It only lives in form state
// until it is submitted.
type Credential struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// Upload is a spreadsheet chosen for import.
type Upload struct {
	Name    string
	Content []byte
}
