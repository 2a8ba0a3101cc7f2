package views

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/baechuer/user-console/internal/directory"
	"github.com/baechuer/user-console/internal/domain"
)

//go:embed templates/*.html
var files embed.FS

// Columns is the table header, in display order.
var Columns = []string{"First Name", "Last Name", "Role", "DOB", "Gender", "Email", "Mobile", "City", "State", "Actions"}

var fieldLabels = map[string]string{
	"first_name": "First Name",
	"last_name":  "Last Name",
	"role":       "Role",
	"email":      "Email",
	"dob":        "DOB",
	"gender":     "Gender",
	"mobile":     "Mobile",
	"city":       "City",
	"state":      "State",
}

type LoginPage struct {
	Register     bool
	Email        string
	ErrorMessage string
	Notice       string
}

type UsersPage struct {
	View directory.View
}

type Field struct {
	Label string
	Name  string
	Value string
}

type Renderer struct {
	login       *template.Template
	users       *template.Template
	snackbarTTL time.Duration
}

func New(snackbarTTL time.Duration) (*Renderer, error) {
	login, err := template.ParseFS(files, "templates/layout.html", "templates/login.html")
	if err != nil {
		return nil, err
	}
	users, err := template.ParseFS(files, "templates/layout.html", "templates/users.html")
	if err != nil {
		return nil, err
	}
	if snackbarTTL <= 0 {
		snackbarTTL = directory.DefaultSnackbarTTL
	}
	return &Renderer{login: login, users: users, snackbarTTL: snackbarTTL}, nil
}

func (r *Renderer) Login(w http.ResponseWriter, status int, p LoginPage) error {
	title := "Login"
	if p.Register {
		title = "Register"
	}
	return r.render(w, status, r.login, map[string]any{
		"Title":          title,
		"SnackbarMillis": r.snackbarTTL.Milliseconds(),
		"Register":       p.Register,
		"Email":          p.Email,
		"ErrorMessage":   p.ErrorMessage,
		"Notice":         p.Notice,
	})
}

func (r *Renderer) Users(w http.ResponseWriter, status int, p UsersPage) error {
	return r.render(w, status, r.users, map[string]any{
		"Title":          "Users",
		"SnackbarMillis": r.snackbarTTL.Milliseconds(),
		"View":           p.View,
		"Columns":        Columns,
		"DraftFields":    draftFields(p.View.Draft),
	})
}

// render buffers the page so a template error never leaves a half-written
// response.
func (r *Renderer) render(w http.ResponseWriter, status int, t *template.Template, data any) error {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func draftFields(draft *domain.User) []Field {
	if draft == nil {
		return nil
	}
	out := make([]Field, 0, len(domain.EditableFields))
	for _, name := range domain.EditableFields {
		v, _ := draft.Field(name)
		out = append(out, Field{Label: fieldLabels[name], Name: name, Value: v})
	}
	return out
}
