package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/user-console/internal/audit"
	"github.com/baechuer/user-console/internal/directory"
	"github.com/baechuer/user-console/internal/domain"
	"github.com/baechuer/user-console/internal/downstream"
	"github.com/baechuer/user-console/internal/logger"
	"github.com/baechuer/user-console/internal/views"
	"github.com/baechuer/user-console/middleware"
)

const exportFilename = "users.xlsx"

// UsersHandler serves the user directory screen. Every handler here runs
// behind the session gate.
type UsersHandler struct {
	registry  *directory.Registry
	sessions  SessionManager
	views     *views.Renderer
	audit     audit.Publisher
	maxUpload int64
	now       func() time.Time
}

func NewUsersHandler(reg *directory.Registry, sessions SessionManager, v *views.Renderer, pub audit.Publisher, maxUpload int64) *UsersHandler {
	return &UsersHandler{
		registry:  reg,
		sessions:  sessions,
		views:     v,
		audit:     pub,
		maxUpload: maxUpload,
		now:       time.Now,
	}
}

func (h *UsersHandler) directory(r *http.Request) *directory.Directory {
	return h.registry.For(middleware.GetSession(r.Context()))
}

// after finishes an action: a rejected token ends the session, anything
// else goes back to the screen, which shows the outcome.
func (h *UsersHandler) after(w http.ResponseWriter, r *http.Request, err error) {
	if isUnauthorized(err) {
		expire(w, r, h.sessions, h.registry.Drop, h.audit)
		return
	}
	seeOther(w, r, UsersPath)
}

// List handles GET /users. Showing the screen is its mount.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	d := h.directory(r)
	if err := d.Mount(r.Context()); isUnauthorized(err) {
		expire(w, r, h.sessions, h.registry.Drop, h.audit)
		return
	}

	if err := h.views.Users(w, http.StatusOK, views.UsersPage{View: d.View(h.now())}); err != nil {
		renderFailed(w, r, err)
	}
}

// Import handles POST /users/import. Choosing the file and uploading it
// arrive in the same request.
func (h *UsersHandler) Import(w http.ResponseWriter, r *http.Request) {
	d := h.directory(r)

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, r, "upload_too_large", "file exceeds upload limit", http.StatusRequestEntityTooLarge)
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			http.Error(w, "invalid upload", http.StatusBadRequest)
			return
		}
	}

	d.SelectFileForImport(nil)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
		f, hdr, err := r.FormFile(downstream.ImportPart)
		switch {
		case err == nil:
			content, rerr := io.ReadAll(f)
			f.Close()
			if rerr != nil {
				http.Error(w, "invalid upload", http.StatusBadRequest)
				return
			}
			d.SelectFileForImport(&domain.Upload{Name: hdr.Filename, Content: content})
		case !errors.Is(err, http.ErrMissingFile):
			http.Error(w, "invalid upload", http.StatusBadRequest)
			return
		}
	}

	err := d.ImportUsers(r.Context())
	if err != nil && !errors.Is(err, directory.ErrNoFile) {
		logger.Ctx(r.Context()).Info().Err(err).Msg("import_rejected")
	}
	h.after(w, r, err)
}

// Export handles GET /users/export and streams the spreadsheet back as a
// download named users.xlsx. An empty list has nothing to offer and goes
// back to the screen.
func (h *UsersHandler) Export(w http.ResponseWriter, r *http.Request) {
	body, err := h.directory(r).ExportUsers(r.Context())
	if err != nil {
		h.after(w, r, err)
		return
	}

	w.Header().Set("Content-Type", downstream.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Edit handles POST /users/{id}/edit and opens the modal. It is a POST so
// that link prefetching cannot open it.
func (h *UsersHandler) Edit(w http.ResponseWriter, r *http.Request) {
	if err := h.directory(r).BeginEdit(chi.URLParam(r, "id")); err != nil {
		logger.Ctx(r.Context()).Debug().Err(err).Msg("edit_unknown_user")
	}
	seeOther(w, r, UsersPath)
}

// Save handles POST /users/{id}: the posted form is applied to the draft
// field by field, then saved.
func (h *UsersHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	d := h.directory(r)
	id := chi.URLParam(r, "id")

	// a form from another tab may target a different user than the draft
	if d.DraftID() != id {
		if err := d.BeginEdit(id); err != nil {
			seeOther(w, r, UsersPath)
			return
		}
	}

	for _, name := range domain.EditableFields {
		if vals, ok := r.PostForm[name]; ok && len(vals) > 0 {
			_ = d.SetDraftField(name, vals[0])
		}
	}

	h.after(w, r, d.SaveEdit(r.Context()))
}

// Cancel handles POST /users/{id}/cancel.
func (h *UsersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.directory(r).CancelEdit()
	seeOther(w, r, UsersPath)
}

// DismissSnackbar handles POST /users/snackbar/dismiss.
func (h *UsersHandler) DismissSnackbar(w http.ResponseWriter, r *http.Request) {
	h.directory(r).DismissSnackbar()
	seeOther(w, r, UsersPath)
}

// Delete handles POST /users/{id}/delete.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.after(w, r, h.directory(r).DeleteUser(r.Context(), chi.URLParam(r, "id")))
}

// Logout handles POST /logout.
func (h *UsersHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if err := h.directory(r).Logout(r.Context()); err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("session_invalidate_failed")
	}
	h.sessions.ClearCookie(w)
	h.registry.Drop(sess.ID)

	logger.Ctx(r.Context()).Info().Msg("session_ended")
	seeOther(w, r, middleware.LoginPath)
}
