package directory

import (
	"time"

	"github.com/baechuer/user-console/internal/domain"
)

// View is an immutable snapshot of the screen for rendering.
type View struct {
	Users        []domain.User
	Draft        *domain.User
	ErrorMessage string
	ModalOpen    bool
	SnackbarOpen bool
	// CanExport is false while the list is empty.
	CanExport bool
	FileName  string
	// ErrorHideAfter is how long a timed ErrorMessage stays up; zero for
	// messages that stay until replaced.
	ErrorHideAfter time.Duration
}

// View returns the screen as of now. Expired messages and notifications
// are left out; the first View to show a timed one starts its countdown.
func (d *Directory) View(now time.Time) View {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := View{
		Users:     append([]domain.User(nil), d.users...),
		ModalOpen: d.modalOpen,
		CanExport: len(d.users) > 0,
	}
	if d.selected != nil {
		draft := *d.selected
		v.Draft = &draft
	}
	if d.file != nil {
		v.FileName = d.file.Name
	}

	switch {
	case d.errorMessage == "":
	case d.errorTTL == 0:
		v.ErrorMessage = d.errorMessage
	default:
		if d.errorExpires.IsZero() {
			d.errorExpires = now.Add(d.errorTTL)
		}
		if now.Before(d.errorExpires) {
			v.ErrorMessage = d.errorMessage
			v.ErrorHideAfter = d.errorExpires.Sub(now)
		}
	}

	if d.snackbarOpen && v.ErrorMessage != "" {
		if d.snackbarExpires.IsZero() {
			d.snackbarExpires = now.Add(d.opts.SnackbarTTL)
		}
		v.SnackbarOpen = now.Before(d.snackbarExpires)
	}
	return v
}
