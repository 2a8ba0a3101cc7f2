package directory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/baechuer/user-console/internal/audit"
	"github.com/baechuer/user-console/internal/domain"
	"github.com/baechuer/user-console/internal/downstream"
	"github.com/baechuer/user-console/internal/logger"
	"github.com/baechuer/user-console/internal/session"
	"github.com/baechuer/user-console/internal/tracing"
)

const (
	MsgFetchFailed  = "Failed to fetch users"
	MsgNoFile       = "Please select an Excel file."
	MsgImportFailed = "Something went wrong!"
	MsgExportFailed = "Failed to export users"
	MsgUpdateFailed = "Failed to update user"
	MsgDeleteFailed = "Error while deleting user"

	DefaultNoFileTTL   = 900 * time.Millisecond
	DefaultSnackbarTTL = 2 * time.Second
)

var (
	ErrNoFile       = errors.New("no file selected")
	ErrNoDraft      = errors.New("no user is being edited")
	ErrUserNotFound = errors.New("user not in list")
	ErrUnknownField = errors.New("unknown or read-only field")
	ErrEmptyList    = errors.New("no users to export")
)

// UserAPI is implemented by downstream.UserClient. The token is passed on
// every call and sent as the access-token header.
type UserAPI interface {
	ListUsers(ctx context.Context, token string) ([]domain.User, error)
	ImportUsers(ctx context.Context, token string, file domain.Upload) error
	ExportUsers(ctx context.Context, token string) ([]byte, error)
	UpdateUser(ctx context.Context, token string, u domain.User) error
	DeleteUser(ctx context.Context, token, id string) error
}

// SessionInvalidator removes a session from the store on logout.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, id string) error
}

type Options struct {
	NoFileTTL   time.Duration
	SnackbarTTL time.Duration
	Audit       audit.Publisher
}

// Directory is the state of the user management screen for one session.
// The in-memory list mirrors the last fetch; the remote API stays the
// source of truth.
type Directory struct {
	mu sync.Mutex

	sess     *session.Session
	api      UserAPI
	sessions SessionInvalidator
	audit    audit.Publisher
	opts     Options
	now      func() time.Time

	users    []domain.User
	selected *domain.User
	file     *domain.Upload

	// Timed messages start counting down when a View first shows them,
	// not when the operation ran: the page that shows them is built after
	// a redirect and possibly a fetch.
	errorMessage    string
	errorTTL        time.Duration
	errorExpires    time.Time
	modalOpen       bool
	snackbarOpen    bool
	snackbarExpires time.Time

	// fresh is set when an operation already left the list current, so the
	// next Mount renders it without a fetch.
	fresh  bool
	loaded bool

	// unix nanos, read by the registry sweep without taking mu
	lastUsed atomic.Int64
}

func New(sess *session.Session, api UserAPI, sessions SessionInvalidator, opts Options) *Directory {
	if opts.NoFileTTL <= 0 {
		opts.NoFileTTL = DefaultNoFileTTL
	}
	if opts.SnackbarTTL <= 0 {
		opts.SnackbarTTL = DefaultSnackbarTTL
	}
	d := &Directory{
		sess:     sess,
		api:      api,
		sessions: sessions,
		audit:    opts.Audit,
		opts:     opts,
		now:      time.Now,
		users:    []domain.User{},
	}
	d.touch()
	return d
}

func (d *Directory) token() string {
	if d.sess == nil {
		return ""
	}
	return d.sess.Token
}

func (d *Directory) actor() string {
	if d.sess == nil {
		return ""
	}
	return d.sess.Subject
}

func (d *Directory) touch() {
	d.lastUsed.Store(d.now().UnixNano())
}

func (d *Directory) setError(msg string) {
	d.errorMessage = msg
	d.errorTTL = 0
	d.errorExpires = time.Time{}
}

func (d *Directory) setTimedError(msg string, ttl time.Duration) {
	d.setError(msg)
	d.errorTTL = ttl
}

func (d *Directory) openSnackbar() {
	d.snackbarOpen = true
	d.snackbarExpires = time.Time{}
}

// Mount runs when the screen is shown. It fetches unless the previous
// operation already left the list current.
func (d *Directory) Mount(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()

	if d.fresh {
		d.fresh = false
		return nil
	}
	return d.fetchLocked(ctx)
}

// FetchUsers replaces the whole list with the remote collection.
func (d *Directory) FetchUsers(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()
	return d.fetchLocked(ctx)
}

func (d *Directory) fetchLocked(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "directory.fetch_users")
	defer span.End()

	users, err := d.api.ListUsers(ctx, d.token())
	if err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Warn().Err(err).Msg("fetch_users_failed")
		d.setError(MsgFetchFailed)
		return err
	}
	if users == nil {
		users = []domain.User{}
	}
	d.users = users
	d.loaded = true
	span.SetAttributes(attribute.Int("users.count", len(users)))
	return nil
}

// SelectFileForImport stores the chosen spreadsheet. nil clears it.
func (d *Directory) SelectFileForImport(f *domain.Upload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()
	d.file = f
}

// ImportUsers uploads the selected file and refreshes the list.
func (d *Directory) ImportUsers(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "directory.import_users")
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()

	if d.file == nil {
		d.setTimedError(MsgNoFile, d.opts.NoFileTTL)
		// nothing was sent, the list is as current as it was
		d.fresh = d.loaded
		return ErrNoFile
	}

	file := *d.file
	if err := d.api.ImportUsers(ctx, d.token(), file); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("file", file.Name).Msg("import_users_failed")
		d.setError(downstream.MessageOr(err, MsgImportFailed))
		d.openSnackbar()
		return err
	}

	d.setError("")
	d.file = nil

	evt := audit.NewEvent(ctx, audit.UsersImported, d.actor(), "")
	evt.Attrs = map[string]string{"file": file.Name, "bytes": strconv.Itoa(len(file.Content))}
	audit.Record(ctx, d.audit, evt)

	if err := d.fetchLocked(ctx); err != nil {
		return err
	}
	d.fresh = true
	return nil
}

// ExportUsers downloads the spreadsheet of all users.
func (d *Directory) ExportUsers(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()

	if len(d.users) == 0 {
		return nil, ErrEmptyList
	}

	body, err := d.api.ExportUsers(ctx, d.token())
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("export_users_failed")
		d.setError(MsgExportFailed)
		return nil, err
	}

	evt := audit.NewEvent(ctx, audit.UsersExported, d.actor(), "")
	evt.Attrs = map[string]string{"bytes": strconv.Itoa(len(body))}
	audit.Record(ctx, d.audit, evt)
	return body, nil
}

// BeginEdit copies the user with the given id into the draft and opens the
// edit modal.
func (d *Directory) BeginEdit(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()

	i := d.indexOf(id)
	if i < 0 {
		return ErrUserNotFound
	}
	draft := d.users[i]
	d.selected = &draft
	d.modalOpen = true
	return nil
}

// SetDraftField applies one form change to the draft.
func (d *Directory) SetDraftField(name, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.selected == nil {
		return ErrNoDraft
	}
	if !d.selected.SetField(name, value) {
		return ErrUnknownField
	}
	return nil
}

// CancelEdit discards the draft and closes the modal.
func (d *Directory) CancelEdit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()

	d.selected = nil
	d.modalOpen = false
	d.setError("")
}

// SaveEdit validates the draft, sends it and patches the local list in
// place. On any failure the modal stays open.
func (d *Directory) SaveEdit(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "directory.save_edit")
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()

	if d.selected == nil {
		return ErrNoDraft
	}
	draft := *d.selected

	if err := domain.ValidateDraft(draft); err != nil {
		d.setError(err.Error())
		d.openSnackbar()
		d.fresh = true
		return err
	}

	if err := d.api.UpdateUser(ctx, d.token(), draft); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("user_id", draft.ID).Msg("update_user_failed")
		d.setError(downstream.MessageOr(err, MsgUpdateFailed))
		d.openSnackbar()
		return err
	}

	// optimistic patch, authoritative only until the next fetch
	if i := d.indexOf(draft.ID); i >= 0 {
		d.users[i] = draft
	}
	d.selected = nil
	d.modalOpen = false
	d.setError("")
	d.fresh = true

	audit.Record(ctx, d.audit, audit.NewEvent(ctx, audit.UserUpdated, d.actor(), draft.ID))
	return nil
}

// DeleteUser removes the user remotely and re-fetches the list.
func (d *Directory) DeleteUser(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "directory.delete_user")
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()

	if err := d.api.DeleteUser(ctx, d.token(), id); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("user_id", id).Msg("delete_user_failed")
		d.setError(downstream.MessageOr(err, MsgDeleteFailed))
		return err
	}

	audit.Record(ctx, d.audit, audit.NewEvent(ctx, audit.UserDeleted, d.actor(), id))

	if err := d.fetchLocked(ctx); err != nil {
		return err
	}
	d.fresh = true
	return nil
}

// Logout removes the session from the store and resets the screen. The
// caller clears the cookie.
func (d *Directory) Logout(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.sess != nil && d.sessions != nil {
		err = d.sessions.Invalidate(ctx, d.sess.ID)
		audit.Record(ctx, d.audit, audit.NewEvent(ctx, audit.SessionEnded, d.actor(), ""))
		d.sess.Token = ""
	}

	d.users = []domain.User{}
	d.selected = nil
	d.file = nil
	d.modalOpen = false
	d.snackbarOpen = false
	d.fresh = false
	d.loaded = false
	d.setError("")
	return err
}

// DraftID returns the id of the user being edited, or "" when the modal is
// closed.
func (d *Directory) DraftID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil {
		return ""
	}
	return d.selected.ID
}

// DismissSnackbar closes the transient notification early.
func (d *Directory) DismissSnackbar() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snackbarOpen = false
}

func (d *Directory) indexOf(id string) int {
	for i := range d.users {
		if d.users[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Directory) idleSince() time.Time {
	return time.Unix(0, d.lastUsed.Load())
}
