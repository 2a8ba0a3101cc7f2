package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/user-console/internal/audit"
	"github.com/baechuer/user-console/internal/domain"
	"github.com/baechuer/user-console/internal/downstream"
	"github.com/baechuer/user-console/internal/session"
)

// fakeAPI is an in-memory remote collection that records every call.
type fakeAPI struct {
	users  []domain.User
	calls  []string
	tokens []string

	// onList runs before every list call; tests use it to spend time on
	// the fetch.
	onList func()

	listErr   error
	importErr error
	exportErr error
	updateErr error
	deleteErr error
}

func (f *fakeAPI) record(call, token string) {
	f.calls = append(f.calls, call)
	f.tokens = append(f.tokens, token)
}

func (f *fakeAPI) ListUsers(_ context.Context, token string) ([]domain.User, error) {
	f.record("list", token)
	if f.onList != nil {
		f.onList()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.User(nil), f.users...), nil
}

func (f *fakeAPI) ImportUsers(_ context.Context, token string, file domain.Upload) error {
	f.record("import", token)
	if f.importErr != nil {
		return f.importErr
	}
	f.users = append(f.users, domain.User{ID: "imported-" + file.Name})
	return nil
}

func (f *fakeAPI) ExportUsers(_ context.Context, token string) ([]byte, error) {
	f.record("export", token)
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return []byte("xlsx"), nil
}

func (f *fakeAPI) UpdateUser(_ context.Context, token string, u domain.User) error {
	f.record("update", token)
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.users {
		if f.users[i].ID == u.ID {
			f.users[i] = u
		}
	}
	return nil
}

func (f *fakeAPI) DeleteUser(_ context.Context, token, id string) error {
	f.record("delete", token)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.users[:0]
	for _, u := range f.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	f.users = kept
	return nil
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type recordingPublisher struct {
	events []audit.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt audit.Event) error {
	p.events = append(p.events, evt)
	return nil
}

func validUser(id string) domain.User {
	return domain.User{
		ID:        id,
		FirstName: "Ann",
		LastName:  "Lee",
		Role:      "admin",
		Email:     id + "@x.com",
		DOB:       "1990-01-01",
		Gender:    "female",
		Mobile:    "0123456789",
		City:      "Pune",
		State:     "MH",
	}
}

type fixture struct {
	api   *fakeAPI
	inv   *mockInvalidator
	pub   *recordingPublisher
	clock time.Time
	dir   *Directory
}

func newFixture(t *testing.T, users ...domain.User) *fixture {
	t.Helper()
	f := &fixture{
		api:   &fakeAPI{users: users},
		inv:   new(mockInvalidator),
		pub:   &recordingPublisher{},
		clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	sess := &session.Session{ID: "s1", Token: "T1", Subject: "op@x.com"}
	f.dir = New(sess, f.api, f.inv, Options{Audit: f.pub})
	f.dir.now = func() time.Time { return f.clock }
	require.NoError(t, f.dir.Mount(context.Background()))
	return f
}

func (f *fixture) view() View {
	return f.dir.View(f.clock)
}

func TestMount_FetchesWithToken(t *testing.T) {
	f := newFixture(t, validUser("a"), validUser("b"))

	v := f.view()
	require.Len(t, v.Users, 2)
	assert.True(t, v.CanExport)
	assert.Equal(t, []string{"list"}, f.api.calls)
	assert.Equal(t, []string{"T1"}, f.api.tokens)
}

func TestFetchUsers_FailureKeepsList(t *testing.T) {
	f := newFixture(t, validUser("a"))
	f.api.listErr = downstream.ErrUnavailable

	err := f.dir.FetchUsers(context.Background())
	assert.ErrorIs(t, err, downstream.ErrUnavailable)

	v := f.view()
	assert.Equal(t, MsgFetchFailed, v.ErrorMessage)
	assert.Len(t, v.Users, 1)
}

func TestEmptyList_CannotExport(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.view().CanExport)
	assert.Empty(t, f.view().Users)
}

func TestImportUsers_NoFile(t *testing.T) {
	f := newFixture(t)

	err := f.dir.ImportUsers(context.Background())
	assert.ErrorIs(t, err, ErrNoFile)
	assert.Equal(t, 0, f.api.count("import"))
	assert.Equal(t, MsgNoFile, f.view().ErrorMessage)

	f.clock = f.clock.Add(DefaultNoFileTTL)
	assert.Empty(t, f.view().ErrorMessage)
}

func TestImportUsers_SuccessRefetches(t *testing.T) {
	f := newFixture(t, validUser("a"))

	f.dir.SelectFileForImport(&domain.Upload{Name: "new.xlsx", Content: []byte("x")})
	assert.Equal(t, "new.xlsx", f.view().FileName)

	require.NoError(t, f.dir.ImportUsers(context.Background()))

	v := f.view()
	assert.Empty(t, v.ErrorMessage)
	assert.Empty(t, v.FileName)
	require.Len(t, v.Users, 2)
	assert.Equal(t, "imported-new.xlsx", v.Users[1].ID)
	assert.Equal(t, []string{"list", "import", "list"}, f.api.calls)

	// the refresh already happened; showing the screen does not fetch again
	require.NoError(t, f.dir.Mount(context.Background()))
	assert.Equal(t, 2, f.api.count("list"))

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, audit.UsersImported, f.pub.events[0].Type)
	assert.Equal(t, "op@x.com", f.pub.events[0].Actor)
}

func TestImportUsers_FailureShowsServerMessage(t *testing.T) {
	f := newFixture(t)
	f.dir.SelectFileForImport(&domain.Upload{Name: "bad.xlsx"})

	f.api.importErr = &downstream.StatusError{StatusCode: 400, Message: "Invalid sheet"}
	require.Error(t, f.dir.ImportUsers(context.Background()))
	v := f.view()
	assert.Equal(t, "Invalid sheet", v.ErrorMessage)
	assert.True(t, v.SnackbarOpen)

	f.api.importErr = downstream.ErrTimeout
	require.Error(t, f.dir.ImportUsers(context.Background()))
	assert.Equal(t, MsgImportFailed, f.view().ErrorMessage)

	f.clock = f.clock.Add(DefaultSnackbarTTL)
	assert.False(t, f.view().SnackbarOpen)
	assert.Equal(t, MsgImportFailed, f.view().ErrorMessage)
}

func TestDismissSnackbar(t *testing.T) {
	f := newFixture(t)
	f.dir.SelectFileForImport(&domain.Upload{Name: "bad.xlsx"})
	f.api.importErr = downstream.ErrTimeout
	require.Error(t, f.dir.ImportUsers(context.Background()))
	require.True(t, f.view().SnackbarOpen)

	f.dir.DismissSnackbar()
	assert.False(t, f.view().SnackbarOpen)
	assert.Equal(t, MsgImportFailed, f.view().ErrorMessage)
}

// slowList makes every fetch take latency on the fixture clock.
func (f *fixture) slowList(latency time.Duration) {
	f.api.onList = func() { f.clock = f.clock.Add(latency) }
}

func TestTimedMessages_CountFromFirstView(t *testing.T) {
	t.Run("no file survives redirect and slow fetch", func(t *testing.T) {
		f := newFixture(t, validUser("a"))
		f.slowList(time.Second)

		require.ErrorIs(t, f.dir.ImportUsers(context.Background()), ErrNoFile)
		f.clock = f.clock.Add(time.Second)
		require.NoError(t, f.dir.Mount(context.Background()))

		v := f.view()
		assert.Equal(t, MsgNoFile, v.ErrorMessage)
		assert.Equal(t, DefaultNoFileTTL, v.ErrorHideAfter)
		// the list did not change, so showing the screen did not fetch
		assert.Equal(t, 1, f.api.count("list"))

		f.clock = f.clock.Add(DefaultNoFileTTL)
		assert.Empty(t, f.view().ErrorMessage)
	})

	t.Run("validation snackbar survives redirect", func(t *testing.T) {
		f := newFixture(t, validUser("a"))
		f.slowList(2500 * time.Millisecond)

		require.NoError(t, f.dir.BeginEdit("a"))
		require.NoError(t, f.dir.SetDraftField("mobile", "12345"))
		require.Error(t, f.dir.SaveEdit(context.Background()))
		f.clock = f.clock.Add(2500 * time.Millisecond)
		require.NoError(t, f.dir.Mount(context.Background()))

		v := f.view()
		assert.True(t, v.ModalOpen)
		assert.True(t, v.SnackbarOpen)
		assert.Equal(t, domain.MsgMobileLength, v.ErrorMessage)

		f.clock = f.clock.Add(DefaultSnackbarTTL)
		assert.False(t, f.view().SnackbarOpen)
	})

	t.Run("remote failure snackbar survives slow fetch", func(t *testing.T) {
		f := newFixture(t, validUser("a"))
		f.dir.SelectFileForImport(&domain.Upload{Name: "bad.xlsx"})
		f.api.importErr = downstream.ErrTimeout
		require.Error(t, f.dir.ImportUsers(context.Background()))

		f.slowList(3 * time.Second)
		require.NoError(t, f.dir.Mount(context.Background()))

		v := f.view()
		assert.True(t, v.SnackbarOpen)
		assert.Equal(t, MsgImportFailed, v.ErrorMessage)
	})
}

func TestImportUsers_NoFileBeforeFirstFetchStillFetches(t *testing.T) {
	api := &fakeAPI{users: []domain.User{validUser("a")}}
	d := New(&session.Session{ID: "s1", Token: "T1"}, api, nil, Options{})

	require.ErrorIs(t, d.ImportUsers(context.Background()), ErrNoFile)
	require.NoError(t, d.Mount(context.Background()))
	assert.Equal(t, 1, api.count("list"))
	assert.Len(t, d.View(time.Now()).Users, 1)
}

func TestExportUsers_EmptyListCallsNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.dir.ExportUsers(context.Background())
	assert.ErrorIs(t, err, ErrEmptyList)
	assert.Equal(t, 0, f.api.count("export"))
}

func TestDraftID(t *testing.T) {
	f := newFixture(t, validUser("a"))
	assert.Empty(t, f.dir.DraftID())
	require.NoError(t, f.dir.BeginEdit("a"))
	assert.Equal(t, "a", f.dir.DraftID())
}

func TestExportUsers(t *testing.T) {
	f := newFixture(t, validUser("a"))

	body, err := f.dir.ExportUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), body)
	assert.Equal(t, "T1", f.api.tokens[len(f.api.tokens)-1])

	f.api.exportErr = &downstream.StatusError{StatusCode: 500, Message: "disk full"}
	_, err = f.dir.ExportUsers(context.Background())
	require.Error(t, err)
	assert.Equal(t, MsgExportFailed, f.view().ErrorMessage)
}

func TestBeginEdit_CopiesRecord(t *testing.T) {
	f := newFixture(t, validUser("a"))

	require.NoError(t, f.dir.BeginEdit("a"))
	require.NoError(t, f.dir.SetDraftField("first_name", "Changed"))

	v := f.view()
	assert.True(t, v.ModalOpen)
	require.NotNil(t, v.Draft)
	assert.Equal(t, "Changed", v.Draft.FirstName)
	// the list is untouched until the server confirms
	assert.Equal(t, "Ann", v.Users[0].FirstName)

	assert.ErrorIs(t, f.dir.BeginEdit("missing"), ErrUserNotFound)
	assert.ErrorIs(t, f.dir.SetDraftField("_id", "x"), ErrUnknownField)
}

func TestCancelEdit(t *testing.T) {
	f := newFixture(t, validUser("a"))
	require.NoError(t, f.dir.BeginEdit("a"))
	require.NoError(t, f.dir.SetDraftField("mobile", "1"))
	require.Error(t, f.dir.SaveEdit(context.Background()))

	f.dir.CancelEdit()
	v := f.view()
	assert.False(t, v.ModalOpen)
	assert.Nil(t, v.Draft)
	assert.Empty(t, v.ErrorMessage)
	assert.ErrorIs(t, f.dir.SaveEdit(context.Background()), ErrNoDraft)
}

func TestSaveEdit_MissingFieldsNeverPut(t *testing.T) {
	fields := []string{"first_name", "last_name", "role", "email", "dob", "gender", "city", "state"}

	for _, field := range fields {
		t.Run(field, func(t *testing.T) {
			f := newFixture(t, validUser("a"))
			require.NoError(t, f.dir.BeginEdit("a"))
			require.NoError(t, f.dir.SetDraftField(field, "   "))

			err := f.dir.SaveEdit(context.Background())
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, []string{field}, ve.Missing)
			assert.Equal(t, field+" is missing;", f.view().ErrorMessage)
			assert.Equal(t, 0, f.api.count("update"))
			assert.True(t, f.view().ModalOpen)
			assert.True(t, f.view().SnackbarOpen)
		})
	}
}

func TestSaveEdit_ListsEveryMissingField(t *testing.T) {
	f := newFixture(t, validUser("a"))
	require.NoError(t, f.dir.BeginEdit("a"))
	require.NoError(t, f.dir.SetDraftField("role", ""))
	require.NoError(t, f.dir.SetDraftField("city", ""))

	require.Error(t, f.dir.SaveEdit(context.Background()))
	assert.Equal(t, "role, city is missing;", f.view().ErrorMessage)
	assert.Equal(t, 0, f.api.count("update"))
}

func TestSaveEdit_MobileLengthWins(t *testing.T) {
	for _, mobile := range []string{"12345", "01234567890", ""} {
		f := newFixture(t, validUser("a"))
		require.NoError(t, f.dir.BeginEdit("a"))
		require.NoError(t, f.dir.SetDraftField("mobile", mobile))
		require.NoError(t, f.dir.SetDraftField("first_name", ""))

		require.Error(t, f.dir.SaveEdit(context.Background()))
		assert.Equal(t, domain.MsgMobileLength, f.view().ErrorMessage, "mobile %q", mobile)
		assert.Equal(t, 0, f.api.count("update"))
	}
}

func TestSaveEdit_ReplacesAtSamePosition(t *testing.T) {
	f := newFixture(t, validUser("a"), validUser("b"), validUser("c"))

	require.NoError(t, f.dir.BeginEdit("b"))
	require.NoError(t, f.dir.SetDraftField("city", "Goa"))
	require.NoError(t, f.dir.SaveEdit(context.Background()))

	v := f.view()
	require.Len(t, v.Users, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{v.Users[0].ID, v.Users[1].ID, v.Users[2].ID})
	assert.Equal(t, "Goa", v.Users[1].City)
	assert.False(t, v.ModalOpen)
	assert.Nil(t, v.Draft)
	assert.Equal(t, "T1", f.api.tokens[len(f.api.tokens)-1])

	// optimistic patch is rendered without another fetch
	listsBefore := f.api.count("list")
	require.NoError(t, f.dir.Mount(context.Background()))
	assert.Equal(t, listsBefore, f.api.count("list"))

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, audit.UserUpdated, f.pub.events[0].Type)
	assert.Equal(t, "b", f.pub.events[0].Target)
}

func TestSaveEdit_ServerFailureKeepsModal(t *testing.T) {
	f := newFixture(t, validUser("a"))
	f.api.updateErr = &downstream.StatusError{StatusCode: 409, Message: "Email already used"}

	require.NoError(t, f.dir.BeginEdit("a"))
	require.NoError(t, f.dir.SetDraftField("email", "dup@x.com"))
	require.Error(t, f.dir.SaveEdit(context.Background()))

	v := f.view()
	assert.True(t, v.ModalOpen)
	assert.Equal(t, "dup@x.com", v.Draft.Email)
	assert.Equal(t, "Email already used", v.ErrorMessage)
	assert.Equal(t, "a@x.com", v.Users[0].Email)

	f.api.updateErr = errors.New("boom")
	require.Error(t, f.dir.SaveEdit(context.Background()))
	assert.Equal(t, MsgUpdateFailed, f.view().ErrorMessage)
}

func TestDeleteUser_Refetches(t *testing.T) {
	f := newFixture(t, validUser("a"), validUser("b"))

	require.NoError(t, f.dir.DeleteUser(context.Background(), "a"))

	v := f.view()
	require.Len(t, v.Users, 1)
	assert.Equal(t, "b", v.Users[0].ID)
	assert.Equal(t, []string{"list", "delete", "list"}, f.api.calls)
	assert.Equal(t, audit.UserDeleted, f.pub.events[0].Type)
}

func TestDeleteUser_Failure(t *testing.T) {
	f := newFixture(t, validUser("a"))

	f.api.deleteErr = &downstream.StatusError{StatusCode: 403, Message: "Not allowed"}
	require.Error(t, f.dir.DeleteUser(context.Background(), "a"))
	assert.Equal(t, "Not allowed", f.view().ErrorMessage)

	f.api.deleteErr = downstream.ErrUnavailable
	require.Error(t, f.dir.DeleteUser(context.Background(), "a"))
	assert.Equal(t, MsgDeleteFailed, f.view().ErrorMessage)
	assert.Len(t, f.view().Users, 1)
}

func TestLogout_InvalidatesSession(t *testing.T) {
	f := newFixture(t, validUser("a"))
	f.inv.On("Invalidate", mock.Anything, "s1").Return(nil)

	require.NoError(t, f.dir.Logout(context.Background()))

	f.inv.AssertExpectations(t)
	assert.Empty(t, f.dir.token())
	assert.Empty(t, f.view().Users)
	assert.Equal(t, audit.SessionEnded, f.pub.events[0].Type)
}

func TestRegistry_OneDirectoryPerSession(t *testing.T) {
	api := &fakeAPI{}
	r := NewRegistry(api, nil, time.Hour, Options{})

	s1 := &session.Session{ID: "s1", Token: "T1"}
	d1 := r.For(s1)
	assert.Same(t, d1, r.For(s1))
	assert.NotSame(t, d1, r.For(&session.Session{ID: "s2", Token: "T2"}))
	assert.Equal(t, 2, r.Len())

	r.Drop("s1")
	assert.Equal(t, 1, r.Len())
	assert.NotSame(t, d1, r.For(s1))
}

func TestRegistry_SweepsIdle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(&fakeAPI{}, nil, time.Minute, Options{})
	r.now = func() time.Time { return now }

	r.For(&session.Session{ID: "old", Token: "T"})
	now = now.Add(2 * time.Minute)
	r.For(&session.Session{ID: "new", Token: "T"})

	assert.Equal(t, 1, r.Len())
}
