package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounts/internal/domain"
	"accounts/internal/repository"
	"accounts/internal/repository/sqlite"
)

// --- helpers ---

func newSQLiteUserService(t *testing.T) UserService {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return NewUserService(repo)
}

type recordingUsersRepo struct {
	repository.UserRepository
	creates int
}

func (r *recordingUsersRepo) Create(context.Context, *domain.User) (int64, error) {
	r.creates++
	return int64(r.creates), nil
}

// --- manager ---

func TestCreateUserWithEmailSuccessful(t *testing.T) {
	svc := newSQLiteUserService(t)

	user, err := svc.CreateUser(context.Background(), "test@example.com", "testpassword123")
	require.NoError(t, err)

	assert.Equal(t, "test@example.com", user.Email)
	assert.True(t, user.CheckPassword("testpassword123"))
	assert.NotEqual(t, "testpassword123", user.PasswordHash)
	assert.False(t, user.IsStaff)
	assert.False(t, user.IsSuperuser)
	assert.True(t, user.IsActive)
}

func TestCreateUserWithLongPassword(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteUserService(t)
	password := strings.Repeat("x", 73)

	user, err := svc.CreateUser(ctx, "long@example.com", password)
	require.NoError(t, err)
	assert.True(t, user.CheckPassword(password))

	superuser, err := svc.CreateSuperuser(ctx, "longadmin@example.com", password+password)
	require.NoError(t, err)
	assert.True(t, superuser.CheckPassword(password+password))

	_, err = svc.Authenticate(ctx, "long@example.com", password)
	assert.NoError(t, err)
}

func TestCreateUserWithoutEmailFails(t *testing.T) {
	repo := &recordingUsersRepo{}
	svc := NewUserService(repo)

	for _, email := range []string{"", "   "} {
		_, err := svc.CreateUser(context.Background(), email, "testpassword123")
		require.ErrorIs(t, err, domain.ErrEmailRequired)
		assert.True(t, domain.IsValidation(err))
	}
	assert.Zero(t, repo.creates)
}

func TestCreateUserFlagOverrides(t *testing.T) {
	svc := newSQLiteUserService(t)

	user, err := svc.CreateUser(context.Background(), "staff@example.com", "testpassword123", WithStaff(true), WithActive(false))
	require.NoError(t, err)
	assert.True(t, user.IsStaff)
	assert.False(t, user.IsSuperuser)
	assert.False(t, user.IsActive)
}

func TestCreateUserWithoutPasswordIsUnusable(t *testing.T) {
	svc := newSQLiteUserService(t)

	user, err := svc.CreateUser(context.Background(), "nopass@example.com", "")
	require.NoError(t, err)
	assert.False(t, user.HasUsablePassword())
	assert.False(t, user.CheckPassword(""))
}

func TestCreateSuperuserSuccessful(t *testing.T) {
	svc := newSQLiteUserService(t)

	superuser, err := svc.CreateSuperuser(context.Background(), "admin@example.com", "adminpassword123")
	require.NoError(t, err)

	assert.Equal(t, "admin@example.com", superuser.Email)
	assert.True(t, superuser.CheckPassword("adminpassword123"))
	assert.True(t, superuser.IsStaff)
	assert.True(t, superuser.IsSuperuser)

	stored, err := svc.GetByID(context.Background(), superuser.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsStaff)
	assert.True(t, stored.IsSuperuser)
}

func TestCreateSuperuserRejectsDisabledFlags(t *testing.T) {
	tests := []struct {
		name    string
		opt     UserOption
		wantErr error
	}{
		{name: "is_staff false", opt: WithStaff(false), wantErr: domain.ErrSuperuserNotStaff},
		{name: "is_superuser false", opt: WithSuperuser(false), wantErr: domain.ErrSuperuserNotSuperuser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &recordingUsersRepo{}
			svc := NewUserService(repo)

			_, err := svc.CreateSuperuser(context.Background(), "admin@example.com", "adminpassword123", tt.opt)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, repo.creates)
		})
	}
}

func TestCreateSuperuserAcceptsExplicitTrueFlags(t *testing.T) {
	repo := &recordingUsersRepo{}
	svc := NewUserService(repo)

	user, err := svc.CreateSuperuser(context.Background(), "admin@example.com", "adminpassword123", WithStaff(true), WithSuperuser(true))
	require.NoError(t, err)
	assert.True(t, user.IsStaff)
	assert.True(t, user.IsSuperuser)
	assert.Equal(t, 1, repo.creates)
}

// --- model ---

func TestUserEmailNormalized(t *testing.T) {
	svc := newSQLiteUserService(t)

	user, err := svc.CreateUser(context.Background(), "Test@EXAMPLE.com", "testpassword123")
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", user.Email)

	stored, err := svc.GetByEmail(context.Background(), "TEST@example.COM")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

func TestUserEmailUnique(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteUserService(t)

	first, err := svc.CreateUser(ctx, "unique@example.com", "testpassword123")
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "unique@example.com", "otherpassword456")
	require.ErrorIs(t, err, repository.ErrConflict)
	assert.False(t, domain.IsValidation(err))

	_, err = svc.CreateUser(ctx, "UNIQUE@example.com", "otherpassword456")
	require.ErrorIs(t, err, repository.ErrConflict)

	stored, err := svc.GetByEmail(ctx, "unique@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.True(t, stored.CheckPassword("testpassword123"))
}

func TestUserUsernameIsNil(t *testing.T) {
	svc := newSQLiteUserService(t)

	user, err := svc.CreateUser(context.Background(), "test@example.com", "testpassword123")
	require.NoError(t, err)
	assert.Nil(t, user.Username)
}

func TestUserHasDateJoined(t *testing.T) {
	svc := newSQLiteUserService(t)

	user, err := svc.CreateUser(context.Background(), "test@example.com", "testpassword123")
	require.NoError(t, err)
	assert.False(t, user.DateJoined.IsZero())
}

func TestUserLastLoginIsNil(t *testing.T) {
	svc := newSQLiteUserService(t)

	user, err := svc.CreateUser(context.Background(), "test@example.com", "testpassword123")
	require.NoError(t, err)
	assert.Nil(t, user.LastLogin)

	stored, err := svc.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastLogin)
}

// --- authentication and password changes ---

func TestAuthenticateStampsLastLogin(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteUserService(t)
	loginAt := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	svc.(*userService).now = func() time.Time { return loginAt }

	created, err := svc.CreateUser(ctx, "login@example.com", "testpassword123")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, " Login@Example.com ", "testpassword123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	require.NotNil(t, user.LastLogin)
	assert.True(t, user.LastLogin.Equal(loginAt))

	stored, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(loginAt))
}

func TestAuthenticateRejects(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteUserService(t)

	_, err := svc.CreateUser(ctx, "login@example.com", "testpassword123")
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "inactive@example.com", "testpassword123", WithActive(false))
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "nopass@example.com", "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "login@example.com", password: "nope"},
		{name: "unknown email", email: "missing@example.com", password: "testpassword123"},
		{name: "inactive user", email: "inactive@example.com", password: "testpassword123"},
		{name: "unusable password", email: "nopass@example.com", password: "anything"},
		{name: "empty email", email: "", password: "testpassword123"},
		{name: "empty password", email: "login@example.com", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestSetPassword(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteUserService(t)

	user, err := svc.CreateUser(ctx, "change@example.com", "oldpassword123")
	require.NoError(t, err)

	require.NoError(t, svc.SetPassword(ctx, user.ID, "newpassword456"))

	_, err = svc.Authenticate(ctx, "change@example.com", "oldpassword123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "change@example.com", "newpassword456")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.SetPassword(ctx, 999, "whatever123"), repository.ErrNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteUserService(t)

	_, err := svc.CreateUser(ctx, "a@example.com", "testpassword123")
	require.NoError(t, err)
	_, err = svc.CreateSuperuser(ctx, "b@example.com", "testpassword123")
	require.NoError(t, err)

	users, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.False(t, users[0].IsSuperuser)
	assert.True(t, users[1].IsSuperuser)
}
