package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accounts/internal/domain"
	"accounts/internal/repository"
)

// ErrInvalidCredentials indicates that provided login credentials are incorrect.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService creates and looks up accounts.
type UserService interface {
	CreateUser(ctx context.Context, email, password string, opts ...UserOption) (*domain.User, error)
	CreateSuperuser(ctx context.Context, email, password string, opts ...UserOption) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	SetPassword(ctx context.Context, id int64, password string) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// UserOption overrides a flag on a user being created. Only flags that were
// passed explicitly are recorded.
type UserOption func(*extraFields)

type extraFields struct {
	isStaff     *bool
	isSuperuser *bool
	isActive    *bool
}

func WithStaff(v bool) UserOption {
	return func(f *extraFields) { f.isStaff = &v }
}

func WithSuperuser(v bool) UserOption {
	return func(f *extraFields) { f.isSuperuser = &v }
}

func WithActive(v bool) UserOption {
	return func(f *extraFields) { f.isActive = &v }
}

func collectFields(opts []UserOption) extraFields {
	var f extraFields
	for _, opt := range opts {
		if opt != nil {
			opt(&f)
		}
	}
	return f
}

func setDefault(field **bool, v bool) {
	if *field == nil {
		*field = &v
	}
}

type userService struct {
	users repository.UserRepository
	now   func() time.Time
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{
		users: users,
		now:   time.Now,
	}
}

func (s *userService) CreateUser(ctx context.Context, email, password string, opts ...UserOption) (*domain.User, error) {
	fields := collectFields(opts)
	setDefault(&fields.isStaff, false)
	setDefault(&fields.isSuperuser, false)
	return s.createUser(ctx, email, password, fields)
}

// CreateSuperuser creates a user with both staff and superuser flags. Passing
// either flag as false is rejected before anything is stored.
func (s *userService) CreateSuperuser(ctx context.Context, email, password string, opts ...UserOption) (*domain.User, error) {
	fields := collectFields(opts)
	setDefault(&fields.isStaff, true)
	setDefault(&fields.isSuperuser, true)

	if !*fields.isStaff {
		return nil, domain.ErrSuperuserNotStaff
	}
	if !*fields.isSuperuser {
		return nil, domain.ErrSuperuserNotSuperuser
	}
	return s.createUser(ctx, email, password, fields)
}

func (s *userService) createUser(ctx context.Context, email, password string, fields extraFields) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrEmailRequired
	}
	setDefault(&fields.isActive, true)

	user := &domain.User{
		Email:       email,
		IsStaff:     *fields.isStaff,
		IsSuperuser: *fields.isSuperuser,
		IsActive:    *fields.isActive,
		DateJoined:  s.now().UTC(),
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies the password for email and records the login time.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive || !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	loginAt := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, loginAt); err != nil {
		return nil, err
	}
	user.LastLogin = &loginAt
	return user, nil
}

func (s *userService) SetPassword(ctx context.Context, id int64, password string) error {
	var user domain.User
	if err := user.SetPassword(password); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, id, user.PasswordHash)
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}
