package repository

import (
	"context"
	"errors"
	"time"

	"accounts/internal/domain"
)

var (
	// ErrConflict signals that a write violated a uniqueness constraint.
	ErrConflict = errors.New("record already exists")
	// ErrNotFound signals that no record matched the lookup.
	ErrNotFound = errors.New("record not found")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
