package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// unusablePasswordPrefix marks a hash that can never match a password.
const unusablePasswordPrefix = "!"

var (
	// ErrEmailRequired is returned when a user is created without an email.
	ErrEmailRequired = errors.New("the email must be set")
	// ErrSuperuserNotStaff is returned when a superuser is requested with is_staff=false.
	ErrSuperuserNotStaff = errors.New("superuser must have is_staff=true")
	// ErrSuperuserNotSuperuser is returned when a superuser is requested with is_superuser=false.
	ErrSuperuserNotSuperuser = errors.New("superuser must have is_superuser=true")
)

// IsValidation reports whether err was raised by input validation rather than storage.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmailRequired) ||
		errors.Is(err, ErrSuperuserNotStaff) ||
		errors.Is(err, ErrSuperuserNotSuperuser)
}

// ModelMeta carries display names consumed by admin tooling.
type ModelMeta struct {
	VerboseName       string
	VerboseNamePlural string
}

// UserMeta describes the User entity.
var UserMeta = ModelMeta{
	VerboseName:       "user",
	VerboseNamePlural: "users",
}

// User represents an account identified by its email address.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsStaff      bool
	IsSuperuser  bool
	IsActive     bool
	DateJoined   time.Time
	LastLogin    *time.Time
	// Username is never set; email is the only credential.
	Username *string
}

// NormalizeEmail trims the address and lowercases it as a whole.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// prehash digests raw so passwords longer than bcrypt's 72-byte input limit
// are accepted and every byte still counts.
func prehash(raw string) []byte {
	sum := sha256.Sum256([]byte(raw))
	return []byte(hex.EncodeToString(sum[:]))
}

// SetPassword stores a bcrypt hash of the SHA-256 digest of raw. An empty raw
// password leaves the account with an unusable password.
func (u *User) SetPassword(raw string) error {
	if raw == "" {
		u.SetUnusablePassword()
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword(prehash(raw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// SetUnusablePassword marks the account so that no password verifies.
func (u *User) SetUnusablePassword() {
	u.PasswordHash = unusablePasswordPrefix + uuid.NewString()
}

// HasUsablePassword reports whether a password has been set.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && !strings.HasPrefix(u.PasswordHash, unusablePasswordPrefix)
}

// CheckPassword reports whether raw matches the stored hash. It is always false
// for an unusable password.
func (u *User) CheckPassword(raw string) bool {
	if !u.HasUsablePassword() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), prehash(raw)) == nil
}
