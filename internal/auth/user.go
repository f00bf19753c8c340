// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// emailRegex is a light structural check; the store's unique constraint is
// the real arbiter of identity. Emails are case-sensitive as stored.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User is an identity record. Plaintext secrets never appear here: the
// password, the current refresh token, and any outstanding reset token are
// stored only as argon2id digests.
type User struct {
	ID               ulid.ULID
	Email            string
	Username         string
	PasswordHash     string
	RefreshTokenHash *string // nil when logged out
	ResetTokenHash   *string // nil when no reset outstanding
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// View is the caller-facing projection of a User. The password hash and
// token hashes are never returned.
type View struct {
	ID       ulid.ULID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
}

// View returns the caller-facing projection of the user.
func (u *User) View() View {
	return View{ID: u.ID, Email: u.Email, Username: u.Username}
}

// HasRefreshSession reports whether the user holds a valid refresh slot.
func (u *User) HasRefreshSession() bool {
	return u.RefreshTokenHash != nil && *u.RefreshTokenHash != ""
}

// ResetExpired reports whether the outstanding reset token, if any, has
// expired at time t.
func (u *User) ResetExpired(t time.Time) bool {
	return u.ResetTokenExpiry == nil || t.After(*u.ResetTokenExpiry)
}

// NewUser creates a validated User with a freshly minted ID. The password
// hash must already have been produced by a PasswordHasher.
func NewUser(email, username, passwordHash string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateEmail validates the structural shape of an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email is not a valid address")
	}
	return nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword validates a candidate plaintext password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// UserRepository manages user persistence. All writes are single-row and
// atomic; the core never needs cross-row transactions.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateEmail or
	// ErrDuplicateUsername (wrapped) on unique-constraint collisions.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by exact email match.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByUsername retrieves a user by exact username match.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// UpdateRefreshTokenHash overwrites the refresh slot. A nil hash clears
	// it (logout). Last write wins under concurrent rotation; a
	// compare-and-swap on the prior hash would be a strict-superset
	// hardening if per-subject refresh concurrency ever warrants it.
	UpdateRefreshTokenHash(ctx context.Context, id ulid.ULID, hash *string) error

	// UpdateResetToken overwrites the outstanding reset token hash and
	// expiry. Nil values clear the reset state.
	UpdateResetToken(ctx context.Context, id ulid.ULID, hash *string, expiry *time.Time) error

	// UpdatePassword stores a new password hash. As a contract-level side
	// effect it clears refresh_token_hash, reset_token_hash, and
	// reset_token_expiry: a password reset invalidates all sessions.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// ListActiveResetRequests returns users holding a non-null, unexpired
	// reset token hash. Reset digests are salted, so redemption matches by
	// verifying each candidate rather than by index lookup.
	ListActiveResetRequests(ctx context.Context) ([]*User, error)
}
