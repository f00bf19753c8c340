// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package postgres provides the PostgreSQL implementation of the auth
// credential store.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
)

// Unique constraint names from the users table DDL.
const (
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"
)

// poolIface is the subset of pgxpool.Pool the repository needs. Declared as
// an interface so unit tests can substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, username, password_hash, refresh_token_hash,
       reset_token_hash, reset_token_expiry, created_at, updated_at`

// Create stores a new user. Unique-constraint violations are mapped to the
// duplicate sentinels so the service can report which field collided.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, username, password_hash, refresh_token_hash,
			reset_token_hash, reset_token_expiry, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Email,
		user.Username,
		user.PasswordHash,
		user.RefreshTokenHash,
		user.ResetTokenHash,
		user.ResetTokenExpiry,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case emailConstraint:
				return oops.Code("USER_DUPLICATE_EMAIL").
					With("email", user.Email).
					Wrap(auth.ErrDuplicateEmail)
			case usernameConstraint:
				return oops.Code("USER_DUPLICATE_USERNAME").
					With("username", user.Username).
					Wrap(auth.ErrDuplicateUsername)
			}
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by exact email match. Emails are
// case-sensitive as stored.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// GetByUsername retrieves a user by exact username match.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// UpdateRefreshTokenHash overwrites the refresh slot; nil clears it. A
// missing row reports ErrNotFound except for the clearing case, which is
// idempotent by contract.
func (r *UserRepository) UpdateRefreshTokenHash(ctx context.Context, id ulid.ULID, hash *string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users
		SET refresh_token_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), hash, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_REFRESH_FAILED").
			With("operation", "update refresh token hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 && hash != nil {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateResetToken overwrites the outstanding reset token hash and expiry;
// nil values clear the reset state.
func (r *UserRepository) UpdateResetToken(ctx context.Context, id ulid.ULID, hash *string, expiry *time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expiry = $3, updated_at = $4
		WHERE id = $1
	`, id.String(), hash, expiry, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_RESET_FAILED").
			With("operation", "update reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword stores a new password hash and, in the same row write,
// clears the refresh slot and any outstanding reset token. A password reset
// invalidates all existing sessions.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2,
		    refresh_token_hash = NULL,
		    reset_token_hash = NULL,
		    reset_token_expiry = NULL,
		    updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ListActiveResetRequests returns users holding a non-null, unexpired reset
// token hash. Filtering expired rows here keeps the caller's verify scan
// small; expired tokens are otherwise left in place until superseded.
func (r *UserRepository) ListActiveResetRequests(ctx context.Context) ([]*auth.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token_hash IS NOT NULL
		  AND reset_token_expiry >= $1
	`, time.Now())
	if err != nil {
		return nil, oops.Code("USER_LIST_RESETS_FAILED").
			With("operation", "list active reset requests").
			Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_RESETS_FAILED").
				With("operation", "scan user row").
				Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_RESETS_FAILED").
			With("operation", "iterate user rows").
			Wrap(err)
	}
	return users, nil
}

// scanUser scans a user row into the domain type.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		user  auth.User
		idStr string
	)
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.RefreshTokenHash,
		&user.ResetTokenHash,
		&user.ResetTokenExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	user.ID = id

	return &user, nil
}
