// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// PasswordResetService handles the self-service password reset flow.
// Tokens are single-use and time-boxed; only their argon2 digests are
// stored. Token delivery (email) is an external collaborator's job - this
// service returns the plaintext once and never transmits it.
type PasswordResetService struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger
	now    func() time.Time
}

// NewPasswordResetService creates a PasswordResetService with validated
// dependencies.
func NewPasswordResetService(users UserRepository, hasher PasswordHasher) (*PasswordResetService, error) {
	return NewPasswordResetServiceWithLogger(users, hasher, slog.Default())
}

// NewPasswordResetServiceWithLogger creates a PasswordResetService with an
// explicit logger.
func NewPasswordResetServiceWithLogger(users UserRepository, hasher PasswordHasher, logger *slog.Logger) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("RESET_CONFIG_INVALID").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_CONFIG_INVALID").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("RESET_CONFIG_INVALID").Errorf("logger is required")
	}
	return &PasswordResetService{users: users, hasher: hasher, logger: logger, now: time.Now}, nil
}

// invalidResetToken builds the uniform redemption denial. Wrong token,
// consumed token, and expired token are indistinguishable to the caller.
func invalidResetToken() error {
	return oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired reset token")
}

// RequestReset issues a fresh reset token for the account with the given
// email, overwriting any prior outstanding token. Returns the plaintext
// token and its absolute expiry.
//
// Unknown emails fail with RESET_USER_NOT_FOUND. This leaks account
// existence where Login deliberately does not - an inconsistency carried
// from the original design, flagged in DESIGN.md rather than silently fixed.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, oops.Code("RESET_USER_NOT_FOUND").Errorf("user not found")
		}
		return "", time.Time{}, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, err := GenerateResetToken()
	if err != nil {
		return "", time.Time{}, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(token)
	if err != nil {
		return "", time.Time{}, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "hash reset token").
			Wrap(err)
	}

	expiry := s.now().Add(ResetTokenExpiry)
	if err := s.users.UpdateResetToken(ctx, user.ID, &hash, &expiry); err != nil {
		return "", time.Time{}, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token hash").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	if user.ResetTokenHash != nil {
		s.logger.Debug("superseded outstanding reset token", "user_id", user.ID.String())
	}

	return token, expiry, nil
}

// ConfirmReset redeems a reset token and sets a new password. On success
// the reset state is cleared and the refresh slot is invalidated: a
// password reset logs the user out everywhere. The token is single-use;
// redeeming it again fails.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return invalidResetToken()
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	// Reset digests are salted, so there is no hash to look up by. Verify
	// the presented token against each outstanding candidate instead.
	candidates, err := s.users.ListActiveResetRequests(ctx)
	if err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "list active reset requests").
			Wrap(err)
	}

	var match *User
	for _, u := range candidates {
		if u.ResetTokenHash == nil {
			continue
		}
		if s.hasher.Verify(token, *u.ResetTokenHash) {
			match = u
			break
		}
	}
	if match == nil {
		return invalidResetToken()
	}
	if match.ResetExpired(s.now()) {
		return invalidResetToken()
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	// UpdatePassword clears the reset state and the refresh slot in the
	// same row write (see UserRepository contract).
	if err := s.users.UpdatePassword(ctx, match.ID, newHash); err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "update password").
			With("user_id", match.ID.String()).
			Wrap(err)
	}

	s.logger.Info("password reset completed", "user_id", match.ID.String())
	return nil
}
