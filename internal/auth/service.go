// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service orchestrates the session lifecycle: register, login, refresh
// (with rotation), and logout. Sessions are single-slot: one valid refresh
// token per user, superseded by every login or refresh.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	issuer *TokenIssuer
	logger *slog.Logger
}

// NewService creates a Service with validated dependencies.
func NewService(users UserRepository, hasher PasswordHasher, issuer *TokenIssuer) (*Service, error) {
	return NewServiceWithLogger(users, hasher, issuer, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(users UserRepository, hasher PasswordHasher, issuer *TokenIssuer, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("token issuer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("logger is required")
	}
	return &Service{users: users, hasher: hasher, issuer: issuer, logger: logger}, nil
}

// dummyPasswordHash is verified when a login targets a nonexistent email so
// that response time stays uniform with the wrong-password path. This is NOT
// a real credential - it is a fake digest that will never match any password.
//
//nolint:gosec // G101: intentionally fake digest for timing uniformity, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// invalidCredentials builds the uniform login denial. Unknown email and
// wrong password must be indistinguishable in kind and message.
func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid credentials")
}

// Register creates a new user and opens their first session. Email
// uniqueness is checked before username, so an email conflict is reported
// even when both collide. No user is persisted on failure.
func (s *Service) Register(ctx context.Context, email, username, password string) (View, TokenPair, error) {
	if err := ValidateEmail(email); err != nil {
		return View{}, TokenPair{}, err
	}
	if err := ValidateUsername(username); err != nil {
		return View{}, TokenPair{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return View{}, TokenPair{}, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return View{}, TokenPair{}, oops.Code("AUTH_DUPLICATE_EMAIL").Wrap(ErrDuplicateEmail)
	} else if !errors.Is(err, ErrNotFound) {
		return View{}, TokenPair{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return View{}, TokenPair{}, oops.Code("AUTH_DUPLICATE_USERNAME").Wrap(ErrDuplicateUsername)
	} else if !errors.Is(err, ErrNotFound) {
		return View{}, TokenPair{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return View{}, TokenPair{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, username, passwordHash)
	if err != nil {
		return View{}, TokenPair{}, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// The pre-checks race against concurrent registrations; the unique
		// constraints are authoritative.
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return View{}, TokenPair{}, oops.Code("AUTH_DUPLICATE_EMAIL").Wrap(ErrDuplicateEmail)
		case errors.Is(err, ErrDuplicateUsername):
			return View{}, TokenPair{}, oops.Code("AUTH_DUPLICATE_USERNAME").Wrap(ErrDuplicateUsername)
		}
		return View{}, TokenPair{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}

	pair, err := s.issueAndStore(ctx, user)
	if err != nil {
		return View{}, TokenPair{}, err
	}

	return user.View(), pair, nil
}

// Login authenticates by email and password and rotates in a fresh session.
// Unknown email and wrong password return the identical error to resist
// enumeration; the dummy-hash verification keeps timing uniform.
func (s *Service) Login(ctx context.Context, email, password string) (View, TokenPair, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	userExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return View{}, TokenPair{}, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify, even against the dummy digest.
	valid := s.hasher.Verify(password, targetHash)
	if !userExists || !valid {
		return View{}, TokenPair{}, invalidCredentials()
	}

	pair, err := s.issueAndStore(ctx, user)
	if err != nil {
		return View{}, TokenPair{}, err
	}

	return user.View(), pair, nil
}

// Refresh validates a presented refresh token and rotates the session.
// The old token becomes permanently invalid the instant the new pair is
// issued, whether or not the caller receives the response; a stranded
// caller re-logins. That tradeoff favors replay resistance over
// availability.
func (s *Service) Refresh(ctx context.Context, userID ulid.ULID, refreshToken string) (TokenPair, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err // AUTH_TOKEN_EXPIRED or AUTH_TOKEN_INVALID
	}
	if claims.Subject != userID.String() {
		return TokenPair{}, oops.Code("AUTH_ACCESS_DENIED").Errorf("access denied")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, oops.Code("AUTH_ACCESS_DENIED").Errorf("access denied")
		}
		return TokenPair{}, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	if !user.HasRefreshSession() {
		// Logged out: no refresh slot to match against.
		return TokenPair{}, oops.Code("AUTH_ACCESS_DENIED").Errorf("access denied")
	}

	if !s.hasher.Verify(refreshToken, *user.RefreshTokenHash) {
		s.logger.Warn("refresh token mismatch", "user_id", userID.String())
		return TokenPair{}, oops.Code("AUTH_REFRESH_TOKEN_INVALID").Errorf("invalid refresh token")
	}

	// Rotation: two concurrent refreshes may both pass verification; the
	// last UpdateRefreshTokenHash wins and the other caller's new token is
	// orphaned. Accepted narrow race, self-healing via re-login.
	return s.issueAndStore(ctx, user)
}

// GetUser returns the caller-facing view of a user.
func (s *Service) GetUser(ctx context.Context, userID ulid.ULID) (View, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return View{}, oops.Code("AUTH_USER_NOT_FOUND").Errorf("user not found")
		}
		return View{}, oops.Code("AUTH_GET_USER_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	return user.View(), nil
}

// Logout clears the refresh slot. Idempotent: logging out twice, or while
// already logged out, succeeds.
func (s *Service) Logout(ctx context.Context, userID ulid.ULID) error {
	if err := s.users.UpdateRefreshTokenHash(ctx, userID, nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "clear refresh token hash").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// issueAndStore mints a pair and persists the argon2 digest of its refresh
// half, rotating out whatever was in the slot before.
func (s *Service) issueAndStore(ctx context.Context, user *User) (TokenPair, error) {
	pair, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return TokenPair{}, err
	}

	refreshHash, err := s.hasher.Hash(pair.RefreshToken)
	if err != nil {
		return TokenPair{}, oops.Code("AUTH_SESSION_STORE_FAILED").
			With("operation", "hash refresh token").
			Wrap(err)
	}

	if err := s.users.UpdateRefreshTokenHash(ctx, user.ID, &refreshHash); err != nil {
		return TokenPair{}, oops.Code("AUTH_SESSION_STORE_FAILED").
			With("operation", "store refresh token hash").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return pair, nil
}
