// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth_test

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/authkeep/authkeep/internal/auth"
)

// fakeUserRepo is an in-memory UserRepository for service tests. Error
// injection fields force the failure paths that a live store cannot
// produce on demand.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[ulid.ULID]*auth.User

	failGet    error // returned by every Get* and List call
	failCreate error
	failUpdate error // returned by every Update* call
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[ulid.ULID]*auth.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *auth.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return auth.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return auth.ErrDuplicateUsername
		}
	}
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	u, ok := f.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	for _, u := range f.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	for _, u := range f.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (f *fakeUserRepo) UpdateRefreshTokenHash(_ context.Context, id ulid.ULID, hash *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	u, ok := f.users[id]
	if !ok {
		if hash == nil {
			return nil
		}
		return auth.ErrNotFound
	}
	u.RefreshTokenHash = hash
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserRepo) UpdateResetToken(_ context.Context, id ulid.ULID, hash *string, expiry *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	u, ok := f.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.ResetTokenHash = hash
	u.ResetTokenExpiry = expiry
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	u, ok := f.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.RefreshTokenHash = nil
	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserRepo) ListActiveResetRequests(_ context.Context) ([]*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	now := time.Now()
	var out []*auth.User
	for _, u := range f.users {
		if u.ResetTokenHash == nil || u.ResetTokenExpiry == nil {
			continue
		}
		if now.After(*u.ResetTokenExpiry) {
			continue
		}
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

// get returns the live stored record so tests can inspect or mutate
// persisted state directly.
func (f *fakeUserRepo) get(id ulid.ULID) *auth.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}
