// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a registration email is already taken.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrDuplicateUsername is returned when a registration username is already taken.
var ErrDuplicateUsername = errors.New("username already exists")
