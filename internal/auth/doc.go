// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package auth implements the credential and session issuance core.
//
// # Domain Types
//
// User records should be created with NewUser, which validates the email,
// username, and password hash. Direct struct initialization bypasses
// validation and may create invalid state. Repository implementations
// receive pre-validated records from this constructor.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - register, login, refresh (with rotation), logout
//   - PasswordResetService - single-use, time-boxed password reset flow
//
// Services are created with New*Service constructors that validate
// dependencies. Both persist only hashes of secrets: passwords, refresh
// tokens, and reset tokens all pass through PasswordHasher before storage.
package auth
