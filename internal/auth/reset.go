// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32        // 32 bytes of entropy = 64 hex chars
	ResetTokenExpiry = time.Hour // absolute expiry from issuance
)

// GenerateResetToken creates a high-entropy single-use reset token.
// The plaintext is handed to the caller exactly once; only its argon2
// digest is stored.
func GenerateResetToken() (string, error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").
			With("requested_bytes", ResetTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(tokenBytes), nil
}
