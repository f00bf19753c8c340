// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeep/authkeep/internal/auth"
)

func TestGenerateResetToken(t *testing.T) {
	t.Run("produces hex token of expected length", func(t *testing.T) {
		token, err := auth.GenerateResetToken()
		require.NoError(t, err)
		assert.Len(t, token, auth.ResetTokenBytes*2)

		_, err = hex.DecodeString(token)
		assert.NoError(t, err)
	})

	t.Run("produces unique tokens", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 100 {
			token, err := auth.GenerateResetToken()
			require.NoError(t, err)
			assert.False(t, seen[token], "duplicate token generated")
			seen[token] = true
		}
	})
}
