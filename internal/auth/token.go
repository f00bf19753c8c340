// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenPair carries a freshly issued access/refresh token pair. It is
// ephemeral: only the argon2 digest of the refresh half is ever persisted.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Claims are the signed claims carried by both token kinds.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256-signed access and refresh tokens.
// The two kinds use distinct signing secrets so that possessing one cannot
// forge the other, and distinct expiry policies.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenIssuer creates a TokenIssuer with validated keys and TTLs.
func NewTokenIssuer(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if len(accessSecret) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("access signing secret is required")
	}
	if len(refreshSecret) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("refresh signing secret is required")
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("access and refresh signing secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("token TTLs must be positive")
	}
	return &TokenIssuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// Issue mints a new access/refresh pair for the subject.
func (i *TokenIssuer) Issue(userID ulid.ULID, email string) (TokenPair, error) {
	access, err := i.sign(userID, email, i.accessSecret, i.accessTTL)
	if err != nil {
		return TokenPair{}, oops.Code("TOKEN_ISSUE_FAILED").
			With("kind", "access").
			Wrap(err)
	}
	refresh, err := i.sign(userID, email, i.refreshSecret, i.refreshTTL)
	if err != nil {
		return TokenPair{}, oops.Code("TOKEN_ISSUE_FAILED").
			With("kind", "refresh").
			Wrap(err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess verifies an access token and returns its claims.
func (i *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return verify(token, i.accessSecret)
}

// VerifyRefresh verifies a refresh token and returns its claims. Signature
// and expiry only; the stored-hash rotation check is the Service's job.
func (i *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return verify(token, i.refreshSecret)
}

func (i *TokenIssuer) sign(userID ulid.ULID, email string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			// NumericDates have one-second precision, so the jti is what
			// keeps back-to-back issuances for one subject distinct.
			ID:        ulid.Make().String(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func verify(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code("AUTH_TOKEN_EXPIRED").Errorf("token has expired")
		}
		return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(err)
	}
	if !parsed.Valid {
		return nil, oops.Code("AUTH_TOKEN_INVALID").Errorf("token is not valid")
	}
	return claims, nil
}

// SubjectID parses the subject claim back into a user ID.
func (c *Claims) SubjectID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("AUTH_TOKEN_INVALID").
			With("subject", c.Subject).
			Wrap(err)
	}
	return id, nil
}
