// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/pkg/errutil"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=30"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type requestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	ResetToken  string `json:"resetToken" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=100"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	User    auth.View `json:"user"`
	Message string    `json:"message"`
}

type resetTokenResponse struct {
	ResetToken string    `json:"resetToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	view, pair, err := s.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	s.record("register", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.TokenPairsIssuedTotal.WithLabelValues("register").Inc()
	}

	s.setAuthCookies(w, pair)
	s.writeJSON(w, http.StatusCreated, userResponse{User: view, Message: "Registration successful"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	view, pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
	s.record("login", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.TokenPairsIssuedTotal.WithLabelValues("login").Inc()
	}

	s.setAuthCookies(w, pair)
	s.writeJSON(w, http.StatusOK, userResponse{User: view, Message: "Login successful"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID, token, err := s.refreshSubject(r)
	if err != nil {
		s.record("refresh", err)
		s.writeError(w, err)
		return
	}

	pair, err := s.auth.Refresh(r.Context(), userID, token)
	s.record("refresh", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.TokenPairsIssuedTotal.WithLabelValues("refresh").Inc()
	}

	s.setAuthCookies(w, pair)
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Tokens refreshed successfully"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID, _, err := s.refreshSubject(r)
	if err != nil {
		s.record("logout", err)
		s.writeError(w, err)
		return
	}

	err = s.auth.Logout(r.Context(), userID)
	s.record("logout", err)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.clearAuthCookies(w)
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (s *Server) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if !s.decode(w, r, &req) {
		return
	}

	token, expiry, err := s.resets.RequestReset(r.Context(), req.Email)
	s.record("request_reset", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ResetTokensIssuedTotal.Inc()
	}

	// The plaintext goes back to the caller exactly once; delivering it to
	// the end user (email) is the caller's collaborator, not this core.
	s.writeJSON(w, http.StatusOK, resetTokenResponse{ResetToken: token, ExpiresAt: expiry})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.resets.ConfirmReset(r.Context(), req.ResetToken, req.NewPassword)
	s.record("reset_password", err)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(accessCookieName)
	if err != nil {
		s.writeError(w, oops.Code("AUTH_TOKEN_INVALID").Errorf("access token not found"))
		return
	}
	claims, err := s.issuer.VerifyAccess(cookie.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	userID, err := claims.SubjectID()
	if err != nil {
		s.writeError(w, err)
		return
	}

	view, err := s.auth.GetUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// refreshSubject extracts and verifies the refresh cookie, returning the
// subject it names and the raw token for the rotation check.
func (s *Server) refreshSubject(r *http.Request) (ulid.ULID, string, error) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ulid.ULID{}, "", oops.Code("AUTH_TOKEN_INVALID").Errorf("refresh token not found")
	}
	claims, err := s.issuer.VerifyRefresh(cookie.Value)
	if err != nil {
		return ulid.ULID{}, "", err
	}
	userID, err := claims.SubjectID()
	if err != nil {
		return ulid.ULID{}, "", err
	}
	return userID, cookie.Value, nil
}

// decode parses and validates a JSON request body. On failure it writes the
// error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, oops.Code("HTTP_BAD_REQUEST").Errorf("invalid request body"))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, oops.Code("HTTP_VALIDATION_FAILED").
			With("detail", err.Error()).
			Errorf("request validation failed"))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// statusFor maps oops error codes to HTTP statuses. Unknown codes are
// treated as infrastructure failures.
func statusFor(code string) int {
	switch code {
	case "AUTH_DUPLICATE_EMAIL", "AUTH_DUPLICATE_USERNAME":
		return http.StatusConflict
	case "AUTH_INVALID_CREDENTIALS", "AUTH_ACCESS_DENIED",
		"AUTH_REFRESH_TOKEN_INVALID", "AUTH_TOKEN_EXPIRED", "AUTH_TOKEN_INVALID":
		return http.StatusUnauthorized
	case "RESET_USER_NOT_FOUND", "AUTH_USER_NOT_FOUND":
		return http.StatusNotFound
	case "RESET_TOKEN_INVALID", "AUTH_INVALID_EMAIL", "AUTH_INVALID_USERNAME",
		"AUTH_INVALID_PASSWORD", "HTTP_BAD_REQUEST", "HTTP_VALIDATION_FAILED":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	status := statusFor(code)

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Infrastructure detail stays in the logs.
		errutil.LogError(s.logger, "request failed", err)
		message = "internal server error"
	}

	s.writeJSON(w, status, struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
	}{Code: code, Message: message})
}
