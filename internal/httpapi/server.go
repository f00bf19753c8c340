// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package httpapi exposes the auth core over a thin HTTP boundary.
//
// Tokens are delivered as HttpOnly cookies; refresh and logout derive the
// subject from the verified refresh cookie. Everything else - rendering,
// email delivery, authorization - lives elsewhere.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/observability"
)

// Server wires the auth services into HTTP handlers.
type Server struct {
	auth     *auth.Service
	resets   *auth.PasswordResetService
	issuer   *auth.TokenIssuer
	metrics  *observability.Metrics
	logger   *slog.Logger
	validate *validator.Validate

	cookieSecure bool
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

// Options configures cookie behavior for a Server.
type Options struct {
	// CookieSecure marks auth cookies Secure; enable behind TLS.
	CookieSecure bool
	// AccessTTL and RefreshTTL bound the cookie max-ages. They should
	// match the token issuer's TTLs.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// NewServer creates a Server with validated dependencies. metrics may be
// nil; recording is then skipped.
func NewServer(authSvc *auth.Service, resets *auth.PasswordResetService, issuer *auth.TokenIssuer, metrics *observability.Metrics, logger *slog.Logger, opts Options) (*Server, error) {
	if authSvc == nil {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("auth service is required")
	}
	if resets == nil {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("password reset service is required")
	}
	if issuer == nil {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("token issuer is required")
	}
	if logger == nil {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("logger is required")
	}
	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("cookie TTLs must be positive")
	}

	return &Server{
		auth:         authSvc,
		resets:       resets,
		issuer:       issuer,
		metrics:      metrics,
		logger:       logger,
		validate:     validator.New(),
		cookieSecure: opts.CookieSecure,
		accessTTL:    opts.AccessTTL,
		refreshTTL:   opts.RefreshTTL,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("POST /auth/request-password-reset", s.handleRequestReset)
	mux.HandleFunc("POST /auth/reset-password", s.handleResetPassword)
	mux.HandleFunc("GET /users/me", s.handleMe)
	return mux
}

// record counts one auth operation outcome; "ok" on success, the denial's
// error code otherwise.
func (s *Server) record(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = errorCode(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.AuthRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

func errorCode(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			return code
		}
	}
	return ""
}
