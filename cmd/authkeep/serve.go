// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authkeep/authkeep/internal/auth"
	authpg "github.com/authkeep/authkeep/internal/auth/postgres"
	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/httpapi"
	"github.com/authkeep/authkeep/internal/logging"
	"github.com/authkeep/authkeep/internal/observability"
	"github.com/authkeep/authkeep/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the auth service",
		Long:  `Start the HTTP auth service and the observability endpoint.`,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("authkeep", version, cfg.Log.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	issuer, err := auth.NewTokenIssuer(
		[]byte(cfg.Auth.AccessSecret),
		[]byte(cfg.Auth.RefreshSecret),
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		return err
	}

	users := authpg.NewUserRepository(pool)
	hasher := auth.NewArgon2idHasher()

	authSvc, err := auth.NewServiceWithLogger(users, hasher, issuer, logger)
	if err != nil {
		return err
	}
	resetSvc, err := auth.NewPasswordResetServiceWithLogger(users, hasher, logger)
	if err != nil {
		return err
	}

	// Ready once the HTTP listener is up.
	var ready atomic.Bool
	obs := observability.NewServer(cfg.Observability.Addr, ready.Load)
	obsErrCh, err := obs.Start()
	if err != nil {
		return err
	}

	api, err := httpapi.NewServer(authSvc, resetSvc, issuer, obs.Metrics(), logger, httpapi.Options{
		CookieSecure: cfg.Server.CookieSecure,
		AccessTTL:    cfg.Auth.AccessTokenTTL,
		RefreshTTL:   cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("auth service listening", "addr", cfg.Server.Addr)
		ready.Store(true)
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			serveErrCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Warn("shutdown signal received")
	case err := <-serveErrCh:
		return oops.Code("SERVER_FAILED").Wrap(err)
	case err := <-obsErrCh:
		return oops.Code("OBSERVABILITY_FAILED").Wrap(err)
	}

	ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").With("component", "http server").Wrap(err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").With("component", "observability").Wrap(err)
	}

	logger.Info("auth service stopped")
	return nil
}
