// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeep/authkeep/pkg/errutil"
)

// fakeMigrate implements migrateIface with scripted results.
type fakeMigrate struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	srcErr     error
	dbErr      error

	upCalls   int
	downCalls int
}

func (f *fakeMigrate) Up() error {
	f.upCalls++
	return f.upErr
}

func (f *fakeMigrate) Down() error {
	f.downCalls++
	return f.downErr
}

func (f *fakeMigrate) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionErr
}

func (f *fakeMigrate) Close() (error, error) {
	return f.srcErr, f.dbErr
}

func TestMigratorUp(t *testing.T) {
	t.Run("applies pending migrations", func(t *testing.T) {
		fake := &fakeMigrate{}
		m := &Migrator{m: fake}

		require.NoError(t, m.Up())
		assert.Equal(t, 1, fake.upCalls)
	})

	t.Run("no change is not an error", func(t *testing.T) {
		fake := &fakeMigrate{upErr: migrate.ErrNoChange}
		m := &Migrator{m: fake}

		assert.NoError(t, m.Up())
	})

	t.Run("wraps failures", func(t *testing.T) {
		fake := &fakeMigrate{upErr: errors.New("connection refused")}
		m := &Migrator{m: fake}

		err := m.Up()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
	})
}

func TestMigratorDown(t *testing.T) {
	t.Run("rolls back migrations", func(t *testing.T) {
		fake := &fakeMigrate{}
		m := &Migrator{m: fake}

		require.NoError(t, m.Down())
		assert.Equal(t, 1, fake.downCalls)
	})

	t.Run("no change is not an error", func(t *testing.T) {
		fake := &fakeMigrate{downErr: migrate.ErrNoChange}
		m := &Migrator{m: fake}

		assert.NoError(t, m.Down())
	})

	t.Run("wraps failures", func(t *testing.T) {
		fake := &fakeMigrate{downErr: errors.New("connection refused")}
		m := &Migrator{m: fake}

		err := m.Down()
		errutil.AssertErrorCode(t, err, "MIGRATION_DOWN_FAILED")
	})
}

func TestMigratorVersion(t *testing.T) {
	t.Run("reports current version", func(t *testing.T) {
		fake := &fakeMigrate{version: 3, dirty: false}
		m := &Migrator{m: fake}

		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(3), version)
		assert.False(t, dirty)
	})

	t.Run("nil version maps to zero", func(t *testing.T) {
		fake := &fakeMigrate{versionErr: migrate.ErrNilVersion}
		m := &Migrator{m: fake}

		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(0), version)
		assert.False(t, dirty)
	})

	t.Run("reports dirty state", func(t *testing.T) {
		fake := &fakeMigrate{version: 2, dirty: true}
		m := &Migrator{m: fake}

		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), version)
		assert.True(t, dirty)
	})

	t.Run("wraps failures", func(t *testing.T) {
		fake := &fakeMigrate{versionErr: errors.New("connection refused")}
		m := &Migrator{m: fake}

		_, _, err := m.Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigratorClose(t *testing.T) {
	t.Run("clean close", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{}}
		assert.NoError(t, m.Close())
	})

	t.Run("source error", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{srcErr: errors.New("source close failed")}}
		err := m.Close()
		errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
		errutil.AssertErrorContext(t, err, "component", "source")
	})

	t.Run("database error", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{dbErr: errors.New("db close failed")}}
		err := m.Close()
		errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
		errutil.AssertErrorContext(t, err, "component", "database")
	})

	t.Run("both errors", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{
			srcErr: errors.New("source close failed"),
			dbErr:  errors.New("db close failed"),
		}}
		err := m.Close()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
		assert.Contains(t, err.Error(), "source close failed")
		assert.Contains(t, err.Error(), "db close failed")
	})
}

func TestNewMigratorURLRewrite(t *testing.T) {
	// A URL with an unregistered scheme fails at construction.
	_, err := NewMigrator("mysql://localhost:3306/authkeep")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}
