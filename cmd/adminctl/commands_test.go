package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "admin.db")
	t.Setenv("ENV", "test")
	t.Setenv("SECRET_KEY", "adminctl-test-secret")
	t.Setenv("ADMIN_DB_DRIVER", "sqlite")
	t.Setenv("ADMIN_DB_DSN", path)
	t.Setenv("APP_DB_DRIVER", "sqlite")
	t.Setenv("APP_DB_DSN", path)
	t.Setenv("REDIS_ADDR", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCommands(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: none")

	out, err = run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "applied")

	out, err = run(t, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 1, Dirty: false")

	_, err = run(t, "migrate", "down", "zero")
	assert.Error(t, err)

	out, err = run(t, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "Rolled back 1")

	_, err = run(t, "migrate", "sideways")
	assert.Error(t, err)
}

func TestCreateUserCommand(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "migrate", "up")
	require.NoError(t, err)

	out, err := run(t, "create-user", "--username", "root", "--password", "correct-horse", "--email", "root@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Created admin user root")
	assert.Contains(t, out, "superuser true")

	_, err = run(t, "create-user", "--username", "root", "--password", "correct-horse")
	assert.Error(t, err, "duplicate username must fail")

	_, err = run(t, "create-user", "--username", "nopass")
	assert.Error(t, err)
}

func TestMaintenanceCommands(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "migrate", "up")
	require.NoError(t, err)

	out, err := run(t, "cleanup", "--retention-days", "30")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Removed 0 events, 0 audit entries"), out)
	assert.Contains(t, out, "older than 30 days")

	out, err = run(t, "sweep-sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "Deactivated 0 idle session(s)")
}
