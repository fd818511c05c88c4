package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudadmin/internal/hostapp"
	"crudadmin/internal/models"
)

var adminTables = []string{"admin_user", "admin_session", "admin_token_blacklist", "admin_event_log", "admin_audit_log"}

func TestMigrateSQLite(t *testing.T) {
	opts := Options{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "nested", "admin.db")}

	require.NoError(t, Migrate(opts))
	require.NoError(t, Migrate(opts), "second run must be a no-op")

	db, err := Open(opts)
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	for _, table := range adminTables {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}

	user := &models.AdminUser{Username: "admin", HashedPassword: "x", IsSuperuser: true}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&models.AdminTokenBlacklist{
		TokenHash: "abc", RevokedAt: time.Now().UTC(), ExpiresAt: time.Now().UTC().Add(time.Hour),
	}).Error)
	assert.Error(t, db.Create(&models.AdminUser{Username: "admin", HashedPassword: "y"}).Error, "username must be unique")

	mig, err := Migrator(opts)
	require.NoError(t, err)
	version, dirty, err := mig.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, mig.Down())
	CloseMigrator(mig)
	for _, table := range adminTables {
		assert.False(t, db.Migrator().HasTable(table), "table %s should be dropped", table)
	}
}

func TestMigrationURL(t *testing.T) {
	url, err := MigrationURL(Options{Driver: DriverSQLite, DSN: "data/admin.db?_busy_timeout=100"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite3://data/admin.db", url)

	url, err = MigrationURL(Options{Driver: DriverPostgres, DSN: "postgres://u:p@localhost:5432/db?sslmode=disable"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", url)

	_, err = MigrationURL(Options{Driver: DriverPostgres, DSN: "host=localhost user=u"})
	assert.Error(t, err)

	_, err = MigrationURL(Options{Driver: "mysql"})
	assert.Error(t, err)
}

func TestNewManagerSharesPool(t *testing.T) {
	opts := Options{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "admin.db")}

	m, err := NewManager(opts, &opts)
	require.NoError(t, err)
	defer m.Close()

	assert.Same(t, m.AdminDB(), m.AppDB())
	require.NoError(t, m.Migrate())
	require.NoError(t, m.AutoMigrateApp(&hostapp.Account{}))
	assert.True(t, m.AppDB().Migrator().HasTable("accounts"))
}

func TestNewManagerSeparateApp(t *testing.T) {
	dir := t.TempDir()
	admin := Options{Driver: DriverSQLite, DSN: filepath.Join(dir, "admin.db")}
	app := Options{Driver: DriverSQLite, DSN: filepath.Join(dir, "app.db")}

	m, err := NewManager(admin, &app)
	require.NoError(t, err)
	defer m.Close()

	assert.NotSame(t, m.AdminDB(), m.AppDB())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}
