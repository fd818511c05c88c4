package database

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"crudadmin/internal/logger"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects a database.
type Options struct {
	Driver string
	DSN    string
	// Verbose turns on SQL statement logging.
	Verbose bool
}

// Manager owns the admin store and the host application database. They may
// be the same database.
type Manager struct {
	admin      *gorm.DB
	app        *gorm.DB
	adminOpts  Options
	sharedConn bool
}

// NewManager opens the admin store and, when app is set, the host application database.
func NewManager(admin Options, app *Options) (*Manager, error) {
	adminDB, err := Open(admin)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to admin database: %w", err)
	}

	m := &Manager{admin: adminDB, app: adminDB, adminOpts: admin, sharedConn: true}
	if app != nil && (app.Driver != admin.Driver || app.DSN != admin.DSN) {
		appDB, err := Open(*app)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to application database: %w", err)
		}
		m.app = appDB
		m.sharedConn = false
	}
	return m, nil
}

// Open connects to a database with pool settings suited to the driver.
func Open(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}
	if opts.Verbose {
		cfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverSQLite:
		if err := ensureDir(opts.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(sqliteDSN(opts.DSN))
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{
			DSN:                  opts.DSN,
			PreferSimpleProtocol: true, // Required for Supabase Supavisor; harmless for direct connections
		})
	default:
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	if opts.Driver == DriverSQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

// ensureDir creates the parent directory of a SQLite database file.
func ensureDir(dsn string) error {
	path := sqlitePath(dsn)
	if path == "" || path == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return nil
}

func sqlitePath(dsn string) string {
	path, _, _ := strings.Cut(dsn, "?")
	return path
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_busy_timeout=5000&_journal_mode=WAL"
}

// MigrationURL returns the golang-migrate database URL for opts.
func MigrationURL(opts Options) (string, error) {
	switch opts.Driver {
	case DriverSQLite:
		return "sqlite3://" + sqlitePath(opts.DSN), nil
	case DriverPostgres:
		if !strings.HasPrefix(opts.DSN, "postgres://") && !strings.HasPrefix(opts.DSN, "postgresql://") {
			return "", fmt.Errorf("postgres admin DSN must be a URL to run migrations")
		}
		return opts.DSN, nil
	}
	return "", fmt.Errorf("unsupported driver %q", opts.Driver)
}

// Migrator returns a golang-migrate instance over the embedded admin schema.
// The caller must Close it.
func Migrator(opts Options) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations/"+opts.Driver)
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	url, err := MigrationURL(opts)
	if err != nil {
		return nil, err
	}
	if opts.Driver == DriverSQLite {
		if err := ensureDir(opts.DSN); err != nil {
			return nil, err
		}
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// Migrate applies pending admin schema migrations.
func Migrate(opts Options) error {
	logger.Get().Info("Running admin schema migrations...")

	mig, err := Migrator(opts)
	if err != nil {
		return err
	}
	defer CloseMigrator(mig)

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Get().Info("Admin schema migrations completed successfully")
	return nil
}

// CloseMigrator closes a migrator returned by Migrator, logging failures.
func CloseMigrator(mig *migrate.Migrate) {
	srcErr, dbErr := mig.Close()
	if srcErr != nil {
		logger.Get().Warnf("migrate source close error: %v", srcErr)
	}
	if dbErr != nil {
		logger.Get().Warnf("migrate database close error: %v", dbErr)
	}
}

// Migrate applies the admin schema migrations.
func (m *Manager) Migrate() error {
	return Migrate(m.adminOpts)
}

// AutoMigrateApp creates the host application tables for the given models.
// Host applications that manage their own schema do not call it.
func (m *Manager) AutoMigrateApp(models ...interface{}) error {
	if err := m.app.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate application models: %w", err)
	}
	return nil
}

// AdminDB returns the admin store
func (m *Manager) AdminDB() *gorm.DB {
	return m.admin
}

// AppDB returns the host application database
func (m *Manager) AppDB() *gorm.DB {
	return m.app
}

// Close closes both connection pools.
func (m *Manager) Close() error {
	var errs []error
	for _, db := range m.pools() {
		sqlDB, err := db.DB()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

func (m *Manager) pools() []*gorm.DB {
	if m.sharedConn {
		return []*gorm.DB{m.admin}
	}
	return []*gorm.DB{m.admin, m.app}
}
