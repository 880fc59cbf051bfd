package repositories

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

// Dialect selects the SQL flavour of the underlying database.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// ParseDialect maps a backend mode from the config file onto a [Dialect].
func ParseDialect(mode string) (Dialect, error) {
	switch mode {
	case "sqlite", "sqlite3", "":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return DialectSQLite, fmt.Errorf("unsupported database dialect: %q", mode)
	}
}

//go:embed sql/sqlite/*.sql
var sqliteMigrations embed.FS

//go:embed sql/postgres/*.sql
var postgresMigrations embed.FS

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// RunMigrations applies every pending migration for the dialect, seed catalog included.
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	dir := "sql/sqlite"
	goose.SetBaseFS(sqliteMigrations)
	if dialect == DialectPostgres {
		dir = "sql/postgres"
		goose.SetBaseFS(postgresMigrations)
	}
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect.String()); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the latest applied migration version.
func SchemaVersion(db *sql.DB, dialect Dialect) (int64, error) {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	if err := goose.SetDialect(dialect.String()); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}
