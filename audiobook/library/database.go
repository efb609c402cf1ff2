// Package library is the SQL catalog of known projects and their generation
// runs, shared by every project on the machine.
package library

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Dialect ties a configured driver name to its database/sql driver, goose
// dialect and placeholder style.
type Dialect struct {
	Driver      string
	Goose       string
	Placeholder sq.PlaceholderFormat
}

var dialects = map[string]Dialect{
	"sqlite":   {Driver: "sqlite", Goose: "sqlite3", Placeholder: sq.Question},
	"mysql":    {Driver: "mysql", Goose: "mysql", Placeholder: sq.Question},
	"postgres": {Driver: "postgres", Goose: "postgres", Placeholder: sq.Dollar},
}

func LookupDialect(driver string) (Dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported database driver %q: %w", driver, audiobook.ErrConfig)
	}
	return d, nil
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, Dialect, error) {
	dialect, err := LookupDialect(driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sqlx.ConnectContext(ctx, dialect.Driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if err := Migrate(db, dialect); err != nil {
		db.Close()
		return nil, Dialect{}, err
	}
	return db, dialect, nil
}

// Migrate brings the schema up to date using the embedded migrations.
func Migrate(db *sqlx.DB, dialect Dialect) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect.Goose); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db.DB, "."); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
