package library

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound = errors.New("project not found in library")
)

// Entry is a cataloged project.
type Entry struct {
	Directory string
	Name      string
	Units     int
	Generated int
	CreatedAt time.Time
	OpenedAt  time.Time
}

type ProjectRepository interface {
	// Save inserts the entry or updates the one with the same directory.
	// The original creation time is kept on update.
	Save(ctx context.Context, entry Entry) error
	Find(ctx context.Context, directory string) (Entry, error)
	// List returns every entry, most recently opened first.
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, directory string) error
}

func NewProjectRepository(db *sqlx.DB, placeholder sq.PlaceholderFormat) ProjectRepository {
	return &projectRepositoryImpl{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

type projectRepositoryImpl struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

type projectRow struct {
	Directory string `db:"directory"`
	Name      string `db:"name"`
	Units     int    `db:"units"`
	Generated int    `db:"generated"`
	CreatedAt int64  `db:"created_at"`
	OpenedAt  int64  `db:"opened_at"`
}

func (r projectRow) entry() Entry {
	return Entry{
		Directory: r.Directory,
		Name:      r.Name,
		Units:     r.Units,
		Generated: r.Generated,
		CreatedAt: time.Unix(r.CreatedAt, 0),
		OpenedAt:  time.Unix(r.OpenedAt, 0),
	}
}

var projectColumns = []string{"directory", "name", "units", "generated", "created_at", "opened_at"}

func (r *projectRepositoryImpl) Save(ctx context.Context, entry Entry) error {
	_, err := r.Find(ctx, entry.Directory)
	switch {
	case err == nil:
		query, args, err := r.sb.Update("projects").
			Set("name", entry.Name).
			Set("units", entry.Units).
			Set("generated", entry.Generated).
			Set("opened_at", entry.OpenedAt.Unix()).
			Where(sq.Eq{"directory": entry.Directory}).
			ToSql()
		if err != nil {
			return err
		}
		_, err = r.db.ExecContext(ctx, query, args...)
		return err
	case errors.Is(err, ErrNotFound):
		query, args, err := r.sb.Insert("projects").
			Columns(projectColumns...).
			Values(entry.Directory, entry.Name, entry.Units, entry.Generated, entry.CreatedAt.Unix(), entry.OpenedAt.Unix()).
			ToSql()
		if err != nil {
			return err
		}
		_, err = r.db.ExecContext(ctx, query, args...)
		return err
	default:
		return err
	}
}

func (r *projectRepositoryImpl) Find(ctx context.Context, directory string) (Entry, error) {
	query, args, err := r.sb.Select(projectColumns...).
		From("projects").
		Where(sq.Eq{"directory": directory}).
		ToSql()
	if err != nil {
		return Entry{}, err
	}

	var row projectRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return row.entry(), nil
}

func (r *projectRepositoryImpl) List(ctx context.Context) ([]Entry, error) {
	query, args, err := r.sb.Select(projectColumns...).
		From("projects").
		OrderBy("opened_at DESC", "directory").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []projectRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = row.entry()
	}
	return entries, nil
}

func (r *projectRepositoryImpl) Delete(ctx context.Context, directory string) error {
	query, args, err := r.sb.Delete("projects").
		Where(sq.Eq{"directory": directory}).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// NopProjectRepository is used when the library is disabled.
type NopProjectRepository struct {
}

func (NopProjectRepository) Save(ctx context.Context, entry Entry) error {
	return nil
}

func (NopProjectRepository) Find(ctx context.Context, directory string) (Entry, error) {
	return Entry{}, ErrNotFound
}

func (NopProjectRepository) List(ctx context.Context) ([]Entry, error) {
	return nil, nil
}

func (NopProjectRepository) Delete(ctx context.Context, directory string) error {
	return nil
}
