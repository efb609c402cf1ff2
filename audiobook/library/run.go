package library

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusStopped   RunStatus = "stopped"
	StatusFailed    RunStatus = "failed"
)

// Run is one scheduler or regeneration invocation.
type Run struct {
	ID          uuid.UUID
	Project     string
	Mode        string
	Status      RunStatus
	Total       int
	Done        int
	Synthesized int
	Failed      int
	StartedAt   time.Time
	FinishedAt  time.Time
}

type RunRepository interface {
	Start(ctx context.Context, run Run) error
	// Finish stores the final counters and status of a started run.
	Finish(ctx context.Context, run Run) error
	// ListByProject returns the latest runs of a project, newest first.
	ListByProject(ctx context.Context, directory string, limit uint64) ([]Run, error)
}

func NewRunRepository(db *sqlx.DB, placeholder sq.PlaceholderFormat) RunRepository {
	return &runRepositoryImpl{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

type runRepositoryImpl struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

type runRow struct {
	ID          string `db:"id"`
	Project     string `db:"project_directory"`
	Mode        string `db:"mode"`
	Status      string `db:"status"`
	Total       int    `db:"total"`
	Done        int    `db:"done"`
	Synthesized int    `db:"synthesized"`
	Failed      int    `db:"failed"`
	StartedAt   int64  `db:"started_at"`
	FinishedAt  int64  `db:"finished_at"`
}

func (r runRow) run() (Run, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return Run{}, fmt.Errorf("invalid run id %q: %w", r.ID, err)
	}
	run := Run{
		ID:          id,
		Project:     r.Project,
		Mode:        r.Mode,
		Status:      RunStatus(r.Status),
		Total:       r.Total,
		Done:        r.Done,
		Synthesized: r.Synthesized,
		Failed:      r.Failed,
		StartedAt:   time.Unix(r.StartedAt, 0),
	}
	if r.FinishedAt != 0 {
		run.FinishedAt = time.Unix(r.FinishedAt, 0)
	}
	return run, nil
}

var runColumns = []string{"id", "project_directory", "mode", "status", "total", "done", "synthesized", "failed", "started_at", "finished_at"}

func (r *runRepositoryImpl) Start(ctx context.Context, run Run) error {
	query, args, err := r.sb.Insert("generation_runs").
		Columns(runColumns...).
		Values(run.ID.String(), run.Project, run.Mode, string(run.Status), run.Total, run.Done, run.Synthesized, run.Failed, run.StartedAt.Unix(), int64(0)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *runRepositoryImpl) Finish(ctx context.Context, run Run) error {
	query, args, err := r.sb.Update("generation_runs").
		Set("status", string(run.Status)).
		Set("total", run.Total).
		Set("done", run.Done).
		Set("synthesized", run.Synthesized).
		Set("failed", run.Failed).
		Set("finished_at", run.FinishedAt.Unix()).
		Where(sq.Eq{"id": run.ID.String()}).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s was never started", run.ID)
	}
	return nil
}

func (r *runRepositoryImpl) ListByProject(ctx context.Context, directory string, limit uint64) ([]Run, error) {
	builder := r.sb.Select(runColumns...).
		From("generation_runs").
		Where(sq.Eq{"project_directory": directory}).
		OrderBy("started_at DESC", "id")
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// NopRunRepository is used when the library is disabled.
type NopRunRepository struct {
}

func (NopRunRepository) Start(ctx context.Context, run Run) error {
	return nil
}

func (NopRunRepository) Finish(ctx context.Context, run Run) error {
	return nil
}

func (NopRunRepository) ListByProject(ctx context.Context, directory string, limit uint64) ([]Run, error) {
	return nil, nil
}
