package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

// RunRecorder keeps a ledger of per-category acquisition outcomes.
type RunRecorder interface {
	Record(ctx context.Context, report *model.RunReport) error
}

type SQLRunRecorder struct {
	db *sqlx.DB
}

func NewSQLRunRecorder(db *sqlx.DB) *SQLRunRecorder {
	return &SQLRunRecorder{db: db}
}

const createResultsTable = `
	CREATE TABLE IF NOT EXISTS acquisition_results (
		run_id      TEXT NOT NULL,
		location    TEXT NOT NULL,
		category    TEXT NOT NULL,
		stage       TEXT NOT NULL,
		bytes       BIGINT NOT NULL,
		error       TEXT NOT NULL,
		duration_ms BIGINT NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	)`

type resultRow struct {
	RunID      string    `db:"run_id"`
	Location   string    `db:"location"`
	Category   string    `db:"category"`
	Stage      string    `db:"stage"`
	Bytes      int64     `db:"bytes"`
	Error      string    `db:"error"`
	DurationMS int64     `db:"duration_ms"`
	RecordedAt time.Time `db:"recorded_at"`
}

// Migrate creates the results table if it does not exist yet.
func (r *SQLRunRecorder) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createResultsTable); err != nil {
		return fmt.Errorf("failed to create acquisition_results: %w", err)
	}
	return nil
}

func (r *SQLRunRecorder) Record(ctx context.Context, report *model.RunReport) error {
	const query = `
		INSERT INTO acquisition_results (
			run_id, location, category, stage, bytes, error, duration_ms, recorded_at
		) VALUES (
			:run_id, :location, :category, :stage, :bytes, :error, :duration_ms, :recorded_at
		)`

	if len(report.Results) == 0 {
		return nil
	}

	rows := make([]resultRow, 0, len(report.Results))
	for _, res := range report.Results {
		row := resultRow{
			RunID:      report.RunID,
			Location:   report.Location,
			Category:   res.Category,
			Stage:      "done",
			Bytes:      res.Bytes,
			DurationMS: res.Duration.Milliseconds(),
			RecordedAt: report.FinishedAt.UTC(),
		}
		if res.Err != nil {
			row.Stage = string(res.Err.Stage)
			row.Error = res.Err.Err.Error()
		}
		rows = append(rows, row)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("failed to record %s: %w", row.Category, err)
		}
	}
	return tx.Commit()
}
