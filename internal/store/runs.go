package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"econstats-engine/internal/domain"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

var ErrRunNotFound = errors.New("run not found")

type Run struct {
	ID         string    `json:"id"`
	Pipeline   string    `json:"pipeline"`
	StartedAt  string    `json:"startedAt"`
	FinishedAt string    `json:"finishedAt"`
	Status     RunStatus `json:"status"`
	Summary    string    `json:"summary"`
}

// StatusFor derives a run status from its unit results and terminal error.
func StatusFor(results []domain.UnitResult, err error) RunStatus {
	if err != nil {
		return RunFailed
	}
	if domain.Count(results).Complete() {
		return RunOK
	}
	return RunPartial
}

func (d *DB) BeginRun(ctx context.Context, pipeline string) (Run, error) {
	r := Run{
		ID:        uuid.NewString(),
		Pipeline:  pipeline,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Status:    RunRunning,
	}
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO runs(id, pipeline, started_at, status)
VALUES(?,?,?,?);`,
		r.ID, r.Pipeline, r.StartedAt, string(r.Status))
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return r, nil
}

func (d *DB) FinishRun(ctx context.Context, id string, status RunStatus, summary string) error {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE runs
SET finished_at = ?, status = ?, summary = ?
WHERE id = ?;`,
		time.Now().UTC().Format(time.RFC3339), string(status), summary, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (d *DB) RecordUnits(ctx context.Context, runID string, results []domain.UnitResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO unit_results(run_id, unit, outcome, reason, at)
VALUES(?,?,?,?,?);`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		at := r.At
		if at.IsZero() {
			at = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, runID, r.Unit, string(r.Outcome), r.Reason, at.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("record unit %q: %w", r.Unit, err)
		}
	}
	return tx.Commit()
}

func (d *DB) RecordAvailability(ctx context.Context, runID string, avail domain.YearAvailability) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, year := range avail.Years() {
		for _, geo := range avail[year] {
			if _, err := tx.ExecContext(ctx, `
INSERT OR REPLACE INTO availability(run_id, year, geo_id)
VALUES(?,?,?);`, runID, year, geo); err != nil {
				return fmt.Errorf("record availability: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Availability returns the YearAvailability recorded for a run.
func (d *DB) Availability(ctx context.Context, runID string) (domain.YearAvailability, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT year, geo_id FROM availability WHERE run_id = ? ORDER BY year, geo_id;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := domain.YearAvailability{}
	for rows.Next() {
		var year, geo string
		if err := rows.Scan(&year, &geo); err != nil {
			return nil, err
		}
		out[year] = append(out[year], geo)
	}
	return out, rows.Err()
}

func (d *DB) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	var status string
	err := d.Pool.QueryRowContext(ctx, `
SELECT id, pipeline, started_at, finished_at, status, summary
FROM runs WHERE id = ?;`, id).Scan(&r.ID, &r.Pipeline, &r.StartedAt, &r.FinishedAt, &status, &r.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	r.Status = RunStatus(status)
	return r, nil
}

func (d *DB) ListRuns(ctx context.Context, pipeline string, limit int) ([]Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `
SELECT id, pipeline, started_at, finished_at, status, summary
FROM runs
%s
ORDER BY started_at DESC, rowid DESC
LIMIT ?;`
	where := ""
	args := []any{}
	if pipeline != "" {
		where = "WHERE pipeline = ?"
		args = append(args, pipeline)
	}
	args = append(args, limit)

	rows, err := d.Pool.QueryContext(ctx, fmt.Sprintf(query, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var status string
		if err := rows.Scan(&r.ID, &r.Pipeline, &r.StartedAt, &r.FinishedAt, &status, &r.Summary); err != nil {
			return nil, err
		}
		r.Status = RunStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) ListUnits(ctx context.Context, runID string) ([]domain.UnitResult, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT unit, outcome, reason, at
FROM unit_results
WHERE run_id = ?
ORDER BY id;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UnitResult
	for rows.Next() {
		var u domain.UnitResult
		var outcome, at string
		if err := rows.Scan(&u.Unit, &outcome, &u.Reason, &at); err != nil {
			return nil, err
		}
		u.Outcome = domain.Outcome(outcome)
		u.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// CleanupOldRuns drops runs (and, via cascade, their units) older than the cutoff.
func (d *DB) CleanupOldRuns(ctx context.Context, olderThan time.Duration) (deleted int64, err error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := d.Pool.ExecContext(ctx, `
DELETE FROM runs
WHERE started_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
