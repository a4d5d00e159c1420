package observer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dcshock/stageupgrade/config"
	"github.com/dcshock/stageupgrade/upgrader"
)

//go:embed schema.sql
var schemaSQL string

// Run statuses stored in stage_upgrade_run.status.
const (
	StatusRunning        = "running"
	StatusSuccess        = "success"
	StatusNotImplemented = "not_implemented"
	StatusCannotUpgrade  = "cannot_upgrade"
	StatusFailed         = "failed"
)

// DBTX is the subset of pgx used by this package.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Migrate creates the stage_upgrade_run table if it does not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate stage_upgrade_run: %w", err)
	}
	return nil
}

// DBObserver persists each upgrader invocation to Postgres.
type DBObserver struct {
	db DBTX
}

var _ config.Observer = (*DBObserver)(nil)

// NewDBObserver returns an Observer that writes to db (e.g. a *pgxpool.Pool).
func NewDBObserver(db DBTX) *DBObserver {
	return &DBObserver{db: db}
}

const upsertRun = `
INSERT INTO stage_upgrade_run
    (run_id, pipeline, stage_index, library, stage, instance, from_version, to_version, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (run_id, stage_index, instance) DO UPDATE
SET status = EXCLUDED.status, started_at = now(), finished_at = NULL,
    error_code = NULL, error_params = NULL, error = NULL, duration_ms = NULL`

// BeforeUpgrade implements config.Observer. Inserts a stage_upgrade_run row
// with status 'running'; re-running the same run ID resets the row.
func (o *DBObserver) BeforeUpgrade(ctx context.Context, run config.Run) error {
	_, err := o.db.Exec(ctx, upsertRun,
		run.RunID, run.Pipeline, int32(run.StageIndex),
		run.Library, run.Stage, run.Instance,
		int32(run.FromVersion), int32(run.ToVersion), StatusRunning)
	return err
}

const completeRun = `
UPDATE stage_upgrade_run
SET status = $4, error_code = $5, error_params = $6, error = $7, duration_ms = $8, finished_at = now()
WHERE run_id = $1 AND stage_index = $2 AND instance = $3`

// AfterUpgrade implements config.Observer. Records the outcome, the
// structured error code and parameters, and the duration.
func (o *DBObserver) AfterUpgrade(ctx context.Context, run config.Run, upgradeErr error, duration time.Duration) error {
	status, code, params, errText, err := outcome(upgradeErr)
	if err != nil {
		return err
	}
	_, err = o.db.Exec(ctx, completeRun,
		run.RunID, int32(run.StageIndex), run.Instance,
		status, code, params, errText,
		pgtype.Int8{Int64: duration.Milliseconds(), Valid: true})
	return err
}

func outcome(upgradeErr error) (status string, code pgtype.Text, params []byte, errText pgtype.Text, err error) {
	if upgradeErr == nil {
		return StatusSuccess, code, nil, errText, nil
	}
	errText = pgtype.Text{String: upgradeErr.Error(), Valid: true}
	e, ok := upgrader.AsError(upgradeErr)
	if !ok {
		return StatusFailed, code, nil, errText, nil
	}
	code = pgtype.Text{String: e.Code.Code(), Valid: true}
	params, err = json.Marshal(e.Params)
	if err != nil {
		return "", code, nil, errText, fmt.Errorf("marshal error params: %w", err)
	}
	switch e.Code {
	case upgrader.CodeNotImplemented:
		status = StatusNotImplemented
	case upgrader.CodeCannotUpgrade:
		status = StatusCannotUpgrade
	default:
		status = StatusFailed
	}
	return status, code, params, errText, nil
}
