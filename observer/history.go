package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RunRecord is one row of stage_upgrade_run.
type RunRecord struct {
	RunID       string
	Pipeline    string
	StageIndex  int
	Library     string
	Stage       string
	Instance    string
	FromVersion int
	ToVersion   int
	Status      string
	ErrorCode   string
	ErrorParams []any
	Error       string
	Duration    time.Duration
	StartedAt   time.Time
}

const selectHistory = `
SELECT run_id, pipeline, stage_index, library, stage, instance, from_version, to_version,
       status, error_code, error_params, error, duration_ms, started_at
FROM stage_upgrade_run
WHERE ($1 = '' OR library = $1) AND ($2 = '' OR stage = $2) AND ($3 = '' OR instance = $3)
ORDER BY started_at DESC
LIMIT $4`

// HistoryFilter narrows History. Empty fields match everything.
type HistoryFilter struct {
	Library  string
	Stage    string
	Instance string
	Limit    int
}

// History returns recorded upgrader invocations, newest first. Limit
// defaults to 50.
func History(ctx context.Context, db DBTX, f HistoryFilter) ([]RunRecord, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	rows, err := db.Query(ctx, selectHistory, f.Library, f.Stage, f.Instance, int32(f.Limit))
	if err != nil {
		return nil, fmt.Errorf("query stage_upgrade_run: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRunRecord)
	if err != nil {
		return nil, fmt.Errorf("scan stage_upgrade_run: %w", err)
	}
	return records, nil
}

func scanRunRecord(row pgx.CollectableRow) (RunRecord, error) {
	var (
		r                    RunRecord
		stageIndex, from, to int32
		code, errText        pgtype.Text
		params               []byte
		durationMs           pgtype.Int8
	)
	if err := row.Scan(&r.RunID, &r.Pipeline, &stageIndex, &r.Library, &r.Stage, &r.Instance,
		&from, &to, &r.Status, &code, &params, &errText, &durationMs, &r.StartedAt); err != nil {
		return RunRecord{}, err
	}
	r.StageIndex, r.FromVersion, r.ToVersion = int(stageIndex), int(from), int(to)
	r.ErrorCode, r.Error = code.String, errText.String
	if durationMs.Valid {
		r.Duration = time.Duration(durationMs.Int64) * time.Millisecond
	}
	if len(params) > 0 {
		p, err := decodeParams(params)
		if err != nil {
			return RunRecord{}, fmt.Errorf("unmarshal error params: %w", err)
		}
		r.ErrorParams = p
	}
	return r, nil
}

// decodeParams reads back the params written by AfterUpgrade. Whole numbers
// come back as int, matching the upgrader.Error they were taken from.
func decodeParams(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var params []any
	if err := dec.Decode(&params); err != nil {
		return nil, err
	}
	for i, p := range params {
		n, ok := p.(json.Number)
		if !ok {
			continue
		}
		if v, err := n.Int64(); err == nil && int64(int(v)) == v {
			params[i] = int(v)
		} else if f, err := n.Float64(); err == nil {
			params[i] = f
		}
	}
	return params, nil
}
