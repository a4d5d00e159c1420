package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/errors"

	"github.com/dcshock/stageupgrade/observer"
)

// History prints recorded upgrader invocations from the audit trail.
func History(ctx context.Context, out io.Writer, databaseURL string, filter observer.HistoryFilter, jsonOutput bool) error {
	if databaseURL == "" {
		return errors.NotValidf("empty database URL (set --database-url or DATABASE_URL)")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer pool.Close()

	records, err := observer.History(ctx, pool, filter)
	if err != nil {
		return err
	}
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	return renderHistory(out, records)
}

func renderHistory(out io.Writer, records []observer.RunRecord) error {
	tw := tabwriter.NewWriter(out, 0, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tINSTANCE\tSTAGE\tFROM\tTO\tSTATUS\tCODE\tDURATION")
	for _, r := range records {
		code := r.ErrorCode
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s:%s\t%d\t%d\t%s\t%s\t%s\n",
			r.StartedAt.Format(time.RFC3339), r.RunID, r.Instance, r.Library, r.Stage,
			r.FromVersion, r.ToVersion, r.Status, code, r.Duration)
	}
	return tw.Flush()
}
