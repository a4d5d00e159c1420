// Package observer provides config.Observer implementations for stage
// configuration upgrades.
//
//   - LogObserver: logs every upgrader invocation with log/slog.
//   - DBObserver: records every invocation in Postgres (stage_upgrade_run)
//     so failed upgrades can be inspected after the fact. Create the table
//     with Migrate; read it back with History.
//   - Multi: fans a single invocation out to several observers.
//
// DBObserver writes through DBTX, which *pgxpool.Pool, *pgx.Conn and pgx.Tx
// all satisfy.
package observer
