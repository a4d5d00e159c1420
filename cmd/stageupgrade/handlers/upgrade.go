package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dcshock/stageupgrade/config"
	"github.com/dcshock/stageupgrade/ctxlog"
	"github.com/dcshock/stageupgrade/observer"
)

// UpgradeOptions holds the upgrade command's flags.
type UpgradeOptions struct {
	DefinitionsPath string
	RecordPath      string
	OutputPath      string
	DatabaseURL     string
}

// Upgrade upgrades the pipeline record at opts.RecordPath and writes the
// result to opts.OutputPath, or to out when no output path is set.
func Upgrade(ctx context.Context, out io.Writer, opts UpgradeOptions) error {
	reg, err := loadRegistry(ctx, opts.DefinitionsPath)
	if err != nil {
		return err
	}
	rec, err := loadRecord(opts.RecordPath)
	if err != nil {
		return err
	}

	var obs config.Observer = &observer.LogObserver{}
	if opts.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer pool.Close()
		if err := observer.Migrate(ctx, pool); err != nil {
			return err
		}
		obs = observer.Multi(obs, observer.NewDBObserver(pool))
	}

	upgraded, err := config.UpgradePipeline(ctx, reg, rec, &config.UpgradeOptions{Observer: obs})
	if err != nil {
		return err
	}
	data, err := config.MarshalPipelineRecord(upgraded)
	if err != nil {
		return fmt.Errorf("failed to render record: %w", err)
	}

	if opts.OutputPath == "" {
		_, err = out.Write(data)
		return err
	}
	if err := os.WriteFile(opts.OutputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	ctxlog.FromContext(ctx).Info("wrote upgraded record", "path", opts.OutputPath, "stages", len(upgraded.Stages))
	return nil
}
