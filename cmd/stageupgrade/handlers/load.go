package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/juju/errors"

	"github.com/dcshock/stageupgrade/config"
	"github.com/dcshock/stageupgrade/ctxlog"
	"github.com/dcshock/stageupgrade/upgrader"
)

// loadRegistry reads the definitions file at path and registers every
// upgrader it declares.
func loadRegistry(ctx context.Context, path string) (*config.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}
	defs, err := config.ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse definitions %s: %w", path, err)
	}
	reg := config.NewRegistry()
	logger := ctxlog.FromContext(ctx)
	if err := config.RegisterDefinitions(reg, defs, upgrader.WithLogger(logger)); err != nil {
		return nil, errors.Annotatef(err, "definitions %s", path)
	}
	logger.Debug("loaded upgrade definitions", "path", path, "stage_types", len(reg.Types()))
	return reg, nil
}

func loadRecord(path string) (*config.PipelineRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	rec, err := config.ParsePipelineRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse record %s: %w", path, err)
	}
	return rec, nil
}
