package config

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/dcshock/stageupgrade/ctxlog"
)

// Run describes one upgrader invocation for observers.
type Run struct {
	RunID       string
	Pipeline    string
	StageIndex  int
	Library     string
	Stage       string
	Instance    string
	FromVersion int
	ToVersion   int
}

// Observer is called around every upgrader invocation, e.g. to log it or to
// keep an audit trail. BeforeUpgrade runs before the upgrader; AfterUpgrade
// runs after it with the upgrade error (nil on success).
type Observer interface {
	BeforeUpgrade(ctx context.Context, run Run) error
	AfterUpgrade(ctx context.Context, run Run, upgradeErr error, duration time.Duration) error
}

// UpgradeOptions configures UpgradeStage and UpgradePipeline.
// If Observer is set and RunID is empty, a new UUID is generated per call.
type UpgradeOptions struct {
	Observer Observer
	RunID    string
}

// UpgradeStage brings rec forward to the version its stage type declares.
//
//   - Same version: rec is returned unchanged; the upgrader is not called.
//   - Recorded version newer than the stage: NotSupported error.
//   - Stage type not registered: its current version is unknown, so rec is
//     returned unchanged.
//   - Otherwise the bound upgrader runs (upgrader.Default for stage types
//     registered without one) and the result is returned with Version set
//     to the current version.
//
// On failure the zero StageRecord is returned with the upgrader's error.
func UpgradeStage(ctx context.Context, reg *Registry, rec StageRecord, opts *UpgradeOptions) (StageRecord, error) {
	return upgradeStage(ctx, reg, rec, latestVersion, Run{StageIndex: -1}, resolveOptions(opts))
}

// UpgradeStageTo is like UpgradeStage but upgrades to toVersion instead of
// the registered current version. toVersion may not exceed a registered
// current version. Asking to upgrade a stage type that is not registered
// fails with upgrader.CodeNotImplemented.
func UpgradeStageTo(ctx context.Context, reg *Registry, rec StageRecord, toVersion int, opts *UpgradeOptions) (StageRecord, error) {
	if toVersion < 0 {
		return StageRecord{}, errors.NotValidf("target version %d", toVersion)
	}
	return upgradeStage(ctx, reg, rec, toVersion, Run{StageIndex: -1}, resolveOptions(opts))
}

// UpgradePipeline upgrades every stage of rec in order. The first failure
// aborts the whole pipeline and no partially upgraded record is returned.
func UpgradePipeline(ctx context.Context, reg *Registry, rec *PipelineRecord, opts *UpgradeOptions) (*PipelineRecord, error) {
	if rec == nil {
		return nil, errors.NotValidf("nil pipeline record")
	}
	o := resolveOptions(opts)
	out := &PipelineRecord{Name: rec.Name, Stages: make([]StageRecord, 0, len(rec.Stages))}
	for i, st := range rec.Stages {
		up, err := upgradeStage(ctx, reg, st, latestVersion, Run{Pipeline: rec.Name, StageIndex: i}, o)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q stage %d (%s): %w", rec.Name, i, st.Instance, err)
		}
		out.Stages = append(out.Stages, up)
	}
	return out, nil
}

// NeedsUpgrade reports whether rec is older than its registered stage type.
// Unregistered stage types never need an upgrade.
func NeedsUpgrade(reg *Registry, rec StageRecord) bool {
	b, ok := reg.Lookup(rec.Library, rec.Stage)
	return ok && rec.Version < b.CurrentVersion
}

func resolveOptions(opts *UpgradeOptions) UpgradeOptions {
	if opts == nil {
		return UpgradeOptions{}
	}
	o := *opts
	if o.Observer != nil && o.RunID == "" {
		o.RunID = uuid.New().String()
	}
	return o
}

// latestVersion asks upgradeStage for the registered current version.
const latestVersion = -1

func upgradeStage(ctx context.Context, reg *Registry, rec StageRecord, to int, run Run, opts UpgradeOptions) (StageRecord, error) {
	if reg == nil {
		return StageRecord{}, errors.NotValidf("nil registry")
	}
	if rec.Version < 0 {
		return StageRecord{}, errors.NotValidf("version %d of %s instance %q", rec.Version, rec.Type(), rec.Instance)
	}
	logger := ctxlog.FromContext(ctx).With("stage", rec.Type().String(), "instance", rec.Instance)

	b, registered := reg.Lookup(rec.Library, rec.Stage)
	switch {
	case !registered && to == latestVersion:
		logger.Debug("stage type not registered, keeping configuration", "version", rec.Version)
		return rec, nil
	case registered && to == latestVersion:
		to = b.CurrentVersion
	case registered && to > b.CurrentVersion:
		return StageRecord{}, errors.NotValidf("target version %d of %s beyond current version %d",
			to, rec.Type(), b.CurrentVersion)
	}
	switch {
	case rec.Version == to:
		logger.Debug("stage configuration is current", "version", rec.Version)
		return rec, nil
	case rec.Version > to:
		return StageRecord{}, errors.NotSupportedf("%s instance %q version %d newer than %d",
			rec.Type(), rec.Instance, rec.Version, to)
	}

	run.RunID = opts.RunID
	run.Library, run.Stage, run.Instance = rec.Library, rec.Stage, rec.Instance
	run.FromVersion, run.ToVersion = rec.Version, to
	if opts.Observer != nil {
		if err := opts.Observer.BeforeUpgrade(ctx, run); err != nil {
			return StageRecord{}, fmt.Errorf("before upgrade: %w", err)
		}
	}

	start := time.Now()
	configs, err := b.Upgrader.Upgrade(rec.Library, rec.Stage, rec.Instance, rec.Version, to, rec.Configs)
	duration := time.Since(start)

	if opts.Observer != nil {
		if postErr := opts.Observer.AfterUpgrade(ctx, run, err, duration); postErr != nil && err == nil {
			// Don't mask the upgrade error
			err = fmt.Errorf("after upgrade: %w", postErr)
		}
	}
	if err != nil {
		logger.Warn("stage configuration upgrade failed", "from", rec.Version, "to", to, "error", err)
		return StageRecord{}, err
	}
	logger.Info("stage configuration upgraded", "from", rec.Version, "to", to, "duration", duration)

	rec.Version = to
	rec.Configs = ConfigList(configs)
	return rec, nil
}
