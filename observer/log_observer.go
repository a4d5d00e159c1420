package observer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dcshock/stageupgrade/config"
	"github.com/dcshock/stageupgrade/ctxlog"
	"github.com/dcshock/stageupgrade/upgrader"
)

// LogObserver logs upgrader invocations. A nil Logger uses the logger carried
// by the context (see ctxlog).
type LogObserver struct {
	Logger *slog.Logger
}

var _ config.Observer = (*LogObserver)(nil)

func (o *LogObserver) logger(ctx context.Context, run config.Run) *slog.Logger {
	l := o.Logger
	if l == nil {
		l = ctxlog.FromContext(ctx)
	}
	return l.With(
		"run_id", run.RunID,
		"library", run.Library,
		"stage", run.Stage,
		"instance", run.Instance,
		"from", run.FromVersion,
		"to", run.ToVersion,
	)
}

// BeforeUpgrade implements config.Observer.
func (o *LogObserver) BeforeUpgrade(ctx context.Context, run config.Run) error {
	o.logger(ctx, run).Debug("upgrading stage configuration")
	return nil
}

// AfterUpgrade implements config.Observer.
func (o *LogObserver) AfterUpgrade(ctx context.Context, run config.Run, upgradeErr error, duration time.Duration) error {
	l := o.logger(ctx, run).With("duration", duration)
	if upgradeErr == nil {
		l.Info("stage configuration upgrade succeeded")
		return nil
	}
	if e, ok := upgrader.AsError(upgradeErr); ok {
		l = l.With("code", e.Code.Code(), "params", e.Params)
	}
	l.Error("stage configuration upgrade failed", "error", upgradeErr)
	return nil
}

type multiObserver []config.Observer

// Multi returns an Observer that calls every observer in order. All of them
// run even if one fails; the errors are joined.
func Multi(observers ...config.Observer) config.Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) BeforeUpgrade(ctx context.Context, run config.Run) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.BeforeUpgrade(ctx, run))
	}
	return errors.Join(errs...)
}

func (m multiObserver) AfterUpgrade(ctx context.Context, run config.Run, upgradeErr error, duration time.Duration) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.AfterUpgrade(ctx, run, upgradeErr, duration))
	}
	return errors.Join(errs...)
}
