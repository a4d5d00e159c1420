package config

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	jujuerrors "github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/stageupgrade/ctxlog"
	"github.com/dcshock/stageupgrade/upgrader"
)

type recordingObserver struct {
	before    []Run
	after     []Run
	afterErrs []error
	failAfter error
}

func (o *recordingObserver) BeforeUpgrade(ctx context.Context, run Run) error {
	o.before = append(o.before, run)
	return nil
}

func (o *recordingObserver) AfterUpgrade(ctx context.Context, run Run, upgradeErr error, duration time.Duration) error {
	o.after = append(o.after, run)
	o.afterErrs = append(o.afterErrs, upgradeErr)
	return o.failAfter
}

// countingUpgrader fails the test if it is ever called with from >= to.
type countingUpgrader struct {
	t     *testing.T
	calls int
	inner upgrader.Upgrader
}

func (c *countingUpgrader) Upgrade(library, stageName, stageInstance string, from, to int, configs []upgrader.Config) ([]upgrader.Config, error) {
	c.calls++
	if from >= to {
		c.t.Errorf("upgrader invoked with from=%d to=%d", from, to)
	}
	return c.inner.Upgrade(library, stageName, stageInstance, from, to, configs)
}

func testRegistry(t *testing.T) (*Registry, *countingUpgrader) {
	jdbc := &countingUpgrader{t: t, inner: upgrader.NewChain().
		MustRegister(1, upgrader.Rename("user", "username")).
		MustRegister(2, upgrader.Add("connectionTimeoutMs", 30000))}
	reg := NewRegistry()
	reg.MustRegister("lib", "jdbc-source", 3, jdbc)
	reg.MustRegister("lib", "unversioned-sink", 2, nil)
	reg.MustRegister("lib", "partial", 4, upgrader.NewChain().MustRegister(1, upgrader.Identity()))
	return reg, jdbc
}

func TestUpgradeStage_JDBCSource(t *testing.T) {
	reg, jdbc := testRegistry(t)
	rec := StageRecord{
		Library: "lib", Stage: "jdbc-source", Instance: "source1", Version: 1,
		Configs: ConfigList{{Name: "user", Value: "admin"}, {Name: "password", Value: "x"}},
	}

	out, err := UpgradeStage(context.Background(), reg, rec, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, jdbc.calls)
	assert.Equal(t, 3, out.Version)
	assert.Equal(t, ConfigList{
		{Name: "username", Value: "admin"},
		{Name: "password", Value: "x"},
		{Name: "connectionTimeoutMs", Value: 30000},
	}, out.Configs)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, "user", rec.Configs[0].Name)
}

func TestUpgradeStage_CurrentVersionNotInvoked(t *testing.T) {
	reg, jdbc := testRegistry(t)
	rec := StageRecord{Library: "lib", Stage: "jdbc-source", Instance: "s", Version: 3,
		Configs: ConfigList{{Name: "username", Value: "u"}}}

	out, err := UpgradeStage(context.Background(), reg, rec, nil)
	require.NoError(t, err)
	assert.Equal(t, rec, out)
	assert.Zero(t, jdbc.calls)
}

func TestUpgradeStage_NewerVersionRejected(t *testing.T) {
	reg, jdbc := testRegistry(t)
	rec := StageRecord{Library: "lib", Stage: "jdbc-source", Instance: "s", Version: 4}

	_, err := UpgradeStage(context.Background(), reg, rec, nil)
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotSupported), "%v", err)
	assert.Zero(t, jdbc.calls)
}

func TestUpgradeStage_DefaultUpgrader(t *testing.T) {
	reg, _ := testRegistry(t)
	rec := StageRecord{Library: "lib", Stage: "unversioned-sink", Instance: "sink1", Version: 1}

	_, err := UpgradeStage(context.Background(), reg, rec, nil)
	require.True(t, upgrader.IsNotImplemented(err), "%v", err)
	e, ok := upgrader.AsError(err)
	require.True(t, ok)
	assert.Equal(t, []any{"lib", "unversioned-sink", "sink1"}, e.Params)
}

func TestUpgradeStage_UncoveredRange(t *testing.T) {
	reg, _ := testRegistry(t)
	rec := StageRecord{Library: "lib", Stage: "partial", Instance: "p1", Version: 1}

	_, err := UpgradeStage(context.Background(), reg, rec, nil)
	require.True(t, upgrader.IsCannotUpgrade(err), "%v", err)
	e, _ := upgrader.AsError(err)
	assert.Equal(t, []any{"lib", "partial", "p1", 1, 4}, e.Params)
}

func TestUpgradeStage_UnregisteredStageTypePassesThrough(t *testing.T) {
	reg, _ := testRegistry(t)
	obs := &recordingObserver{}
	rec := StageRecord{Library: "lib", Stage: "nope", Instance: "n1", Version: 1,
		Configs: ConfigList{{Name: "k", Value: "v"}}}

	out, err := UpgradeStage(context.Background(), reg, rec, &UpgradeOptions{Observer: obs})
	require.NoError(t, err)
	assert.Equal(t, rec, out)
	assert.Empty(t, obs.before)
}

func TestUpgradeStageTo(t *testing.T) {
	reg, jdbc := testRegistry(t)
	rec := StageRecord{Library: "lib", Stage: "jdbc-source", Instance: "source1", Version: 1,
		Configs: ConfigList{{Name: "user", Value: "admin"}}}

	out, err := UpgradeStageTo(context.Background(), reg, rec, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Version)
	assert.Equal(t, ConfigList{{Name: "username", Value: "admin"}}, out.Configs)
	assert.Equal(t, 1, jdbc.calls)

	_, err = UpgradeStageTo(context.Background(), reg, rec, 4, nil)
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotValid), "%v", err)

	_, err = UpgradeStageTo(context.Background(), reg, rec, -2, nil)
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotValid), "%v", err)
}

func TestUpgradeStageTo_UnregisteredIsNotImplemented(t *testing.T) {
	reg, _ := testRegistry(t)
	obs := &recordingObserver{}
	rec := StageRecord{Library: "lib", Stage: "nope", Instance: "n1", Version: 1}

	_, err := UpgradeStageTo(context.Background(), reg, rec, 2, &UpgradeOptions{Observer: obs})
	require.True(t, upgrader.IsNotImplemented(err), "%v", err)
	e, _ := upgrader.AsError(err)
	assert.Equal(t, []any{"lib", "nope", "n1"}, e.Params)
	require.Len(t, obs.after, 1)
	assert.True(t, upgrader.IsNotImplemented(obs.afterErrs[0]))

	out, err := UpgradeStageTo(context.Background(), reg, rec, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, rec, out)
}

func TestUpgradePipeline_UnregisteredStageKept(t *testing.T) {
	reg, _ := testRegistry(t)
	rec := &PipelineRecord{
		Name: "orders",
		Stages: []StageRecord{
			{Library: "lib", Stage: "jdbc-source", Instance: "source1", Version: 1,
				Configs: ConfigList{{Name: "user", Value: "admin"}}},
			{Library: "vendor", Stage: "custom", Instance: "c1", Version: 7,
				Configs: ConfigList{{Name: "mode", Value: "fast"}}},
		},
	}

	out, err := UpgradePipeline(context.Background(), reg, rec, nil)
	require.NoError(t, err)
	require.Len(t, out.Stages, 2)
	assert.Equal(t, 3, out.Stages[0].Version)
	assert.Equal(t, rec.Stages[1], out.Stages[1])
}

func TestUpgradeStage_InvalidInput(t *testing.T) {
	reg, _ := testRegistry(t)
	_, err := UpgradeStage(context.Background(), nil, StageRecord{}, nil)
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotValid))

	_, err = UpgradeStage(context.Background(), reg, StageRecord{Library: "lib", Stage: "jdbc-source", Version: -1}, nil)
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotValid))
}

func TestUpgradeStage_ObserverAndRunID(t *testing.T) {
	reg, _ := testRegistry(t)
	obs := &recordingObserver{}
	rec := StageRecord{Library: "lib", Stage: "jdbc-source", Instance: "s", Version: 2}

	_, err := UpgradeStage(context.Background(), reg, rec, &UpgradeOptions{Observer: obs})
	require.NoError(t, err)
	require.Len(t, obs.before, 1)
	require.Len(t, obs.after, 1)
	run := obs.before[0]
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, -1, run.StageIndex)
	assert.Equal(t, 2, run.FromVersion)
	assert.Equal(t, 3, run.ToVersion)
	assert.NoError(t, obs.afterErrs[0])

	_, err = UpgradeStage(context.Background(), reg, rec, &UpgradeOptions{Observer: obs, RunID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", obs.before[1].RunID)
}

func TestUpgradeStage_ObserverErrorDoesNotMaskUpgradeError(t *testing.T) {
	reg, _ := testRegistry(t)
	obs := &recordingObserver{failAfter: errors.New("audit down")}

	_, err := UpgradeStage(context.Background(), reg,
		StageRecord{Library: "lib", Stage: "unversioned-sink", Instance: "s", Version: 1},
		&UpgradeOptions{Observer: obs})
	assert.True(t, upgrader.IsNotImplemented(err))
	assert.True(t, upgrader.IsNotImplemented(obs.afterErrs[0]))

	_, err = UpgradeStage(context.Background(), reg,
		StageRecord{Library: "lib", Stage: "jdbc-source", Instance: "s", Version: 2},
		&UpgradeOptions{Observer: obs})
	assert.ErrorContains(t, err, "after upgrade: audit down")
}

func TestUpgradeStage_Logs(t *testing.T) {
	reg, _ := testRegistry(t)
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := UpgradeStage(ctx, reg, StageRecord{Library: "lib", Stage: "jdbc-source", Instance: "s", Version: 2}, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "stage configuration upgraded")
	assert.Contains(t, buf.String(), "stage=lib:jdbc-source")
}

func TestUpgradePipeline(t *testing.T) {
	reg, _ := testRegistry(t)
	obs := &recordingObserver{}
	rec := &PipelineRecord{
		Name: "orders",
		Stages: []StageRecord{
			{Library: "lib", Stage: "jdbc-source", Instance: "source1", Version: 1,
				Configs: ConfigList{{Name: "user", Value: "admin"}}},
			{Library: "lib", Stage: "unversioned-sink", Instance: "sink1", Version: 2},
		},
	}

	out, err := UpgradePipeline(context.Background(), reg, rec, &UpgradeOptions{Observer: obs})
	require.NoError(t, err)
	assert.Equal(t, "orders", out.Name)
	assert.Equal(t, 3, out.Stages[0].Version)
	assert.Equal(t, rec.Stages[1], out.Stages[1])
	assert.Equal(t, 1, rec.Stages[0].Version)

	require.Len(t, obs.before, 1)
	assert.Equal(t, "orders", obs.before[0].Pipeline)
	assert.Equal(t, 0, obs.before[0].StageIndex)
}

func TestUpgradePipeline_FirstFailureAborts(t *testing.T) {
	reg, jdbc := testRegistry(t)
	rec := &PipelineRecord{
		Name: "orders",
		Stages: []StageRecord{
			{Library: "lib", Stage: "unversioned-sink", Instance: "sink1", Version: 1},
			{Library: "lib", Stage: "jdbc-source", Instance: "source1", Version: 1},
		},
	}

	out, err := UpgradePipeline(context.Background(), reg, rec, nil)
	assert.Nil(t, out)
	assert.True(t, upgrader.IsNotImplemented(err))
	assert.ErrorContains(t, err, `pipeline "orders" stage 0 (sink1)`)
	assert.Zero(t, jdbc.calls)

	_, err = UpgradePipeline(context.Background(), reg, nil, nil)
	assert.True(t, jujuerrors.Is(err, jujuerrors.NotValid))
}

func TestNeedsUpgrade(t *testing.T) {
	reg, _ := testRegistry(t)
	assert.True(t, NeedsUpgrade(reg, StageRecord{Library: "lib", Stage: "jdbc-source", Version: 1}))
	assert.False(t, NeedsUpgrade(reg, StageRecord{Library: "lib", Stage: "jdbc-source", Version: 3}))
	assert.False(t, NeedsUpgrade(reg, StageRecord{Library: "lib", Stage: "unknown", Version: 0}))
}
