package upgrader

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
)

// Step converts the configuration of one version v into the configuration of
// v+1. It receives a working copy it may edit and return; it runs exactly once
// per upgrade for exactly one version transition.
type Step func(configs Configs) (Configs, error)

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger logs every step at debug level and failures at warn level.
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Chain is an Upgrader built from single-version steps keyed by the version
// they upgrade from. Register all steps before the chain is shared; Upgrade
// only reads the step map.
type Chain struct {
	mu     sync.RWMutex
	steps  map[int]Step
	logger *slog.Logger
}

var _ Upgrader = (*Chain)(nil)

// NewChain returns an empty chain.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{
		steps:  make(map[int]Step),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds the step that upgrades fromVersion to fromVersion+1.
func (c *Chain) Register(fromVersion int, step Step) error {
	if fromVersion < 0 {
		return fmt.Errorf("upgrader: negative version %d", fromVersion)
	}
	if step == nil {
		return fmt.Errorf("upgrader: nil step for version %d", fromVersion)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.steps[fromVersion]; exists {
		return fmt.Errorf("upgrader: step for version %d already registered", fromVersion)
	}
	c.steps[fromVersion] = step
	return nil
}

// MustRegister is like Register but panics on error.
func (c *Chain) MustRegister(fromVersion int, step Step) *Chain {
	if err := c.Register(fromVersion, step); err != nil {
		panic(err)
	}
	return c
}

// Versions returns the registered from-versions in ascending order.
func (c *Chain) Versions() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	versions := make([]int, 0, len(c.steps))
	for v := range c.steps {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}

// Covers reports whether every step in [fromVersion, toVersion) is registered.
func (c *Chain) Covers(fromVersion, toVersion int) bool {
	_, ok := c.lookup(fromVersion, toVersion)
	return ok
}

// lookup collects the steps for [fromVersion, toVersion) in order.
func (c *Chain) lookup(fromVersion, toVersion int) ([]Step, bool) {
	if fromVersion < 0 || fromVersion >= toVersion {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	steps := make([]Step, 0, toVersion-fromVersion)
	for v := fromVersion; v < toVersion; v++ {
		step, ok := c.steps[v]
		if !ok {
			return nil, false
		}
		steps = append(steps, step)
	}
	return steps, true
}

// Upgrade implements Upgrader. The whole range must be covered before any
// step runs; steps run on a deep copy of configs, so on failure the caller's
// slice is untouched and no partial result is returned.
func (c *Chain) Upgrade(library, stageName, stageInstance string, fromVersion, toVersion int, configs []Config) ([]Config, error) {
	steps, ok := c.lookup(fromVersion, toVersion)
	if !ok {
		return nil, CannotUpgradeError(library, stageName, stageInstance, fromVersion, toVersion, nil)
	}
	logger := c.logger.With(
		"library", library,
		"stage", stageName,
		"instance", stageInstance,
	)
	out, err := Configs(configs).Clone()
	if err != nil {
		return nil, CannotUpgradeError(library, stageName, stageInstance, fromVersion, toVersion, err)
	}
	for i, step := range steps {
		v := fromVersion + i
		next, err := step(out)
		if err != nil {
			logger.Warn("upgrade step failed", "from", v, "to", v+1, "error", err)
			return nil, CannotUpgradeError(library, stageName, stageInstance, fromVersion, toVersion,
				&StepError{FromVersion: v, Err: err})
		}
		logger.Debug("upgrade step applied", "from", v, "to", v+1, "configs", len(next))
		out = next
	}
	return out, nil
}

// StepError records which version transition failed.
type StepError struct {
	FromVersion int
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d->%d: %v", e.FromVersion, e.FromVersion+1, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
