package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/juju/errors"

	"github.com/dcshock/stageupgrade/upgrader"
)

// StageType identifies which Upgrader applies to a configuration record.
type StageType struct {
	Library string
	Stage   string
}

func (t StageType) String() string { return t.Library + ":" + t.Stage }

// Binding is what a stage type registered: its current version and the
// Upgrader that brings older configurations to it.
type Binding struct {
	StageType
	CurrentVersion int
	Upgrader       upgrader.Upgrader
}

// Registry maps stage types to their upgrade bindings. Safe for concurrent
// use; bindings are written at registration time and only read afterwards.
type Registry struct {
	mu       sync.RWMutex
	bindings map[StageType]Binding
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[StageType]Binding)}
}

// Register binds u to library:stage at currentVersion. A nil u binds
// upgrader.Default. Registering the same stage type twice is an error.
func (r *Registry) Register(library, stage string, currentVersion int, u upgrader.Upgrader) error {
	if library == "" || stage == "" {
		return errors.NotValidf("stage type %q:%q", library, stage)
	}
	if currentVersion < 0 {
		return errors.NotValidf("version %d of %s:%s", currentVersion, library, stage)
	}
	if u == nil {
		u = upgrader.Default
	}
	st := StageType{Library: library, Stage: stage}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bindings == nil {
		r.bindings = make(map[StageType]Binding)
	}
	if _, exists := r.bindings[st]; exists {
		return errors.AlreadyExistsf("stage type %s", st)
	}
	r.bindings[st] = Binding{StageType: st, CurrentVersion: currentVersion, Upgrader: u}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(library, stage string, currentVersion int, u upgrader.Upgrader) {
	if err := r.Register(library, stage, currentVersion, u); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// Lookup returns the binding for library:stage. Unknown stage types get a
// binding with upgrader.Default and ok=false, so callers never hold a nil
// Upgrader.
func (r *Registry) Lookup(library, stage string) (b Binding, ok bool) {
	st := StageType{Library: library, Stage: stage}
	r.mu.RLock()
	b, ok = r.bindings[st]
	r.mu.RUnlock()
	if !ok {
		return Binding{StageType: st, Upgrader: upgrader.Default}, false
	}
	return b, true
}

// Types returns every registered stage type, sorted by library then stage.
func (r *Registry) Types() []StageType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]StageType, 0, len(r.bindings))
	for st := range r.bindings {
		types = append(types, st)
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].Library != types[j].Library {
			return types[i].Library < types[j].Library
		}
		return types[i].Stage < types[j].Stage
	})
	return types
}
