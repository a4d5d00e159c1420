package upgrader

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/copystructure"
	"github.com/zclconf/go-cty/cty"
)

// Config is a single named configuration value of a stage instance. Value is
// a scalar, a sequence or a nested structure of any Go type.
type Config struct {
	Name  string `yaml:"name" json:"name"`
	Value any    `yaml:"value" json:"value"`
}

// Configs is the ordered configuration set of one stage instance.
type Configs []Config

// Index returns the position of name, or -1.
func (c Configs) Index(name string) int {
	for i, cfg := range c {
		if cfg.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the entry for name.
func (c Configs) Get(name string) (Config, bool) {
	i := c.Index(name)
	if i < 0 {
		return Config{}, false
	}
	return c[i], true
}

// Has reports whether name is present.
func (c Configs) Has(name string) bool { return c.Index(name) >= 0 }

// Value returns the value for name, or nil if absent.
func (c Configs) Value(name string) any {
	cfg, _ := c.Get(name)
	return cfg.Value
}

// Names returns entry names in order.
func (c Configs) Names() []string {
	names := make([]string, len(c))
	for i, cfg := range c {
		names[i] = cfg.Name
	}
	return names
}

// Clone returns a deep copy. Every nested value, whatever its Go type, is
// copied so edits to the clone never reach the original.
func (c Configs) Clone() (Configs, error) {
	if c == nil {
		return nil, nil
	}
	out, err := copier.Copy(c)
	if err != nil {
		return nil, fmt.Errorf("copy configs: %w", err)
	}
	return out.(Configs), nil
}

func cloneValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	out, err := copier.Copy(v)
	if err != nil {
		return nil, fmt.Errorf("copy value: %w", err)
	}
	return out, nil
}

// copier keeps copystructure's defaults and passes cty values through as-is:
// they are immutable and carry unexported state.
var copier = copystructure.Config{Copiers: valueCopiers()}

func valueCopiers() map[reflect.Type]copystructure.CopierFunc {
	m := make(map[reflect.Type]copystructure.CopierFunc, len(copystructure.Copiers)+1)
	for t, fn := range copystructure.Copiers {
		m[t] = fn
	}
	m[reflect.TypeOf(cty.Value{})] = func(v any) (any, error) { return v, nil }
	return m
}
