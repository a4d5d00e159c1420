package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/juju/errors"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"

	"github.com/dcshock/stageupgrade/upgrader"
)

// DefinitionFile is the root of a declarative upgrade definition file:
//
//	upgraders:
//	  - library: lib
//	    stage: jdbc-source
//	    version: 3
//	    steps:
//	      - from: 1
//	        ops:
//	          - rename: {from: user, to: username}
//	      - from: 2
//	        ops:
//	          - add: {name: connectionTimeoutMs, value: 30000}
type DefinitionFile struct {
	Upgraders []UpgraderDefinition `yaml:"upgraders"`
}

// UpgraderDefinition declares a stage type's current version and the steps
// that lead to it. A definition without steps binds upgrader.Default.
type UpgraderDefinition struct {
	Library string           `yaml:"library"`
	Stage   string           `yaml:"stage"`
	Version int              `yaml:"version"`
	Steps   []StepDefinition `yaml:"steps"`
}

// StepDefinition upgrades From to From+1 by applying Ops in order.
type StepDefinition struct {
	From int            `yaml:"from"`
	Ops  []OpDefinition `yaml:"ops"`
}

// OpDefinition is a single edit. Exactly one field must be set.
type OpDefinition struct {
	Rename  *RenameOp  `yaml:"rename"`
	Add     *AddOp     `yaml:"add"`
	Remove  string     `yaml:"remove"`
	Require []string   `yaml:"require"`
	Convert *ConvertOp `yaml:"convert"`
}

type RenameOp struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// AddOp adds Name with Value. With IfAbsent an existing entry is kept;
// otherwise an existing entry fails the step.
type AddOp struct {
	Name     string `yaml:"name"`
	Value    any    `yaml:"value"`
	IfAbsent bool   `yaml:"if_absent"`
}

// ConvertOp coerces Name to Type.
type ConvertOp struct {
	Name string   `yaml:"name"`
	Type TypeSpec `yaml:"type"`
}

// TypeSpec is a cty type written in YAML using cty's JSON type syntax:
// "string", "number", "bool", "dynamic", [list, string],
// [map, number], [object, {host: string, port: number}].
type TypeSpec struct {
	cty.Type
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TypeSpec) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("line %d: type: %w", value.Line, err)
	}
	ty, err := ctyjson.UnmarshalType(buf)
	if err != nil {
		return fmt.Errorf("line %d: type %s: %w", value.Line, buf, err)
	}
	t.Type = ty
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t TypeSpec) MarshalYAML() (any, error) {
	buf, err := ctyjson.MarshalType(t.Type)
	if err != nil {
		return nil, err
	}
	var raw any
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ParseDefinitions parses YAML bytes into a DefinitionFile.
func ParseDefinitions(data []byte) (*DefinitionFile, error) {
	var f DefinitionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// BuildChain turns def into an upgrader.Chain. Steps must be contiguous and
// end at def.Version-1.
func BuildChain(def UpgraderDefinition, opts ...upgrader.ChainOption) (*upgrader.Chain, error) {
	steps := append([]StepDefinition(nil), def.Steps...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].From < steps[j].From })
	for i, s := range steps {
		if s.From < 0 {
			return nil, errors.NotValidf("step from version %d", s.From)
		}
		if i > 0 && s.From != steps[i-1].From+1 {
			return nil, errors.NotValidf("steps %d and %d not contiguous", steps[i-1].From, s.From)
		}
	}
	if n := len(steps); n > 0 && steps[n-1].From != def.Version-1 {
		return nil, errors.NotValidf("last step from %d for version %d", steps[n-1].From, def.Version)
	}

	chain := upgrader.NewChain(opts...)
	for _, s := range steps {
		step, err := buildStep(s)
		if err != nil {
			return nil, errors.Annotatef(err, "step from %d", s.From)
		}
		if err := chain.Register(s.From, step); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return chain, nil
}

func buildStep(def StepDefinition) (upgrader.Step, error) {
	if len(def.Ops) == 0 {
		return upgrader.Identity(), nil
	}
	edits := make([]upgrader.Step, 0, len(def.Ops))
	for i, op := range def.Ops {
		edit, err := buildOp(op)
		if err != nil {
			return nil, errors.Annotatef(err, "op %d", i)
		}
		edits = append(edits, edit)
	}
	if len(edits) == 1 {
		return edits[0], nil
	}
	return upgrader.Steps(edits...), nil
}

func buildOp(op OpDefinition) (upgrader.Step, error) {
	var (
		step upgrader.Step
		set  int
	)
	if op.Rename != nil {
		set++
		if op.Rename.From == "" || op.Rename.To == "" {
			return nil, errors.NotValidf("rename without from/to")
		}
		step = upgrader.Rename(op.Rename.From, op.Rename.To)
	}
	if op.Add != nil {
		set++
		if op.Add.Name == "" {
			return nil, errors.NotValidf("add without name")
		}
		if op.Add.IfAbsent {
			step = upgrader.AddIfAbsent(op.Add.Name, op.Add.Value)
		} else {
			step = upgrader.Add(op.Add.Name, op.Add.Value)
		}
	}
	if op.Remove != "" {
		set++
		step = upgrader.Remove(op.Remove)
	}
	if len(op.Require) > 0 {
		set++
		step = upgrader.Require(op.Require...)
	}
	if op.Convert != nil {
		set++
		if op.Convert.Name == "" || op.Convert.Type.Type == cty.NilType {
			return nil, errors.NotValidf("convert without name/type")
		}
		step = upgrader.Convert(op.Convert.Name, op.Convert.Type.Type)
	}
	if set != 1 {
		return nil, errors.NotValidf("op with %d actions", set)
	}
	return step, nil
}

// RegisterDefinitions builds a chain for every definition in f and binds it
// in reg. Definitions without steps bind upgrader.Default.
func RegisterDefinitions(reg *Registry, f *DefinitionFile, opts ...upgrader.ChainOption) error {
	if f == nil {
		return nil
	}
	for _, def := range f.Upgraders {
		st := StageType{Library: def.Library, Stage: def.Stage}
		var u upgrader.Upgrader = upgrader.Default
		if len(def.Steps) > 0 {
			chain, err := BuildChain(def, opts...)
			if err != nil {
				return errors.Annotatef(err, "upgrader %s", st)
			}
			u = chain
		}
		if err := reg.Register(def.Library, def.Stage, def.Version, u); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
