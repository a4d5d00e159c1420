package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dcshock/stageupgrade/upgrader"
)

// PipelineRecord is a persisted pipeline: an ordered list of stage records.
type PipelineRecord struct {
	Name   string        `yaml:"name"`
	Stages []StageRecord `yaml:"stages"`
}

// StageRecord is the persisted configuration of one stage instance together
// with the stage version it was saved with.
type StageRecord struct {
	Library  string     `yaml:"library"`
	Stage    string     `yaml:"stage"`
	Instance string     `yaml:"instance"`
	Version  int        `yaml:"version"`
	Configs  ConfigList `yaml:"configs"`
}

// Type returns the record's stage type.
func (r StageRecord) Type() StageType {
	return StageType{Library: r.Library, Stage: r.Stage}
}

// ConfigList is an ordered config set. In YAML it is either a list of
// name/value pairs or a mapping, whose key order is kept:
//
//	configs:
//	  - name: user
//	    value: admin
//
//	configs:
//	  user: admin
//	  password: x
type ConfigList []upgrader.Config

// UnmarshalYAML implements yaml.Unmarshaler. Duplicate names are rejected,
// and mappings with non-string keys are decoded with stringified keys.
func (c *ConfigList) UnmarshalYAML(value *yaml.Node) error {
	var out ConfigList
	switch value.Kind {
	case yaml.MappingNode:
		out = make(ConfigList, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			var v any
			if err := value.Content[i+1].Decode(&v); err != nil {
				return fmt.Errorf("config %q: %w", value.Content[i].Value, err)
			}
			out = append(out, upgrader.Config{Name: value.Content[i].Value, Value: v})
		}
	case yaml.SequenceNode:
		if err := value.Decode((*[]upgrader.Config)(&out)); err != nil {
			return err
		}
		for i, cfg := range out {
			if cfg.Name == "" {
				return fmt.Errorf("config %d: name required", i)
			}
		}
	default:
		return fmt.Errorf("line %d: configs must be a list or a mapping", value.Line)
	}

	seen := make(map[string]bool, len(out))
	for i := range out {
		if seen[out[i].Name] {
			return fmt.Errorf("line %d: duplicate config %q", value.Line, out[i].Name)
		}
		seen[out[i].Name] = true
		out[i].Value = normalizeValue(out[i].Value)
	}
	*c = out
	return nil
}

// normalizeValue turns the map[any]any that yaml produces for non-string keys
// into map[string]any, recursively.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalizeValue(e)
		}
		return out
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeValue(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeValue(e)
		}
		return t
	}
	return v
}

// ParsePipelineRecord parses YAML bytes into a PipelineRecord.
func ParsePipelineRecord(data []byte) (*PipelineRecord, error) {
	var rec PipelineRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarshalPipelineRecord renders rec as YAML. Configs are written in list form
// so their order survives any YAML tooling.
func MarshalPipelineRecord(rec *PipelineRecord) ([]byte, error) {
	return yaml.Marshal(rec)
}
