package upgrader

import (
	"errors"
	"fmt"
)

// ErrMissingConfig is returned by steps that expect an entry that is absent.
var ErrMissingConfig = errors.New("config not found")

// ErrDuplicateConfig is returned by steps that would create an entry that
// already exists.
var ErrDuplicateConfig = errors.New("config already present")

// Identity returns a step that passes configs through unchanged. Useful for
// version bumps that changed nothing in the stored configuration.
func Identity() Step {
	return func(configs Configs) (Configs, error) {
		return configs, nil
	}
}

// Steps composes several edits into one version transition. They run in
// order; the first error stops the transition.
func Steps(steps ...Step) Step {
	return func(configs Configs) (Configs, error) {
		out := configs
		for i, s := range steps {
			next, err := s(out)
			if err != nil {
				return nil, fmt.Errorf("edit %d: %w", i, err)
			}
			out = next
		}
		return out, nil
	}
}

// Require fails unless every name is present.
func Require(names ...string) Step {
	return func(configs Configs) (Configs, error) {
		for _, name := range names {
			if !configs.Has(name) {
				return nil, fmt.Errorf("require %q: %w", name, ErrMissingConfig)
			}
		}
		return configs, nil
	}
}

// Rename renames from to to in place, keeping its position and value.
func Rename(from, to string) Step {
	return func(configs Configs) (Configs, error) {
		i := configs.Index(from)
		if i < 0 {
			return nil, fmt.Errorf("rename %q: %w", from, ErrMissingConfig)
		}
		if from != to && configs.Has(to) {
			return nil, fmt.Errorf("rename %q to %q: %w", from, to, ErrDuplicateConfig)
		}
		configs[i].Name = to
		return configs, nil
	}
}

// Add appends name with value. It fails if name already exists.
func Add(name string, value any) Step {
	return func(configs Configs) (Configs, error) {
		if configs.Has(name) {
			return nil, fmt.Errorf("add %q: %w", name, ErrDuplicateConfig)
		}
		v, err := cloneValue(value)
		if err != nil {
			return nil, fmt.Errorf("add %q: %w", name, err)
		}
		return append(configs, Config{Name: name, Value: v}), nil
	}
}

// AddIfAbsent appends name with value unless it is already present.
func AddIfAbsent(name string, value any) Step {
	return func(configs Configs) (Configs, error) {
		if configs.Has(name) {
			return configs, nil
		}
		v, err := cloneValue(value)
		if err != nil {
			return nil, fmt.Errorf("add %q: %w", name, err)
		}
		return append(configs, Config{Name: name, Value: v}), nil
	}
}

// Remove drops name. It fails if name is absent.
func Remove(name string) Step {
	return func(configs Configs) (Configs, error) {
		i := configs.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("remove %q: %w", name, ErrMissingConfig)
		}
		return append(configs[:i:i], configs[i+1:]...), nil
	}
}

// TransformFunc maps an old value to its new form.
type TransformFunc func(value any) (any, error)

// Transform replaces the value of name with fn(value). It fails if name is
// absent or fn fails.
func Transform(name string, fn TransformFunc) Step {
	return func(configs Configs) (Configs, error) {
		i := configs.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("transform %q: %w", name, ErrMissingConfig)
		}
		v, err := fn(configs[i].Value)
		if err != nil {
			return nil, fmt.Errorf("transform %q: %w", name, err)
		}
		configs[i].Value = v
		return configs, nil
	}
}

// Expect returns a TransformFunc that type-asserts the old value to T before
// calling convert.
func Expect[T, U any](convert func(T) (U, error)) TransformFunc {
	return func(value any) (any, error) {
		t, ok := value.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("expected %T, got %T", zero, value)
		}
		return convert(t)
	}
}
