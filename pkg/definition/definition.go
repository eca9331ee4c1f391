// Package definition loads state hierarchies from YAML or TOML documents and
// binds the callback names they reference through a Registry.
package definition

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Chart is a complete machine definition
type Chart struct {
	Name string    `yaml:"name" toml:"name"`
	Root *StateDef `yaml:"root" toml:"root"`
}

// StateDef describes one state. A state with substates becomes a composite
// whose default substate is Initial, or the first substate when Initial is
// empty.
type StateDef struct {
	Name    string                     `yaml:"name" toml:"name"`
	Initial string                     `yaml:"initial,omitempty" toml:"initial,omitempty"`
	On      map[string][]TransitionDef `yaml:"on,omitempty" toml:"on,omitempty"`
	Defer   []string                   `yaml:"defer,omitempty" toml:"defer,omitempty"`
	Enter   string                     `yaml:"enter,omitempty" toml:"enter,omitempty"`
	Exit    string                     `yaml:"exit,omitempty" toml:"exit,omitempty"`
	States  []*StateDef                `yaml:"states,omitempty" toml:"states,omitempty"`
}

// TransitionDef describes one candidate transition. An empty Target declares
// an internal transition. Kind is "external" (default), "local" or
// "internal"; Guard and Action name registry entries.
type TransitionDef struct {
	Target string `yaml:"target,omitempty" toml:"target,omitempty"`
	Kind   string `yaml:"kind,omitempty" toml:"kind,omitempty"`
	Guard  string `yaml:"guard,omitempty" toml:"guard,omitempty"`
	Action string `yaml:"action,omitempty" toml:"action,omitempty"`
}

// LoadYAML decodes a chart from YAML. Unknown fields are rejected.
func LoadYAML(r io.Reader) (*Chart, error) {
	var chart Chart
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&chart); err != nil {
		return nil, errors.Wrap(err, "decoding yaml chart")
	}
	if err := chart.Validate(); err != nil {
		return nil, err
	}
	return &chart, nil
}

// LoadTOML decodes a chart from TOML. Unknown keys are rejected.
func LoadTOML(r io.Reader) (*Chart, error) {
	var chart Chart
	meta, err := toml.NewDecoder(r).Decode(&chart)
	if err != nil {
		return nil, errors.Wrap(err, "decoding toml chart")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, errors.Newf("decoding toml chart: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := chart.Validate(); err != nil {
		return nil, err
	}
	return &chart, nil
}

// LoadFile loads a chart, picking the format from the file extension
// (.yaml, .yml or .toml).
func LoadFile(path string) (*Chart, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "chart load failed (%s)", path)
	}
	var chart *Chart
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		chart, err = LoadYAML(bytes.NewReader(raw))
	case ".toml":
		chart, err = LoadTOML(bytes.NewReader(raw))
	default:
		return nil, errors.Newf("chart load failed (%s): unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "chart load failed (%s)", path)
	}
	return chart, nil
}

// Validate checks the structure of the chart without resolving callbacks:
// every state is named, names are unique, initial names a direct substate
// and every target names a state of the chart.
func (c *Chart) Validate() error {
	if c.Root == nil {
		return errors.New("chart has no root state")
	}
	names := make(map[string]bool)
	var collect func(s *StateDef, path string) error
	collect = func(s *StateDef, path string) error {
		if s == nil {
			return errors.Newf("%s: empty state entry", path)
		}
		if strings.TrimSpace(s.Name) == "" {
			return errors.Newf("%s: state name is required", path)
		}
		if names[s.Name] {
			return errors.Newf("duplicate state name %q", s.Name)
		}
		names[s.Name] = true
		for i, child := range s.States {
			if err := collect(child, fmtPath(s.Name, i)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := collect(c.Root, "root"); err != nil {
		return err
	}

	var check func(s *StateDef) error
	check = func(s *StateDef) error {
		if s.Initial != "" && !hasChild(s, s.Initial) {
			return errors.Newf("state %q: initial %q is not a direct substate", s.Name, s.Initial)
		}
		for event, ts := range s.On {
			for _, t := range ts {
				if t.Target != "" && !names[t.Target] {
					return errors.Newf("state %q: event %q targets unknown state %q", s.Name, event, t.Target)
				}
			}
		}
		for _, child := range s.States {
			if err := check(child); err != nil {
				return err
			}
		}
		return nil
	}
	return check(c.Root)
}

// States returns every state definition in pre-order
func (c *Chart) States() []*StateDef {
	var out []*StateDef
	var walk func(s *StateDef)
	walk = func(s *StateDef) {
		if s == nil {
			return
		}
		out = append(out, s)
		for _, child := range s.States {
			walk(child)
		}
	}
	walk(c.Root)
	return out
}

func hasChild(s *StateDef, name string) bool {
	for _, child := range s.States {
		if child != nil && child.Name == name {
			return true
		}
	}
	return false
}

func fmtPath(parent string, i int) string {
	return fmt.Sprintf("%s.states[%d]", parent, i)
}
