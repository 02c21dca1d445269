// Package scenario reads the load tool scenario file to check it against the
// data files and hooks a setup run provides.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// hookKeys are the step and scenario keys whose values name processor hooks.
var hookKeys = []string{"function", "beforeRequest", "afterResponse", "beforeScenario", "afterScenario"}

// Payload is one CSV source the load tool iterates over.
type Payload struct {
	Path   string   `yaml:"path"`
	Fields []string `yaml:"fields"`
}

// Config is the scenario's config block.
type Config struct {
	Target    string    `yaml:"target"`
	Processor string    `yaml:"processor"`
	Payload   []Payload `yaml:"payload"`
}

// Scenario is the subset of the scenario file the setup run cares about.
type Scenario struct {
	Path      string
	Config    Config
	Scenarios []string
	Hooks     []string
}

// configBlock accepts payload as a single mapping or a list.
type configBlock struct {
	Target    string    `yaml:"target"`
	Processor string    `yaml:"processor"`
	Payload   yaml.Node `yaml:"payload"`
}

// Load parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(path, raw)
}

// Parse parses scenario YAML. path is only recorded.
func Parse(path string, raw []byte) (*Scenario, error) {
	var doc struct {
		Config    configBlock      `yaml:"config"`
		Scenarios []map[string]any `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	payload, err := decodePayload(&doc.Config.Payload)
	if err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	s := &Scenario{
		Path: path,
		Config: Config{
			Target:    doc.Config.Target,
			Processor: doc.Config.Processor,
			Payload:   payload,
		},
	}

	hooks := map[string]struct{}{}
	for i, sc := range doc.Scenarios {
		name, _ := sc["name"].(string)
		if name == "" {
			name = fmt.Sprintf("scenario-%d", i+1)
		}
		s.Scenarios = append(s.Scenarios, name)
		collectHooks(sc, hooks)
	}
	for name := range hooks {
		s.Hooks = append(s.Hooks, name)
	}
	sort.Strings(s.Hooks)

	return s, nil
}

func decodePayload(node *yaml.Node) ([]Payload, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		return nil, errors.New("config.payload must be a mapping or a list")
	case yaml.MappingNode:
		var p Payload
		if err := node.Decode(&p); err != nil {
			return nil, err
		}
		return []Payload{p}, nil
	case yaml.SequenceNode:
		var ps []Payload
		if err := node.Decode(&ps); err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, errors.New("config.payload must be a mapping or a list")
	}
}

func collectHooks(v any, into map[string]struct{}) {
	switch t := v.(type) {
	case map[string]any:
		for key, child := range t {
			if slices.Contains(hookKeys, key) {
				addHookNames(child, into)
				continue
			}
			collectHooks(child, into)
		}
	case []any:
		for _, child := range t {
			collectHooks(child, into)
		}
	}
}

func addHookNames(v any, into map[string]struct{}) {
	switch t := v.(type) {
	case string:
		if t != "" {
			into[t] = struct{}{}
		}
	case []any:
		for _, child := range t {
			addHookNames(child, into)
		}
	}
}

// FieldsFor returns the payload fields declared for file, matched by base
// name, or defaults when the scenario declares none.
func (s *Scenario) FieldsFor(file string, defaults ...string) []string {
	if s != nil {
		base := filepath.Base(file)
		for _, p := range s.Config.Payload {
			if filepath.Base(p.Path) == base && len(p.Fields) > 0 {
				return p.Fields
			}
		}
	}
	return defaults
}

// Preflight loads the scenario at path and reports mismatches with the files
// a run writes and the hooks it provides. Mismatches are warnings; only an
// unreadable scenario is an error.
func Preflight(path string, dataFiles, hooks []string) (*Scenario, []string, error) {
	s, err := Load(path)
	if err != nil {
		return nil, nil, err
	}

	emitted := make(map[string]bool, len(dataFiles))
	for _, f := range dataFiles {
		emitted[filepath.Base(f)] = true
	}

	var warnings []string
	for _, p := range s.Config.Payload {
		if !emitted[filepath.Base(p.Path)] {
			warnings = append(warnings, fmt.Sprintf("payload %q is not written by this run", p.Path))
		}
	}
	for _, h := range s.Hooks {
		if !slices.Contains(hooks, h) {
			warnings = append(warnings, fmt.Sprintf("hook %q is not provided", h))
		}
	}
	if len(s.Scenarios) == 0 {
		warnings = append(warnings, "no scenarios declared")
	}
	return s, warnings, nil
}
