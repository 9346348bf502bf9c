// Package agenttypes is the data-driven agent-type registry of spec §4.2
// "Agent-type registry (canonical set)", loaded from a TOML table via
// BurntSushi/toml so the canonical set can be extended without a code
// change, per spec §9's framing of AGENT_TYPES as a config table.
package agenttypes

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Mode selects which Sub-Agent Driver loop an agent type runs.
type Mode string

const (
	ModeReAct Mode = "react"
	ModeOODA  Mode = "ooda"
	// ModeDirect issues a single direct LLM call with no tool loop, for
	// no-tool agent types like Reflect/Reflexion per spec §4.2.
	ModeDirect Mode = "direct"
)

// Spec is one agent type's declared capabilities.
type Spec struct {
	Name        string   `toml:"name"`
	Mode        Mode     `toml:"mode"`
	Tools       []string `toml:"tools"` // ["*"] for all minus Task
	MaxCycles   int      `toml:"max_cycles"`
	Description string   `toml:"description"`
}

// Registry maps agent-type name to its Spec.
type Registry struct {
	specs map[string]Spec
}

type file struct {
	AgentType []Spec `toml:"agent_type"`
}

// Load parses a TOML agent-type table from path.
func Load(path string) (*Registry, error) {
	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode agent-type table %s: %w", path, err)
	}
	r := &Registry{specs: make(map[string]Spec, len(f.AgentType))}
	for _, s := range f.AgentType {
		r.specs[s.Name] = s
	}
	return r, nil
}

// Default returns the canonical built-in set from spec §4.2, used when no
// TOML table is configured.
func Default() *Registry {
	r := &Registry{specs: make(map[string]Spec, 8)}
	add := func(s Spec) { r.specs[s.Name] = s }
	add(Spec{Name: "Explore", Mode: ModeReAct, Tools: []string{"read_file", "list_dir", "grep", "glob"}, MaxCycles: 100})
	add(Spec{Name: "general-purpose", Mode: ModeReAct, Tools: []string{"*"}, MaxCycles: 100})
	add(Spec{Name: "Plan", Mode: ModeReAct, Tools: []string{"read_file", "list_dir", "grep", "glob"}, MaxCycles: 100})
	add(Spec{Name: "ScriptWriter", Mode: ModeReAct, Tools: []string{"read_file", "write_file", "list_dir", "grep", "glob"}, MaxCycles: 100})
	add(Spec{Name: "Reflect", Mode: ModeDirect, Tools: nil, MaxCycles: 1})
	add(Spec{Name: "Reflexion", Mode: ModeDirect, Tools: nil, MaxCycles: 2})
	add(Spec{Name: "SearchSubagent", Mode: ModeReAct, Tools: []string{"grep", "glob", "read_file"}, MaxCycles: 100})
	add(Spec{Name: "OODASubagent", Mode: ModeOODA, Tools: []string{"*"}, MaxCycles: 6})
	return r
}

// Get returns the Spec for name and whether it was found.
func (r *Registry) Get(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Names returns all registered agent-type names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.specs))
	for n := range r.specs {
		out = append(out, n)
	}
	return out
}
