// Package toolregistry implements the name-to-handler mapping and
// per-agent-type capability filtering of spec §4.8, grounded on the
// teacher's tool dispatch (internal/agent/tools registration sequence) and
// enriched with JSON-Schema argument validation per SPEC_FULL.md's DOMAIN
// STACK table.
package toolregistry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kaptinlin/jsonrepair"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cortexlane/cortex/internal/domain/message"
)

// Handler executes one tool call and returns its result content, or an
// error. The registry converts a returned error into an `Error: ...`
// tool-result per spec §7; handlers never need to format that themselves.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool is one registered capability.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any // JSON Schema for Arguments, nil means unchecked
	Handler     Handler
}

const taskToolName = "task"

// mainAgentType is the top-level main loop's agent type, the only one whose
// List includes the Task tool.
const mainAgentType = "main"

// Registry is the name->Tool map plus per-agent-type allow-lists.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string

	compiled map[string]*jsonschema.Schema
	cache    *lru.Cache[string, []Tool] // agentType -> filtered tool list

	allowLists map[string][]string // agentType -> allowed tool names, "*" for all
}

// New returns an empty Registry. cacheSize bounds the per-agent-type
// filtered-list cache (spec §4.8's "repeated List() calls during ReAct/OODA
// cycles" motivates caching the filter result, not re-deriving it).
func New(cacheSize int) *Registry {
	if cacheSize <= 0 {
		cacheSize = 32
	}
	cache, _ := lru.New[string, []Tool](cacheSize)
	return &Registry{
		tools:      make(map[string]*Tool),
		compiled:   make(map[string]*jsonschema.Schema),
		cache:      cache,
		allowLists: make(map[string][]string),
	}
}

// Register adds t under its unique name. Registering the same name twice
// returns an error; the registration helpers in cmd/cortex panic on it,
// matching the teacher's must-not-collide registration posture.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	if t.Schema != nil {
		compiled, err := compileSchema(t.Name, t.Schema)
		if err != nil {
			return fmt.Errorf("compile schema for tool %q: %w", t.Name, err)
		}
		r.compiled[t.Name] = compiled
	}
	r.tools[t.Name] = &t
	r.order = append(r.order, t.Name)
	r.cache.Purge()
	return nil
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := c.AddResource(url, schema); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// SetAllowList declares the tools agentType may call: either {"*"} for all,
// or an explicit list. List removes the Task tool for every agent type
// other than "main", per spec §4.8 "the Task tool is always removed from
// any child's allow-list", since only the top-level main loop is permitted
// to spawn sub-agents directly.
func (r *Registry) SetAllowList(agentType string, names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowLists[agentType] = names
	r.cache.Remove(agentType)
}

// List returns the tools visible to agentType, with the Task tool excluded
// unless agentType is "main", sorted by name for stable prompting.
func (r *Registry) List(agentType string) []Tool {
	if cached, ok := r.cache.Get(agentType); ok {
		return cached
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	allow, ok := r.allowLists[agentType]
	all := len(allow) == 1 && allow[0] == "*"
	allowSet := make(map[string]bool, len(allow))
	for _, n := range allow {
		allowSet[n] = true
	}

	var out []Tool
	for _, name := range r.order {
		if name == taskToolName && agentType != mainAgentType {
			continue
		}
		if ok && !all && !allowSet[name] {
			continue
		}
		out = append(out, *r.tools[name])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	r.cache.Add(agentType, out)
	return out
}

// BuildTaskTool registers the Task tool last, wired to spawn via launch.
// Per spec §4.8 "a build_task_tool() step creates the Task tool last so it
// can reference the set of all other tools when spawning a sub-agent."
func (r *Registry) BuildTaskTool(description string, launch Handler) error {
	return r.Register(Tool{Name: taskToolName, Description: description, Handler: launch})
}

// Invoke validates call.Arguments against the tool's schema (if any), then
// dispatches to the handler. Arguments are expected to already be decoded
// by the caller (RepairArguments fixes malformed JSON upstream, before a
// ToolCall even exists). A validation or handler failure becomes an
// `Error: ...`-prefixed result per spec §7, never a panic or bubbled error.
func (r *Registry) Invoke(ctx context.Context, call message.ToolCall) message.ToolResult {
	r.mu.RLock()
	t, ok := r.tools[call.Name]
	schema := r.compiled[call.Name]
	r.mu.RUnlock()

	if !ok {
		return message.ToolResult{CallID: call.ID, Content: fmt.Sprintf("Error: unknown tool %q", call.Name)}
	}
	if schema != nil {
		if err := schema.Validate(toAny(call.Arguments)); err != nil {
			return message.ToolResult{CallID: call.ID, Content: fmt.Sprintf("Error: invalid arguments for %q: %v", call.Name, err)}
		}
	}
	content, err := t.Handler(ctx, call.Arguments)
	if err != nil {
		return message.ToolResult{CallID: call.ID, Content: fmt.Sprintf("Error: %v", err)}
	}
	return message.ToolResult{CallID: call.ID, Content: content}
}

func toAny(m map[string]any) any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RepairArguments attempts to fix malformed JSON emitted by the LLM for a
// tool-call argument string before unmarshalling, matching the teacher's
// defensive tool-call parsing. Returns the input unchanged if it already
// parses or repair fails.
func RepairArguments(raw string) string {
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return raw
	}
	return repaired
}
