// Package subagent implements the Sub-Agent Driver of spec §4.2: a focused,
// isolated task run in a fresh history with a filtered tool set, in either
// ReAct or OODA mode. Grounded on the teacher's errgroup-bounded parallel
// sub-agent dispatch (internal/agent/app/subagent.go) generalised to the
// two explicit modes spec.md requires.
package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cortexlane/cortex/internal/agenttypes"
	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/domain/trace"
	"github.com/cortexlane/cortex/internal/llmports"
	"github.com/cortexlane/cortex/internal/toolregistry"
)

// directVerdictPrompt is the system prompt for no-tool agent types
// (Reflect/Reflexion), demanding a strict JSON verdict rather than prose.
const directVerdictPrompt = "Respond with a single JSON object only, no prose and no markdown fences."

const defaultRecursionLimit = 100
const defaultOODACycles = 6

// Tracer is the minimal emit surface the driver needs.
type Tracer interface {
	Emit(event string, fields map[string]any)
}

// Driver runs one sub-agent invocation to completion and returns its final
// text, per spec §4.2 "Contract. ... Output: final text."
type Driver struct {
	llm       llmports.Client
	tools     *toolregistry.Registry
	types     *agenttypes.Registry
	trace     Tracer
	runIDSeed func() string
}

// New binds a Driver to its collaborators. runIDSeed generates sub-agent
// span ids (spec §4.10 "sub-agent spans use their own generated id").
func New(llm llmports.Client, tools *toolregistry.Registry, types *agenttypes.Registry, tr Tracer, runIDSeed func() string) *Driver {
	return &Driver{llm: llm, tools: tools, types: types, trace: tr, runIDSeed: runIDSeed}
}

// Invoke runs one sub-agent per the agent-type's declared mode. description
// is a short label for tracing; prompt seeds the fresh history; recursionCap
// of 0 uses defaultRecursionLimit.
func (d *Driver) Invoke(ctx context.Context, description, prompt, agentType string, recursionCap int) (string, error) {
	spec, ok := d.types.Get(agentType)
	if !ok {
		return "", fmt.Errorf("unknown agent type %q", agentType)
	}
	if recursionCap <= 0 {
		recursionCap = defaultRecursionLimit
	}
	runID := d.runIDSeed()
	d.emit(trace.EventSubagentStart, map[string]any{"run_id": runID, "agent_type": agentType, "description": description})

	history := []message.Message{message.User(prompt)}
	tools := d.filteredTools(spec)

	var final string
	var err error
	switch spec.Mode {
	case agenttypes.ModeOODA:
		final, err = d.runOODA(ctx, history, tools, spec)
	case agenttypes.ModeDirect:
		final, err = d.runDirect(ctx, history)
	default:
		final, err = d.runReAct(ctx, history, tools, recursionCap)
	}

	d.emit(trace.EventSubagentEnd, map[string]any{"run_id": runID, "agent_type": agentType, "ok": err == nil})
	return final, err
}

func (d *Driver) emit(event string, fields map[string]any) {
	if d.trace != nil {
		d.trace.Emit(event, fields)
	}
}

// filteredTools narrows the registry's tools to the names the agent type
// declares ("*" keeps them all). The Task tool is never among them, per
// spec §4.2 "The Task tool is always removed from the child's tool set (no
// recursion)" — toolregistry.List drops it for every agentType but "main".
func (d *Driver) filteredTools(spec agenttypes.Spec) []toolregistry.Tool {
	if len(spec.Tools) == 0 {
		return nil
	}
	all := d.tools.List(spec.Name)
	if len(spec.Tools) == 1 && spec.Tools[0] == "*" {
		return all
	}
	allowed := make(map[string]bool, len(spec.Tools))
	for _, n := range spec.Tools {
		allowed[n] = true
	}
	var out []toolregistry.Tool
	for _, t := range all {
		if allowed[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

// runDirect issues a single direct LLM call with no tool loop, for no-tool
// agent types (Reflect/Reflexion), per spec §4.2 "A no-tool agent type
// skips the ReAct loop entirely and issues a single direct LLM call." The
// verdict is enforced via a strict decode-or-retry-once loop: a non-JSON
// reply gets one corrective retry before the result is returned as-is.
func (d *Driver) runDirect(ctx context.Context, history []message.Message) (string, error) {
	reply, err := d.llm.Chat(ctx, directVerdictPrompt, history, nil)
	if err != nil {
		return "", fmt.Errorf("direct call: %w", err)
	}
	if isJSONObject(reply.Content) {
		return reply.Content, nil
	}

	retryHistory := append(history,
		message.Assistant(reply.Content),
		message.User("Your previous response was not valid JSON. Respond again with ONLY a single valid JSON object."),
	)
	retry, err := d.llm.Chat(ctx, directVerdictPrompt, retryHistory, nil)
	if err != nil {
		return "", fmt.Errorf("direct call retry: %w", err)
	}
	return retry.Content, nil
}

// isJSONObject reports whether s decodes as a JSON object, per the
// strict-decode check of the verdict retry loop.
func isJSONObject(s string) bool {
	var v map[string]any
	return json.Unmarshal([]byte(strings.TrimSpace(s)), &v) == nil
}

// runReAct mirrors spec §4.1 steps 6-7 without inbox/background/compaction
// concerns. On a final empty content after successful tool use, issues a
// one-shot fallback call asking the LLM to summarise, per spec §4.2.
func (d *Driver) runReAct(ctx context.Context, history []message.Message, tools []toolregistry.Tool, recursionCap int) (string, error) {
	specs := llmports.ToolSpecsFrom(tools)
	usedTools := false

	for turn := 0; turn < recursionCap; turn++ {
		reply, err := d.llm.Chat(ctx, "", history, specs)
		if err != nil {
			return "", fmt.Errorf("react turn %d: %w", turn, err)
		}
		history = append(history, message.Assistant(reply.Content, reply.ToolCalls...))

		if reply.StopReason != llmports.StopToolUse || len(reply.ToolCalls) == 0 {
			if reply.Content == "" && usedTools {
				return d.fallbackSummary(ctx, history)
			}
			return reply.Content, nil
		}

		usedTools = true
		results := make([]message.ToolResult, len(reply.ToolCalls))
		for i, call := range reply.ToolCalls {
			results[i] = d.tools.Invoke(ctx, call)
		}
		history = append(history, message.ToolResults(results...))
	}
	return "budget exhausted", nil
}

func (d *Driver) fallbackSummary(ctx context.Context, history []message.Message) (string, error) {
	history = append(history, message.User("Summarise the outcome of the work above in a few sentences."))
	reply, err := d.llm.Chat(ctx, "", history, nil)
	if err != nil {
		return "budget exhausted", nil
	}
	return reply.Content, nil
}

// oodaOrient is the Orient step's structured output.
type oodaOrient struct {
	Situation  string  `json:"situation"`
	Gaps       string  `json:"gaps"`
	Confidence float64 `json:"confidence"`
}

// oodaDecision is the Decide step's structured output.
type oodaDecision struct {
	Choice string `json:"choice"`
	Reason string `json:"reason"`
}

const (
	choiceObserveMore = "OBSERVE_MORE"
	choiceAct         = "ACT"
	choiceDone        = "DONE"
)

// runOODA runs the bounded Observe-Orient-Decide-Act cycle of spec §4.2.
func (d *Driver) runOODA(ctx context.Context, history []message.Message, tools []toolregistry.Tool, spec agenttypes.Spec) (string, error) {
	cycles := spec.MaxCycles
	if cycles <= 0 {
		cycles = defaultOODACycles
	}
	specs := llmports.ToolSpecsFrom(tools)
	var observationLog []string

	for cycle := 0; cycle < cycles; cycle++ {
		d.emit(trace.EventOODACycle, map[string]any{"cycle": cycle})

		// Observe: LLM returns a JSON list of tool calls to execute.
		obsReply, err := d.llm.Chat(ctx, oodaObservePrompt(observationLog), history, specs)
		if err != nil {
			return "", fmt.Errorf("ooda observe: %w", err)
		}
		for _, call := range obsReply.ToolCalls {
			result := d.tools.Invoke(ctx, call)
			observationLog = append(observationLog, fmt.Sprintf("%s -> %s", call.Name, result.Content))
		}

		// Orient: digest observations.
		orientReply, err := d.llm.Chat(ctx, oodaOrientPrompt(observationLog), history, nil)
		if err != nil {
			return "", fmt.Errorf("ooda orient: %w", err)
		}
		var orient oodaOrient
		_ = json.Unmarshal([]byte(orientReply.Content), &orient)

		// Decide.
		decideReply, err := d.llm.Chat(ctx, oodaDecidePrompt(orient), history, nil)
		if err != nil {
			return "", fmt.Errorf("ooda decide: %w", err)
		}
		var decision oodaDecision
		_ = json.Unmarshal([]byte(decideReply.Content), &decision)

		switch decision.Choice {
		case choiceDone:
			return d.oodaSummarize(ctx, observationLog)
		case choiceAct:
			actReply, err := d.llm.Chat(ctx, "", history, specs)
			if err != nil {
				return "", fmt.Errorf("ooda act: %w", err)
			}
			for _, call := range actReply.ToolCalls {
				result := d.tools.Invoke(ctx, call)
				observationLog = append(observationLog, fmt.Sprintf("%s -> %s", call.Name, result.Content))
			}
		case choiceObserveMore:
			// loop continues
		default:
			// unrecognised choice: treat as observe-more rather than abort
		}
	}
	return d.oodaSummarize(ctx, observationLog)
}

func (d *Driver) oodaSummarize(ctx context.Context, observationLog []string) (string, error) {
	summaryPrompt := "Summarise the findings from this investigation:\n"
	for _, o := range observationLog {
		summaryPrompt += o + "\n"
	}
	reply, err := d.llm.Chat(ctx, "", []message.Message{message.User(summaryPrompt)}, nil)
	if err != nil {
		return "budget exhausted", nil
	}
	return reply.Content, nil
}

func oodaObservePrompt(log []string) string {
	return fmt.Sprintf("Observe: decide what tool calls would gather the most useful information next. %d observations so far.", len(log))
}

func oodaOrientPrompt(log []string) string {
	return "Orient: given the observations so far, respond with JSON {situation, gaps, confidence}."
}

func oodaDecidePrompt(o oodaOrient) string {
	return fmt.Sprintf("Decide: situation=%q gaps=%q confidence=%.2f. Respond with JSON {choice: OBSERVE_MORE|ACT|DONE, reason}.", o.Situation, o.Gaps, o.Confidence)
}

// InvokeMany runs several sub-agent invocations concurrently, bounded by
// errgroup, mirroring the teacher's parallel sub-agent fan-out pattern.
func (d *Driver) InvokeMany(ctx context.Context, reqs []Request) ([]string, error) {
	results := make([]string, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	for i, r := range reqs {
		i, r := i, r
		g.Go(func() error {
			out, err := d.Invoke(ctx, r.Description, r.Prompt, r.AgentType, r.RecursionCap)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Request is one queued sub-agent invocation for InvokeMany.
type Request struct {
	Description  string
	Prompt       string
	AgentType    string
	RecursionCap int
}
