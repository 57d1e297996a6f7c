package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/ollama/ollama/api"
	"github.com/xiaorui775/ChatLab/llm"
	"go.uber.org/zap"
)

// Handler executes one tool call. params is nil when the call's argument
// string failed to parse as JSON; each handler decides whether that is fatal.
type Handler func(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error)

// Tool pairs a schema (as given to the LLM) with its executor.
type Tool struct {
	api.Tool
	// Summarize asks the agent to condense oversized results with the mini
	// model before appending them to the conversation.
	Summarize bool
	Handler   Handler
}

// Outcome is the result of one dispatched call. Exactly one Outcome is
// produced per call, success or failure, in input order.
type Outcome struct {
	CallID    string `json:"call_id"`
	ToolName  string `json:"tool_name"`
	Success   bool   `json:"success"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Summarize bool   `json:"-"`
}

// Content returns what goes into the tool-result conversation message: the
// result on success, a human-readable error string on failure.
func (o Outcome) Content() string {
	if o.Success {
		return o.Result
	}
	return fmt.Sprintf("Tool %s failed: %s", o.ToolName, o.Error)
}

// Registry maps tool names to (schema, executor). Registration order is
// preserved in the catalog; the full set is fetched fresh per turn so late
// registration is visible.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) error {
	name := t.Function.Name
	if name == "" {
		return fmt.Errorf("tool has no name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// AllDefinitions returns the current catalog, schemas only.
func (r *Registry) AllDefinitions() []api.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]api.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Tool)
	}
	return defs
}

// ExecuteToolCalls dispatches every call and returns one outcome per call in
// input order. Sibling calls run concurrently; one failing executor does not
// abort the others.
func (r *Registry) ExecuteToolCalls(ctx context.Context, calls []llm.ToolCall, tc *ToolContext) []Outcome {
	results := make([]<-chan async.Result[Outcome], len(calls))
	for i, call := range calls {
		call := call
		results[i] = async.Go(func() (Outcome, error) {
			return r.executeOne(ctx, call, tc), nil
		})
	}

	outcomes := make([]Outcome, len(calls))
	for i, ch := range results {
		outcomes[i], _ = async.Await(ch)
	}
	return outcomes
}

func (r *Registry) executeOne(ctx context.Context, call llm.ToolCall, tc *ToolContext) Outcome {
	name := call.Function.Name
	out := Outcome{CallID: call.ID, ToolName: name}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		out.Error = fmt.Sprintf("unknown tool: %s", name)
		return out
	}
	out.Summarize = tool.Summarize

	// A malformed argument string is not a hard error; the executor sees nil
	// params and decides.
	var params api.ToolCallFunctionArguments
	if raw := call.Function.Arguments; raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			logger.Error("Tool arguments are not valid JSON",
				zap.String("tool", name), zap.Error(err))
			params = nil
		}
	}

	result, err := tool.Handler(ctx, params, tc)
	if err != nil {
		logger.Error("Tool execution failed", zap.String("tool", name), zap.Error(err))
		out.Error = err.Error()
		return out
	}
	out.Success = true
	out.Result = result
	return out
}

// errPayload renders a structured "not found" style error as the tool result,
// so the model can adapt without the run failing.
func errPayload(code string, detail string) string {
	payload, _ := json.Marshal(map[string]string{"error": code, "detail": detail})
	return string(payload)
}
