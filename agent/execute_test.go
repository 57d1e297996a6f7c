package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaorui775/ChatLab/llm"
	"github.com/xiaorui775/ChatLab/schema"
	"github.com/xiaorui775/ChatLab/tools"
)

// scriptedClient replays canned responses, streaming each content string in
// small chunks.
type scriptedClient struct {
	mu        sync.Mutex
	responses []llm.ChatResponse
	calls     int
	seen      [][]llm.Message
	native    bool
	// cancelAfterChunks cancels this context mid-stream when > 0.
	cancelAfterChunks int
	cancel            context.CancelFunc
	chunkSize         int
}

func (s *scriptedClient) next() llm.ChatResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := s.responses[s.calls%len(s.responses)]
	s.calls++
	return resp
}

func (s *scriptedClient) Chat(ctx context.Context, messages []llm.Message, opts ...llm.LLMOption) (*llm.ChatResponse, error) {
	resp := s.next()
	return &resp, nil
}

func (s *scriptedClient) ChatStream(ctx context.Context, messages []llm.Message, onChunk func(chunk llm.StreamChunk) error, opts ...llm.LLMOption) (*llm.ChatResponse, error) {
	s.mu.Lock()
	s.seen = append(s.seen, append([]llm.Message{}, messages...))
	s.mu.Unlock()
	resp := s.next()
	size := s.chunkSize
	if size <= 0 {
		size = 4
	}

	sent := 0
	content := resp.Content
	for i := 0; i < len(content); i += size {
		end := i + size
		if end > len(content) {
			end = len(content)
		}
		if err := onChunk(llm.StreamChunk{Content: content[i:end]}); err != nil {
			return nil, err
		}
		sent++
		if s.cancelAfterChunks > 0 && sent == s.cancelAfterChunks {
			s.cancel()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if err := onChunk(llm.StreamChunk{IsFinished: true, FinishReason: resp.FinishReason, Usage: &resp.Usage}); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *scriptedClient) Capabilities() llm.Capability {
	if s.native {
		return llm.NativeToolCalling
	}
	return 0
}

func (s *scriptedClient) GetModel() string { return "scripted" }

// collector gathers events for assertions.
type collector struct {
	mu     sync.Mutex
	events []*schema.AgentStreamChunk
}

func (c *collector) Send(ev *schema.AgentStreamChunk) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func (c *collector) answerText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out string
	for _, ev := range c.events {
		if ev.Answer != nil {
			out += ev.Answer.Content
		}
	}
	return out
}

func (c *collector) toolStarts() []*schema.ToolStartChunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*schema.ToolStartChunk
	for _, ev := range c.events {
		if ev.ToolStart != nil {
			out = append(out, ev.ToolStart)
		}
	}
	return out
}

func echoRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	err := reg.Register(tools.Tool{
		Tool: api.Tool{
			Type: "function",
			Function: api.ToolFunction{Name: "echo", Description: "echoes input"},
		},
		Handler: func(ctx context.Context, params api.ToolCallFunctionArguments, tc *tools.ToolContext) (string, error) {
			data, _ := json.Marshal(params)
			return "echo: " + string(data), nil
		},
	})
	require.NoError(t, err)
	return reg
}

func newTestAgent(client llm.LLMClient, reg *tools.Registry) *Agent {
	return NewAgentBuilder().
		WithModel(client).
		WithRegistry(reg).
		WithMaxToolRounds(5).
		Build()
}

func TestExecuteDirectAnswer(t *testing.T) {
	client := &scriptedClient{
		native:    true,
		responses: []llm.ChatResponse{{Content: "Hello there", FinishReason: llm.FinishStop, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13}}},
	}
	rep := &collector{}
	a := newTestAgent(client, echoRegistry(t))

	resp, err := a.Execute(context.Background(), rep, &Request{Question: "hi", Context: &tools.ToolContext{}})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Answer)
	assert.Equal(t, 1, resp.Rounds)
	assert.False(t, resp.Cancelled)
	assert.Equal(t, 13, resp.Usage.TotalTokens)
	assert.Equal(t, "Hello there", rep.answerText())
}

func TestExecuteThinkRegionHidden(t *testing.T) {
	client := &scriptedClient{
		native:    true,
		responses: []llm.ChatResponse{{Content: "<think>pondering deeply</think>Hello", FinishReason: llm.FinishStop}},
	}
	rep := &collector{}
	a := newTestAgent(client, echoRegistry(t))

	resp, err := a.Execute(context.Background(), rep, &Request{Question: "hi", Context: &tools.ToolContext{}})
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Answer)
	assert.Equal(t, "Hello", rep.answerText())
	assert.NotContains(t, rep.answerText(), "pondering")
}

func TestExecuteNativeToolRound(t *testing.T) {
	client := &scriptedClient{
		native: true,
		responses: []llm.ChatResponse{
			{
				ToolCalls: []llm.ToolCall{{
					ID:       "call-1",
					Function: llm.ToolCallFunction{Name: "echo", Arguments: `{"msg":"hi"}`},
				}},
				FinishReason: llm.FinishToolCalls,
			},
			{Content: "Done.", FinishReason: llm.FinishStop},
		},
	}
	rep := &collector{}
	a := newTestAgent(client, echoRegistry(t))

	resp, err := a.Execute(context.Background(), rep, &Request{Question: "run echo", Context: &tools.ToolContext{}})
	require.NoError(t, err)
	assert.Equal(t, "Done.", resp.Answer)
	assert.Equal(t, 2, resp.Rounds)
	assert.Equal(t, []string{"echo"}, resp.ToolsUsed)

	starts := rep.toolStarts()
	require.Len(t, starts, 1)
	assert.Equal(t, "echo", starts[0].ToolName)
	assert.Equal(t, "call-1", starts[0].CallID)

	// The recorded assistant message carries only the structured calls.
	require.Len(t, client.seen, 2)
	second := client.seen[1]
	asst := second[len(second)-2]
	require.Equal(t, "assistant", asst.Role)
	assert.Empty(t, asst.Content)
	require.Len(t, asst.ToolCalls, 1)
	assert.Equal(t, "tool", second[len(second)-1].Role)
}

func TestExecuteToolCallsNeedToolFinishReason(t *testing.T) {
	// A provider that returns structured calls while claiming a plain stop
	// finish is answering, not requesting tools.
	client := &scriptedClient{
		native: true,
		responses: []llm.ChatResponse{{
			Content:      "Answer without tools.",
			ToolCalls:    []llm.ToolCall{{ID: "c", Function: llm.ToolCallFunction{Name: "echo", Arguments: `{}`}}},
			FinishReason: llm.FinishStop,
		}},
	}
	rep := &collector{}
	a := newTestAgent(client, echoRegistry(t))

	resp, err := a.Execute(context.Background(), rep, &Request{Question: "hi", Context: &tools.ToolContext{}})
	require.NoError(t, err)
	assert.Equal(t, "Answer without tools.", resp.Answer)
	assert.Empty(t, rep.toolStarts())
	assert.Empty(t, resp.ToolsUsed)
}

func TestExecuteTaggedFallback(t *testing.T) {
	client := &scriptedClient{
		native: false,
		responses: []llm.ChatResponse{
			{Content: `<tool_call>{"name":"echo","arguments":{"msg":"via tag"}}</tool_call>`, FinishReason: llm.FinishStop},
			{Content: "Tag round complete.", FinishReason: llm.FinishStop},
		},
	}
	rep := &collector{}
	a := newTestAgent(client, echoRegistry(t))

	resp, err := a.Execute(context.Background(), rep, &Request{Question: "go", Context: &tools.ToolContext{}})
	require.NoError(t, err)
	assert.Equal(t, "Tag round complete.", resp.Answer)

	starts := rep.toolStarts()
	require.Len(t, starts, 1)
	assert.Equal(t, "echo", starts[0].ToolName)
	assert.NotEmpty(t, starts[0].CallID)
	// Nothing of the tool-call tag leaks into the visible stream, and the
	// raw tagged text is not replayed to the model in later rounds.
	assert.NotContains(t, rep.answerText(), "tool_call")
	require.Len(t, client.seen, 2)
	for _, m := range client.seen[1] {
		assert.NotContains(t, m.Content, "<tool_call>")
	}
}

func TestExecuteRoundLimitForcesAnswer(t *testing.T) {
	// Every round asks for another tool call; after MaxToolRounds the agent
	// must make one final call without tools and take that as the answer.
	toolResp := llm.ChatResponse{
		ToolCalls: []llm.ToolCall{{
			ID:       "c",
			Function: llm.ToolCallFunction{Name: "echo", Arguments: `{}`},
		}},
		FinishReason: llm.FinishToolCalls,
	}
	client := &scriptedClient{
		native: true,
		responses: []llm.ChatResponse{
			toolResp, toolResp, toolResp,
			{Content: "Forced final answer.", FinishReason: llm.FinishStop},
		},
	}
	rep := &collector{}
	a := NewAgentBuilder().
		WithModel(client).
		WithRegistry(echoRegistry(t)).
		WithMaxToolRounds(3).
		Build()

	resp, err := a.Execute(context.Background(), rep, &Request{Question: "loop", Context: &tools.ToolContext{}})
	require.NoError(t, err)
	assert.Equal(t, "Forced final answer.", resp.Answer)
	assert.Equal(t, 3, resp.Rounds)
	assert.Len(t, rep.toolStarts(), 3)
	// Repeated calls to the same tool count once.
	assert.Equal(t, []string{"echo"}, resp.ToolsUsed)
}

func TestRenderSystemPromptOwner(t *testing.T) {
	a := newTestAgent(&scriptedClient{}, echoRegistry(t))

	// A missing owner (or context) must render, not panic.
	out, err := a.renderSystemPrompt(&Request{Question: "hi"}, false)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	out, err = a.renderSystemPrompt(&Request{
		Question: "hi",
		Context:  &tools.ToolContext{Owner: &tools.Owner{DisplayName: "Alice", PlatformID: "10001"}},
	}, false)
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "10001")
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptedClient{native: true, responses: []llm.ChatResponse{{Content: "never"}}}
	rep := &collector{}
	a := newTestAgent(client, echoRegistry(t))

	resp, err := a.Execute(ctx, rep, &Request{Question: "hi", Context: &tools.ToolContext{}})
	require.NoError(t, err)
	assert.True(t, resp.Cancelled)
	assert.Empty(t, resp.Answer)
	assert.Equal(t, 0, client.calls)
}

func TestExecuteCancelledMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &scriptedClient{
		native:            true,
		responses:         []llm.ChatResponse{{Content: "This is a long streaming answer", FinishReason: llm.FinishStop}},
		cancelAfterChunks: 2,
		cancel:            cancel,
		chunkSize:         4,
	}
	rep := &collector{}
	a := newTestAgent(client, echoRegistry(t))

	resp, err := a.Execute(ctx, rep, &Request{Question: "hi", Context: &tools.ToolContext{}})
	require.NoError(t, err)
	assert.True(t, resp.Cancelled)
	// Partial result contract: the kept answer equals exactly what was
	// streamed to the reporter.
	assert.Equal(t, rep.answerText(), resp.Answer)
	assert.Equal(t, "This is ", resp.Answer)
}

func TestExecuteAbortByRunID(t *testing.T) {
	client := &scriptedClient{native: true, responses: []llm.ChatResponse{{Content: "x"}}}
	a := newTestAgent(client, echoRegistry(t))

	_, runCtx, done := a.Runs().Begin(context.Background(), "run-1")
	defer done()

	require.True(t, a.Runs().Abort("run-1"))
	assert.Error(t, runCtx.Err())
	assert.False(t, a.Runs().Abort("missing"))
}

func TestTrimHistory(t *testing.T) {
	msgs := []llm.Message{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
		{Role: "tool", Content: "t2"},
		{Role: "assistant", Content: "a2"},
		{Role: "user", Content: "q3"},
		{Role: "assistant", Content: "a3"},
	}

	trimmed := TrimHistory(msgs, 2)
	require.Len(t, trimmed, 5)
	assert.Equal(t, "q2", trimmed[0].Content)

	assert.Len(t, TrimHistory(msgs, 10), len(msgs))
	assert.Len(t, TrimHistory(msgs, 0), len(msgs))
}
