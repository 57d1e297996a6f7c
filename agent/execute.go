package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/xiaorui775/ChatLab/llm"
	"github.com/xiaorui775/ChatLab/prompts"
	"github.com/xiaorui775/ChatLab/schema"
	"github.com/xiaorui775/ChatLab/tools"
	"go.uber.org/zap"
)

// summarizeThreshold is the tool-result size above which a Summarize-enabled
// tool's output is condensed with the mini model before entering the
// conversation.
const summarizeThreshold = 2000

// Execute runs one full turn: up to MaxToolRounds rounds of tool calling,
// then a final answer. Cancellation is cooperative and is not an error; the
// returned StreamComplete carries whatever was produced before the
// cancellation checkpoint fired.
func (a *Agent) Execute(ctx context.Context, reporter ProgressReporter, req *Request) (*schema.StreamComplete, error) {
	start := time.Now()
	if reporter == nil {
		reporter = &NoOpProgressReporter{}
	}
	gate := &gatedReporter{inner: reporter}
	defer gate.close()

	runID, runCtx, done := a.runs.Begin(ctx, req.RunID)
	defer done()

	response := &schema.StreamComplete{
		ToolsUsed: []string{},
		Metadata:  map[string]string{"run_id": runID},
	}
	finish := func() *schema.StreamComplete {
		response.ProcessingTime = time.Since(start).Milliseconds()
		gate.Send(NewStreamComplete(response))
		gate.close()
		return response
	}

	if runCtx.Err() != nil {
		response.Cancelled = true
		return finish(), nil
	}

	native := a.config.Model.Capabilities()&llm.NativeToolCalling != 0
	systemPrompt, err := a.renderSystemPrompt(req, !native)
	if err != nil {
		gate.Send(NewStreamError(err.Error(), "prompt_rendering_failed", 0))
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	history := TrimHistory(req.History, a.config.MaxHistoryMessages)
	messages := append(append([]llm.Message{}, history...),
		llm.Message{Role: "user", Content: req.Question})

	for round := 0; round < a.config.MaxToolRounds; round++ {
		if runCtx.Err() != nil {
			response.Cancelled = true
			return finish(), nil
		}

		// The catalog is fetched fresh each round so tools registered
		// mid-conversation are offered immediately.
		catalog := a.config.Registry.AllDefinitions()

		rec := &streamReconciler{}
		resp, err := a.streamModel(runCtx, gate, rec, messages,
			llm.WithSystemPrompt(systemPrompt),
			llm.WithTemperature(a.config.Temperature),
			llm.WithMaxTokens(a.config.MaxTokens),
			llm.WithTools(catalog),
		)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			response.Cancelled = true
			response.Answer = rec.visible()
			return finish(), nil
		}
		if err != nil {
			return nil, a.reportLLMError(gate, err)
		}
		addUsage(&response.Usage, resp.Usage)
		response.Rounds = round + 1

		// Structured calls count only when the provider says it stopped to
		// call tools.
		var calls []llm.ToolCall
		if resp.FinishReason == llm.FinishToolCalls {
			calls = resp.ToolCalls
		}
		if len(calls) == 0 {
			// Providers without native tool calling fall back to the tagged
			// protocol embedded in the text.
			calls = ParseTaggedToolCalls(resp.Content)
		}
		if len(calls) == 0 {
			response.Answer = CleanContent(resp.Content)
			return finish(), nil
		}
		for _, call := range calls {
			response.ToolsUsed = appendUnique(response.ToolsUsed, call.Function.Name)
		}

		// The raw content is not replayed; tagged or think text in it would
		// only mislead later rounds.
		messages = append(messages, llm.Message{
			Role:      "assistant",
			ToolCalls: calls,
		})
		messages = append(messages, a.runToolCalls(runCtx, gate, req, calls)...)
	}

	// Round limit reached: one last call without tools so the model must
	// answer from what it has gathered.
	if runCtx.Err() != nil {
		response.Cancelled = true
		return finish(), nil
	}
	logger.Info("tool round limit reached, forcing final answer",
		zap.String("runId", runID), zap.Int("rounds", a.config.MaxToolRounds))

	messages = append(messages, llm.Message{
		Role:    "user",
		Content: prompts.ForceAnswerInstruction(req.Locale),
	})

	rec := &streamReconciler{}
	resp, err := a.streamModel(runCtx, gate, rec, messages,
		llm.WithSystemPrompt(systemPrompt),
		llm.WithTemperature(a.config.Temperature),
		llm.WithMaxTokens(a.config.MaxTokens),
	)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		response.Cancelled = true
		response.Answer = rec.visible()
		return finish(), nil
	}
	if err != nil {
		return nil, a.reportLLMError(gate, err)
	}
	addUsage(&response.Usage, resp.Usage)
	response.Answer = CleanContent(resp.Content)
	return finish(), nil
}

// ExecuteStream runs the turn in a goroutine and exposes its events as a
// channel, closed when the turn finishes. Errors arrive as StreamError events.
func (a *Agent) ExecuteStream(ctx context.Context, req *Request) <-chan *schema.AgentStreamChunk {
	reporter := NewChannelReporter(16)
	go func() {
		defer reporter.Close()
		if _, err := a.Execute(ctx, reporter, req); err != nil {
			logger.Error("turn failed", zap.Error(err))
		}
	}()
	return reporter.Ch
}

// streamModel runs one streamed chat call, forwarding reconciled visible text
// to the reporter and checking cancellation after every chunk.
func (a *Agent) streamModel(ctx context.Context, gate *gatedReporter, rec *streamReconciler, messages []llm.Message, opts ...llm.LLMOption) (*llm.ChatResponse, error) {
	return a.config.Model.ChatStream(ctx, messages, func(chunk llm.StreamChunk) error {
		if visible := rec.feed(chunk.Content); visible != "" {
			gate.Send(NewAnswerChunk(visible))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}, opts...)
}

// runToolCalls dispatches the round's calls and converts each outcome into a
// tool message. Failures become readable tool results rather than aborting
// the turn.
func (a *Agent) runToolCalls(ctx context.Context, gate *gatedReporter, req *Request, calls []llm.ToolCall) []llm.Message {
	for _, call := range calls {
		gate.Send(NewToolStart(call.ID, call.Function.Name, call.Function.Arguments))
	}

	outcomes := a.config.Registry.ExecuteToolCalls(ctx, calls, req.Context)

	msgs := make([]llm.Message, 0, len(outcomes))
	for _, out := range outcomes {
		content := out.Content()
		if out.Success && out.Summarize && len(content) > summarizeThreshold {
			content = a.summarizeResult(ctx, req.Question, content)
		}
		gate.Send(NewToolResult(out.CallID, out.ToolName, content, !out.Success))
		msgs = append(msgs, llm.Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: out.CallID,
		})
	}
	return msgs
}

// summarizeResult condenses an oversized tool result with the mini model,
// keeping only what bears on the question. Any failure keeps the original.
func (a *Agent) summarizeResult(ctx context.Context, question, content string) string {
	if a.config.MiniModel == nil {
		return content
	}
	system, err := prompts.RenderSummarizationPrompt(question, content)
	if err != nil {
		logger.Error("render summarization prompt failed", zap.Error(err))
		return content
	}
	resp, err := a.config.MiniModel.Chat(ctx,
		[]llm.Message{{Role: "user", Content: content}},
		llm.WithSystemPrompt(system), llm.WithTemperature(0.0))
	if err != nil {
		logger.Error("tool result summarization failed", zap.Error(err))
		return content
	}
	summary := CleanContent(resp.Content)
	if summary == "" || summary == "# IRRELEVANT" {
		return "No relevant information found."
	}
	return summary
}

func (a *Agent) renderSystemPrompt(req *Request, taggedProtocol bool) (string, error) {
	owner := tools.Owner{}
	if req.Context != nil && req.Context.Owner != nil {
		owner = *req.Context.Owner
	}
	return prompts.RenderSystemPrompt(prompts.SystemPromptData{
		RoleTemplate:    req.RoleTemplate,
		ChatType:        req.ChatType,
		Locale:          req.Locale,
		OwnerName:       owner.DisplayName,
		OwnerPlatformID: owner.PlatformID,
		TaggedProtocol:  taggedProtocol,
	})
}

func (a *Agent) reportLLMError(gate *gatedReporter, err error) error {
	translated := llm.TranslateProviderError(err)

	code := "llm_failed"
	var retryMs int64
	var pe *llm.ProviderError
	if errors.As(translated, &pe) {
		if llm.IsRateLimited(translated) {
			code = "rate_limited"
		}
		retryMs = pe.RetryAfter.Milliseconds()
	}
	logger.Error("model call failed", zap.Error(translated))
	gate.Send(NewStreamError(translated.Error(), code, retryMs))
	return translated
}

func appendUnique(list []string, name string) []string {
	for _, n := range list {
		if n == name {
			return list
		}
	}
	return append(list, name)
}

func addUsage(dst *schema.TokenUsage, u llm.Usage) {
	dst.PromptTokens += u.PromptTokens
	dst.CompletionTokens += u.CompletionTokens
	dst.TotalTokens += u.TotalTokens
}
