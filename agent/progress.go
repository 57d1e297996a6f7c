package agent

import (
	"sync/atomic"

	"github.com/xiaorui775/ChatLab/schema"
)

// ProgressReporter receives stream events as the agent works. Implementations
// must tolerate Send being called from the goroutine running the turn.
type ProgressReporter interface {
	Send(event *schema.AgentStreamChunk) error
}

// NoOpProgressReporter discards every event.
type NoOpProgressReporter struct{}

func (r *NoOpProgressReporter) Send(event *schema.AgentStreamChunk) error { return nil }

// ChannelReporter forwards events to a channel, for callers that consume the
// stream like an iterator. Close when the turn completes.
type ChannelReporter struct {
	Ch chan *schema.AgentStreamChunk
}

func NewChannelReporter(buffer int) *ChannelReporter {
	return &ChannelReporter{Ch: make(chan *schema.AgentStreamChunk, buffer)}
}

func (r *ChannelReporter) Send(event *schema.AgentStreamChunk) error {
	r.Ch <- event
	return nil
}

func (r *ChannelReporter) Close() { close(r.Ch) }

// gatedReporter wraps the caller's reporter and stops forwarding once the
// turn is cancelled, so no content leaks after the cancellation checkpoint.
type gatedReporter struct {
	inner  ProgressReporter
	closed atomic.Bool
}

func (g *gatedReporter) Send(event *schema.AgentStreamChunk) error {
	if g.closed.Load() {
		return nil
	}
	return g.inner.Send(event)
}

func (g *gatedReporter) close() { g.closed.Store(true) }

func NewAnswerChunk(content string) *schema.AgentStreamChunk {
	return &schema.AgentStreamChunk{Answer: &schema.AnswerChunk{Content: content}}
}

func NewToolStart(callID, toolName, arguments string) *schema.AgentStreamChunk {
	return &schema.AgentStreamChunk{ToolStart: &schema.ToolStartChunk{
		CallID:    callID,
		ToolName:  toolName,
		Arguments: arguments,
	}}
}

func NewToolResult(callID, toolName, content string, isError bool) *schema.AgentStreamChunk {
	return &schema.AgentStreamChunk{ToolResult: &schema.ToolResultChunk{
		CallID:   callID,
		ToolName: toolName,
		Content:  content,
		IsError:  isError,
	}}
}

func NewStreamComplete(complete *schema.StreamComplete) *schema.AgentStreamChunk {
	return &schema.AgentStreamChunk{Complete: complete}
}

func NewStreamError(message, code string, retryAfterMs int64) *schema.AgentStreamChunk {
	return &schema.AgentStreamChunk{Error: &schema.StreamError{
		ErrorMessage: message,
		ErrorCode:    code,
		RetryAfterMs: retryAfterMs,
	}}
}
