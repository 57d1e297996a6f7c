package schema

// TokenUsage is cumulative across every model call in a turn.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AnswerChunk is a user-visible increment of the final answer.
type AnswerChunk struct {
	Content string `json:"content"`
}

// ToolStartChunk signals that a tool invocation is about to run.
type ToolStartChunk struct {
	CallID    string `json:"call_id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"`
}

// ToolResultChunk carries the outcome of one tool invocation.
type ToolResultChunk struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Content  string `json:"content"`
	IsError  bool   `json:"is_error"`
}

// StreamComplete is the aggregate result of a turn.
type StreamComplete struct {
	Answer         string            `json:"answer"`
	ToolsUsed      []string          `json:"tools_used"`
	Rounds         int               `json:"rounds"`
	Usage          TokenUsage        `json:"usage"`
	Cancelled      bool              `json:"cancelled,omitempty"`
	ProcessingTime int64             `json:"processing_time_ms"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type StreamError struct {
	ErrorMessage string `json:"error_message"`
	ErrorCode    string `json:"error_code"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

// AgentStreamChunk is the union of stream event types; exactly one field is
// non-nil.
type AgentStreamChunk struct {
	Answer     *AnswerChunk     `json:"answer,omitempty"`
	ToolStart  *ToolStartChunk  `json:"tool_start,omitempty"`
	ToolResult *ToolResultChunk `json:"tool_result,omitempty"`
	Complete   *StreamComplete  `json:"complete,omitempty"`
	Error      *StreamError     `json:"error,omitempty"`
}
