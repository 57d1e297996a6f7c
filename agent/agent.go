// Package agent runs the multi-round tool-calling loop that answers questions
// about an imported chat log: system prompt assembly, tool dispatch, streamed
// answer reconciliation, and cooperative cancellation.
package agent

import (
	"github.com/xiaorui775/ChatLab/llm"
	"github.com/xiaorui775/ChatLab/tools"
)

const (
	defaultMaxToolRounds = 5
	defaultMaxTokens     = 2000
	defaultTemperature   = 0.7
)

// AgentConfig holds the collaborators and limits of one agent instance.
type AgentConfig struct {
	Model llm.LLMClient
	// MiniModel handles auxiliary calls (tool-result summarization). Optional.
	MiniModel llm.LLMClient
	Registry  *tools.Registry

	MaxToolRounds int
	MaxTokens     int
	Temperature   float64
	// MaxHistoryMessages bounds the prior conversation carried into a turn.
	// Zero keeps everything.
	MaxHistoryMessages int
}

type Agent struct {
	config AgentConfig
	runs   *RunManager
}

// Runs exposes the run registry for external cancellation.
func (a *Agent) Runs() *RunManager { return a.runs }

type AgentBuilder struct {
	config AgentConfig
}

func NewAgentBuilder() *AgentBuilder {
	return &AgentBuilder{
		config: AgentConfig{
			MaxToolRounds: defaultMaxToolRounds,
			MaxTokens:     defaultMaxTokens,
			Temperature:   defaultTemperature,
		},
	}
}

func (b *AgentBuilder) WithModel(client llm.LLMClient) *AgentBuilder {
	b.config.Model = client
	return b
}

func (b *AgentBuilder) WithMiniModel(client llm.LLMClient) *AgentBuilder {
	b.config.MiniModel = client
	return b
}

func (b *AgentBuilder) WithRegistry(reg *tools.Registry) *AgentBuilder {
	b.config.Registry = reg
	return b
}

func (b *AgentBuilder) WithMaxToolRounds(rounds int) *AgentBuilder {
	b.config.MaxToolRounds = rounds
	return b
}

func (b *AgentBuilder) WithMaxTokens(max int) *AgentBuilder {
	b.config.MaxTokens = max
	return b
}

func (b *AgentBuilder) WithTemperature(temp float64) *AgentBuilder {
	b.config.Temperature = temp
	return b
}

func (b *AgentBuilder) WithMaxHistoryMessages(max int) *AgentBuilder {
	b.config.MaxHistoryMessages = max
	return b
}

func (b *AgentBuilder) Build() *Agent {
	if b.config.MaxToolRounds <= 0 {
		b.config.MaxToolRounds = defaultMaxToolRounds
	}
	if b.config.Registry == nil {
		b.config.Registry = tools.NewRegistry()
	}
	return &Agent{config: b.config, runs: NewRunManager()}
}

// Request is one user turn.
type Request struct {
	// RunID identifies the turn for external cancellation. Empty means the
	// agent assigns one.
	RunID    string
	Question string
	// History is the prior conversation, oldest first, trimmed per config.
	History []llm.Message
	Context *tools.ToolContext

	// Prompt shaping.
	ChatType     string
	Locale       string
	RoleTemplate string
}
