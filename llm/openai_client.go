package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/ollama/ollama/api"
)

// OpenAIClient talks to any OpenAI-compatible chat endpoint (OpenAI, Ollama,
// vLLM, Groq, DeepSeek, etc.) via a configurable base URL.
type OpenAIClient struct {
	client       *openai.Client
	model        string
	capabilities Capability
}

type OpenAIClientOption func(*OpenAIClient)

// WithoutNativeTools marks the model as lacking structured tool calling. The
// agent then advertises the tagged fallback protocol in its system prompt.
func WithoutNativeTools() OpenAIClientOption {
	return func(c *OpenAIClient) { c.capabilities &^= NativeToolCalling }
}

// NewOpenAIClient creates a chat client. If baseURL is non-empty it overrides
// the default API endpoint, which allows pointing at any OpenAI-compatible
// server.
func NewOpenAIClient(apiKey, baseURL, model string, opts ...OpenAIClientOption) *OpenAIClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(reqOpts...)

	c := &OpenAIClient{
		client:       &client,
		model:        model,
		capabilities: NativeToolCalling,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OpenAIClient) Capabilities() Capability {
	return c.capabilities
}

func (c *OpenAIClient) GetModel() string {
	return c.model
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, opts ...LLMOption) (*ChatResponse, error) {
	params, err := c.buildParams(messages, opts)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, TranslateProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	out := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID: tc.ID,
			Function: ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out, nil
}

func (c *OpenAIClient) ChatStream(
	ctx context.Context,
	messages []Message,
	onChunk func(chunk StreamChunk) error,
	opts ...LLMOption,
) (*ChatResponse, error) {
	params, err := c.buildParams(messages, opts)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content == "" && len(delta.ToolCalls) == 0 {
			continue
		}

		out := StreamChunk{Content: delta.Content}
		for _, tc := range delta.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID: tc.ID,
				Function: ToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		if err := onChunk(out); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, TranslateProviderError(err)
	}

	resp := &ChatResponse{
		Usage: Usage{
			PromptTokens:     int(acc.Usage.PromptTokens),
			CompletionTokens: int(acc.Usage.CompletionTokens),
			TotalTokens:      int(acc.Usage.TotalTokens),
		},
	}
	if len(acc.Choices) > 0 {
		choice := acc.Choices[0]
		resp.Content = choice.Message.Content
		resp.FinishReason = string(choice.FinishReason)
		for _, tc := range choice.Message.ToolCalls {
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID: tc.ID,
				Function: ToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
	}

	// Terminal chunk carries usage.
	terminal := StreamChunk{
		IsFinished:   true,
		FinishReason: resp.FinishReason,
		Usage:        &resp.Usage,
	}
	if err := onChunk(terminal); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *OpenAIClient) buildParams(messages []Message, opts []LLMOption) (openai.ChatCompletionNewParams, error) {
	settings := LLMSettings{
		model:       c.model,
		temperature: 0.7,
		maxTokens:   4096,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	oaiMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if settings.system != "" {
		oaiMsgs = append(oaiMsgs, openai.SystemMessage(settings.system))
	}
	for _, m := range messages {
		oaiMsgs = append(oaiMsgs, toOpenAIMessage(m))
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(settings.model),
		Messages:    oaiMsgs,
		Temperature: openai.Float(settings.temperature),
		MaxTokens:   openai.Int(int64(settings.maxTokens)),
	}

	if len(settings.tools) > 0 {
		tools, err := toOpenAITools(settings.tools)
		if err != nil {
			return params, err
		}
		params.Tools = tools
	}
	return params, nil
}

// toOpenAITools converts the ollama-typed tool catalog to the OpenAI SDK
// representation. The parameter schema takes a round trip through JSON so the
// two representations cannot drift.
func toOpenAITools(tools []api.Tool) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		raw, err := json.Marshal(t.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("error marshaling parameters for tool %s: %w", t.Function.Name, err)
		}
		var schemaMap map[string]any
		if err := json.Unmarshal(raw, &schemaMap); err != nil {
			return nil, fmt.Errorf("error unmarshaling parameters for tool %s: %w", t.Function.Name, err)
		}

		out[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Function.Name,
				Description: openai.String(t.Function.Description),
				Parameters:  shared.FunctionParameters(schemaMap),
			},
		}
	}
	return out, nil
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case "system":
		return openai.SystemMessage(m.Content)
	case "tool":
		return openai.ToolMessage(m.Content, m.ToolCallID)
	case "user":
		return openai.UserMessage(m.Content)
	default: // "assistant"
		asst := openai.ChatCompletionAssistantMessageParam{}
		if m.Content != "" {
			asst.Content.OfString = openai.String(m.Content)
		}
		if len(m.ToolCalls) > 0 {
			asst.ToolCalls = make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				asst.ToolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				}
			}
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
	}
}
