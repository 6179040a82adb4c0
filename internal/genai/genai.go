// Package genai provides GenAI-enhanced operations using the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.ChatModelGPT4o

// Sampling parameters for the booking dialogue.
const (
	completionTemperature = 0.7
	completionMaxTokens   = 1000
)

// ErrNoChoicesReturned indicates the API returned an empty choice list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// chatAdapter bridges the real OpenAI client into the chatService interface.
type chatAdapter struct {
	completions openai.ChatCompletionService
}

func (a chatAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// ToolCall represents a single function call requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolCallResponse carries the assistant text and any tool calls from one
// completion.
type ToolCallResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ClientInterface defines the GenAI operations consumers depend on.
type ClientInterface interface {
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error)
}

// Client wraps the OpenAI ChatCompletion service.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

// NewClient initializes a new GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not set via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	model := openai.ChatModel(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client initialized", "model", model)
	return &Client{chat: chatAdapter{completions: cli.Chat.Completions}, model: model}, nil
}

// GenerateWithMessages generates a plain completion for the given messages.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(completionTemperature),
		MaxTokens:   openai.Int(completionMaxTokens),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("Client.GenerateWithMessages: completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateWithTools generates a completion with function-calling tools
// available and returns both the assistant text and any tool calls.
func (c *Client) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: openai.Float(completionTemperature),
		MaxTokens:   openai.Int(completionMaxTokens),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("Client.GenerateWithTools: completion failed", "error", err)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesReturned
	}

	message := resp.Choices[0].Message
	result := &ToolCallResponse{Content: message.Content}
	for _, tc := range message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	slog.Debug("Client.GenerateWithTools: completion received", "toolCallCount", len(result.ToolCalls), "hasContent", result.Content != "")
	return result, nil
}
