package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const OpenAICompatName = "openai-compat"

// OpenAICompatConfig holds configuration for an OpenAI-compatible endpoint.
type OpenAICompatConfig struct {
	APIKey      string
	BaseURL     string // e.g. Gemini's compatibility endpoint
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAICompatClient implements LLMClient against any OpenAI-compatible
// chat-completions endpoint.
type OpenAICompatClient struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// NewOpenAICompatClient creates a new client for an OpenAI-compatible API.
func NewOpenAICompatClient(cfg OpenAICompatConfig) (*OpenAICompatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAICompatClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

// Name returns the client identifier.
func (c *OpenAICompatClient) Name() string {
	return OpenAICompatName
}

// Chat sends a chat completion request.
func (c *OpenAICompatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	var messages []openai.ChatCompletionMessageParamUnion
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		Temperature: openai.Float(temperature),
	}
	if maxTokens := req.MaxTokens; maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	} else if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return &ChatResult{
			Provider:      OpenAICompatName,
			ModelUsed:     model,
			RequestID:     req.RequestID,
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return &ChatResult{
			Provider:      OpenAICompatName,
			ModelUsed:     model,
			RequestID:     req.RequestID,
			Success:       false,
			ErrorMessage:  "no response choices from model",
			ExecutionTime: time.Since(start),
		}, fmt.Errorf("no response choices from model")
	}

	return &ChatResult{
		Content:          completion.Choices[0].Message.Content,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		ExecutionTime:    time.Since(start),
		Provider:         OpenAICompatName,
		ModelUsed:        completion.Model,
		RequestID:        req.RequestID,
		Success:          true,
	}, nil
}

// Verify interface
var _ LLMClient = (*OpenAICompatClient)(nil)
